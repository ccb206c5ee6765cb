package utils

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDigest(t *testing.T) {
	a := Digest([]byte("fake image content"))
	if len(a) != 64 {
		t.Fatalf("Expected 64 hex chars, got %d", len(a))
	}

	// Verify Determinism
	if b := Digest([]byte("fake image content")); a != b {
		t.Errorf("Digest is not deterministic. Got %s, then %s", a, b)
	}

	// Verify Sensitivity (Change content -> Change digest)
	if c := Digest([]byte("fake image content modification")); a == c {
		t.Error("Digest did not change after content modification")
	}
}

func TestShowErrorIncludesToolLogs(t *testing.T) {
	var buf bytes.Buffer
	old := ErrorWriter
	ErrorWriter = &buf
	defer func() { ErrorWriter = old }()

	sc := NewSafeCommand(context.Background(), "true")
	sc.Stderr.WriteString("ModuleNotFoundError: torch")

	ShowError("Model worker crashed", errors.New("broken pipe"), sc)

	out := buf.String()
	for _, want := range []string{"Model worker crashed", "broken pipe", "ModuleNotFoundError: torch"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestShowErrorWithoutCommand(t *testing.T) {
	var buf bytes.Buffer
	old := ErrorWriter
	ErrorWriter = &buf
	defer func() { ErrorWriter = old }()

	ShowError("Something went wrong", nil, nil)

	if strings.Contains(buf.String(), "EXTERNAL TOOL LOGS") {
		t.Error("Did not expect a log section without a command")
	}
}

func TestCheckToolMissing(t *testing.T) {
	err := CheckTool("definitely-not-a-real-binary-imagedrop")
	if err == nil {
		t.Fatal("Expected error for missing tool")
	}
	if !strings.Contains(err.Error(), "not found in PATH") {
		t.Errorf("Unexpected error: %v", err)
	}
}
