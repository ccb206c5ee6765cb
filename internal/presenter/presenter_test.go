package presenter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andresmejia3/imagedrop/internal/types"
	"github.com/andresmejia3/imagedrop/internal/utils"
)

func result(name string) *types.Result {
	return &types.Result{
		Output: &types.ProcessingResult{Face: &types.Box{X: 1, Y: 2, W: 3, H: 4}},
		Artifact: &types.Artifact{
			Filename: name,
			DataURL:  "data:image/png;base64,AAAA",
			PNG:      []byte("\x89PNG fake"),
			Width:    10,
			Height:   20,
		},
	}
}

func TestTerminalShowResultWritesArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	var out bytes.Buffer
	term := &Terminal{OutputDir: dir, Out: &out}

	term.ShowLoading(true)
	term.HideResult()
	term.ShowResult(result("upscaled_photo.png"))
	term.ShowLoading(false)

	path := filepath.Join(dir, "upscaled_photo.png")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected artifact on disk: %v", err)
	}
	if string(data) != "\x89PNG fake" {
		t.Errorf("Unexpected artifact content %q", data)
	}
	if saved := term.Saved(); len(saved) != 1 || saved[0] != path {
		t.Errorf("Expected saved list [%s], got %v", path, saved)
	}
	if !strings.Contains(out.String(), "10x20") || !strings.Contains(out.String(), "x=1 y=2") {
		t.Errorf("Expected size and face in output, got %q", out.String())
	}
}

func TestTerminalSpinnerStartStop(t *testing.T) {
	var out bytes.Buffer
	term := &Terminal{OutputDir: t.TempDir(), Out: &out, Spin: true}

	term.ShowLoading(true)
	term.ShowLoading(true) // idempotent
	term.ShowLoading(false)
	term.ShowLoading(false)

	if term.bar != nil {
		t.Error("Expected spinner to be released")
	}
}

func TestTerminalNotify(t *testing.T) {
	var out bytes.Buffer
	orig := utils.ErrorWriter
	utils.ErrorWriter = &out
	defer func() { utils.ErrorWriter = orig }()

	term := &Terminal{}
	term.Notify("something broke")
	if !strings.Contains(out.String(), "something broke") {
		t.Errorf("Expected notice in output, got %q", out.String())
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	s := &Snapshot{}

	if v := s.View(); v.Visible || v.Loading || v.DownloadName != "" {
		t.Errorf("Expected empty view, got %+v", v)
	}

	s.HideResult()
	s.ShowLoading(true)
	if v := s.View(); !v.Loading || v.Visible {
		t.Errorf("Expected loading without result, got %+v", v)
	}

	s.ShowResult(result("dog-filter-me.png"))
	s.ShowLoading(false)
	v := s.View()
	if v.Loading || !v.Visible || v.DownloadName != "dog-filter-me.png" || v.Face == nil {
		t.Errorf("Expected visible result, got %+v", v)
	}

	// A failed follow-up hides the result and leaves a notice
	s.HideResult()
	s.ShowLoading(true)
	s.Notify("oops")
	s.ShowLoading(false)
	v = s.View()
	if v.Visible || v.DownloadName != "" || v.Notice != "oops" {
		t.Errorf("Expected hidden result with notice, got %+v", v)
	}

	// The next run clears the notice
	s.HideResult()
	if v := s.View(); v.Notice != "" {
		t.Errorf("Expected notice cleared, got %q", v.Notice)
	}
}
