package utils

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
)

// --- 1. Process Safety & Command Wrapping ---

// SafeCommand wraps a standard exec.Cmd with a buffer to catch Stderr (model and transcoder logs)
// This ensures we don't lose critical crash information if an external tool dies.
type SafeCommand struct {
	*exec.Cmd
	Stderr *bytes.Buffer
}

// NewSafeCommand initializes a context-bound command and attaches a buffer to its Stderr pipe.
// It prepares the command for execution but does not start it.
func NewSafeCommand(ctx context.Context, name string, args ...string) *SafeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// Logs returns whatever the process wrote to stderr so far.
func (s *SafeCommand) Logs() string {
	if s == nil || s.Stderr == nil {
		return ""
	}
	return s.Stderr.String()
}

// ErrorWriter is where ShowError prints. Tests swap it out.
var ErrorWriter io.Writer = os.Stderr

// ShowError prints a formatted error box and dumps external tool logs if a SafeCommand is provided.
func ShowError(context string, err error, s *SafeCommand) {
	fmt.Fprintf(ErrorWriter, "\n---------------------------------------------------------\n")
	fmt.Fprintf(ErrorWriter, "🚨 IMAGEDROP: %s\n", context)
	if err != nil {
		fmt.Fprintf(ErrorWriter, "DETAILS: %v\n", err)
	}

	// If we have a SafeCommand and it captured logs, print them.
	if logs := s.Logs(); logs != "" {
		fmt.Fprintf(ErrorWriter, "\nEXTERNAL TOOL LOGS:\n%s\n", logs)
	}
	fmt.Fprintf(ErrorWriter, "---------------------------------------------------------\n")
}

// --- 2. Content Identity ---

// Digest returns a deterministic hex SHA-256 of an upload's bytes.
// The ledger uses it to correlate repeated submissions of the same file.
func Digest(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// --- 3. External Dependencies ---

// CheckTool reports whether an executable is available in PATH, with an install hint when it isn't.
func CheckTool(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found in PATH. %s", name, installHint(name))
	}
	return nil
}

func installHint(name string) string {
	switch name {
	case "heif-convert":
		switch runtime.GOOS {
		case "darwin":
			return "Install with: brew install libheif"
		case "linux":
			return "Install with: apt-get install libheif-examples (Ubuntu/Debian) or dnf install libheif-tools (Fedora)"
		default:
			return "Download from https://github.com/strukturag/libheif"
		}
	case "python3":
		return "Install Python 3 and the model runner requirements"
	default:
		return "Install it and make sure it is on PATH"
	}
}
