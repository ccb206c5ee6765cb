// Package presenter holds the surfaces that render pipeline progress: a
// terminal presenter for the CLI and the drop folder, and a snapshot
// presenter the web server reads from.
package presenter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/andresmejia3/imagedrop/internal/types"
	"github.com/andresmejia3/imagedrop/internal/utils"
)

// Terminal writes artifacts to an output directory and reports progress on a writer.
type Terminal struct {
	OutputDir string
	Out       io.Writer // spinner and notices, os.Stderr when nil
	Spin      bool      // false in tests and for non-interactive runs

	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	stop  chan struct{}
	done  chan struct{}
	saved []string
}

func NewTerminal(outputDir string, spin bool) *Terminal {
	return &Terminal{OutputDir: outputDir, Out: os.Stderr, Spin: spin}
}

func (t *Terminal) out() io.Writer {
	if t.Out == nil {
		return os.Stderr
	}
	return t.Out
}

// ShowLoading starts or stops an indeterminate spinner.
func (t *Terminal) ShowLoading(loading bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.Spin {
		return
	}
	if loading {
		if t.bar != nil {
			return
		}
		t.bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("🖼️  Processing"),
			progressbar.OptionSetWriter(t.out()),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		t.stop = make(chan struct{})
		t.done = make(chan struct{})
		go spin(t.bar, t.stop, t.done)
		return
	}
	if t.bar == nil {
		return
	}
	close(t.stop)
	<-t.done
	_ = t.bar.Finish()
	t.bar = nil
}

func spin(bar *progressbar.ProgressBar, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}

// HideResult is a no-op: a terminal cannot take back what it printed.
func (t *Terminal) HideResult() {}

// ShowResult saves the artifact under OutputDir using its download name.
func (t *Terminal) ShowResult(res *types.Result) {
	art := res.Artifact
	if err := os.MkdirAll(t.OutputDir, 0o755); err != nil {
		fmt.Fprintf(t.out(), "⚠️  Could not create %s: %v\n", t.OutputDir, err)
		return
	}
	path := filepath.Join(t.OutputDir, art.Filename)
	if err := os.WriteFile(path, art.PNG, 0o644); err != nil {
		fmt.Fprintf(t.out(), "⚠️  Could not save %s: %v\n", path, err)
		return
	}

	t.mu.Lock()
	t.saved = append(t.saved, path)
	t.mu.Unlock()

	fmt.Fprintf(t.out(), "✅ Saved %s (%dx%d)\n", path, art.Width, art.Height)
	if face := res.Output.Face; face != nil {
		fmt.Fprintf(t.out(), "   Face at x=%d y=%d (%dx%d)\n", face.X, face.Y, face.W, face.H)
	}
}

// Notify prints the user-facing message in the same box as other CLI errors.
func (t *Terminal) Notify(message string) {
	utils.ShowError(message, nil, nil)
}

// Saved lists the artifact paths written so far.
func (t *Terminal) Saved() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.saved...)
}
