package presenter

import (
	"sync"

	"github.com/andresmejia3/imagedrop/internal/types"
)

// View is what a polling client sees.
type View struct {
	Loading      bool       `json:"loading"`
	Visible      bool       `json:"visible"`
	Notice       string     `json:"notice,omitempty"`
	DownloadName string     `json:"download_name,omitempty"`
	Width        int        `json:"width,omitempty"`
	Height       int        `json:"height,omitempty"`
	Processed    string     `json:"processed,omitempty"`
	Face         *types.Box `json:"face,omitempty"`
}

// Snapshot keeps the latest presentation state in memory for the web surface.
type Snapshot struct {
	mu      sync.RWMutex
	loading bool
	visible bool
	notice  string
	result  *types.Result
}

func (s *Snapshot) ShowLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

// HideResult hides the result area and clears any notice from a previous run.
// The last result is kept so a download still works.
func (s *Snapshot) HideResult() {
	s.mu.Lock()
	s.visible = false
	s.notice = ""
	s.mu.Unlock()
}

func (s *Snapshot) ShowResult(res *types.Result) {
	s.mu.Lock()
	s.result = res
	s.visible = true
	s.mu.Unlock()
}

func (s *Snapshot) Notify(message string) {
	s.mu.Lock()
	s.notice = message
	s.mu.Unlock()
}

// View renders the current state. Result details are only included while the
// result area is visible.
func (s *Snapshot) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{Loading: s.loading, Visible: s.visible, Notice: s.notice}
	if s.visible && s.result != nil {
		art := s.result.Artifact
		v.DownloadName = art.Filename
		v.Width, v.Height = art.Width, art.Height
		v.Processed = art.DataURL
		if s.result.Output != nil {
			v.Face = s.result.Output.Face
		}
	}
	return v
}
