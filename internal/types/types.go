package types

import (
	"image"
)

// SourceFile is a user-supplied upload exactly as it arrived from the picker,
// the drop target or the drop folder.
type SourceFile struct {
	Name string // original filename, may be empty
	Type string // declared MIME type, never sniffed
	Data []byte
}

// NormalizedBlob holds bytes in a directly decodable raster format.
type NormalizedBlob struct {
	Type string
	Data []byte
}

// DecodedImage is a bitmap ready to be rendered or handed to a model.
type DecodedImage struct {
	Image  image.Image
	Format string // codec name reported by image.Decode
	Width  int
	Height int
}

// Box is an axis-aligned bounding region in image pixels.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// ProcessingResult is the output of a processor. Exactly one field is set:
// DataURL for re-encoded images (upscale), Canvas for drawn output (filter).
type ProcessingResult struct {
	DataURL string
	Canvas  image.Image
	Face    *Box // the region the overlay was drawn on, if any
}

// Artifact is the flat PNG offered for download.
type Artifact struct {
	Filename string
	DataURL  string
	PNG      []byte
	Width    int
	Height   int
}

// Result is everything a presenter needs to show a finished run.
type Result struct {
	Original *DecodedImage
	Output   *ProcessingResult
	Artifact *Artifact
}

// UIState is the externally visible pipeline state.
type UIState int

const (
	StateIdle UIState = iota
	StateLoading
	StateResultReady
	StateError
)

func (s UIState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateResultReady:
		return "result-ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseUIState is the inverse of UIState.String. Unknown names map to StateIdle.
func ParseUIState(s string) UIState {
	for _, st := range []UIState{StateLoading, StateResultReady, StateError} {
		if st.String() == s {
			return st
		}
	}
	return StateIdle
}
