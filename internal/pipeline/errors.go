package pipeline

import (
	"errors"
	"fmt"
)

// Stage identifies where a run failed.
type Stage int

const (
	StageNormalize Stage = iota + 1
	StageDecode
	StageProcess
	StagePublish
)

func (s Stage) String() string {
	switch s {
	case StageNormalize:
		return "normalize"
	case StageDecode:
		return "decode"
	case StageProcess:
		return "process"
	case StagePublish:
		return "publish"
	default:
		return "unknown"
	}
}

var (
	ErrNormalization = errors.New("normalization failure")
	ErrDecode        = errors.New("decode failure")
	ErrProcessing    = errors.New("processing failure")
	ErrPublication   = errors.New("publication failure")

	// ErrBusy is returned when a submission arrives while another run is in flight.
	ErrBusy = errors.New("a run is already in progress")
)

func (s Stage) sentinel() error {
	switch s {
	case StageNormalize:
		return ErrNormalization
	case StageDecode:
		return ErrDecode
	case StageProcess:
		return ErrProcessing
	default:
		return ErrPublication
	}
}

// Failure is the typed result of a failed run. It matches both the stage
// sentinel and the underlying cause with errors.Is.
type Failure struct {
	Stage Stage
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%v: %v", f.Stage.sentinel(), f.Err)
}

func (f *Failure) Unwrap() []error {
	return []error{f.Stage.sentinel(), f.Err}
}

// UserMessage is the only text shown to the user for any failure.
const UserMessage = "Oops! Something went wrong while processing your image. Please try a smaller file or use a different image."
