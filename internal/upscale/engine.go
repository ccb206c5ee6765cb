package upscale

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/andresmejia3/imagedrop/internal/worker"
)

// Engine enlarges a single tile by an integer factor.
type Engine interface {
	UpscaleTile(ctx context.Context, tile image.Image, scale int) (image.Image, error)
	Close() error
}

// ResampleEngine is the model-free fallback: Lanczos resampling.
type ResampleEngine struct{}

func (ResampleEngine) UpscaleTile(ctx context.Context, tile image.Image, scale int) (image.Image, error) {
	b := tile.Bounds()
	return imaging.Resize(tile, b.Dx()*scale, b.Dy()*scale, imaging.Lanczos), nil
}

func (ResampleEngine) Close() error { return nil }

// tileWorker is the subset of *worker.ModelWorker the engine needs.
type tileWorker interface {
	UpscaleTile(tile []byte) ([]byte, error)
	Close() error
}

// WorkerEngine drives an external super-resolution model process. The process
// is started on first use and reused afterwards; a failed start is retried on
// the next call.
type WorkerEngine struct {
	cfg   worker.Config
	start func(ctx context.Context) (tileWorker, error)

	mu sync.Mutex
	w  tileWorker
}

// NewWorkerEngine returns an engine that launches the model described by cfg.
func NewWorkerEngine(cfg worker.Config) *WorkerEngine {
	e := &WorkerEngine{cfg: cfg}
	e.start = func(ctx context.Context) (tileWorker, error) {
		// The process outlives a single run, so it is not bound to the run's context.
		return worker.NewModelWorker(context.WithoutCancel(ctx), 0, e.cfg)
	}
	return e
}

func (e *WorkerEngine) UpscaleTile(ctx context.Context, tile image.Image, scale int) (image.Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.w == nil {
		w, err := e.start(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to start model worker: %w", err)
		}
		e.w = w
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, tile); err != nil {
		return nil, fmt.Errorf("failed to encode tile: %w", err)
	}

	resp, err := e.w.UpscaleTile(buf.Bytes())
	if err != nil {
		// A broken pipe leaves the process unusable; drop it so the next run restarts it.
		e.w.Close()
		e.w = nil
		return nil, err
	}

	out, _, err := image.Decode(bytes.NewReader(resp))
	if err != nil {
		return nil, fmt.Errorf("model returned an undecodable tile: %w", err)
	}

	want := image.Pt(tile.Bounds().Dx()*scale, tile.Bounds().Dy()*scale)
	if got := out.Bounds().Size(); got != want {
		return nil, fmt.Errorf("model returned a %v tile, expected %v", got, want)
	}
	return out, nil
}

func (e *WorkerEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.w == nil {
		return nil
	}
	err := e.w.Close()
	e.w = nil
	return err
}
