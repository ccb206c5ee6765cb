package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/andresmejia3/imagedrop/internal/config"
	"github.com/andresmejia3/imagedrop/internal/detector"
	"github.com/andresmejia3/imagedrop/internal/facefilter"
	"github.com/andresmejia3/imagedrop/internal/normalize"
	"github.com/andresmejia3/imagedrop/internal/overlay"
	"github.com/andresmejia3/imagedrop/internal/pipeline"
	"github.com/andresmejia3/imagedrop/internal/types"
	"github.com/andresmejia3/imagedrop/internal/upscale"
	"github.com/andresmejia3/imagedrop/internal/watch"
	"github.com/andresmejia3/imagedrop/internal/worker"
)

// Tool names accepted by --mode and the web API.
const (
	toolUpscale = "upscale"
	toolFilter  = "filter"
)

func newTranscoder(c *config.Config) normalize.Transcoder {
	return normalize.NewCommandTranscoder(c.HEIC.Command, c.HEIC.Quality)
}

func newEngine(c *config.Config) upscale.Engine {
	if c.Upscale.Engine == "worker" {
		return upscale.NewWorkerEngine(worker.Config{
			Command: c.Upscale.Command,
			Args:    c.Upscale.Args,
			Model:   c.Upscale.Model,
			Scale:   c.Upscale.Scale,
		})
	}
	return upscale.ResampleEngine{}
}

func newDetector(c *config.Config) *detector.Pigo {
	return detector.NewPigo(detector.Options{
		CascadeURL:  c.Face.CascadeURL,
		MinSize:     c.Face.MinSize,
		MaxSize:     c.Face.MaxSize,
		ShiftFactor: c.Face.ShiftFactor,
		ScaleFactor: c.Face.ScaleFactor,
		MinQuality:  float32(c.Face.MinQuality),
	})
}

// newProcessor builds the processor for a tool. The face detector is passed in
// so the web surface can warm a single cascade shared by every run.
func newProcessor(c *config.Config, tool string, det facefilter.Detector, strength int) (pipeline.Processor, error) {
	switch tool {
	case toolUpscale:
		return upscale.New(newEngine(c), upscale.Options{
			Model:    c.Upscale.Model,
			Scale:    c.Upscale.Scale,
			TileSize: c.Upscale.TileSize,
			Padding:  c.Upscale.Padding,
		}), nil
	case toolFilter:
		style, err := overlay.StyleByName(c.Face.Style, strength)
		if err != nil {
			return nil, err
		}
		if det == nil {
			det = newDetector(c)
		}
		return facefilter.New(det, style, c.Face.InputResolution), nil
	default:
		return nil, fmt.Errorf("unknown tool %q (expected %s or %s)", tool, toolUpscale, toolFilter)
	}
}

func newPipeline(c *config.Config, proc pipeline.Processor, pres pipeline.Presenter, logger *slog.Logger) *pipeline.Pipeline {
	opts := pipeline.Options{
		Transcoder: newTranscoder(c),
		Processor:  proc,
		Presenter:  pres,
		Logger:     logger,
	}
	// Avoid a typed-nil Recorder
	if DB != nil {
		opts.Recorder = DB
	}
	return pipeline.New(opts)
}

// closeProcessor releases external model processes, if the processor owns any.
func closeProcessor(proc pipeline.Processor) {
	if c, ok := proc.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close processor", "tool", proc.Name(), "error", err)
		}
	}
}

// validateInput checks a single-file input before any work starts. The file
// type is not checked: anything that isn't an image fails at decode.
func validateInput(path string) error {
	if path == "" {
		return fmt.Errorf("--input is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("input file not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("input must be a file, got directory: %s", path)
	}
	return nil
}

// readSource loads a file the way a picker would hand it over: name, declared
// type, bytes. Unknown extensions get an empty declared type.
func readSource(path string) (*types.SourceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	return &types.SourceFile{Name: name, Type: watch.TypeForName(name), Data: data}, nil
}

// parseDuration parses a positive duration flag.
func parseDuration(flag, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s %q: %w", flag, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("--%s must be positive, got %s", flag, value)
	}
	return d, nil
}
