// Package facefilter is the face-filter processor: it copies the original
// onto a canvas and decorates the primary face, if one is found.
package facefilter

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/andresmejia3/imagedrop/internal/overlay"
	"github.com/andresmejia3/imagedrop/internal/types"
)

// ArtifactPrefix is prepended to the download name of filtered images.
const ArtifactPrefix = "dog-filter-"

// Detector finds at most one face.
type Detector interface {
	DetectPrimaryFace(ctx context.Context, img image.Image, inputResolution int) (*types.Box, error)
}

// Filter is the face-filter processor.
type Filter struct {
	detector        Detector
	style           overlay.Style
	inputResolution int
}

func New(detector Detector, style overlay.Style, inputResolution int) *Filter {
	return &Filter{detector: detector, style: style, inputResolution: inputResolution}
}

func (f *Filter) Name() string { return "filter" }

func (f *Filter) ArtifactPrefix() string { return ArtifactPrefix }

// Process draws the original at native resolution and, when a face is
// detected, the decoration on top. No face is not an error.
func (f *Filter) Process(ctx context.Context, img *types.DecodedImage) (*types.ProcessingResult, error) {
	face, err := f.detector.DetectPrimaryFace(ctx, img.Image, f.inputResolution)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	// imaging.Clone copies NRGBA sources byte for byte and rebases at the
	// origin, so low-alpha pixels survive the PNG round trip unchanged.
	src := img.Image.Bounds()
	canvas := imaging.Clone(img.Image)

	if face != nil {
		// Detector boxes are in source coordinates; the canvas starts at the origin.
		local := *face
		local.X -= src.Min.X
		local.Y -= src.Min.Y
		f.style(canvas, local)
		face = &local
	}
	return &types.ProcessingResult{Canvas: canvas, Face: face}, nil
}
