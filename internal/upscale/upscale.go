// Package upscale runs super-resolution tile by tile and stitches the result.
package upscale

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/andresmejia3/imagedrop/internal/publish"
	"github.com/andresmejia3/imagedrop/internal/types"
)

// ArtifactPrefix is prepended to the download name of upscaled images.
const ArtifactPrefix = "upscaled_"

// Options is the tiling configuration fixed at construction.
type Options struct {
	Model    string
	Scale    int
	TileSize int
	Padding  int
}

// Upscaler is the upscale processor.
type Upscaler struct {
	engine Engine
	opts   Options
}

func New(engine Engine, opts Options) *Upscaler {
	return &Upscaler{engine: engine, opts: opts}
}

func (u *Upscaler) Name() string { return "upscale" }

func (u *Upscaler) ArtifactPrefix() string { return ArtifactPrefix }

// Process upscales the decoded image and returns it as a PNG data URL.
func (u *Upscaler) Process(ctx context.Context, img *types.DecodedImage) (*types.ProcessingResult, error) {
	out, err := u.Upscale(ctx, img.Image)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode upscaled image: %w", err)
	}
	return &types.ProcessingResult{DataURL: publish.EncodeDataURL("image/png", buf.Bytes())}, nil
}

// Upscale enlarges src by the configured scale. Each padded tile is upscaled
// on its own and only its core is copied into the output, so the padding
// hides seams between neighbouring tiles.
func (u *Upscaler) Upscale(ctx context.Context, src image.Image) (*image.NRGBA, error) {
	scale := u.opts.Scale
	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))

	for _, t := range Tiles(b, u.opts.TileSize, u.opts.Padding) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// imaging.Crop rebases the tile at the origin.
		padded := imaging.Crop(src, t.Padded)
		up, err := u.engine.UpscaleTile(ctx, padded, scale)
		if err != nil {
			return nil, fmt.Errorf("tile %v: %w", t.Core, err)
		}

		core := t.Core.Sub(b.Min)
		dst := image.Rectangle{Min: core.Min.Mul(scale), Max: core.Max.Mul(scale)}
		sp := t.Core.Min.Sub(t.Padded.Min).Mul(scale).Add(up.Bounds().Min)
		draw.Draw(out, dst, up, sp, draw.Src)
	}
	return out, nil
}

func (u *Upscaler) Close() error {
	return u.engine.Close()
}
