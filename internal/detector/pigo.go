// Package detector finds the primary face in an image with a pigo cascade.
package detector

import (
	"context"
	"fmt"
	"image"
	"net/http"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/andresmejia3/imagedrop/internal/types"
)

// Options configures the cascade and the scan.
type Options struct {
	CascadeURL  string
	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	MinQuality  float32
	IoU         float64
	Client      *http.Client
}

// Pigo is a face detector whose cascade weights are downloaded on first use
// and kept for the lifetime of the process.
type Pigo struct {
	opts    Options
	cascade *onceLoader[*pigo.Pigo]
}

// NewPigo returns a detector. Nothing is downloaded until the first detection.
func NewPigo(opts Options) *Pigo {
	if opts.IoU == 0 {
		opts.IoU = 0.2
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	d := &Pigo{opts: opts}
	d.cascade = &onceLoader[*pigo.Pigo]{load: d.loadCascade}
	return d
}

func (d *Pigo) loadCascade(ctx context.Context) (classifier *pigo.Pigo, err error) {
	data, err := fetchCascade(ctx, d.opts.Client, d.opts.CascadeURL)
	if err != nil {
		return nil, err
	}

	// Unpack indexes straight into the buffer; a corrupt download must not take the process down.
	defer func() {
		if r := recover(); r != nil {
			classifier, err = nil, fmt.Errorf("corrupt cascade file: %v", r)
		}
	}()
	classifier, err = pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}
	return classifier, nil
}

// Warm loads the cascade ahead of the first request.
func (d *Pigo) Warm(ctx context.Context) error {
	_, err := d.cascade.Get(ctx)
	return err
}

// DetectPrimaryFace returns the highest-scoring face, or nil when none clears
// the quality threshold. The image is shrunk so its longer side is at most
// inputResolution before scanning; the box is mapped back to source pixels.
func (d *Pigo) DetectPrimaryFace(ctx context.Context, img image.Image, inputResolution int) (*types.Box, error) {
	classifier, err := d.cascade.Get(ctx)
	if err != nil {
		return nil, err
	}

	src := img.Bounds()
	scan := img
	ratio := 1.0
	if inputResolution > 0 && max(src.Dx(), src.Dy()) > inputResolution {
		scan = imaging.Fit(img, inputResolution, inputResolution, imaging.Linear)
		ratio = float64(src.Dx()) / float64(scan.Bounds().Dx())
	}

	nrgba := pigo.ImgToNRGBA(scan)
	cols, rows := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()

	params := pigo.CascadeParams{
		MinSize:     d.opts.MinSize,
		MaxSize:     min(d.opts.MaxSize, max(cols, rows)),
		ShiftFactor: d.opts.ShiftFactor,
		ScaleFactor: d.opts.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(nrgba),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := classifier.RunCascade(params, 0.0)
	dets = classifier.ClusterDetections(dets, d.opts.IoU)

	best, ok := primary(dets, d.opts.MinQuality)
	if !ok {
		return nil, nil
	}
	box := toBox(best, ratio, src)
	return &box, nil
}

// primary picks the detection with the highest score above minQ.
func primary(dets []pigo.Detection, minQ float32) (pigo.Detection, bool) {
	var best pigo.Detection
	found := false
	for _, det := range dets {
		if det.Q < minQ {
			continue
		}
		if !found || det.Q > best.Q {
			best = det
			found = true
		}
	}
	return best, found
}

// toBox converts pigo's centre/size detection to a source-space box clipped to bounds.
func toBox(det pigo.Detection, ratio float64, bounds image.Rectangle) types.Box {
	size := float64(det.Scale) * ratio
	x := float64(det.Col)*ratio - size/2
	y := float64(det.Row)*ratio - size/2

	r := image.Rect(int(x), int(y), int(x+size), int(y+size)).Add(bounds.Min).Intersect(bounds)
	return types.Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}
