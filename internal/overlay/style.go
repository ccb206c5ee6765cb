package overlay

import (
	"fmt"
	"image"

	"github.com/andresmejia3/imagedrop/internal/types"
)

// Style decorates the face region of a canvas in place. The canvas is
// non-premultiplied so untouched translucent pixels keep their colour.
type Style func(canvas *image.NRGBA, face types.Box)

// StyleByName resolves a configured style. strength is the pixel block size
// for the "pixel" style and is ignored otherwise.
func StyleByName(name string, strength int) (Style, error) {
	switch name {
	case "dog", "":
		return func(canvas *image.NRGBA, face types.Box) { DrawDog(canvas, face) }, nil
	case "pixel":
		return func(canvas *image.NRGBA, face types.Box) { Pixelate(canvas, face.Rect(), strength) }, nil
	case "black":
		return func(canvas *image.NRGBA, face types.Box) { Blackout(canvas, face.Rect()) }, nil
	default:
		return nil, fmt.Errorf("unknown overlay style %q", name)
	}
}

// Blackout fills rect with opaque black.
func Blackout(img *image.NRGBA, rect image.Rectangle) {
	// Clip rect to image bounds to prevent panics
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return
	}

	stride := img.Stride
	pix := img.Pix
	imgMinX, imgMinY := img.Rect.Min.X, img.Rect.Min.Y
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		rowStart := (y-imgMinY)*stride + (rect.Min.X-imgMinX)*4
		for x := 0; x < rect.Dx(); x++ {
			off := rowStart + x*4
			pix[off] = 0
			pix[off+1] = 0
			pix[off+2] = 0
			pix[off+3] = 255
		}
	}
}

// Pixelate replaces rect with blockSize squares, each taking the colour of its top-left pixel.
func Pixelate(img *image.NRGBA, rect image.Rectangle, blockSize int) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	if blockSize < 1 {
		blockSize = 1
	}

	stride := img.Stride
	pix := img.Pix
	imgMinX, imgMinY := img.Rect.Min.X, img.Rect.Min.Y

	for y := rect.Min.Y; y < rect.Max.Y; y += blockSize {
		for x := rect.Min.X; x < rect.Max.X; x += blockSize {
			srcOff := (y-imgMinY)*stride + (x-imgMinX)*4
			r, g, b, a := pix[srcOff], pix[srcOff+1], pix[srcOff+2], pix[srcOff+3]

			x2 := min(x+blockSize, rect.Max.X)
			y2 := min(y+blockSize, rect.Max.Y)

			for by := y; by < y2; by++ {
				rowStart := (by - imgMinY) * stride
				for bx := x; bx < x2; bx++ {
					dstOff := rowStart + (bx-imgMinX)*4
					pix[dstOff] = r
					pix[dstOff+1] = g
					pix[dstOff+2] = b
					pix[dstOff+3] = a
				}
			}
		}
	}
}
