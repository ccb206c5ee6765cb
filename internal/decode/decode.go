// Package decode turns normalized bytes into a bitmap.
package decode

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/andresmejia3/imagedrop/internal/types"
)

// Error describes a blob that is not a readable raster image. Sniffed is the
// content type detected from the bytes, kept for diagnostics only.
type Error struct {
	Declared string
	Sniffed  string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decode %q (content looks like %s): %v", e.Declared, e.Sniffed, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Decode reads the blob into a bitmap with known dimensions.
func Decode(blob *types.NormalizedBlob) (*types.DecodedImage, error) {
	img, format, err := image.Decode(bytes.NewReader(blob.Data))
	if err != nil {
		return nil, &Error{Declared: blob.Type, Sniffed: mimetype.Detect(blob.Data).String(), Err: err}
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, &Error{Declared: blob.Type, Sniffed: format, Err: fmt.Errorf("image has no pixels")}
	}
	return &types.DecodedImage{
		Image:  img,
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}
