package normalize

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresmejia3/imagedrop/internal/types"
)

// TargetType is the MIME type every transcoded blob is declared as.
const TargetType = "image/jpeg"

// ErrEmptyTranscode is returned when the transcoder produced no images at all.
var ErrEmptyTranscode = errors.New("transcoder returned no images")

// Transcoder converts a container the decoder cannot read into one or more
// directly decodable images, in container order.
type Transcoder interface {
	Transcode(ctx context.Context, blob []byte) ([][]byte, error)
}

// NeedsTranscode reports whether a declared type is a HEIC/HEIF container.
// Only the exact declared types count; content is never sniffed here.
func NeedsTranscode(declared string) bool {
	return declared == "image/heic" || declared == "image/heif"
}

// Normalize turns a source file into a decodable blob. Files that don't need
// transcoding share their bytes with the source untouched.
func Normalize(ctx context.Context, t Transcoder, src *types.SourceFile) (*types.NormalizedBlob, error) {
	if !NeedsTranscode(src.Type) {
		return &types.NormalizedBlob{Type: src.Type, Data: src.Data}, nil
	}

	blobs, err := t.Transcode(ctx, src.Data)
	if err != nil {
		return nil, fmt.Errorf("transcode %s: %w", src.Type, err)
	}
	if len(blobs) == 0 {
		return nil, ErrEmptyTranscode
	}

	// Multi-image containers: only the primary image is kept.
	return &types.NormalizedBlob{Type: TargetType, Data: blobs[0]}, nil
}
