// Package publish turns processor output into the downloadable PNG artifact.
package publish

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/imagedrop/internal/types"
)

// DefaultBaseName stands in for uploads that arrive without a filename.
const DefaultBaseName = "image"

var ErrNoOutput = errors.New("processing result carries no image")

// EncodeDataURL builds a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL splits a base64 data URL into its MIME type and payload.
func ParseDataURL(u string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URL has no payload")
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("only base64 data URLs are supported")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("bad data URL payload: %w", err)
	}
	return mime, data, nil
}

// Filename derives the download name: the last extension of the original is
// replaced with .png (or .png appended when there is none) and prefix is
// prepended. Directory components are dropped, and a name that is nothing but
// an extension falls back to DefaultBaseName.
func Filename(prefix, original string) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	if original == "" || base == "." || base == "/" {
		base = DefaultBaseName
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" {
		base = DefaultBaseName
	}
	return prefix + base + ".png"
}

// Artifact flattens a processing result into a PNG. Data URLs that are
// already PNG are passed through; anything else is decoded and re-encoded.
func Artifact(res *types.ProcessingResult, filename string) (*types.Artifact, error) {
	var img image.Image
	var pngBytes []byte

	switch {
	case res == nil:
		return nil, ErrNoOutput
	case res.DataURL != "":
		mime, data, err := ParseDataURL(res.DataURL)
		if err != nil {
			return nil, err
		}
		decoded, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("processed image is not decodable: %w", err)
		}
		img = decoded
		if mime == "image/png" {
			pngBytes = data
		}
	case res.Canvas != nil:
		img = res.Canvas
	default:
		return nil, ErrNoOutput
	}

	if pngBytes == nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode artifact: %w", err)
		}
		pngBytes = buf.Bytes()
	}

	b := img.Bounds()
	return &types.Artifact{
		Filename: filename,
		DataURL:  EncodeDataURL("image/png", pngBytes),
		PNG:      pngBytes,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}
