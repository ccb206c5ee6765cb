package upscale

import "image"

// Tile is one unit of work. Core is the region the tile contributes to the
// output; Padded adds overlap context on every side, clipped to the image.
type Tile struct {
	Core   image.Rectangle
	Padded image.Rectangle
}

// Tiles cuts bounds into size×size cores, row by row. Edge tiles are smaller
// when the image isn't a multiple of size. Cores never overlap and together
// cover bounds exactly.
func Tiles(bounds image.Rectangle, size, padding int) []Tile {
	if size <= 0 || bounds.Empty() {
		return nil
	}

	var tiles []Tile
	for y := bounds.Min.Y; y < bounds.Max.Y; y += size {
		for x := bounds.Min.X; x < bounds.Max.X; x += size {
			core := image.Rect(x, y, min(x+size, bounds.Max.X), min(y+size, bounds.Max.Y))
			tiles = append(tiles, Tile{
				Core:   core,
				Padded: core.Inset(-padding).Intersect(bounds),
			})
		}
	}
	return tiles
}
