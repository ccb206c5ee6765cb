package upscale

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/andresmejia3/imagedrop/internal/publish"
	"github.com/andresmejia3/imagedrop/internal/types"
)

func TestTilesCoverExactly(t *testing.T) {
	tests := []struct {
		name      string
		bounds    image.Rectangle
		size, pad int
		wantTiles int
	}{
		{"Exact multiple", image.Rect(0, 0, 256, 128), 128, 2, 2},
		{"Ragged edges", image.Rect(0, 0, 300, 130), 128, 4, 6},
		{"Smaller than tile", image.Rect(0, 0, 50, 40), 128, 2, 1},
		{"Offset origin", image.Rect(10, 20, 110, 70), 32, 3, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tiles := Tiles(tt.bounds, tt.size, tt.pad)
			if len(tiles) != tt.wantTiles {
				t.Fatalf("Expected %d tiles, got %d", tt.wantTiles, len(tiles))
			}

			covered := make(map[image.Point]int)
			for _, tile := range tiles {
				if !tile.Core.In(tt.bounds) || !tile.Padded.In(tt.bounds) {
					t.Errorf("Tile %+v escapes bounds %v", tile, tt.bounds)
				}
				if !tile.Core.In(tile.Padded) {
					t.Errorf("Core %v not inside padded %v", tile.Core, tile.Padded)
				}
				if tile.Core.Dx() > tt.size || tile.Core.Dy() > tt.size {
					t.Errorf("Core %v larger than tile size %d", tile.Core, tt.size)
				}
				for y := tile.Core.Min.Y; y < tile.Core.Max.Y; y++ {
					for x := tile.Core.Min.X; x < tile.Core.Max.X; x++ {
						covered[image.Pt(x, y)]++
					}
				}
			}

			if len(covered) != tt.bounds.Dx()*tt.bounds.Dy() {
				t.Errorf("Expected %d covered pixels, got %d", tt.bounds.Dx()*tt.bounds.Dy(), len(covered))
			}
			for p, n := range covered {
				if n != 1 {
					t.Fatalf("Pixel %v covered %d times", p, n)
				}
			}
		})
	}
}

func TestTilesPadding(t *testing.T) {
	tiles := Tiles(image.Rect(0, 0, 256, 256), 128, 2)
	// Second tile of the first row: padded on the left, top edge clipped
	want := image.Rect(126, 0, 256, 130)
	if tiles[1].Padded != want {
		t.Errorf("Expected padded %v, got %v", want, tiles[1].Padded)
	}
}

func TestTilesDegenerate(t *testing.T) {
	if Tiles(image.Rect(0, 0, 10, 10), 0, 2) != nil {
		t.Error("Expected no tiles for size 0")
	}
	if Tiles(image.Rectangle{}, 128, 2) != nil {
		t.Error("Expected no tiles for empty bounds")
	}
}

// nearestEngine replicates pixels so the stitched output can be checked exactly.
type nearestEngine struct {
	calls int
	fail  error
}

func (e *nearestEngine) UpscaleTile(ctx context.Context, tile image.Image, scale int) (image.Image, error) {
	e.calls++
	if e.fail != nil {
		return nil, e.fail
	}
	b := tile.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	for y := 0; y < b.Dy()*scale; y++ {
		for x := 0; x < b.Dx()*scale; x++ {
			out.Set(x, y, tile.At(b.Min.X+x/scale, b.Min.Y+y/scale))
		}
	}
	return out, nil
}

func (e *nearestEngine) Close() error { return nil }

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 3), uint8(y * 5), uint8(x ^ y), 255})
		}
	}
	return img
}

func TestUpscaleStitchesTiles(t *testing.T) {
	src := gradient(45, 30)
	engine := &nearestEngine{}
	u := New(engine, Options{Scale: 2, TileSize: 16, Padding: 3})

	out, err := u.Upscale(context.Background(), src)
	if err != nil {
		t.Fatalf("Upscale failed: %v", err)
	}
	if out.Bounds().Dx() != 90 || out.Bounds().Dy() != 60 {
		t.Fatalf("Expected 90x60, got %v", out.Bounds())
	}
	if engine.calls != 6 {
		t.Errorf("Expected 6 tile calls, got %d", engine.calls)
	}

	for y := 0; y < 60; y++ {
		for x := 0; x < 90; x++ {
			want := color.NRGBAModel.Convert(src.At(x/2, y/2))
			if got := out.At(x, y); got != want {
				t.Fatalf("Pixel (%d,%d): expected %v, got %v", x, y, want, got)
			}
		}
	}
}

func TestUpscaleEngineFailure(t *testing.T) {
	boom := errors.New("model crashed")
	u := New(&nearestEngine{fail: boom}, Options{Scale: 2, TileSize: 16, Padding: 2})

	_, err := u.Process(context.Background(), &types.DecodedImage{Image: gradient(20, 20), Width: 20, Height: 20})
	if !errors.Is(err, boom) {
		t.Errorf("Expected engine error to surface, got %v", err)
	}
}

func TestUpscaleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &nearestEngine{}
	_, err := New(engine, Options{Scale: 2, TileSize: 16}).Upscale(ctx, gradient(20, 20))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if engine.calls != 0 {
		t.Errorf("Expected no tile calls after cancellation, got %d", engine.calls)
	}
}

func TestProcessReturnsPNGDataURL(t *testing.T) {
	u := New(ResampleEngine{}, Options{Scale: 3, TileSize: 32, Padding: 2})

	res, err := u.Process(context.Background(), &types.DecodedImage{Image: gradient(40, 25), Width: 40, Height: 25})
	if err != nil {
		t.Fatal(err)
	}

	mime, data, err := publish.ParseDataURL(res.DataURL)
	if err != nil {
		t.Fatal(err)
	}
	if mime != "image/png" {
		t.Errorf("Expected image/png, got %s", mime)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 75 {
		t.Errorf("Expected 120x75, got %v", img.Bounds())
	}
}

// fakeTileWorker echoes a pre-rendered tile of the requested size.
type fakeTileWorker struct {
	scale  int
	fail   error
	closed int
}

func (f *fakeTileWorker) UpscaleTile(tile []byte) ([]byte, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	in, err := png.Decode(bytes.NewReader(tile))
	if err != nil {
		return nil, err
	}
	b := in.Bounds()
	var buf bytes.Buffer
	png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, b.Dx()*f.scale, b.Dy()*f.scale)))
	return buf.Bytes(), nil
}

func (f *fakeTileWorker) Close() error {
	f.closed++
	return nil
}

func TestWorkerEngineStartsOnce(t *testing.T) {
	starts := 0
	fw := &fakeTileWorker{scale: 2}
	e := &WorkerEngine{start: func(ctx context.Context) (tileWorker, error) {
		starts++
		return fw, nil
	}}

	for i := 0; i < 3; i++ {
		if _, err := e.UpscaleTile(context.Background(), gradient(8, 8), 2); err != nil {
			t.Fatal(err)
		}
	}
	if starts != 1 {
		t.Errorf("Expected the worker to start once, started %d times", starts)
	}

	e.Close()
	if fw.closed != 1 {
		t.Errorf("Expected worker to be closed once, got %d", fw.closed)
	}
}

func TestWorkerEngineRetriesFailedStart(t *testing.T) {
	starts := 0
	e := &WorkerEngine{start: func(ctx context.Context) (tileWorker, error) {
		starts++
		if starts == 1 {
			return nil, errors.New("python3: not found")
		}
		return &fakeTileWorker{scale: 2}, nil
	}}

	if _, err := e.UpscaleTile(context.Background(), gradient(8, 8), 2); err == nil {
		t.Fatal("Expected first call to fail")
	}
	if _, err := e.UpscaleTile(context.Background(), gradient(8, 8), 2); err != nil {
		t.Fatalf("Expected second call to succeed, got %v", err)
	}
	if starts != 2 {
		t.Errorf("Expected 2 start attempts, got %d", starts)
	}
}

func TestWorkerEngineDropsBrokenWorker(t *testing.T) {
	broken := &fakeTileWorker{fail: errors.New("broken pipe")}
	healthy := &fakeTileWorker{scale: 2}
	workers := []tileWorker{broken, healthy}
	e := &WorkerEngine{start: func(ctx context.Context) (tileWorker, error) {
		w := workers[0]
		workers = workers[1:]
		return w, nil
	}}

	if _, err := e.UpscaleTile(context.Background(), gradient(8, 8), 2); err == nil {
		t.Fatal("Expected broken worker to fail")
	}
	if broken.closed != 1 {
		t.Errorf("Expected broken worker to be closed")
	}
	if _, err := e.UpscaleTile(context.Background(), gradient(8, 8), 2); err != nil {
		t.Fatalf("Expected restarted worker to succeed, got %v", err)
	}
}

func TestWorkerEngineRejectsWrongSize(t *testing.T) {
	e := &WorkerEngine{start: func(ctx context.Context) (tileWorker, error) {
		return &fakeTileWorker{scale: 3}, nil
	}}
	if _, err := e.UpscaleTile(context.Background(), gradient(8, 8), 2); err == nil {
		t.Error("Expected size mismatch error")
	}
}
