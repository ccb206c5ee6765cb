// Package overlay draws decorations relative to a detected face box.
package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"

	"github.com/andresmejia3/imagedrop/internal/types"
)

// Point is a canvas coordinate.
type Point struct{ X, Y float64 }

// Ellipse is an axis-aligned ellipse.
type Ellipse struct {
	CX, CY float64
	RX, RY float64
}

// Polygon is a closed outline.
type Polygon []Point

// Dog is the cartoon dog layout for one face.
type Dog struct {
	LeftEar, RightEar     Polygon
	LeftInner, RightInner Polygon
	Nose                  Ellipse
	Highlight             Ellipse
}

var (
	earColor       = color.RGBA{120, 72, 40, 255}
	innerEarColor  = color.RGBA{232, 150, 160, 255}
	noseColor      = color.RGBA{36, 24, 20, 255}
	highlightColor = color.RGBA{255, 255, 255, 150}
)

// DogLayout places the nose and ears. The nose sits just below the box
// centre; the ears hang off the top corners and may extend past the canvas.
func DogLayout(b types.Box) Dog {
	x, y := float64(b.X), float64(b.Y)
	w, h := float64(b.W), float64(b.H)

	nose := Ellipse{
		CX: x + w/2,
		CY: y + h*0.55,
		RX: w * 0.35 / 2,
		RY: h * 0.25 / 2,
	}
	highlight := Ellipse{
		CX: nose.CX - nose.RX*0.35,
		CY: nose.CY - nose.RY*0.4,
		RX: nose.RX * 0.25,
		RY: nose.RY * 0.2,
	}

	left := Polygon{
		{x + w*0.10, y + h*0.08},
		{x - w*0.08, y - h*0.30},
		{x + w*0.18, y - h*0.22},
		{x + w*0.42, y - h*0.02},
	}
	right := mirror(left, x+w/2)

	return Dog{
		LeftEar:    left,
		RightEar:   right,
		LeftInner:  shrink(left, 0.55),
		RightInner: shrink(right, 0.55),
		Nose:       nose,
		Highlight:  highlight,
	}
}

// DrawDog paints the dog decoration onto dst.
func DrawDog(dst draw.Image, b types.Box) {
	d := DogLayout(b)
	fillPolygon(dst, d.LeftEar, earColor)
	fillPolygon(dst, d.RightEar, earColor)
	fillPolygon(dst, d.LeftInner, innerEarColor)
	fillPolygon(dst, d.RightInner, innerEarColor)
	fillEllipse(dst, d.Nose, noseColor)
	fillEllipse(dst, d.Highlight, highlightColor)
}

func mirror(p Polygon, axis float64) Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[i] = Point{2*axis - pt.X, pt.Y}
	}
	return out
}

// shrink scales a polygon towards its vertex centroid.
func shrink(p Polygon, f float64) Polygon {
	var cx, cy float64
	for _, pt := range p {
		cx += pt.X
		cy += pt.Y
	}
	cx /= float64(len(p))
	cy /= float64(len(p))

	out := make(Polygon, len(p))
	for i, pt := range p {
		out[i] = Point{cx + (pt.X-cx)*f, cy + (pt.Y-cy)*f}
	}
	return out
}

// kappa places cubic control points so four segments approximate a quarter ellipse each.
const kappa = 0.5522847498

func rasterizer(dst draw.Image) (*vector.Rasterizer, image.Point) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	return z, b.Min
}

func fillPolygon(dst draw.Image, p Polygon, c color.Color) {
	if len(p) < 3 {
		return
	}
	z, o := rasterizer(dst)
	z.MoveTo(f32(p[0].X-float64(o.X)), f32(p[0].Y-float64(o.Y)))
	for _, pt := range p[1:] {
		z.LineTo(f32(pt.X-float64(o.X)), f32(pt.Y-float64(o.Y)))
	}
	z.ClosePath()
	z.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}

func fillEllipse(dst draw.Image, e Ellipse, c color.Color) {
	if e.RX <= 0 || e.RY <= 0 {
		return
	}
	z, o := rasterizer(dst)
	cx, cy := f32(e.CX-float64(o.X)), f32(e.CY-float64(o.Y))
	rx, ry := f32(e.RX), f32(e.RY)
	kx, ky := rx*kappa, ry*kappa

	z.MoveTo(cx+rx, cy)
	z.CubeTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	z.CubeTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	z.CubeTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	z.CubeTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	z.ClosePath()
	z.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}

func f32(v float64) float32 { return float32(v) }
