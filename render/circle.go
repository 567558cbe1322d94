package render

import (
	"image"
	"image/color"

	"golang.org/x/image/colornames"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// kappa places the control points of a cubic Bézier quarter circle.
const kappa = 0.5522847498

// Circle clears dst to black and draws a filled red circle in its center.
// The radius is a third of the smaller dimension.
func Circle(dst *image.RGBA) {
	CircleColor(dst, colornames.Black, colornames.Red)
}

// CircleColor is Circle with chosen colors.
func CircleColor(dst *image.RGBA, bg, fg color.Color) {
	b := dst.Bounds()
	draw.Draw(dst, b, image.NewUniform(bg), image.Point{}, draw.Src)

	w, h := b.Dx(), b.Dy()
	r := float32(min(w, h) / 3)
	if r <= 0 {
		return
	}
	cx, cy := float32(w/2), float32(h/2)
	k := r * kappa

	vr := vector.NewRasterizer(w, h)
	vr.DrawOp = draw.Over
	vr.MoveTo(cx+r, cy)
	vr.CubeTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
	vr.CubeTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
	vr.CubeTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
	vr.CubeTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	vr.ClosePath()
	vr.Draw(dst, b, image.NewUniform(fg), image.Point{})
}
