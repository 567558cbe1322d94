// Package render draws frames into shared memory buffers.
//
// Render functions draw into an ordinary *image.RGBA whose pixels are the
// buffer's memory. Wayland expects ARGB8888 words in host byte order
// instead, so Into rewrites the pixels in place once the function returns.
package render

import (
	"encoding/binary"
	"image"
)

// Func draws one frame into dst. dst covers the whole surface. Its
// previous content is the last frame already converted to ARGB8888, so a
// Func must redraw every pixel rather than build on what is there.
type Func func(dst *image.RGBA)

// Into runs fn against dst and converts the result to ARGB8888. A nil fn
// leaves dst untouched.
func Into(dst *image.RGBA, fn Func) {
	if fn == nil {
		return
	}
	fn(dst)
	ToARGB(dst)
}

// ToARGB rewrites the premultiplied RGBA pixels of img in place as
// premultiplied ARGB8888 words in host byte order.
func ToARGB(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+4 <= len(row); i += 4 {
			r, g, bl, a := row[i], row[i+1], row[i+2], row[i+3]
			word := uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(bl)
			binary.NativeEndian.PutUint32(row[i:], word)
		}
	}
}

// PixelAt returns the ARGB8888 word at (x, y) of a converted image.
func PixelAt(img *image.RGBA, x, y int) uint32 {
	return binary.NativeEndian.Uint32(img.Pix[img.PixOffset(x, y):])
}
