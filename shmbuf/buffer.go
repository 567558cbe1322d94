package shmbuf

import (
	"image"
	"math"

	"github.com/BurntSushi/wlgb"
	"github.com/BurntSushi/wlgb/wl"
	"github.com/pkg/errors"
)

// BytesPerPixel is the size of one ARGB8888 pixel.
const BytesPerPixel = 4

// Buffer is a wl_buffer together with the mapped memory behind it. Pixels
// are 32-bit ARGB8888 words in host byte order, rows packed with no padding.
type Buffer struct {
	Width  int
	Height int
	Stride int

	Handle wl.Buffer

	region    *Region
	conn      *wlgb.Conn
	destroyed bool
}

// Create allocates a width x height buffer. The pool it is carved from is
// destroyed and the descriptor closed before Create returns: the buffer and
// the mapping are all that remain. On failure nothing is left behind and
// the error is an *AllocationError.
func Create(c *wlgb.Conn, shm wl.Shm, width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, &AllocationError{"buffer",
			errors.Errorf("invalid dimensions %dx%d", width, height)}
	}
	stride := width * BytesPerPixel
	if stride > math.MaxInt32 || height > math.MaxInt32/stride {
		return nil, &AllocationError{"buffer",
			errors.Errorf("%dx%d does not fit in a pool", width, height)}
	}
	size := stride * height

	region, err := NewRegion(size)
	if err != nil {
		return nil, err
	}

	pool, err := wl.CreatePool(c, shm, region.Fd(), int32(size))
	if err != nil {
		region.Close()
		return nil, &AllocationError{"create_pool", err}
	}
	handle, err := wl.CreateBuffer(c, pool, 0, int32(width), int32(height),
		int32(stride), wl.ShmFormatArgb8888)
	if err != nil {
		wl.DestroyPool(c, pool)
		region.Close()
		return nil, &AllocationError{"create_buffer", err}
	}
	if err := wl.DestroyPool(c, pool); err != nil {
		wl.DestroyBuffer(c, handle)
		region.Close()
		return nil, &AllocationError{"destroy_pool", err}
	}
	if err := region.ReleaseFile(); err != nil {
		wlgb.Logger.Debug("closing shm descriptor", "err", err)
	}

	wlgb.Logger.Debug("buffer created", "buffer", handle,
		"width", width, "height", height, "probe", region.Probe())
	return &Buffer{
		Width:  width,
		Height: height,
		Stride: stride,
		Handle: handle,
		region: region,
		conn:   c,
	}, nil
}

// Data returns the pixel memory. It is only valid until Destroy.
func (b *Buffer) Data() []byte { return b.region.Bytes() }

// Size returns the size of the pixel memory in bytes.
func (b *Buffer) Size() int { return b.Stride * b.Height }

// Matches reports whether b has exactly the given dimensions.
func (b *Buffer) Matches(width, height int) bool {
	return b != nil && !b.destroyed && b.Width == width && b.Height == height
}

// Image returns an image sharing b's memory. Drawing into it draws into the
// buffer; see the render package for the channel order.
func (b *Buffer) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Data(),
		Stride: b.Stride,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Destroy destroys the wl_buffer and unmaps the memory. Later calls do
// nothing.
func (b *Buffer) Destroy() error {
	if b.destroyed {
		return nil
	}
	b.destroyed = true

	err := wl.DestroyBuffer(b.conn, b.Handle)
	if uerr := b.region.Close(); err == nil && uerr != nil {
		err = &AllocationError{"unmap", uerr}
	}
	return err
}
