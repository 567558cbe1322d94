package wl

import (
	"github.com/BurntSushi/wlgb"
)

// Compositor is a wl_compositor object.
type Compositor wlgb.Id

// Surface is a wl_surface object.
type Surface wlgb.Id

const compositorCreateSurfaceRequest = 0

const (
	surfaceDestroyRequest = 0
	surfaceAttachRequest  = 1
	surfaceDamageRequest  = 2
	surfaceCommitRequest  = 6
)

const (
	surfaceEnterEvent = 0
	surfaceLeaveEvent = 1
)

// CreateSurface creates a new surface.
func CreateSurface(c *wlgb.Conn, comp Compositor) (Surface, error) {
	id, err := c.NewId()
	if err != nil {
		return 0, err
	}
	c.Register(id, SurfaceInterface)

	req := wlgb.NewRequest(wlgb.Id(comp), compositorCreateSurfaceRequest).PutId(id)
	if err := c.SendRequest(req); err != nil {
		return 0, err
	}
	return Surface(id), nil
}

// Attach sets buf as the pending content of s. A zero buf detaches.
func Attach(c *wlgb.Conn, s Surface, buf Buffer, x, y int32) error {
	req := wlgb.NewRequest(wlgb.Id(s), surfaceAttachRequest).
		PutId(wlgb.Id(buf)).
		PutInt32(x).
		PutInt32(y)
	return c.SendRequest(req)
}

// Damage marks a rectangle, in surface coordinates, as changed.
func Damage(c *wlgb.Conn, s Surface, x, y, width, height int32) error {
	req := wlgb.NewRequest(wlgb.Id(s), surfaceDamageRequest).
		PutInt32(x).
		PutInt32(y).
		PutInt32(width).
		PutInt32(height)
	return c.SendRequest(req)
}

// Commit applies the pending state of s.
func Commit(c *wlgb.Conn, s Surface) error {
	return c.SendRequest(wlgb.NewRequest(wlgb.Id(s), surfaceCommitRequest))
}

// DestroySurface destroys s.
func DestroySurface(c *wlgb.Conn, s Surface) error {
	err := c.SendRequest(wlgb.NewRequest(wlgb.Id(s), surfaceDestroyRequest))
	c.Destroyed(wlgb.Id(s))
	return err
}

// SurfaceEnterEvent is sent when s becomes visible on an output.
type SurfaceEnterEvent struct {
	Surface Surface
	Output  wlgb.Id
}

func (SurfaceEnterEvent) ImplementsEvent() {}

// SurfaceLeaveEvent is sent when s stops being visible on an output.
type SurfaceLeaveEvent struct {
	Surface Surface
	Output  wlgb.Id
}

func (SurfaceLeaveEvent) ImplementsEvent() {}

func init() {
	wlgb.RegisterEvent(SurfaceInterface, surfaceEnterEvent,
		func(sender wlgb.Id, body []byte) (wlgb.Event, error) {
			d := wlgb.NewDecoder(body)
			ev := SurfaceEnterEvent{Surface: Surface(sender), Output: d.Id()}
			return ev, d.Err()
		})
	wlgb.RegisterEvent(SurfaceInterface, surfaceLeaveEvent,
		func(sender wlgb.Id, body []byte) (wlgb.Event, error) {
			d := wlgb.NewDecoder(body)
			ev := SurfaceLeaveEvent{Surface: Surface(sender), Output: d.Id()}
			return ev, d.Err()
		})
}
