// Package xdg binds the xdg-shell protocol: xdg_wm_base, xdg_surface and
// xdg_toplevel.
package xdg

import (
	"github.com/BurntSushi/wlgb"
	"github.com/BurntSushi/wlgb/wl"
)

const (
	WmBaseInterface   = "xdg_wm_base"
	SurfaceInterface  = "xdg_surface"
	ToplevelInterface = "xdg_toplevel"
)

// WmBase is an xdg_wm_base object.
type WmBase wlgb.Id

// Surface is an xdg_surface object.
type Surface wlgb.Id

const (
	wmBaseDestroyRequest       = 0
	wmBaseGetXdgSurfaceRequest = 2
	wmBasePongRequest          = 3
)

const wmBasePingEvent = 0

const (
	surfaceDestroyRequest      = 0
	surfaceGetToplevelRequest  = 1
	surfaceAckConfigureRequest = 4
)

const surfaceConfigureEvent = 0

// DestroyWmBase destroys base. Every surface created from it must be
// destroyed first.
func DestroyWmBase(c *wlgb.Conn, base WmBase) error {
	err := c.SendRequest(wlgb.NewRequest(wlgb.Id(base), wmBaseDestroyRequest))
	c.Destroyed(wlgb.Id(base))
	return err
}

// GetXdgSurface gives surf the xdg_surface role.
func GetXdgSurface(c *wlgb.Conn, base WmBase, surf wl.Surface) (Surface, error) {
	id, err := c.NewId()
	if err != nil {
		return 0, err
	}
	c.Register(id, SurfaceInterface)

	req := wlgb.NewRequest(wlgb.Id(base), wmBaseGetXdgSurfaceRequest).
		PutId(id).
		PutId(wlgb.Id(surf))
	if err := c.SendRequest(req); err != nil {
		return 0, err
	}
	return Surface(id), nil
}

// Pong answers a ping with the same serial.
func Pong(c *wlgb.Conn, base WmBase, serial uint32) error {
	req := wlgb.NewRequest(wlgb.Id(base), wmBasePongRequest).PutUint32(serial)
	return c.SendRequest(req)
}

// DestroySurface destroys an xdg_surface. Its role object must be destroyed
// first.
func DestroySurface(c *wlgb.Conn, s Surface) error {
	err := c.SendRequest(wlgb.NewRequest(wlgb.Id(s), surfaceDestroyRequest))
	c.Destroyed(wlgb.Id(s))
	return err
}

// GetToplevel gives s the toplevel role.
func GetToplevel(c *wlgb.Conn, s Surface) (Toplevel, error) {
	id, err := c.NewId()
	if err != nil {
		return 0, err
	}
	c.Register(id, ToplevelInterface)

	req := wlgb.NewRequest(wlgb.Id(s), surfaceGetToplevelRequest).PutId(id)
	if err := c.SendRequest(req); err != nil {
		return 0, err
	}
	return Toplevel(id), nil
}

// AckConfigure acknowledges the configure event carrying serial.
func AckConfigure(c *wlgb.Conn, s Surface, serial uint32) error {
	req := wlgb.NewRequest(wlgb.Id(s), surfaceAckConfigureRequest).PutUint32(serial)
	return c.SendRequest(req)
}

// PingEvent asks the client to prove it is alive by answering with Pong.
type PingEvent struct {
	WmBase WmBase
	Serial uint32
}

func (PingEvent) ImplementsEvent() {}

// SurfaceConfigureEvent ends a configure sequence. It must be acknowledged
// with its serial before a buffer reflecting the new state is committed.
type SurfaceConfigureEvent struct {
	Surface Surface
	Serial  uint32
}

func (SurfaceConfigureEvent) ImplementsEvent() {}

func init() {
	wlgb.RegisterEvent(WmBaseInterface, wmBasePingEvent,
		func(sender wlgb.Id, body []byte) (wlgb.Event, error) {
			d := wlgb.NewDecoder(body)
			ev := PingEvent{WmBase: WmBase(sender), Serial: d.Uint32()}
			return ev, d.Err()
		})
	wlgb.RegisterEvent(SurfaceInterface, surfaceConfigureEvent,
		func(sender wlgb.Id, body []byte) (wlgb.Event, error) {
			d := wlgb.NewDecoder(body)
			ev := SurfaceConfigureEvent{Surface: Surface(sender), Serial: d.Uint32()}
			return ev, d.Err()
		})
}
