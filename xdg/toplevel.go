package xdg

import (
	"fmt"

	"github.com/BurntSushi/wlgb"
	"github.com/pkg/errors"
)

// Toplevel is an xdg_toplevel object.
type Toplevel wlgb.Id

const (
	toplevelDestroyRequest    = 0
	toplevelSetTitleRequest   = 2
	toplevelSetAppIdRequest   = 3
	toplevelSetMaxSizeRequest = 7
	toplevelSetMinSizeRequest = 8
)

const (
	toplevelConfigureEvent       = 0
	toplevelCloseEvent           = 1
	toplevelConfigureBoundsEvent = 2
	toplevelWmCapabilitiesEvent  = 3
)

// ToplevelState is one entry of the states array of a toplevel configure.
type ToplevelState uint32

const (
	StateMaximized ToplevelState = iota + 1
	StateFullscreen
	StateResizing
	StateActivated
	StateTiledLeft
	StateTiledRight
	StateTiledTop
	StateTiledBottom
	StateSuspended
)

var stateNames = map[ToplevelState]string{
	StateMaximized:   "maximized",
	StateFullscreen:  "fullscreen",
	StateResizing:    "resizing",
	StateActivated:   "activated",
	StateTiledLeft:   "tiled_left",
	StateTiledRight:  "tiled_right",
	StateTiledTop:    "tiled_top",
	StateTiledBottom: "tiled_bottom",
	StateSuspended:   "suspended",
}

func (s ToplevelState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint32(s))
}

// DestroyToplevel destroys t, unmapping the window.
func DestroyToplevel(c *wlgb.Conn, t Toplevel) error {
	err := c.SendRequest(wlgb.NewRequest(wlgb.Id(t), toplevelDestroyRequest))
	c.Destroyed(wlgb.Id(t))
	return err
}

// SetTitle sets the window title.
func SetTitle(c *wlgb.Conn, t Toplevel, title string) error {
	req := wlgb.NewRequest(wlgb.Id(t), toplevelSetTitleRequest).PutString(title)
	return c.SendRequest(req)
}

// SetAppId sets the application id, which compositors use to group windows
// and find desktop files.
func SetAppId(c *wlgb.Conn, t Toplevel, appId string) error {
	req := wlgb.NewRequest(wlgb.Id(t), toplevelSetAppIdRequest).PutString(appId)
	return c.SendRequest(req)
}

// SetMaxSize sets the largest size the window wants. Zero means unlimited.
func SetMaxSize(c *wlgb.Conn, t Toplevel, width, height int32) error {
	req := wlgb.NewRequest(wlgb.Id(t), toplevelSetMaxSizeRequest).
		PutInt32(width).
		PutInt32(height)
	return c.SendRequest(req)
}

// SetMinSize sets the smallest size the window accepts. Zero means no
// minimum.
func SetMinSize(c *wlgb.Conn, t Toplevel, width, height int32) error {
	req := wlgb.NewRequest(wlgb.Id(t), toplevelSetMinSizeRequest).
		PutInt32(width).
		PutInt32(height)
	return c.SendRequest(req)
}

// ToplevelConfigureEvent proposes a size and reports the window states. A
// zero width or height leaves that dimension to the client.
type ToplevelConfigureEvent struct {
	Toplevel Toplevel
	Width    int32
	Height   int32
	States   []ToplevelState
}

func (ToplevelConfigureEvent) ImplementsEvent() {}

// Has reports whether s is among the event's states.
func (ev ToplevelConfigureEvent) Has(s ToplevelState) bool {
	for _, st := range ev.States {
		if st == s {
			return true
		}
	}
	return false
}

// ToplevelCloseEvent asks the client to close the window.
type ToplevelCloseEvent struct {
	Toplevel Toplevel
}

func (ToplevelCloseEvent) ImplementsEvent() {}

// ToplevelConfigureBoundsEvent hints at the largest useful window size.
type ToplevelConfigureBoundsEvent struct {
	Toplevel Toplevel
	Width    int32
	Height   int32
}

func (ToplevelConfigureBoundsEvent) ImplementsEvent() {}

// WmCapabilitiesEvent lists the window management actions the compositor
// supports.
type WmCapabilitiesEvent struct {
	Toplevel     Toplevel
	Capabilities []uint32
}

func (WmCapabilitiesEvent) ImplementsEvent() {}

// words splits an array argument into 32-bit values.
func words(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, errors.Errorf("array of %d bytes is not a list of words", len(b))
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = wlgb.Get32(b[i*4:])
	}
	return out, nil
}

func newToplevelConfigureEvent(sender wlgb.Id, body []byte) (wlgb.Event, error) {
	d := wlgb.NewDecoder(body)
	ev := ToplevelConfigureEvent{Toplevel: Toplevel(sender)}
	ev.Width = d.Int32()
	ev.Height = d.Int32()
	states := d.Array()
	if err := d.Err(); err != nil {
		return nil, err
	}
	vals, err := words(states)
	if err != nil {
		return nil, err
	}
	ev.States = make([]ToplevelState, len(vals))
	for i, v := range vals {
		ev.States[i] = ToplevelState(v)
	}
	return ev, nil
}

func newWmCapabilitiesEvent(sender wlgb.Id, body []byte) (wlgb.Event, error) {
	d := wlgb.NewDecoder(body)
	caps := d.Array()
	if err := d.Err(); err != nil {
		return nil, err
	}
	vals, err := words(caps)
	if err != nil {
		return nil, err
	}
	return WmCapabilitiesEvent{Toplevel: Toplevel(sender), Capabilities: vals}, nil
}

func init() {
	wlgb.RegisterEvent(ToplevelInterface, toplevelConfigureEvent, newToplevelConfigureEvent)
	wlgb.RegisterEvent(ToplevelInterface, toplevelCloseEvent,
		func(sender wlgb.Id, body []byte) (wlgb.Event, error) {
			return ToplevelCloseEvent{Toplevel: Toplevel(sender)}, nil
		})
	wlgb.RegisterEvent(ToplevelInterface, toplevelConfigureBoundsEvent,
		func(sender wlgb.Id, body []byte) (wlgb.Event, error) {
			d := wlgb.NewDecoder(body)
			ev := ToplevelConfigureBoundsEvent{Toplevel: Toplevel(sender)}
			ev.Width = d.Int32()
			ev.Height = d.Int32()
			return ev, d.Err()
		})
	wlgb.RegisterEvent(ToplevelInterface, toplevelWmCapabilitiesEvent, newWmCapabilitiesEvent)
}
