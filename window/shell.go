package window

import (
	"github.com/BurntSushi/wlgb"
	"github.com/BurntSushi/wlgb/wl"
	"github.com/BurntSushi/wlgb/xdg"
)

// State is where the window is in the xdg-shell handshake.
type State int

const (
	// Uninitialized: no surface exists yet.
	Uninitialized State = iota
	// AwaitingFirstConfigure: the surface has been committed without a
	// buffer and the compositor has not configured it yet.
	AwaitingFirstConfigure
	// Configured: at least one configure has been acknowledged; frames may
	// be presented.
	Configured
	// Closed: the compositor asked the window to close. Nothing is sent
	// for the surface anymore.
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case AwaitingFirstConfigure:
		return "awaiting-first-configure"
	case Configured:
		return "configured"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// SurfaceState is the surface and its roles along with the size agreed
// with the compositor.
type SurfaceState struct {
	Surface    wl.Surface
	XdgSurface xdg.Surface
	Toplevel   xdg.Toplevel

	// Width and Height are the committed dimensions. They are zero until
	// the first toplevel configure.
	Width  int
	Height int

	// LastAckedSerial never decreases.
	LastAckedSerial uint32

	// States are the toplevel states of the last configure.
	States []xdg.ToplevelState
}

func (w *Window) handlePing(ev xdg.PingEvent) {
	if ev.WmBase != w.caps.WmBase {
		return
	}
	if err := xdg.Pong(w.conn, ev.WmBase, ev.Serial); err != nil {
		w.fail(err)
	}
}

// handleSurfaceConfigure acknowledges the configure sequence and shows a
// frame for the state it established.
func (w *Window) handleSurfaceConfigure(ev xdg.SurfaceConfigureEvent) {
	if ev.Surface != w.surface.XdgSurface {
		return
	}
	if err := xdg.AckConfigure(w.conn, ev.Surface, ev.Serial); err != nil {
		w.fail(err)
		return
	}
	w.surface.LastAckedSerial = max(w.surface.LastAckedSerial, ev.Serial)
	if w.state == AwaitingFirstConfigure {
		wlgb.Logger.Debug("surface configured", "serial", ev.Serial)
	}
	w.state = Configured
	w.present()
}

// proposedSize applies the sizing policy to a toplevel configure. A zero
// dimension is the compositor leaving it to the client: the committed
// value is kept, or the default used when there is none yet.
func (w *Window) proposedSize(ev xdg.ToplevelConfigureEvent) (int, int) {
	pick := func(proposed int32, committed, def int) int {
		if proposed > 0 {
			return int(proposed)
		}
		if committed > 0 {
			return committed
		}
		return def
	}
	return pick(ev.Width, w.surface.Width, w.opts.Width),
		pick(ev.Height, w.surface.Height, w.opts.Height)
}

// handleToplevelConfigure records the new size and gets a buffer of that
// size ready. Nothing is drawn: the frame follows the surface configure
// that ends the sequence.
func (w *Window) handleToplevelConfigure(ev xdg.ToplevelConfigureEvent) {
	if ev.Toplevel != w.surface.Toplevel {
		return
	}
	w.surface.States = ev.States
	width, height := w.proposedSize(ev)
	wlgb.Logger.Debug("toplevel configure", "width", ev.Width, "height", ev.Height,
		"states", ev.States)

	if width == w.surface.Width && height == w.surface.Height &&
		w.buffers.Current().Matches(width, height) {
		return
	}
	w.surface.Width, w.surface.Height = width, height
	if _, err := w.buffers.Resize(width, height); err != nil {
		// The old buffer stays. No frame is presented until a later
		// configure brings a size that can be allocated.
		wlgb.Logger.Error("cannot resize buffer", "width", width,
			"height", height, "err", err)
	}
}

func (w *Window) handleClose(ev xdg.ToplevelCloseEvent) {
	if ev.Toplevel != w.surface.Toplevel {
		return
	}
	wlgb.Logger.Info("window closed by compositor")
	w.state = Closed
	w.running.Store(false)
}
