// Package window opens a single xdg-shell toplevel backed by shared memory
// and keeps it presented as the compositor resizes it.
//
// A Window is driven from one goroutine: Open, Dispatch, Run and Close,
// and every event handler they run, touch its state without locking. Only
// Stop and Interrupt may be called from elsewhere.
//
// Example:
//
//	conn, err := wlgb.NewConn()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	w, err := window.Open(conn, window.DefaultOptions())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer w.Close()
//
//	if err := w.Run(); err != nil {
//		log.Fatal(err)
//	}
package window

import (
	"fmt"
	"sync/atomic"

	"github.com/BurntSushi/wlgb"
	"github.com/BurntSushi/wlgb/render"
	"github.com/BurntSushi/wlgb/shmbuf"
	"github.com/BurntSushi/wlgb/wl"
	"github.com/BurntSushi/wlgb/xdg"
)

// DefaultWidth and DefaultHeight are used until the compositor proposes a
// size of its own.
const (
	DefaultWidth  = 400
	DefaultHeight = 400
)

// Options configures a window.
type Options struct {
	Title string
	AppId string

	// Width and Height are the size used when the compositor leaves the
	// choice to the client. They are also sent as the minimum size.
	Width  int
	Height int

	// Render draws each frame. A nil Render leaves the buffer as it is.
	Render render.Func
}

// DefaultOptions returns a 400x400 window showing a red circle.
func DefaultOptions() Options {
	return Options{
		Title:  "Wayland Low-Level Circle Rendering",
		AppId:  "wlgb.circle",
		Width:  DefaultWidth,
		Height: DefaultHeight,
		Render: render.Circle,
	}
}

// Window is an xdg_toplevel with one shm buffer.
type Window struct {
	conn    *wlgb.Conn
	opts    Options
	caps    Capabilities
	surface SurfaceState
	state   State
	buffers *shmbuf.Manager

	running atomic.Bool
	err     error
	frames  int
	closed  bool
}

// Open binds the globals the window needs, creates the toplevel and waits
// for the compositor to configure it. The first frame is presented before
// Open returns when the compositor has configured the surface by then.
//
// Errors are *wlgb.TransportError or *wlgb.ProtocolError when the
// connection breaks, *CapabilityMissingError when a required global is not
// advertised and *shmbuf.AllocationError when the first buffer cannot be
// created. On error everything created so far is destroyed again.
func Open(conn *wlgb.Conn, opts Options) (*Window, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	w := &Window{
		conn: conn,
		opts: opts,
		caps: newCapabilities(),
	}
	if err := w.open(); err != nil {
		w.Close()
		return nil, err
	}

	w.running.Store(w.state != Closed)
	wlgb.Logger.Info("window open", "width", w.surface.Width,
		"height", w.surface.Height, "state", w.state)
	return w, nil
}

func (w *Window) open() error {
	if err := w.bindGlobals(); err != nil {
		return err
	}
	w.buffers = shmbuf.NewManager(w.conn, w.caps.Shm)
	if err := w.createSurface(); err != nil {
		return err
	}
	return w.handshake()
}

// roundtrip runs a round trip with w handling the events, and reports
// errors from the handlers too.
func (w *Window) roundtrip() error {
	if err := w.conn.Roundtrip(w); err != nil {
		return err
	}
	return w.err
}

// bindGlobals fetches the registry and binds from it. Two round trips:
// the first delivers the globals, the second whatever binding them caused.
func (w *Window) bindGlobals() error {
	reg, err := wl.GetRegistry(w.conn)
	if err != nil {
		return err
	}
	w.caps.Registry = reg
	for i := 0; i < 2; i++ {
		if err := w.roundtrip(); err != nil {
			return err
		}
	}
	if err := w.caps.check(); err != nil {
		return err
	}
	if !w.caps.HasFormat(wl.ShmFormatArgb8888) {
		wlgb.Logger.Warn("wl_shm did not announce argb8888")
	}
	return nil
}

func (w *Window) createSurface() error {
	var err error
	s := &w.surface
	if s.Surface, err = wl.CreateSurface(w.conn, w.caps.Compositor); err != nil {
		return err
	}
	if s.XdgSurface, err = xdg.GetXdgSurface(w.conn, w.caps.WmBase, s.Surface); err != nil {
		return err
	}
	if s.Toplevel, err = xdg.GetToplevel(w.conn, s.XdgSurface); err != nil {
		return err
	}
	if len(w.opts.Title) > 0 {
		if err := xdg.SetTitle(w.conn, s.Toplevel, w.opts.Title); err != nil {
			return err
		}
	}
	if len(w.opts.AppId) > 0 {
		if err := xdg.SetAppId(w.conn, s.Toplevel, w.opts.AppId); err != nil {
			return err
		}
	}
	return xdg.SetMinSize(w.conn, s.Toplevel,
		int32(w.opts.Width), int32(w.opts.Height))
}

// handshake commits the bare surface, which makes the compositor send the
// first configure, and makes sure a buffer of the agreed size exists.
func (w *Window) handshake() error {
	if err := wl.Commit(w.conn, w.surface.Surface); err != nil {
		return err
	}
	w.state = AwaitingFirstConfigure
	for i := 0; i < 2; i++ {
		if err := w.roundtrip(); err != nil {
			return err
		}
		if w.state == Closed {
			return nil
		}
	}

	if w.surface.Width <= 0 || w.surface.Height <= 0 {
		w.surface.Width, w.surface.Height = w.opts.Width, w.opts.Height
	}
	if _, err := w.buffers.Resize(w.surface.Width, w.surface.Height); err != nil {
		return err
	}
	if w.frames == 0 {
		w.present()
	}
	return w.err
}

// fail remembers the first error raised inside an event handler.
func (w *Window) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// HandleEvent handles one event. Window implements wlgb.Handler, so a
// caller running its own loop can pass it to Conn.Dispatch.
func (w *Window) HandleEvent(ev wlgb.Event) {
	if w.state == Closed {
		wlgb.Logger.Debug("ignoring event after close", "event", fmt.Sprintf("%T", ev))
		return
	}
	switch ev := ev.(type) {
	case wl.RegistryGlobalEvent:
		w.handleGlobal(ev)
	case wl.RegistryGlobalRemoveEvent:
		w.handleGlobalRemove(ev)
	case wl.ShmFormatEvent:
		w.caps.Formats = append(w.caps.Formats, ev.Format)
	case wl.SeatCapabilitiesEvent:
		w.caps.SeatCapabilities = ev.Capabilities
	case xdg.PingEvent:
		w.handlePing(ev)
	case xdg.SurfaceConfigureEvent:
		w.handleSurfaceConfigure(ev)
	case xdg.ToplevelConfigureEvent:
		w.handleToplevelConfigure(ev)
	case xdg.ToplevelCloseEvent:
		w.handleClose(ev)
	case xdg.ToplevelConfigureBoundsEvent:
		wlgb.Logger.Debug("configure bounds", "width", ev.Width, "height", ev.Height)
	case xdg.WmCapabilitiesEvent:
		wlgb.Logger.Debug("wm capabilities", "capabilities", ev.Capabilities)
	case wlgb.DoneEvent, wl.BufferReleaseEvent, wl.SeatNameEvent,
		wl.SurfaceEnterEvent, wl.SurfaceLeaveEvent:
	default:
		wlgb.Logger.Debug("unhandled event", "event", fmt.Sprintf("%T", ev))
	}
}

// Dispatch waits for events and handles them. See wlgb.Conn.Dispatch.
func (w *Window) Dispatch() (int, error) {
	n, err := w.conn.Dispatch(w)
	if err != nil {
		return n, err
	}
	return n, w.err
}

// Run dispatches events until the window is closed or stopped, or the
// connection fails.
func (w *Window) Run() error {
	for w.running.Load() {
		if _, err := w.Dispatch(); err != nil {
			return err
		}
	}
	return nil
}

// Running reports whether Run keeps going.
func (w *Window) Running() bool { return w.running.Load() }

// Stop makes Run return before its next dispatch. It is safe to call from
// any goroutine, but a dispatch already waiting keeps waiting until an
// event arrives; use Interrupt to wake it.
func (w *Window) Stop() {
	w.running.Store(false)
}

// Interrupt stops Run and wakes a dispatch in progress by making the
// compositor answer a sync request. It is safe to call from any goroutine,
// for example a signal handler.
func (w *Window) Interrupt() error {
	w.Stop()
	_, err := w.conn.Sync()
	return err
}

// State returns the handshake state.
func (w *Window) State() State { return w.state }

// Size returns the committed dimensions.
func (w *Window) Size() (int, int) { return w.surface.Width, w.surface.Height }

// Surface returns the surface state.
func (w *Window) Surface() SurfaceState { return w.surface }

// LastAckedSerial returns the serial of the newest acknowledged configure.
func (w *Window) LastAckedSerial() uint32 { return w.surface.LastAckedSerial }

// Capabilities returns the bound globals.
func (w *Window) Capabilities() Capabilities { return w.caps }

// Buffer returns the current buffer, or nil.
func (w *Window) Buffer() *shmbuf.Buffer {
	if w.buffers == nil {
		return nil
	}
	return w.buffers.Current()
}

// Frames returns how many frames have been presented.
func (w *Window) Frames() int { return w.frames }

// Close destroys the buffer, the surface and its roles and releases the
// globals that have a destructor. Later calls do nothing. The connection
// stays open; it belongs to the caller.
func (w *Window) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.running.Store(false)

	var first error
	keep := func(err error) {
		if first == nil && err != nil {
			first = err
		}
	}

	if w.buffers != nil {
		keep(w.buffers.Close())
	}
	s := &w.surface
	if s.Toplevel != 0 {
		keep(xdg.DestroyToplevel(w.conn, s.Toplevel))
		s.Toplevel = 0
	}
	if s.XdgSurface != 0 {
		keep(xdg.DestroySurface(w.conn, s.XdgSurface))
		s.XdgSurface = 0
	}
	if s.Surface != 0 {
		keep(wl.DestroySurface(w.conn, s.Surface))
		s.Surface = 0
	}
	if w.caps.WmBase != 0 {
		keep(xdg.DestroyWmBase(w.conn, w.caps.WmBase))
		w.caps.WmBase = 0
	}
	keep(w.releaseSeat())
	if w.caps.Shm != 0 {
		if w.caps.Versions[wl.ShmInterface] >= 2 {
			keep(wl.ReleaseShm(w.conn, w.caps.Shm))
		}
		w.caps.Shm = 0
	}

	if w.state != Uninitialized {
		w.state = Closed
	}
	wlgb.Logger.Debug("window released")
	return first
}
