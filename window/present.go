package window

import (
	"github.com/BurntSushi/wlgb"
	"github.com/BurntSushi/wlgb/render"
	"github.com/BurntSushi/wlgb/wl"
)

// present renders into the current buffer and shows it. It does nothing
// unless a configure has been acknowledged and the buffer has exactly the
// committed size; the next surface configure tries again.
func (w *Window) present() bool {
	if w.state != Configured {
		return false
	}
	width, height := w.surface.Width, w.surface.Height
	buf := w.buffers.Current()
	if !buf.Matches(width, height) {
		wlgb.Logger.Debug("deferring frame", "width", width, "height", height)
		return false
	}

	render.Into(buf.Image(), w.opts.Render)

	s := w.surface.Surface
	err := wl.Attach(w.conn, s, buf.Handle, 0, 0)
	if err == nil {
		err = wl.Damage(w.conn, s, 0, 0, int32(width), int32(height))
	}
	if err == nil {
		err = wl.Commit(w.conn, s)
	}
	if err != nil {
		w.fail(err)
		return false
	}
	w.frames++
	return true
}
