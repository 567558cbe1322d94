package wlgb

const displaySyncRequest = 0

// Cookie pairs a wl_display.sync request with the done event the compositor
// sends back once it has processed every request sent before it.
type Cookie struct {
	Callback Id
	conn     *Conn
}

// Sync sends wl_display.sync. Wait on the returned cookie to know when the
// compositor has caught up.
func (c *Conn) Sync() (Cookie, error) {
	id, err := c.NewId()
	if err != nil {
		return Cookie{}, err
	}
	c.Register(id, "wl_callback")

	req := NewRequest(DisplayId, displaySyncRequest).PutId(id)
	if err := c.SendRequest(req); err != nil {
		return Cookie{}, err
	}
	return Cookie{Callback: id, conn: c}, nil
}

// Wait dispatches events to h until the cookie's done event arrives. The
// done event itself is consumed. h may be nil to discard events.
func (ck Cookie) Wait(h Handler) error {
	for {
		ev, err := ck.conn.WaitForEvent()
		if err != nil {
			return err
		}
		if done, ok := ev.(DoneEvent); ok && done.Callback == ck.Callback {
			return nil
		}
		if h != nil {
			h.HandleEvent(ev)
		}
	}
}

// Roundtrip sends a sync request and dispatches events to h until the
// compositor answers it: every event caused by earlier requests has then
// been handled.
func (c *Conn) Roundtrip(h Handler) error {
	ck, err := c.Sync()
	if err != nil {
		return err
	}
	return ck.Wait(h)
}
