package shmbuf

import (
	"github.com/BurntSushi/wlgb"
	"github.com/BurntSushi/wlgb/wl"
)

// Manager owns the one buffer a surface draws into and replaces it when the
// surface changes size.
type Manager struct {
	conn    *wlgb.Conn
	shm     wl.Shm
	current *Buffer
}

// NewManager returns a manager with no buffer yet.
func NewManager(c *wlgb.Conn, shm wl.Shm) *Manager {
	return &Manager{conn: c, shm: shm}
}

// Current returns the live buffer, or nil.
func (m *Manager) Current() *Buffer { return m.current }

// Resize makes sure the current buffer is width x height. A matching buffer
// is kept as it is. Otherwise the replacement is created first and the old
// buffer destroyed only once that succeeded, so a failed resize leaves the
// previous buffer in place.
func (m *Manager) Resize(width, height int) (*Buffer, error) {
	if m.current.Matches(width, height) {
		return m.current, nil
	}
	buf, err := Create(m.conn, m.shm, width, height)
	if err != nil {
		return nil, err
	}
	m.Replace(buf)
	return buf, nil
}

// Replace installs buf as the current buffer and destroys the old one.
func (m *Manager) Replace(buf *Buffer) {
	old := m.current
	m.current = buf
	if old != nil && old != buf {
		if err := old.Destroy(); err != nil {
			wlgb.Logger.Warn("destroying old buffer", "err", err)
		}
	}
}

// Close destroys the current buffer, if any.
func (m *Manager) Close() error {
	if m.current == nil {
		return nil
	}
	err := m.current.Destroy()
	m.current = nil
	return err
}
