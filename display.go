package wlgb

import (
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// defaultDisplay is the socket name used when neither the caller nor
// $WAYLAND_DISPLAY names one.
const defaultDisplay = "wayland-0"

// socketPath resolves a display name to the path of the compositor socket.
// If display is empty it is taken from $WAYLAND_DISPLAY. Absolute names are
// used as they are; anything else lives in $XDG_RUNTIME_DIR.
func socketPath(display string) (string, error) {
	if len(display) == 0 {
		display = os.Getenv("WAYLAND_DISPLAY")
	}
	if len(display) == 0 {
		display = defaultDisplay
	}
	if filepath.IsAbs(display) {
		return display, nil
	}

	dir := os.Getenv("XDG_RUNTIME_DIR")
	if len(dir) == 0 {
		return "", errors.New("$XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(dir, display), nil
}

// inheritedSocket returns the connection passed down by a parent process
// through $WAYLAND_SOCKET, if any. The variable is consumed so that children
// of this process do not try to reuse the descriptor.
func inheritedSocket() (net.Conn, error) {
	v := os.Getenv("WAYLAND_SOCKET")
	if len(v) == 0 {
		return nil, nil
	}
	os.Unsetenv("WAYLAND_SOCKET")

	fd, err := strconv.Atoi(v)
	if err != nil || fd < 0 {
		return nil, errors.Errorf("invalid $WAYLAND_SOCKET %q", v)
	}
	f := os.NewFile(uintptr(fd), "wayland-socket")
	defer f.Close()

	conn, err := net.FileConn(f)
	if err != nil {
		return nil, errors.Wrap(err, "$WAYLAND_SOCKET")
	}
	return conn, nil
}

// connect opens the transport to the compositor named by display.
func (c *Conn) connect(display string) error {
	if len(display) == 0 {
		conn, err := inheritedSocket()
		if err != nil {
			return &TransportError{Op: "connect", Err: err}
		}
		if conn != nil {
			c.conn = conn
			c.display = "$WAYLAND_SOCKET"
			return nil
		}
	}

	path, err := socketPath(display)
	if err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	c.conn = conn
	c.display = path
	return nil
}
