package wlgb

import (
	"fmt"
)

// TransportError is returned when the connection to the compositor cannot be
// established, or when reading or writing on it fails. It is always fatal:
// once a Conn has seen one, every later call returns it again.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("wayland %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a violation of the protocol: either the compositor sent a
// wl_display.error event, or it sent a message this client cannot make sense
// of. The compositor terminates the connection after a protocol error, so it
// is fatal too.
type ProtocolError struct {
	Object    Id
	Interface string
	Code      uint32
	Message   string
}

func (e *ProtocolError) Error() string {
	if e.Interface == "" {
		return fmt.Sprintf("wayland protocol error on object %d: %s",
			e.Object, e.Message)
	}
	return fmt.Sprintf("wayland protocol error on %s@%d (code %d): %s",
		e.Interface, e.Object, e.Code, e.Message)
}
