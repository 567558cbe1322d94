/*
Package wlgb provides the Wayland Go Binding, a low-level API to communicate
with a Wayland compositor over its wire protocol, without libwayland.

The root package owns the connection: socket resolution, object ids, the
wire codec, the event queue and round trips. The interfaces are bound in
sibling packages: wl holds the core protocol (registry, compositor, surface,
shm, seat) and xdg holds xdg-shell. Each of those packages registers its
event decoders with NewEventFuncs when imported, so import every protocol
package whose objects you create.

Events are read by a dedicated goroutine and queued; nothing is
ever handled on that goroutine. Handlers run on whichever goroutine calls
Dispatch, Roundtrip or WaitForEvent, so a program that calls them from a
single loop needs no locking of its own.

Example

This is a terse example that connects, lists the globals the compositor
advertises and exits. A complete program that opens a window backed by a
shared memory buffer can be found in examples/circle.

	package main

	import (
		"fmt"

		"github.com/BurntSushi/wlgb"
		"github.com/BurntSushi/wlgb/wl"
	)

	func main() {
		W, err := wlgb.NewConn()
		if err != nil {
			fmt.Println(err)
			return
		}
		defer W.Close()

		if _, err := wl.GetRegistry(W); err != nil {
			fmt.Println(err)
			return
		}
		err = W.Roundtrip(wlgb.HandlerFunc(func(ev wlgb.Event) {
			if g, ok := ev.(wl.RegistryGlobalEvent); ok {
				fmt.Printf("%s (version %d)\n", g.Interface, g.Version)
			}
		}))
		if err != nil {
			fmt.Println(err)
		}
	}

Errors

A connection fails in one of two ways. A *TransportError means the socket
could not be opened, read or written. A *ProtocolError means the compositor
reported a wl_display.error, or sent something that could not be decoded.
Both are sticky: once seen, every later request and every wait returns the
same error, and the only thing left to do is Close.

Object ids

Ids are allocated by NewId and registered with the interface they implement
via Register, before the creating request is sent. Destructor requests
should be followed by Destroyed so that events still in flight for the
object are dropped. The id becomes reusable once the compositor confirms
with wl_display.delete_id, which the connection handles internally.

File descriptors

Requests that carry descriptors (wl_shm.create_pool) need a transport that
implements WriteMsgUnix, which *net.UnixConn does. NewConn always produces
one; NewConnNet accepts any net.Conn for tests and embedding.
*/
package wlgb
