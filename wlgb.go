// Package wlgb implements the client side of the Wayland wire protocol.
// The interfaces themselves live in the sibling packages wl and xdg.
package wlgb

import (
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	readBuffer  = 4096
	eventBuffer = 100

	// libwayland never sends more than this many descriptors at once.
	maxFds = 28
)

// DisplayId is the object id of the wl_display singleton. It exists from the
// moment the connection is made.
const DisplayId Id = 1

// Client-allocated ids; the range above belongs to the server.
const (
	minClientId Id = 2
	maxClientId Id = 0xfeffffff
)

// msgConn is satisfied by transports that can carry file descriptors.
type msgConn interface {
	ReadMsgUnix(b, oob []byte) (n, oobn, flags int, addr *net.UnixAddr, err error)
	WriteMsgUnix(b, oob []byte, addr *net.UnixAddr) (n, oobn int, err error)
}

// A Conn represents a connection to a Wayland compositor.
type Conn struct {
	conn      net.Conn
	display   string
	events    queue
	eventChan chan bool
	readDone  chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once

	err     error
	errLock sync.Mutex

	objects map[Id]*object
	objLock sync.Mutex

	nextId    Id
	freeIds   []Id
	newIdLock sync.Mutex
	writeLock sync.Mutex
}

// object is what the connection remembers about a live protocol object.
type object struct {
	iface string
	// dead is set once the client has sent the object's destructor. The id
	// stays reserved until the compositor confirms with delete_id.
	dead bool
}

// NewConn creates a new connection to the compositor named by
// $WAYLAND_DISPLAY (or inherited through $WAYLAND_SOCKET).
func NewConn() (*Conn, error) {
	return NewConnDisplay("")
}

// NewConnDisplay is just like NewConn, but allows a specific display to be
// used. If 'display' is empty it will be taken from the environment.
//
// Examples:
//	NewConnDisplay("wayland-1") -> $XDG_RUNTIME_DIR/wayland-1
//	NewConnDisplay("/run/user/1000/wayland-0") -> /run/user/1000/wayland-0
func NewConnDisplay(display string) (*Conn, error) {
	c := &Conn{}

	if err := c.connect(display); err != nil {
		return nil, err
	}
	return postNewConn(c)
}

// NewConnNet wraps an already established transport. A *net.UnixConn is
// needed for requests that carry file descriptors.
func NewConnNet(conn net.Conn) (*Conn, error) {
	if conn == nil {
		return nil, &TransportError{Op: "connect", Err: errors.New("nil net.Conn")}
	}
	return postNewConn(&Conn{conn: conn})
}

func postNewConn(c *Conn) (*Conn, error) {
	c.nextId = minClientId
	c.objects = map[Id]*object{
		DisplayId: {iface: "wl_display"},
	}
	c.events = queue{data: make([]Event, eventBuffer)}
	c.eventChan = make(chan bool, eventBuffer)
	c.readDone = make(chan struct{})

	go c.readEvents()

	Logger.Debug("connected", "display", c.display)
	return c, nil
}

// Close closes the connection to the compositor and waits for the reader to
// stop. It is safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.conn.Close()
		<-c.readDone
	})
}

// Err returns the error that broke the connection, or nil.
func (c *Conn) Err() error {
	c.errLock.Lock()
	defer c.errLock.Unlock()
	return c.err
}

// fail records the first fatal error.
func (c *Conn) fail(err error) {
	c.errLock.Lock()
	defer c.errLock.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Id is used for all Wayland object identifiers.
type Id uint32

// NewId generates a new unused id for a request that creates an object.
// Ids released by the compositor are handed out again before fresh ones.
func (c *Conn) NewId() (Id, error) {
	c.newIdLock.Lock()
	defer c.newIdLock.Unlock()

	if n := len(c.freeIds); n > 0 {
		id := c.freeIds[n-1]
		c.freeIds = c.freeIds[:n-1]
		return id, nil
	}
	if c.nextId > maxClientId {
		return 0, errors.New("there are no more available object identifiers")
	}
	id := c.nextId
	c.nextId++
	return id, nil
}

// Register tells the connection which interface id implements, so that the
// events it receives can be decoded. It must be called before the request
// creating the object is sent.
func (c *Conn) Register(id Id, iface string) {
	c.objLock.Lock()
	defer c.objLock.Unlock()
	c.objects[id] = &object{iface: iface}
}

// Destroyed marks id as destroyed by the client. Events that were already in
// flight for it are dropped.
func (c *Conn) Destroyed(id Id) {
	c.objLock.Lock()
	defer c.objLock.Unlock()
	if obj, ok := c.objects[id]; ok {
		obj.dead = true
	}
}

// Interface returns the interface name id was registered with, or "" if the
// id is unknown.
func (c *Conn) Interface(id Id) string {
	c.objLock.Lock()
	defer c.objLock.Unlock()
	if obj, ok := c.objects[id]; ok {
		return obj.iface
	}
	return ""
}

// deleteId handles wl_display.delete_id: the compositor has forgotten the
// object and its id can be reused.
func (c *Conn) deleteId(id Id) {
	c.objLock.Lock()
	delete(c.objects, id)
	c.objLock.Unlock()

	if id < minClientId || id > maxClientId {
		return
	}
	c.newIdLock.Lock()
	c.freeIds = append(c.freeIds, id)
	c.newIdLock.Unlock()
}

// SendRequest writes req to the compositor. Write failures are fatal and
// sticky, like every transport failure.
func (c *Conn) SendRequest(req *Request) error {
	if err := c.Err(); err != nil {
		return err
	}
	buf := req.Bytes()
	if len(buf) > maxMessageSize {
		return errors.Errorf("request of %d bytes exceeds the protocol limit", len(buf))
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	var err error
	if fds := req.Fds(); len(fds) > 0 {
		mc, ok := c.conn.(msgConn)
		if !ok {
			return errors.New("transport cannot pass file descriptors")
		}
		var n int
		n, _, err = mc.WriteMsgUnix(buf, unix.UnixRights(fds...), nil)
		if err == nil && n < len(buf) {
			_, err = c.conn.Write(buf[n:])
		}
	} else {
		_, err = c.conn.Write(buf)
	}
	if err != nil {
		terr := &TransportError{Op: "write", Err: err}
		c.fail(terr)
		return terr
	}
	return nil
}

// A simple queue used to stow away events.
type queue struct {
	data []Event
	a, b int
	lock sync.Mutex
}

func (q *queue) queue(item Event) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.b == len(q.data) {
		if q.a > 0 {
			copy(q.data, q.data[q.a:q.b])
			q.a, q.b = 0, q.b-q.a
		} else {
			newData := make([]Event, (len(q.data)*3)/2)
			copy(newData, q.data)
			q.data = newData
		}
	}
	q.data[q.b] = item
	q.b++
}

func (q *queue) dequeue() Event {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.a < q.b {
		item := q.data[q.a]
		q.data[q.a] = nil
		q.a++
		return item
	}
	return nil
}

// read fills buf from the transport, collecting ancillary data into oob when
// the transport supports it.
func (c *Conn) read(buf, oob []byte) (int, int, error) {
	if mc, ok := c.conn.(msgConn); ok {
		n, oobn, _, _, err := mc.ReadMsgUnix(buf, oob)
		// A read interrupted by Close reports -1.
		n, oobn = max(n, 0), max(oobn, 0)
		if n == 0 && oobn == 0 && err == nil {
			err = io.EOF
		}
		return n, oobn, err
	}
	n, err := c.conn.Read(buf)
	return max(n, 0), 0, err
}

// closeFds closes descriptors the compositor sent along. None of the events
// this client decodes carries one, so they are never needed.
func closeFds(oob []byte) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return
	}
	for i := range msgs {
		fds, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		for _, fd := range fds {
			Logger.Debug("closing unexpected file descriptor", "fd", fd)
			unix.Close(fd)
		}
	}
}

// readEvents frames, decodes and queues incoming messages until the
// transport fails or the connection is closed. Nothing here touches
// application state; handlers run on the goroutine calling Dispatch.
func (c *Conn) readEvents() {
	defer close(c.readDone)
	defer close(c.eventChan)

	var pending []byte
	buf := make([]byte, readBuffer)
	oob := make([]byte, unix.CmsgSpace(maxFds*4))
	for {
		n, oobn, rerr := c.read(buf, oob)
		if oobn > 0 {
			closeFds(oob[:oobn])
		}
		if n > 0 {
			pending = append(pending, buf[:n]...)
		}

		for len(pending) >= headerSize {
			size := int(Get32(pending[4:]) >> 16)
			if size < headerSize || size%4 != 0 {
				c.fail(&ProtocolError{
					Object:  Id(Get32(pending)),
					Message: "malformed message header",
				})
				return
			}
			if len(pending) < size {
				break
			}
			msg := make([]byte, size)
			copy(msg, pending[:size])
			pending = pending[size:]

			if err := c.handleMessage(msg); err != nil {
				c.fail(err)
				return
			}
		}

		if rerr != nil {
			if c.closing.Load() {
				rerr = net.ErrClosed
			}
			c.fail(&TransportError{Op: "read", Err: rerr})
			return
		}
	}
}

// handleMessage decodes a single framed message and queues the resulting
// event. wl_display events are connection-level and are consumed here.
func (c *Conn) handleMessage(msg []byte) error {
	sender := Id(Get32(msg))
	opcode := uint16(Get32(msg[4:]) & 0xffff)
	body := msg[headerSize:]

	if sender == DisplayId {
		return c.handleDisplayEvent(opcode, body)
	}

	c.objLock.Lock()
	obj, ok := c.objects[sender]
	var iface string
	var dead bool
	if ok {
		iface, dead = obj.iface, obj.dead
	}
	c.objLock.Unlock()

	switch {
	case !ok:
		return &ProtocolError{
			Object:  sender,
			Message: "event for an unknown object",
		}
	case dead:
		Logger.Debug("dropping event for destroyed object",
			"object", sender, "interface", iface, "opcode", opcode)
		return nil
	}

	var ev Event
	if newEvent, ok := NewEventFuncs[iface][opcode]; ok {
		var err error
		if ev, err = newEvent(sender, body); err != nil {
			return &ProtocolError{
				Object:    sender,
				Interface: iface,
				Message:   errors.Wrapf(err, "decoding event %d", opcode).Error(),
			}
		}
	} else {
		ev = UnknownEvent{Sender: sender, Interface: iface, Opcode: opcode}
	}

	c.events.queue(ev)
	select {
	case c.eventChan <- true:
	default:
	}
	return nil
}

const (
	displayErrorEvent    = 0
	displayDeleteIdEvent = 1
)

func (c *Conn) handleDisplayEvent(opcode uint16, body []byte) error {
	d := NewDecoder(body)
	switch opcode {
	case displayErrorEvent:
		obj := d.Id()
		code := d.Uint32()
		message := d.Str()
		if err := d.Err(); err != nil {
			return &ProtocolError{Object: DisplayId, Message: err.Error()}
		}
		return &ProtocolError{
			Object:    obj,
			Interface: c.Interface(obj),
			Code:      code,
			Message:   message,
		}
	case displayDeleteIdEvent:
		id := d.Id()
		if err := d.Err(); err != nil {
			return &ProtocolError{Object: DisplayId, Message: err.Error()}
		}
		c.deleteId(id)
		return nil
	}
	return &ProtocolError{
		Object:    DisplayId,
		Interface: "wl_display",
		Message:   "unknown event opcode",
	}
}

// WaitForEvent returns the next event from the compositor.
// It will block until an event is available or the connection breaks, in
// which case the error is a *TransportError or *ProtocolError.
func (c *Conn) WaitForEvent() (Event, error) {
	for {
		if ev := c.events.dequeue(); ev != nil {
			return ev, nil
		}
		if !<-c.eventChan {
			if err := c.Err(); err != nil {
				return nil, err
			}
			return nil, &TransportError{Op: "read", Err: net.ErrClosed}
		}
	}
}

// PollForEvent returns the next event from the compositor if one is
// available in the internal queue. It never blocks and returns nil when the
// queue is empty.
func (c *Conn) PollForEvent() Event {
	return c.events.dequeue()
}

// Dispatch blocks until at least one event has arrived, then hands every
// queued event to h in order. It returns the number of events handled.
func (c *Conn) Dispatch(h Handler) (int, error) {
	ev, err := c.WaitForEvent()
	if err != nil {
		return 0, err
	}
	h.HandleEvent(ev)
	n := 1
	for ev = c.PollForEvent(); ev != nil; ev = c.PollForEvent() {
		h.HandleEvent(ev)
		n++
	}
	return n, nil
}
