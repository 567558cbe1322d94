// Package wltest provides an in-process fake Wayland compositor for tests.
//
// The server talks the real wire protocol over a unix socket pair, file
// descriptors included. It answers the requests a simple shm client makes:
// it advertises globals, answers sync, announces shm formats and seat
// capabilities, acknowledges destructors with delete_id and sends the
// initial configure sequence on a toplevel's first commit. Everything else
// is recorded and left for the test to inspect, and the test drives the
// rest of the conversation through the Send helpers.
package wltest

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Timeout bounds WaitRequest.
var Timeout = 5 * time.Second

var byteOrder = binary.NativeEndian

// Global is one entry of the registry.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// DefaultGlobals advertises everything a shm toplevel client binds, at
// versions above what such a client asks for.
func DefaultGlobals() []Global {
	return []Global{
		{1, "wl_compositor", 6},
		{2, "wl_shm", 2},
		{3, "xdg_wm_base", 6},
		{4, "wl_seat", 9},
	}
}

// Options configures the fake compositor.
type Options struct {
	// Globals defaults to DefaultGlobals.
	Globals []Global

	// Formats are announced when wl_shm is bound. Defaults to ARGB8888 and
	// XRGB8888.
	Formats []uint32

	// SeatCapabilities is announced when wl_seat is bound.
	SeatCapabilities uint32

	// The toplevel configure sent on the first commit of a toplevel.
	// Zero leaves the size to the client.
	InitialWidth  int32
	InitialHeight int32
	InitialStates []uint32

	// NoInitialConfigure disables the configure sequence on first commit.
	NoInitialConfigure bool

	// CloseOnFirstCommit answers the first commit of a toplevel with
	// xdg_toplevel.close instead of a configure.
	CloseOnFirstCommit bool
}

// Request is one request received from the client.
type Request struct {
	Object    uint32
	Interface string
	Opcode    uint16

	// Name is "interface.request", like "wl_surface.attach".
	Name string

	// Args holds the decoded arguments: uint32 for uint, object and new_id,
	// int32 for int, string for string, and the size in bytes of the
	// received file as int64 for fd (-1 when no descriptor came along).
	// It is nil for requests whose signature is not known.
	Args []interface{}
}

// Uint returns argument i as an uint32, or 0.
func (r Request) Uint(i int) uint32 {
	if i < len(r.Args) {
		if v, ok := r.Args[i].(uint32); ok {
			return v
		}
	}
	return 0
}

// Int returns argument i as an int32, or 0.
func (r Request) Int(i int) int32 {
	if i < len(r.Args) {
		if v, ok := r.Args[i].(int32); ok {
			return v
		}
	}
	return 0
}

// Str returns argument i as a string, or "".
func (r Request) Str(i int) string {
	if i < len(r.Args) {
		if v, ok := r.Args[i].(string); ok {
			return v
		}
	}
	return ""
}

// FileSize returns the size of the file received as argument i, or -1.
func (r Request) FileSize(i int) int64 {
	if i < len(r.Args) {
		if v, ok := r.Args[i].(int64); ok {
			return v
		}
	}
	return -1
}

func (r Request) String() string {
	return fmt.Sprintf("%s@%d%v", r.Name, r.Object, r.Args)
}

type object struct {
	iface   string
	version uint32
}

// Server is the fake compositor.
type Server struct {
	opts Options
	conn *net.UnixConn
	done chan struct{}

	mu        sync.Mutex
	objects   map[uint32]*object
	requests  []Request
	changed   chan struct{}
	serial    uint32
	roleOf    map[uint32]uint32 // wl_surface -> xdg_surface
	toplevel  map[uint32]uint32 // xdg_surface -> xdg_toplevel
	committed map[uint32]bool   // xdg_surfaces that had their first commit
	err       error

	writeLock sync.Mutex
	closeOnce sync.Once
}

// New starts a fake compositor and returns it along with the client end of
// the connection, a *net.UnixConn.
func New(opts Options) (*Server, net.Conn, error) {
	if opts.Globals == nil {
		opts.Globals = DefaultGlobals()
	}
	if opts.Formats == nil {
		opts.Formats = []uint32{0, 1}
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, errors.Wrap(err, "socketpair")
	}
	srv, err := fileConn(fds[0], "wltest-server")
	if err != nil {
		unix.Close(fds[1])
		return nil, nil, err
	}
	cli, err := fileConn(fds[1], "wltest-client")
	if err != nil {
		srv.Close()
		return nil, nil, err
	}

	s := &Server{
		opts:      opts,
		conn:      srv,
		done:      make(chan struct{}),
		objects:   map[uint32]*object{1: {iface: "wl_display", version: 1}},
		changed:   make(chan struct{}),
		roleOf:    map[uint32]uint32{},
		toplevel:  map[uint32]uint32{},
		committed: map[uint32]bool{},
	}
	go s.loop()
	return s, cli, nil
}

// fileConn turns one end of a socket pair into a *net.UnixConn. The
// descriptor is duplicated by net.FileConn; fd itself is closed.
func fileConn(fd int, name string) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()

	c, err := net.FileConn(f)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	uc, ok := c.(*net.UnixConn)
	if !ok {
		c.Close()
		return nil, errors.Errorf("%s: not a unix socket", name)
	}
	return uc, nil
}

// Err returns the first protocol problem the server noticed in the
// client's messages.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Server) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Disconnect closes the server end of the connection, as a compositor
// that crashed would.
func (s *Server) Disconnect() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// Close disconnects and waits for the server goroutine to stop.
func (s *Server) Close() error {
	err := s.Disconnect()
	<-s.done
	return err
}

func (s *Server) loop() {
	defer close(s.done)

	var pending []byte
	var fds []int
	defer func() {
		for _, fd := range fds {
			unix.Close(fd)
		}
	}()

	buf := make([]byte, 4096)
	oob := make([]byte, unix.CmsgSpace(28*4))
	for {
		n, oobn, _, _, err := s.conn.ReadMsgUnix(buf, oob)
		if oobn > 0 {
			fds = append(fds, parseRights(oob[:oobn])...)
		}
		if n > 0 {
			pending = append(pending, buf[:n]...)
		}

		for len(pending) >= 8 {
			size := int(byteOrder.Uint32(pending[4:]) >> 16)
			if size < 8 || size%4 != 0 {
				s.fail(errors.Errorf("malformed request header of size %d", size))
				return
			}
			if len(pending) < size {
				break
			}
			fds = s.handle(pending[:size], fds)
			pending = pending[size:]
		}

		if err != nil || (n <= 0 && oobn <= 0) {
			return
		}
	}
}

func parseRights(oob []byte) []int {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil
	}
	var fds []int
	for i := range msgs {
		rights, err := unix.ParseUnixRights(&msgs[i])
		if err == nil {
			fds = append(fds, rights...)
		}
	}
	return fds
}

func requestName(iface string, opcode uint16) string {
	if names := requestNames[iface]; int(opcode) < len(names) {
		return iface + "." + names[opcode]
	}
	return fmt.Sprintf("%s.%d", iface, opcode)
}

// decodeArgs decodes body by sig, taking descriptors from fds as needed.
// The remaining descriptors are returned.
func decodeArgs(sig string, body []byte, fds []int) ([]interface{}, []int) {
	if len(sig) == 0 {
		return nil, fds
	}
	args := make([]interface{}, 0, len(sig))
	for _, c := range sig {
		if c == 'h' {
			size := int64(-1)
			if len(fds) > 0 {
				var st unix.Stat_t
				if unix.Fstat(fds[0], &st) == nil {
					size = st.Size
				}
				unix.Close(fds[0])
				fds = fds[1:]
			}
			args = append(args, size)
			continue
		}
		if len(body) < 4 {
			break
		}
		v := byteOrder.Uint32(body)
		body = body[4:]
		switch c {
		case 'i':
			args = append(args, int32(v))
		case 's':
			n := int(v)
			padded := (n + 3) &^ 3
			if n == 0 || len(body) < padded {
				args = append(args, "")
				body = nil
				continue
			}
			args = append(args, string(body[:n-1]))
			body = body[padded:]
		default:
			args = append(args, v)
		}
	}
	return args, fds
}

func (s *Server) handle(msg []byte, fds []int) []int {
	id := byteOrder.Uint32(msg)
	opcode := uint16(byteOrder.Uint32(msg[4:]))

	s.mu.Lock()
	var iface string
	if obj, ok := s.objects[id]; ok {
		iface = obj.iface
	}
	req := Request{Object: id, Interface: iface, Opcode: opcode}
	req.Name = requestName(iface, opcode)
	req.Args, fds = decodeArgs(signatures[req.Name], msg[8:], fds)
	s.requests = append(s.requests, req)
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	s.reply(req)
	return fds
}

func (s *Server) addObject(id uint32, iface string, version uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[id] = &object{iface: iface, version: version}
}

func (s *Server) removeObject(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, id)
}

// reply plays the compositor's part for req.
func (s *Server) reply(req Request) {
	if iface, ok := creates[req.Name]; ok {
		s.addObject(req.Uint(0), iface, 1)
	}
	if destructors[req.Name] {
		s.removeObject(req.Object)
		s.Send(1, displayDeleteId, req.Object)
		return
	}

	switch req.Name {
	case "wl_display.sync":
		cb := req.Uint(0)
		s.mu.Lock()
		serial := s.serial
		s.mu.Unlock()
		s.Send(cb, callbackDone, serial)
		s.removeObject(cb)
		s.Send(1, displayDeleteId, cb)
	case "wl_display.get_registry":
		for _, g := range s.opts.Globals {
			s.Send(req.Uint(0), registryGlobal, g.Name, g.Interface, g.Version)
		}
	case "wl_registry.bind":
		s.bind(req.Str(1), req.Uint(2), req.Uint(3))
	case "xdg_wm_base.get_xdg_surface":
		s.mu.Lock()
		s.roleOf[req.Uint(1)] = req.Uint(0)
		s.mu.Unlock()
	case "xdg_surface.get_toplevel":
		s.mu.Lock()
		s.toplevel[req.Object] = req.Uint(0)
		s.mu.Unlock()
	case "wl_surface.commit":
		s.firstCommit(req.Object)
	}
}

func (s *Server) bind(iface string, version, id uint32) {
	s.addObject(id, iface, version)
	switch iface {
	case "wl_shm":
		for _, f := range s.opts.Formats {
			s.Send(id, shmFormat, f)
		}
	case "wl_seat":
		s.Send(id, seatCapabilities, s.opts.SeatCapabilities)
		if version >= 2 {
			s.Send(id, seatName, "seat0")
		}
	}
}

// firstCommit sends the initial configure sequence the first time a
// surface with a toplevel role is committed.
func (s *Server) firstCommit(surface uint32) {
	s.mu.Lock()
	xs, ok := s.roleOf[surface]
	first := ok && !s.committed[xs]
	if first {
		s.committed[xs] = true
	}
	tl := s.toplevel[xs]
	s.mu.Unlock()

	if !first || s.opts.NoInitialConfigure {
		return
	}
	if s.opts.CloseOnFirstCommit && tl != 0 {
		s.Send(tl, toplevelClose)
		return
	}
	if tl != 0 {
		s.Send(tl, toplevelConfigure, s.opts.InitialWidth, s.opts.InitialHeight,
			s.opts.InitialStates)
	}
	s.Send(xs, xdgSurfaceConfigure, s.NextSerial())
}

// NextSerial returns a fresh serial.
func (s *Server) NextSerial() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serial++
	return s.serial
}

// Requests returns the requests received so far, in order. If names are
// given, only requests with one of those names are returned.
func (s *Server) Requests(names ...string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Request
	for _, r := range s.requests {
		if len(names) == 0 {
			out = append(out, r)
			continue
		}
		for _, name := range names {
			if r.Name == name {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Count returns how many requests named name were received.
func (s *Server) Count(name string) int {
	return len(s.Requests(name))
}

// WaitRequest waits until the n-th request named name (counting from 1)
// has arrived and returns it.
func (s *Server) WaitRequest(name string, n int) (Request, error) {
	timeout := time.After(Timeout)
	for {
		s.mu.Lock()
		changed := s.changed
		s.mu.Unlock()

		if reqs := s.Requests(name); len(reqs) >= n {
			return reqs[n-1], nil
		}
		select {
		case <-changed:
		case <-s.done:
			if reqs := s.Requests(name); len(reqs) >= n {
				return reqs[n-1], nil
			}
			return Request{}, errors.Errorf("connection closed before %s #%d", name, n)
		case <-timeout:
			return Request{}, errors.Errorf("timed out waiting for %s #%d", name, n)
		}
	}
}

// Object returns the id of the newest live object implementing iface, or 0.
func (s *Server) Object(iface string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest uint32
	for id, obj := range s.objects {
		if obj.iface == iface && id > newest {
			newest = id
		}
	}
	return newest
}

// Live returns how many objects implementing iface exist.
func (s *Server) Live(iface string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, obj := range s.objects {
		if obj.iface == iface {
			n++
		}
	}
	return n
}

// Version returns the version object was bound at, or 0.
func (s *Server) Version(object uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj, ok := s.objects[object]; ok {
		return obj.version
	}
	return 0
}

// Send writes an event. Arguments may be uint32, int32, string, []byte
// or []uint32; slices are sent as arrays.
func (s *Server) Send(object uint32, opcode uint16, args ...interface{}) error {
	buf := make([]byte, 8, 64)
	for _, arg := range args {
		switch v := arg.(type) {
		case uint32:
			buf = byteOrder.AppendUint32(buf, v)
		case int32:
			buf = byteOrder.AppendUint32(buf, uint32(v))
		case string:
			buf = byteOrder.AppendUint32(buf, uint32(len(v)+1))
			buf = append(buf, v...)
			buf = append(buf, make([]byte, pad(len(v)+1)-len(v))...)
		case []byte:
			buf = byteOrder.AppendUint32(buf, uint32(len(v)))
			buf = append(buf, v...)
			buf = append(buf, make([]byte, pad(len(v))-len(v))...)
		case []uint32:
			buf = byteOrder.AppendUint32(buf, uint32(len(v)*4))
			for _, w := range v {
				buf = byteOrder.AppendUint32(buf, w)
			}
		default:
			return errors.Errorf("cannot encode argument of type %T", arg)
		}
	}
	byteOrder.PutUint32(buf, object)
	byteOrder.PutUint32(buf[4:], uint32(len(buf))<<16|uint32(opcode))
	return s.SendRaw(buf)
}

// SendRaw writes b to the client as it is.
func (s *Server) SendRaw(b []byte) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	_, err := s.conn.Write(b)
	return err
}

func pad(n int) int { return (n + 3) &^ 3 }

func (s *Server) sendTo(iface string, opcode uint16, args ...interface{}) error {
	id := s.Object(iface)
	if id == 0 {
		return errors.Errorf("no live %s", iface)
	}
	return s.Send(id, opcode, args...)
}

// Ping sends xdg_wm_base.ping.
func (s *Server) Ping(serial uint32) error {
	return s.sendTo("xdg_wm_base", wmBasePing, serial)
}

// ConfigureToplevel sends xdg_toplevel.configure.
func (s *Server) ConfigureToplevel(width, height int32, states ...uint32) error {
	if states == nil {
		states = []uint32{}
	}
	return s.sendTo("xdg_toplevel", toplevelConfigure, width, height, states)
}

// ConfigureBounds sends xdg_toplevel.configure_bounds.
func (s *Server) ConfigureBounds(width, height int32) error {
	return s.sendTo("xdg_toplevel", toplevelConfigureBounds, width, height)
}

// ConfigureSurface sends xdg_surface.configure with serial.
func (s *Server) ConfigureSurface(serial uint32) error {
	return s.sendTo("xdg_surface", xdgSurfaceConfigure, serial)
}

// Configure sends a full configure sequence with a fresh serial, which it
// returns.
func (s *Server) Configure(width, height int32, states ...uint32) (uint32, error) {
	if err := s.ConfigureToplevel(width, height, states...); err != nil {
		return 0, err
	}
	serial := s.NextSerial()
	return serial, s.ConfigureSurface(serial)
}

// CloseToplevel sends xdg_toplevel.close.
func (s *Server) CloseToplevel() error {
	return s.sendTo("xdg_toplevel", toplevelClose)
}

// ReleaseBuffer sends wl_buffer.release for buffer.
func (s *Server) ReleaseBuffer(buffer uint32) error {
	return s.Send(buffer, bufferRelease)
}

// RemoveGlobal sends wl_registry.global_remove for name.
func (s *Server) RemoveGlobal(name uint32) error {
	return s.sendTo("wl_registry", registryGlobalRemove, name)
}

// Error sends wl_display.error, as a compositor does right before it
// disconnects a misbehaving client.
func (s *Server) Error(object, code uint32, message string) error {
	return s.Send(1, displayError, object, code, message)
}
