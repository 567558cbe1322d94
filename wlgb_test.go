package wlgb

import (
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/BurntSushi/wlgb/wltest"
)

func init() {
	PrintLog = false
}

// newTestConn connects to a fresh fake compositor. Both are shut down when
// the test ends.
func newTestConn(t *testing.T, opts wltest.Options) (*Conn, *wltest.Server) {
	t.Helper()
	s, conn, err := wltest.New(opts)
	if err != nil {
		t.Fatalf("starting fake compositor: %v", err)
	}
	c, err := NewConnNet(conn)
	if err != nil {
		s.Close()
		t.Fatalf("connect error: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return c, s
}

func getRegistry(t *testing.T, c *Conn) Id {
	t.Helper()
	id, err := c.NewId()
	if err != nil {
		t.Fatal(err)
	}
	c.Register(id, "wl_registry")
	if err := c.SendRequest(NewRequest(DisplayId, 1).PutId(id)); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestConnOpenClose(t *testing.T) {
	s, conn, err := wltest.New(wltest.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Errorf("server closing error: %v", err)
		}
	}()

	defer leaksMonitor("open-close").checkTesting(t)

	c, err := NewConnNet(conn)
	if err != nil {
		t.Fatalf("connect error: %v", err)
	}

	closed := make(chan struct{})
	go func() {
		c.Close()
		c.Close()
		close(closed)
	}()
	closeTimeout := time.Second
	select {
	case <-closed:
	case <-time.After(closeTimeout):
		t.Errorf("*Conn.Close() not responded for %v", closeTimeout)
	}

	if _, err := c.WaitForEvent(); err == nil {
		t.Errorf("WaitForEvent after Close returned no error")
	}
}

func TestCloseWhileReading(t *testing.T) {
	c, _ := newTestConn(t, wltest.Options{})
	getRegistry(t, c)

	// After the round trip the reader has nothing left and waits in read.
	if err := c.Roundtrip(nil); err != nil {
		t.Fatal(err)
	}

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatalf("Close did not return")
	}

	_, err := c.WaitForEvent()
	var terr *TransportError
	if !errors.As(err, &terr) || !errors.Is(err, net.ErrClosed) {
		t.Fatalf("got %v, want a *TransportError wrapping net.ErrClosed", err)
	}
	if err := c.SendRequest(NewRequest(DisplayId, 0).PutId(9)); !errors.Is(err, net.ErrClosed) {
		t.Errorf("request on a closed connection: %v", err)
	}
}

func TestNewConnNetNil(t *testing.T) {
	_, err := NewConnNet(nil)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("got %v, want *TransportError", err)
	}
}

func TestRoundtrip(t *testing.T) {
	c, s := newTestConn(t, wltest.Options{})
	reg := getRegistry(t, c)

	var globals []UnknownEvent
	err := c.Roundtrip(HandlerFunc(func(ev Event) {
		if u, ok := ev.(UnknownEvent); ok {
			globals = append(globals, u)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}

	// Without the wl package imported, registry events are not decoded.
	if len(globals) != len(wltest.DefaultGlobals()) {
		t.Fatalf("got %d globals, want %d", len(globals), len(wltest.DefaultGlobals()))
	}
	for _, g := range globals {
		if g.Sender != reg || g.Interface != "wl_registry" || g.Opcode != 0 {
			t.Errorf("unexpected event %+v", g)
		}
	}

	reqs := s.Requests()
	if len(reqs) != 2 || reqs[0].Name != "wl_display.get_registry" ||
		reqs[1].Name != "wl_display.sync" {
		t.Fatalf("requests %v", reqs)
	}
	if Id(reqs[0].Uint(0)) != reg {
		t.Errorf("registry created as %d, want %d", reqs[0].Uint(0), reg)
	}
}

func TestCookieWait(t *testing.T) {
	c, _ := newTestConn(t, wltest.Options{})

	ck1, err := c.Sync()
	if err != nil {
		t.Fatal(err)
	}
	ck2, err := c.Sync()
	if err != nil {
		t.Fatal(err)
	}
	if ck1.Callback == ck2.Callback {
		t.Fatalf("two pending callbacks share id %d", ck1.Callback)
	}

	// The first done event arrives while waiting for the second one.
	var seen []Id
	err = ck2.Wait(HandlerFunc(func(ev Event) {
		if d, ok := ev.(DoneEvent); ok {
			seen = append(seen, d.Callback)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0] != ck1.Callback {
		t.Fatalf("saw done events %v, want [%d]", seen, ck1.Callback)
	}
}

func TestBindAndFd(t *testing.T) {
	c, s := newTestConn(t, wltest.Options{})
	reg := getRegistry(t, c)
	if err := c.Roundtrip(nil); err != nil {
		t.Fatal(err)
	}

	shm, _ := c.NewId()
	c.Register(shm, "wl_shm")
	err := c.SendRequest(NewRequest(reg, 0).PutUint32(2).PutNewId("wl_shm", 1, shm))
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.CreateTemp(t.TempDir(), "pool")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := f.Truncate(4096); err != nil {
		t.Fatal(err)
	}

	pool, _ := c.NewId()
	c.Register(pool, "wl_shm_pool")
	req := NewRequest(shm, 0).PutId(pool).PutFd(int(f.Fd())).PutInt32(4096)
	if err := c.SendRequest(req); err != nil {
		t.Fatal(err)
	}
	if err := c.Roundtrip(nil); err != nil {
		t.Fatal(err)
	}

	bind, err := s.WaitRequest("wl_registry.bind", 1)
	if err != nil {
		t.Fatal(err)
	}
	if bind.Uint(0) != 2 || bind.Str(1) != "wl_shm" || bind.Uint(2) != 1 ||
		Id(bind.Uint(3)) != shm {
		t.Errorf("bind %v", bind)
	}

	create, err := s.WaitRequest("wl_shm.create_pool", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := create.FileSize(1); got != 4096 {
		t.Errorf("compositor got a file of %d bytes, want 4096", got)
	}
	if got := create.Int(2); got != 4096 {
		t.Errorf("pool size %d", got)
	}
}

func TestIdRecycling(t *testing.T) {
	c, _ := newTestConn(t, wltest.Options{})

	a, _ := c.NewId()
	b, _ := c.NewId()
	d, _ := c.NewId()
	if a != minClientId || b != a+1 || d != b+1 {
		t.Fatalf("ids %d %d %d", a, b, d)
	}
	c.Register(b, "wl_surface")
	c.deleteId(b)
	if iface := c.Interface(b); iface != "" {
		t.Errorf("deleted id still known as %q", iface)
	}

	if got, _ := c.NewId(); got != b {
		t.Errorf("got %d, want recycled %d", got, b)
	}
	if got, _ := c.NewId(); got != d+1 {
		t.Errorf("got %d, want fresh %d", got, d+1)
	}

	// Server-side ids are never handed out.
	c.deleteId(0xff000001)
	if got, _ := c.NewId(); got != d+2 {
		t.Errorf("got %d, want fresh %d", got, d+2)
	}
}

func TestIdExhaustion(t *testing.T) {
	c, _ := newTestConn(t, wltest.Options{})
	c.nextId = maxClientId
	if id, err := c.NewId(); err != nil || id != maxClientId {
		t.Fatalf("got %d, %v", id, err)
	}
	if _, err := c.NewId(); err == nil {
		t.Fatalf("no error once the id space is used up")
	}
}

func TestDestroyedObjectEvents(t *testing.T) {
	c, s := newTestConn(t, wltest.Options{})

	id, _ := c.NewId()
	c.Register(id, "wl_callback")
	c.Destroyed(id)
	if err := s.Send(uint32(id), 0, uint32(7)); err != nil {
		t.Fatal(err)
	}

	n := 0
	err := c.Roundtrip(HandlerFunc(func(ev Event) { n++ }))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("%d events delivered for a destroyed object", n)
	}
}

func TestDispatch(t *testing.T) {
	c, s := newTestConn(t, wltest.Options{})

	id, _ := c.NewId()
	c.Register(id, "wl_callback")
	for i := uint32(1); i <= 3; i++ {
		if err := s.Send(uint32(id), 0, i); err != nil {
			t.Fatal(err)
		}
	}

	var got []uint32
	h := HandlerFunc(func(ev Event) {
		got = append(got, ev.(DoneEvent).Data)
	})
	for len(got) < 3 {
		n, err := c.Dispatch(h)
		if err != nil {
			t.Fatal(err)
		}
		if n < 1 {
			t.Fatalf("Dispatch handled %d events", n)
		}
	}
	for i, v := range got {
		if v != uint32(i+1) {
			t.Fatalf("events out of order: %v", got)
		}
	}
	if ev := c.PollForEvent(); ev != nil {
		t.Fatalf("unexpected event %v", ev)
	}
}

func TestProtocolError(t *testing.T) {
	c, s := newTestConn(t, wltest.Options{})
	reg := getRegistry(t, c)
	if err := s.Error(uint32(reg), 3, "invalid method"); err != nil {
		t.Fatal(err)
	}

	err := c.Roundtrip(nil)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want *ProtocolError", err)
	}
	if perr.Object != reg || perr.Interface != "wl_registry" ||
		perr.Code != 3 || perr.Message != "invalid method" {
		t.Errorf("got %+v", perr)
	}

	// Sticky.
	if err := c.SendRequest(NewRequest(DisplayId, 0).PutId(99)); err != perr {
		t.Errorf("SendRequest after protocol error: %v", err)
	}
	if c.Err() != perr {
		t.Errorf("Err() = %v", c.Err())
	}
}

func TestUnknownObject(t *testing.T) {
	c, s := newTestConn(t, wltest.Options{})
	if err := s.Send(99, 0); err != nil {
		t.Fatal(err)
	}
	_, err := c.WaitForEvent()
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Object != 99 {
		t.Fatalf("got %v, want *ProtocolError for object 99", err)
	}
}

func TestMalformedHeader(t *testing.T) {
	c, s := newTestConn(t, wltest.Options{})
	hdr := make([]byte, 8)
	Put32(hdr, 5)
	Put32(hdr[4:], 4<<16)
	if err := s.SendRaw(hdr); err != nil {
		t.Fatal(err)
	}
	_, err := c.WaitForEvent()
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want *ProtocolError", err)
	}
}

func TestDisconnect(t *testing.T) {
	c, s := newTestConn(t, wltest.Options{})
	if err := s.Disconnect(); err != nil {
		t.Fatal(err)
	}

	_, err := c.Dispatch(HandlerFunc(func(Event) {}))
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("got %v, want *TransportError", err)
	}
	if terr.Op != "read" {
		t.Errorf("op %q, want read", terr.Op)
	}
	if _, err := c.Sync(); err == nil {
		t.Errorf("Sync on a broken connection returned no error")
	}
}

func TestSendWithoutFdSupport(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c, err := NewConnNet(client)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	err = c.SendRequest(NewRequest(2, 0).PutFd(0))
	if err == nil {
		t.Fatalf("sending a descriptor over a pipe succeeded")
	}
	if c.Err() != nil {
		t.Errorf("refusing a request broke the connection: %v", c.Err())
	}
}
