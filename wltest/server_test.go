package wltest

import (
	"os"
	"testing"

	"github.com/BurntSushi/wlgb"
	"github.com/BurntSushi/wlgb/wl"
)

func init() {
	wlgb.PrintLog = false
}

func connect(t *testing.T, opts Options) (*wlgb.Conn, *Server) {
	t.Helper()
	s, conn, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	c, err := wlgb.NewConnNet(conn)
	if err != nil {
		s.Close()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return c, s
}

func TestGlobals(t *testing.T) {
	c, s := connect(t, Options{Globals: []Global{{7, "wl_compositor", 3}}})
	if _, err := wl.GetRegistry(c); err != nil {
		t.Fatal(err)
	}
	var got []wl.RegistryGlobalEvent
	err := c.Roundtrip(wlgb.HandlerFunc(func(ev wlgb.Event) {
		if g, ok := ev.(wl.RegistryGlobalEvent); ok {
			got = append(got, g)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != 7 || got[0].Interface != "wl_compositor" || got[0].Version != 3 {
		t.Fatalf("globals %+v", got)
	}
	if s.Object("wl_registry") == 0 {
		t.Errorf("registry not tracked")
	}
	if n := s.Live("wl_callback"); n != 0 {
		t.Errorf("%d callbacks left after done", n)
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
}

func TestBindVersion(t *testing.T) {
	c, s := connect(t, Options{})
	reg, err := wl.GetRegistry(c)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Roundtrip(nil); err != nil {
		t.Fatal(err)
	}
	id, err := wl.Bind(c, reg, 4, wl.SeatInterface, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Roundtrip(nil); err != nil {
		t.Fatal(err)
	}

	b := s.Requests("wl_registry.bind")
	if len(b) != 1 || b[0].Uint(0) != 4 || b[0].Str(1) != "wl_seat" ||
		b[0].Uint(2) != 3 || b[0].Uint(3) != uint32(id) {
		t.Fatalf("bind %v", b)
	}
	if v := s.Version(uint32(id)); v != 3 {
		t.Errorf("seat version %d, want 3", v)
	}
	if s.Version(999) != 0 {
		t.Errorf("version of an unknown object")
	}
}

func TestDestructorDeletesId(t *testing.T) {
	c, s := connect(t, Options{})
	reg, err := wl.GetRegistry(c)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Roundtrip(nil); err != nil {
		t.Fatal(err)
	}
	id, err := wl.Bind(c, reg, 2, wl.ShmInterface, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := wl.ReleaseShm(c, wl.Shm(id)); err != nil {
		t.Fatal(err)
	}
	if err := c.Roundtrip(nil); err != nil {
		t.Fatal(err)
	}
	if n := s.Live("wl_shm"); n != 0 {
		t.Errorf("wl_shm still live after release")
	}
	if iface := c.Interface(id); iface != "" {
		t.Errorf("client still knows %d as %q", id, iface)
	}
}

func TestFileSize(t *testing.T) {
	c, s := connect(t, Options{})
	reg, err := wl.GetRegistry(c)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Roundtrip(nil); err != nil {
		t.Fatal(err)
	}
	id, err := wl.Bind(c, reg, 2, wl.ShmInterface, 1)
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.CreateTemp(t.TempDir(), "pool")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := f.Truncate(12345); err != nil {
		t.Fatal(err)
	}
	if _, err := wl.CreatePool(c, wl.Shm(id), int(f.Fd()), 12345); err != nil {
		t.Fatal(err)
	}

	r, err := s.WaitRequest("wl_shm.create_pool", 1)
	if err != nil {
		t.Fatal(err)
	}
	if r.FileSize(1) != 12345 || r.Int(2) != 12345 {
		t.Errorf("create_pool %v", r)
	}
	if r.FileSize(0) != -1 || r.Str(0) != "" || r.Int(9) != 0 {
		t.Errorf("accessors return values for the wrong argument types")
	}
}

func TestFirstCommitConfigure(t *testing.T) {
	c, s := connect(t, Options{InitialWidth: 320, InitialHeight: 200})
	reg, err := wl.GetRegistry(c)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Roundtrip(nil); err != nil {
		t.Fatal(err)
	}
	comp, err := wl.Bind(c, reg, 1, wl.CompositorInterface, 4)
	if err != nil {
		t.Fatal(err)
	}
	base, err := wl.Bind(c, reg, 3, "xdg_wm_base", 5)
	if err != nil {
		t.Fatal(err)
	}
	surf, err := wl.CreateSurface(c, wl.Compositor(comp))
	if err != nil {
		t.Fatal(err)
	}

	// xdg_wm_base.get_xdg_surface and xdg_surface.get_toplevel, spelled
	// out to keep this package free of the xdg bindings.
	xs, _ := c.NewId()
	c.Register(xs, "xdg_surface")
	c.SendRequest(wlgb.NewRequest(base, 2).PutId(xs).PutId(wlgb.Id(surf)))
	tl, _ := c.NewId()
	c.Register(tl, "xdg_toplevel")
	c.SendRequest(wlgb.NewRequest(xs, 1).PutId(tl))

	for i := 0; i < 2; i++ {
		if err := wl.Commit(c, surf); err != nil {
			t.Fatal(err)
		}
	}

	var events []wlgb.UnknownEvent
	err = c.Roundtrip(wlgb.HandlerFunc(func(ev wlgb.Event) {
		if u, ok := ev.(wlgb.UnknownEvent); ok {
			events = append(events, u)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}

	// One sequence only, however often the surface is committed.
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Sender != tl || events[0].Opcode != toplevelConfigure {
		t.Errorf("first event %+v", events[0])
	}
	if events[1].Sender != xs || events[1].Opcode != xdgSurfaceConfigure {
		t.Errorf("second event %+v", events[1])
	}
	if s.Object("xdg_toplevel") != uint32(tl) || s.Object("xdg_surface") != uint32(xs) {
		t.Errorf("roles not tracked")
	}
	if serial := s.NextSerial(); serial != 2 {
		t.Errorf("next serial %d, want 2", serial)
	}
}

func TestUnknownRequest(t *testing.T) {
	c, s := connect(t, Options{})
	if err := c.SendRequest(wlgb.NewRequest(wlgb.DisplayId, 7).PutUint32(1)); err != nil {
		t.Fatal(err)
	}
	r, err := s.WaitRequest("wl_display.7", 1)
	if err != nil {
		t.Fatal(err)
	}
	if r.Args != nil || r.Interface != "wl_display" {
		t.Errorf("got %v", r)
	}
}

func TestWaitRequestAfterDisconnect(t *testing.T) {
	c, s := connect(t, Options{})
	c.Close()
	if _, err := s.WaitRequest("wl_surface.commit", 1); err == nil {
		t.Fatalf("waited for a request on a closed connection")
	}
}

func TestMalformedRequest(t *testing.T) {
	s, conn, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	defer s.Close()

	msg := make([]byte, 8)
	byteOrder.PutUint32(msg, 1)
	byteOrder.PutUint32(msg[4:], 6<<16)
	if _, err := conn.Write(msg); err != nil {
		t.Fatal(err)
	}
	<-s.done
	if s.Err() == nil {
		t.Fatalf("a header of size 6 was accepted")
	}
}

func TestDecodeArgs(t *testing.T) {
	body := byteOrder.AppendUint32(nil, 5)
	body = byteOrder.AppendUint32(body, uint32(0xffffffff))
	body = byteOrder.AppendUint32(body, 4)
	body = append(body, "abc\x00"...)

	args, fds := decodeArgs("uis", body, []int{})
	if len(fds) != 0 || len(args) != 3 {
		t.Fatalf("got %v, %v", args, fds)
	}
	if args[0].(uint32) != 5 || args[1].(int32) != -1 || args[2].(string) != "abc" {
		t.Errorf("got %v", args)
	}

	// A short body yields what could be decoded.
	args, _ = decodeArgs("uu", body[:4], nil)
	if len(args) != 1 {
		t.Errorf("got %v", args)
	}

	// A missing descriptor is reported as size -1.
	args, _ = decodeArgs("h", nil, nil)
	if len(args) != 1 || args[0].(int64) != -1 {
		t.Errorf("got %v", args)
	}
}

func TestRequestName(t *testing.T) {
	if n := requestName("wl_surface", 6); n != "wl_surface.commit" {
		t.Errorf("got %q", n)
	}
	if n := requestName("wl_surface", 99); n != "wl_surface.99" {
		t.Errorf("got %q", n)
	}
	if n := requestName("", 0); n != ".0" {
		t.Errorf("got %q", n)
	}
}
