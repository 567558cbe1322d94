package wlgb

import (
	"bytes"
	"testing"
)

func words(vals ...uint32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		Put32(buf[i*4:], v)
	}
	return buf
}

func TestRequestHeader(t *testing.T) {
	buf := NewRequest(7, 3).PutUint32(42).PutInt32(-1).Bytes()
	want := words(7, 16<<16|3, 42, 0xffffffff)
	if !bytes.Equal(buf, want) {
		t.Fatalf("got %v, want %v", buf, want)
	}
}

func TestRequestString(t *testing.T) {
	tests := []struct {
		s    string
		size int
	}{
		{"", 4 + 4},
		{"abc", 4 + 4},
		{"abcd", 4 + 8},
		{"wl_compositor", 4 + 16},
	}
	for _, tc := range tests {
		buf := NewRequest(2, 0).PutString(tc.s).Bytes()
		body := buf[headerSize:]
		if len(body) != tc.size {
			t.Errorf("%q: body is %d bytes, want %d", tc.s, len(body), tc.size)
			continue
		}
		if n := Get32(body); n != uint32(len(tc.s)+1) {
			t.Errorf("%q: length %d, want %d", tc.s, n, len(tc.s)+1)
		}
		if got := string(body[4 : 4+len(tc.s)]); got != tc.s {
			t.Errorf("%q: got %q", tc.s, got)
		}
		for _, b := range body[4+len(tc.s):] {
			if b != 0 {
				t.Errorf("%q: padding is not zeroed: %v", tc.s, body)
				break
			}
		}

		d := NewDecoder(body)
		if got := d.Str(); got != tc.s || d.Err() != nil {
			t.Errorf("%q: decoded %q, %v", tc.s, got, d.Err())
		}
	}
}

func TestRequestNewIdAndFds(t *testing.T) {
	req := NewRequest(2, 0).PutUint32(5).PutNewId("wl_shm", 1, 9).PutFd(3).PutInt32(100)
	d := NewDecoder(req.Bytes()[headerSize:])
	if name := d.Uint32(); name != 5 {
		t.Errorf("name %d", name)
	}
	if iface := d.Str(); iface != "wl_shm" {
		t.Errorf("interface %q", iface)
	}
	if v := d.Uint32(); v != 1 {
		t.Errorf("version %d", v)
	}
	if id := d.Id(); id != 9 {
		t.Errorf("id %d", id)
	}
	if size := d.Int32(); size != 100 {
		t.Errorf("size %d", size)
	}
	if err := d.Err(); err != nil {
		t.Fatal(err)
	}
	if fds := req.Fds(); len(fds) != 1 || fds[0] != 3 {
		t.Errorf("fds %v", fds)
	}
}

func TestDecoderArray(t *testing.T) {
	body := NewRequest(2, 0).PutArray([]byte{1, 2, 3, 4, 5}).PutUint32(6).Bytes()[headerSize:]
	d := NewDecoder(body)
	if got := d.Array(); !bytes.Equal(got, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("array %v", got)
	}
	if got := d.Uint32(); got != 6 {
		t.Errorf("trailing word %d", got)
	}
	if d.Err() != nil {
		t.Fatal(d.Err())
	}
}

func TestDecoderShort(t *testing.T) {
	d := NewDecoder(words(1))
	d.Uint32()
	if v := d.Uint32(); v != 0 {
		t.Errorf("read %d past the end", v)
	}
	if d.Err() != errShortMessage {
		t.Fatalf("got %v, want errShortMessage", d.Err())
	}

	// The string claims more bytes than there are.
	d = NewDecoder(words(10, 0))
	if s := d.Str(); s != "" || d.Err() == nil {
		t.Fatalf("got %q, %v", s, d.Err())
	}

	// No terminating NUL.
	d = NewDecoder(append(words(4), 'a', 'b', 'c', 'd'))
	if s := d.Str(); s != "" || d.Err() == nil {
		t.Fatalf("got %q, %v", s, d.Err())
	}
}

func TestPad(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 4, 3: 4, 4: 4, 5: 8} {
		if got := pad(n); got != want {
			t.Errorf("pad(%d) = %d, want %d", n, got, want)
		}
	}
}
