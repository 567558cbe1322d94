package wlgb

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// headerSize is the length of every message header: the object id followed
// by the message size and opcode packed into one word.
const headerSize = 8

// maxMessageSize is the largest message the size field can describe.
const maxMessageSize = 1<<16 - 1

// The wire protocol uses the host's byte order.
var byteOrder = binary.NativeEndian

var errShortMessage = errors.New("message too short for its arguments")

// Pad a length to align on 4 bytes.
func pad(n int) int { return (n + 3) & ^3 }

// Put32 writes v into the first four bytes of buf.
func Put32(buf []byte, v uint32) {
	byteOrder.PutUint32(buf, v)
}

// Get32 reads a word from the first four bytes of buf.
func Get32(buf []byte) uint32 {
	return byteOrder.Uint32(buf)
}

// Request is a single request being built for the wire. Arguments are
// appended in the order the interface declares them.
type Request struct {
	object Id
	opcode uint16
	buf    []byte
	fds    []int
}

// NewRequest starts a request for the given opcode on object.
func NewRequest(object Id, opcode uint16) *Request {
	return &Request{
		object: object,
		opcode: opcode,
		buf:    make([]byte, headerSize, 64),
	}
}

// PutUint32 appends an uint argument.
func (r *Request) PutUint32(v uint32) *Request {
	r.buf = byteOrder.AppendUint32(r.buf, v)
	return r
}

// PutInt32 appends an int argument.
func (r *Request) PutInt32(v int32) *Request {
	return r.PutUint32(uint32(v))
}

// PutId appends an object or new_id argument.
func (r *Request) PutId(id Id) *Request {
	return r.PutUint32(uint32(id))
}

// PutString appends a string argument: length including the terminating
// NUL, the bytes, the NUL, then padding.
func (r *Request) PutString(s string) *Request {
	r.PutUint32(uint32(len(s) + 1))
	r.buf = append(r.buf, s...)
	r.buf = append(r.buf, 0)
	r.buf = append(r.buf, make([]byte, pad(len(s)+1)-len(s)-1)...)
	return r
}

// PutArray appends an array argument.
func (r *Request) PutArray(b []byte) *Request {
	r.PutUint32(uint32(len(b)))
	r.buf = append(r.buf, b...)
	r.buf = append(r.buf, make([]byte, pad(len(b))-len(b))...)
	return r
}

// PutNewId appends an untyped new_id, which carries the interface name and
// version ahead of the id itself (used by wl_registry.bind).
func (r *Request) PutNewId(iface string, version uint32, id Id) *Request {
	return r.PutString(iface).PutUint32(version).PutId(id)
}

// PutFd attaches a file descriptor. Descriptors travel out of band and take
// no space in the message body.
func (r *Request) PutFd(fd int) *Request {
	r.fds = append(r.fds, fd)
	return r
}

// Bytes finalizes the header and returns the encoded message.
func (r *Request) Bytes() []byte {
	Put32(r.buf[0:], uint32(r.object))
	Put32(r.buf[4:], uint32(len(r.buf))<<16|uint32(r.opcode))
	return r.buf
}

// Fds returns the descriptors attached to the request.
func (r *Request) Fds() []int { return r.fds }

// Decoder reads event arguments in declaration order. The first failure
// sticks; check Err once all arguments have been read.
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder returns a decoder over an event body (the header excluded).
func NewDecoder(body []byte) *Decoder {
	return &Decoder{buf: body}
}

func (d *Decoder) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.buf) {
		d.err = errShortMessage
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

// Uint32 reads an uint argument.
func (d *Decoder) Uint32() uint32 {
	b := d.next(4)
	if b == nil {
		return 0
	}
	return Get32(b)
}

// Int32 reads an int argument.
func (d *Decoder) Int32() int32 {
	return int32(d.Uint32())
}

// Id reads an object argument.
func (d *Decoder) Id() Id {
	return Id(d.Uint32())
}

// Str reads a string argument. A zero length denotes a null string and is
// returned as "".
func (d *Decoder) Str() string {
	n := int(d.Uint32())
	if n == 0 {
		return ""
	}
	b := d.next(pad(n))
	if b == nil {
		return ""
	}
	if b[n-1] != 0 {
		d.err = errors.New("string argument is not NUL terminated")
		return ""
	}
	return string(b[:n-1])
}

// Array reads an array argument. The returned slice is a copy.
func (d *Decoder) Array() []byte {
	n := int(d.Uint32())
	b := d.next(pad(n))
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Err reports the first decoding failure, if any.
func (d *Decoder) Err() error {
	return d.err
}
