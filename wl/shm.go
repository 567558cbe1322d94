package wl

import (
	"fmt"

	"github.com/BurntSushi/wlgb"
)

// Shm is a wl_shm object.
type Shm wlgb.Id

// ShmPool is a wl_shm_pool object.
type ShmPool wlgb.Id

// Buffer is a wl_buffer object.
type Buffer wlgb.Id

// ShmFormat is a pixel format of wl_shm. Only the two formats every
// compositor must support are named.
type ShmFormat uint32

const (
	ShmFormatArgb8888 ShmFormat = 0
	ShmFormatXrgb8888 ShmFormat = 1
)

func (f ShmFormat) String() string {
	switch f {
	case ShmFormatArgb8888:
		return "argb8888"
	case ShmFormatXrgb8888:
		return "xrgb8888"
	}
	// Every other format is a little-endian fourcc code.
	return fmt.Sprintf("%c%c%c%c", byte(f), byte(f>>8), byte(f>>16), byte(f>>24))
}

const (
	shmCreatePoolRequest = 0
	shmReleaseRequest    = 1
)

const shmFormatEvent = 0

const (
	shmPoolCreateBufferRequest = 0
	shmPoolDestroyRequest      = 1
)

const bufferDestroyRequest = 0

const bufferReleaseEvent = 0

// CreatePool creates a pool over size bytes of the memory behind fd. The
// descriptor is sent to the compositor, which maps it; the caller may close
// its copy as soon as this returns.
func CreatePool(c *wlgb.Conn, shm Shm, fd int, size int32) (ShmPool, error) {
	id, err := c.NewId()
	if err != nil {
		return 0, err
	}
	c.Register(id, ShmPoolInterface)

	req := wlgb.NewRequest(wlgb.Id(shm), shmCreatePoolRequest).
		PutId(id).
		PutFd(fd).
		PutInt32(size)
	if err := c.SendRequest(req); err != nil {
		return 0, err
	}
	return ShmPool(id), nil
}

// ReleaseShm releases shm. It needs version 2 of wl_shm.
func ReleaseShm(c *wlgb.Conn, shm Shm) error {
	err := c.SendRequest(wlgb.NewRequest(wlgb.Id(shm), shmReleaseRequest))
	c.Destroyed(wlgb.Id(shm))
	return err
}

// CreateBuffer creates a buffer from a region of pool.
func CreateBuffer(c *wlgb.Conn, pool ShmPool, offset, width, height, stride int32,
	format ShmFormat) (Buffer, error) {

	id, err := c.NewId()
	if err != nil {
		return 0, err
	}
	c.Register(id, BufferInterface)

	req := wlgb.NewRequest(wlgb.Id(pool), shmPoolCreateBufferRequest).
		PutId(id).
		PutInt32(offset).
		PutInt32(width).
		PutInt32(height).
		PutInt32(stride).
		PutUint32(uint32(format))
	if err := c.SendRequest(req); err != nil {
		return 0, err
	}
	return Buffer(id), nil
}

// DestroyPool destroys pool. Buffers created from it stay valid.
func DestroyPool(c *wlgb.Conn, pool ShmPool) error {
	err := c.SendRequest(wlgb.NewRequest(wlgb.Id(pool), shmPoolDestroyRequest))
	c.Destroyed(wlgb.Id(pool))
	return err
}

// DestroyBuffer destroys buf.
func DestroyBuffer(c *wlgb.Conn, buf Buffer) error {
	err := c.SendRequest(wlgb.NewRequest(wlgb.Id(buf), bufferDestroyRequest))
	c.Destroyed(wlgb.Id(buf))
	return err
}

// ShmFormatEvent advertises a pixel format the compositor accepts.
type ShmFormatEvent struct {
	Shm    Shm
	Format ShmFormat
}

func (ShmFormatEvent) ImplementsEvent() {}

// BufferReleaseEvent is sent when the compositor no longer reads from buf.
type BufferReleaseEvent struct {
	Buffer Buffer
}

func (BufferReleaseEvent) ImplementsEvent() {}

func init() {
	wlgb.RegisterEvent(ShmInterface, shmFormatEvent,
		func(sender wlgb.Id, body []byte) (wlgb.Event, error) {
			d := wlgb.NewDecoder(body)
			ev := ShmFormatEvent{Shm: Shm(sender), Format: ShmFormat(d.Uint32())}
			return ev, d.Err()
		})
	wlgb.RegisterEvent(BufferInterface, bufferReleaseEvent,
		func(sender wlgb.Id, body []byte) (wlgb.Event, error) {
			return BufferReleaseEvent{Buffer: Buffer(sender)}, nil
		})
}
