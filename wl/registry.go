// Package wl binds the core Wayland protocol interfaces used by a shared
// memory client: wl_registry, wl_compositor, wl_surface, wl_shm,
// wl_shm_pool, wl_buffer and wl_seat.
//
// Requests are plain functions taking the connection first, one package per
// protocol. Requests creating an object allocate and register its id and
// return it typed.
package wl

import (
	"github.com/BurntSushi/wlgb"
)

// Interface names as advertised by the registry.
const (
	RegistryInterface   = "wl_registry"
	CompositorInterface = "wl_compositor"
	SurfaceInterface    = "wl_surface"
	ShmInterface        = "wl_shm"
	ShmPoolInterface    = "wl_shm_pool"
	BufferInterface     = "wl_buffer"
	SeatInterface       = "wl_seat"
)

// Registry is a wl_registry object.
type Registry wlgb.Id

const displayGetRegistryRequest = 1

const registryBindRequest = 0

const (
	registryGlobalEvent       = 0
	registryGlobalRemoveEvent = 1
)

// GetRegistry asks the compositor for the registry. The compositor answers
// with one RegistryGlobalEvent per global.
func GetRegistry(c *wlgb.Conn) (Registry, error) {
	id, err := c.NewId()
	if err != nil {
		return 0, err
	}
	c.Register(id, RegistryInterface)

	req := wlgb.NewRequest(wlgb.DisplayId, displayGetRegistryRequest).PutId(id)
	if err := c.SendRequest(req); err != nil {
		return 0, err
	}
	return Registry(id), nil
}

// Bind binds the global called name to a new object implementing iface at
// the given version. The caller converts the id to the matching type.
func Bind(c *wlgb.Conn, reg Registry, name uint32, iface string,
	version uint32) (wlgb.Id, error) {

	id, err := c.NewId()
	if err != nil {
		return 0, err
	}
	c.Register(id, iface)

	req := wlgb.NewRequest(wlgb.Id(reg), registryBindRequest).
		PutUint32(name).
		PutNewId(iface, version, id)
	if err := c.SendRequest(req); err != nil {
		return 0, err
	}
	return id, nil
}

// RegistryGlobalEvent announces a global.
type RegistryGlobalEvent struct {
	Registry  Registry
	Name      uint32
	Interface string
	Version   uint32
}

func (RegistryGlobalEvent) ImplementsEvent() {}

func newRegistryGlobalEvent(sender wlgb.Id, body []byte) (wlgb.Event, error) {
	d := wlgb.NewDecoder(body)
	ev := RegistryGlobalEvent{Registry: Registry(sender)}
	ev.Name = d.Uint32()
	ev.Interface = d.Str()
	ev.Version = d.Uint32()
	return ev, d.Err()
}

// RegistryGlobalRemoveEvent announces that a global went away.
type RegistryGlobalRemoveEvent struct {
	Registry Registry
	Name     uint32
}

func (RegistryGlobalRemoveEvent) ImplementsEvent() {}

func newRegistryGlobalRemoveEvent(sender wlgb.Id, body []byte) (wlgb.Event, error) {
	d := wlgb.NewDecoder(body)
	ev := RegistryGlobalRemoveEvent{Registry: Registry(sender), Name: d.Uint32()}
	return ev, d.Err()
}

func init() {
	wlgb.RegisterEvent(RegistryInterface, registryGlobalEvent, newRegistryGlobalEvent)
	wlgb.RegisterEvent(RegistryInterface, registryGlobalRemoveEvent, newRegistryGlobalRemoveEvent)
}
