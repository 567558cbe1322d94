package window

import (
	"github.com/BurntSushi/wlgb"
	"github.com/BurntSushi/wlgb/wl"
	"github.com/BurntSushi/wlgb/xdg"
)

// Capabilities holds the globals the window is bound to. A zero handle
// means the global was not advertised (or, for the seat, was removed).
type Capabilities struct {
	Registry   wl.Registry
	Compositor wl.Compositor
	Shm        wl.Shm
	WmBase     xdg.WmBase
	Seat       wl.Seat

	// Versions holds the version each interface was bound at, and Names
	// the registry name of the global it was bound from.
	Versions map[string]uint32
	Names    map[string]uint32

	// Formats lists the pixel formats announced by wl_shm.
	Formats []wl.ShmFormat

	// SeatCapabilities is the last capabilities bitfield of the seat.
	SeatCapabilities wl.SeatCapability
}

func newCapabilities() Capabilities {
	return Capabilities{
		Versions: make(map[string]uint32),
		Names:    make(map[string]uint32),
	}
}

// Bound reports whether a global implementing iface is bound.
func (caps *Capabilities) Bound(iface string) bool {
	_, ok := caps.Names[iface]
	return ok
}

// HasFormat reports whether wl_shm announced f.
func (caps *Capabilities) HasFormat(f wl.ShmFormat) bool {
	for _, g := range caps.Formats {
		if g == f {
			return true
		}
	}
	return false
}

// binding says how to bind one interface: the highest version this module
// speaks, whether the window cannot work without it, and where the handle
// goes.
type binding struct {
	iface    string
	version  uint32
	required bool
	store    func(caps *Capabilities, id wlgb.Id)
}

var bindings = []binding{
	{wl.CompositorInterface, 4, true, func(caps *Capabilities, id wlgb.Id) {
		caps.Compositor = wl.Compositor(id)
	}},
	{wl.ShmInterface, 2, true, func(caps *Capabilities, id wlgb.Id) {
		caps.Shm = wl.Shm(id)
	}},
	{xdg.WmBaseInterface, 5, true, func(caps *Capabilities, id wlgb.Id) {
		caps.WmBase = xdg.WmBase(id)
	}},
	{wl.SeatInterface, 5, false, func(caps *Capabilities, id wlgb.Id) {
		caps.Seat = wl.Seat(id)
	}},
}

func lookupBinding(iface string) (binding, bool) {
	for _, b := range bindings {
		if b.iface == iface {
			return b, true
		}
	}
	return binding{}, false
}

// CapabilityMissingError is returned by Open when the compositor does not
// advertise a global the window needs.
type CapabilityMissingError struct {
	Interface string
}

func (e *CapabilityMissingError) Error() string {
	return "compositor does not provide " + e.Interface
}

// check returns an error naming the first required interface not bound.
func (caps *Capabilities) check() error {
	for _, b := range bindings {
		if b.required && !caps.Bound(b.iface) {
			return &CapabilityMissingError{Interface: b.iface}
		}
	}
	return nil
}

func (w *Window) handleGlobal(ev wl.RegistryGlobalEvent) {
	b, ok := lookupBinding(ev.Interface)
	if !ok {
		wlgb.Logger.Debug("global", "name", ev.Name,
			"interface", ev.Interface, "version", ev.Version)
		return
	}
	if w.caps.Bound(ev.Interface) {
		wlgb.Logger.Debug("ignoring duplicate global", "name", ev.Name,
			"interface", ev.Interface)
		return
	}

	version := min(ev.Version, b.version)
	id, err := wl.Bind(w.conn, w.caps.Registry, ev.Name, ev.Interface, version)
	if err != nil {
		w.fail(err)
		return
	}
	b.store(&w.caps, id)
	w.caps.Names[ev.Interface] = ev.Name
	w.caps.Versions[ev.Interface] = version
	wlgb.Logger.Debug("bound global", "name", ev.Name,
		"interface", ev.Interface, "version", version)
}

func (w *Window) handleGlobalRemove(ev wl.RegistryGlobalRemoveEvent) {
	for iface, name := range w.caps.Names {
		if name != ev.Name {
			continue
		}
		if b, _ := lookupBinding(iface); b.required {
			wlgb.Logger.Warn("required global removed", "interface", iface)
			return
		}
		if iface == wl.SeatInterface {
			w.releaseSeat()
		}
		return
	}
}

// releaseSeat lets go of the seat. Seats older than version 5 have no
// destructor; they are only forgotten.
func (w *Window) releaseSeat() error {
	if w.caps.Seat == 0 {
		return nil
	}
	var err error
	if w.caps.Versions[wl.SeatInterface] >= 5 {
		err = wl.ReleaseSeat(w.conn, w.caps.Seat)
	}
	w.caps.Seat = 0
	w.caps.SeatCapabilities = 0
	delete(w.caps.Names, wl.SeatInterface)
	delete(w.caps.Versions, wl.SeatInterface)
	return err
}
