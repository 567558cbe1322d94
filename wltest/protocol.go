package wltest

// Request names by interface, indexed by opcode.
var requestNames = map[string][]string{
	"wl_display":    {"sync", "get_registry"},
	"wl_registry":   {"bind"},
	"wl_compositor": {"create_surface", "create_region"},
	"wl_surface": {"destroy", "attach", "damage", "frame",
		"set_opaque_region", "set_input_region", "commit",
		"set_buffer_transform", "set_buffer_scale", "damage_buffer", "offset"},
	"wl_shm":      {"create_pool", "release"},
	"wl_shm_pool": {"create_buffer", "destroy", "resize"},
	"wl_buffer":   {"destroy"},
	"wl_seat":     {"get_pointer", "get_keyboard", "get_touch", "release"},
	"xdg_wm_base": {"destroy", "create_positioner", "get_xdg_surface", "pong"},
	"xdg_surface": {"destroy", "get_toplevel", "get_popup",
		"set_window_geometry", "ack_configure"},
	"xdg_toplevel": {"destroy", "set_parent", "set_title", "set_app_id",
		"show_window_menu", "move", "resize", "set_max_size", "set_min_size",
		"set_maximized", "unset_maximized", "set_fullscreen",
		"unset_fullscreen", "set_minimized"},
}

// Argument signatures, in the letters of the protocol XML:
// u uint, i int, o object, n new_id, s string, h fd.
// registry.bind carries an untyped new_id, spelled out as s, u and n.
var signatures = map[string]string{
	"wl_display.sync":                 "n",
	"wl_display.get_registry":         "n",
	"wl_registry.bind":                "usun",
	"wl_compositor.create_surface":    "n",
	"wl_compositor.create_region":     "n",
	"wl_surface.attach":               "oii",
	"wl_surface.damage":               "iiii",
	"wl_surface.frame":                "n",
	"wl_surface.set_buffer_scale":     "i",
	"wl_surface.damage_buffer":        "iiii",
	"wl_shm.create_pool":              "nhi",
	"wl_shm_pool.create_buffer":       "niiiiu",
	"wl_shm_pool.resize":              "i",
	"xdg_wm_base.get_xdg_surface":     "no",
	"xdg_wm_base.pong":                "u",
	"xdg_surface.get_toplevel":        "n",
	"xdg_surface.set_window_geometry": "iiii",
	"xdg_surface.ack_configure":       "u",
	"xdg_toplevel.set_title":          "s",
	"xdg_toplevel.set_app_id":         "s",
	"xdg_toplevel.set_max_size":       "ii",
	"xdg_toplevel.set_min_size":       "ii",
}

// Interfaces of objects created by a request's new_id argument. bind names
// its interface in its arguments instead.
var creates = map[string]string{
	"wl_display.sync":              "wl_callback",
	"wl_display.get_registry":      "wl_registry",
	"wl_compositor.create_surface": "wl_surface",
	"wl_compositor.create_region":  "wl_region",
	"wl_surface.frame":             "wl_callback",
	"wl_shm.create_pool":           "wl_shm_pool",
	"wl_shm_pool.create_buffer":    "wl_buffer",
	"xdg_wm_base.get_xdg_surface":  "xdg_surface",
	"xdg_surface.get_toplevel":     "xdg_toplevel",
}

// Requests that destroy the object they are sent to.
var destructors = map[string]bool{
	"wl_surface.destroy":   true,
	"wl_shm.release":       true,
	"wl_shm_pool.destroy":  true,
	"wl_buffer.destroy":    true,
	"wl_seat.release":      true,
	"xdg_wm_base.destroy":  true,
	"xdg_surface.destroy":  true,
	"xdg_toplevel.destroy": true,
}

// Event opcodes the server sends.
const (
	displayError    = 0
	displayDeleteId = 1

	registryGlobal       = 0
	registryGlobalRemove = 1

	callbackDone = 0

	shmFormat = 0

	bufferRelease = 0

	seatCapabilities = 0
	seatName         = 1

	wmBasePing = 0

	xdgSurfaceConfigure = 0

	toplevelConfigure       = 0
	toplevelClose           = 1
	toplevelConfigureBounds = 2
)
