package wlgb

// Event is an interface that can contain any of the events sent by the
// compositor. Use a type switch to extract the Event structs.
type Event interface {
	ImplementsEvent()
}

// Handler receives events from Dispatch and the round trip helpers.
type Handler interface {
	HandleEvent(ev Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ev Event)

func (f HandlerFunc) HandleEvent(ev Event) { f(ev) }

// NewEventFuncs maps an interface name and event opcode to the function that
// decodes it. Protocol packages fill it from their init functions.
var NewEventFuncs = map[string]map[uint16]func(sender Id, body []byte) (Event, error){}

// RegisterEvent installs the decoder for one event of an interface.
func RegisterEvent(iface string, opcode uint16,
	fn func(sender Id, body []byte) (Event, error)) {

	m, ok := NewEventFuncs[iface]
	if !ok {
		m = make(map[uint16]func(Id, []byte) (Event, error))
		NewEventFuncs[iface] = m
	}
	m[opcode] = fn
}

// UnknownEvent is delivered for events this module has no decoder for,
// typically those added by a newer interface version.
type UnknownEvent struct {
	Sender    Id
	Interface string
	Opcode    uint16
}

func (UnknownEvent) ImplementsEvent() {}

// DoneEvent is wl_callback.done.
type DoneEvent struct {
	Callback Id
	Data     uint32
}

func (DoneEvent) ImplementsEvent() {}

const callbackDoneEvent = 0

func newDoneEvent(sender Id, body []byte) (Event, error) {
	d := NewDecoder(body)
	ev := DoneEvent{Callback: sender, Data: d.Uint32()}
	return ev, d.Err()
}

func init() {
	RegisterEvent("wl_callback", callbackDoneEvent, newDoneEvent)
}
