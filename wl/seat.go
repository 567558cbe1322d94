package wl

import (
	"github.com/BurntSushi/wlgb"
)

// Seat is a wl_seat object. This module binds it but handles no input.
type Seat wlgb.Id

// SeatCapability is a bit of the wl_seat capabilities bitfield.
type SeatCapability uint32

const (
	SeatCapabilityPointer  SeatCapability = 1
	SeatCapabilityKeyboard SeatCapability = 2
	SeatCapabilityTouch    SeatCapability = 4
)

const seatReleaseRequest = 3

const (
	seatCapabilitiesEvent = 0
	seatNameEvent         = 1
)

// ReleaseSeat releases seat. It needs version 5 of wl_seat.
func ReleaseSeat(c *wlgb.Conn, seat Seat) error {
	err := c.SendRequest(wlgb.NewRequest(wlgb.Id(seat), seatReleaseRequest))
	c.Destroyed(wlgb.Id(seat))
	return err
}

// SeatCapabilitiesEvent reports which input devices the seat has.
type SeatCapabilitiesEvent struct {
	Seat         Seat
	Capabilities SeatCapability
}

func (SeatCapabilitiesEvent) ImplementsEvent() {}

// SeatNameEvent reports the seat's name.
type SeatNameEvent struct {
	Seat Seat
	Name string
}

func (SeatNameEvent) ImplementsEvent() {}

func init() {
	wlgb.RegisterEvent(SeatInterface, seatCapabilitiesEvent,
		func(sender wlgb.Id, body []byte) (wlgb.Event, error) {
			d := wlgb.NewDecoder(body)
			ev := SeatCapabilitiesEvent{
				Seat:         Seat(sender),
				Capabilities: SeatCapability(d.Uint32()),
			}
			return ev, d.Err()
		})
	wlgb.RegisterEvent(SeatInterface, seatNameEvent,
		func(sender wlgb.Id, body []byte) (wlgb.Event, error) {
			d := wlgb.NewDecoder(body)
			ev := SeatNameEvent{Seat: Seat(sender), Name: d.Str()}
			return ev, d.Err()
		})
}
