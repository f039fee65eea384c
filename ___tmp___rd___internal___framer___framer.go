// Package framer implements the per-direction packet boundary state
// machines spec.md §4.2 describes: ClientFramer walks the client→server
// byte stream, ServerFramer the server→client one. Neither copies or
// decodes bytes itself — each returns how many of the buffered bytes
// belong to exactly one packet, leaving the caller (internal/session) to
// hand that range to the reply matcher and printer.
//
// Grounded on _examples/cypherbits-sandboxed-tor-browser's
// consumeClientConnectionSetup/consumeClientRequest/
// consumeServerConnectionSetup/consumeServerReply state functions in
// internal/sandbox/x11/surrogate.go, restated as explicit state values
// instead of that file's linear "advance the index as you go" style.
package framer

import "encoding/binary"

// State is a per-direction framer state (spec.md §4.2: start/normal/lost).
type State int

const (
	StateStart State = iota
	StateNormal
	StateLost
)

// Result reports how many of the supplied leading bytes form exactly one
// packet. Need is set (and PacketLen left at 0) when more bytes must
// arrive before a boundary can be determined.
type Result struct {
	PacketLen int  // bytes belonging to this packet; 0 if not yet known
	Need      int  // additional bytes required before PacketLen can be computed
	BigOffset int  // 4 if this packet is a big-request (spec.md §4.2 "+4 adjustment"), else 0
}

func pad4(n int) int { return (n + 3) &^ 3 }

// ClientFramer frames the client→server direction.
type ClientFramer struct {
	State State
	Order binary.ByteOrder
}

// NewClientFramer returns a framer waiting for the handshake byte-order byte.
func NewClientFramer() *ClientFramer {
	return &ClientFramer{State: StateStart}
}

// Next inspects buf[:count] and reports the next packet boundary, or that
// more bytes are needed. It never reads past count.
func (f *ClientFramer) Next(buf []byte, count int) (Result, error) {
	switch f.State {
	case StateLost:
		return Result{PacketLen: count}, nil // drain silently

	case StateStart:
		if count < 12 {
			return Result{Need: 12 - count}, nil
		}
		switch buf[0] {
		case 'B':
			f.Order = binary.BigEndian
		case 'l':
			f.Order = binary.LittleEndian
		default:
			f.State = StateLost
			return Result{PacketLen: count}, nil
		}
		nameLen := int(f.Order.Uint16(buf[8:10]))
		dataLen := int(f.Order.Uint16(buf[10:12]))
		total := 12 + pad4(nameLen) + pad4(dataLen)
		if count < total {
			return Result{Need: total - count}, nil
		}
		f.State = StateNormal
		return Result{PacketLen: total}, nil

	default: // StateNormal
		if count < 4 {
			return Result{Need: 4 - count}, nil
		}
		units := int(f.Order.Uint16(buf[2:4]))
		if units != 0 {
			total := units * 4
			if count < total {
				return Result{Need: total - count}, nil
			}
			return Result{PacketLen: total}, nil
		}
		// Big request: the 16-bit length field is 0, true length is the
		// following 32-bit word (spec.md §4.2, E4).
		if count < 8 {
			return Result{Need: 8 - count}, nil
		}
		units32 := f.Order.Uint32(buf[4:8])
		if units32 < 2 {
			f.State = StateLost
			return Result{PacketLen: count}, nil
		}
		total := int(units32) * 4
		if count < total {
			return Result{Need: total - count}, nil
		}
		return Result{PacketLen: total, BigOffset: 4}, nil
	}
}

// ServerFramer frames the server→client direction.
type ServerFramer struct {
	State State
	Order binary.ByteOrder
}

func NewServerFramer(order binary.ByteOrder) *ServerFramer {
	return &ServerFramer{State: StateStart, Order: order}
}

// EventIsGeneric reports, given a fully-buffered event packet, whether its
// code marks it an X Generic Event (spec.md §4.2 server normal state,
// GLOSSARY "Generic event"). GenericEvent's code is 35 in the core
// protocol; extensions reuse the same code, never allocate their own.
const GenericEventCode = 35

// Next inspects buf[:count] and reports the next packet boundary.
func (f *ServerFramer) Next(buf []byte, count int) (Result, error) {
	switch f.State {
	case StateLost:
		return Result{PacketLen: count}, nil

	case StateStart:
		if count < 8 {
			return Result{Need: 8 - count}, nil
		}
		addl := int(f.Order.Uint16(buf[6:8]))
		total := 8 + addl*4
		if count < total {
			return Result{Need: total - count}, nil
		}
		f.State = StateNormal
		return Result{PacketLen: total}, nil

	default: // StateNormal
		if count < 1 {
			return Result{Need: 1}, nil
		}
		switch buf[0] {
		case 0: // error: fixed 32 bytes
			if count < 32 {
				return Result{Need: 32 - count}, nil
			}
			return Result{PacketLen: 32}, nil
		case 1: // reply: 32 + 4*len32[4]
			return f.lengthPrefixed(buf, count)
		default: // event
			if count < 1 {
				return Result{Need: 1}, nil
			}
			if buf[0]&0x7f == GenericEventCode {
				return f.lengthPrefixed(buf, count)
			}
			if count < 32 {
				return Result{Need: 32 - count}, nil
			}
			return Result{PacketLen: 32}, nil
		}
	}
}

func (f *ServerFramer) lengthPrefixed(buf []byte, count int) (Result, error) {
	if count < 8 {
		return Result{Need: 8 - count}, nil
	}
	extra := int(f.Order.Uint32(buf[4:8]))
	total := 32 + extra*4
	if count < total {
		return Result{Need: total - count}, nil
	}
	return Result{PacketLen: total}, nil
}


