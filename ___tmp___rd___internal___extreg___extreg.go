// Package extreg is the per-connection extension registry (spec.md §4.5):
// it binds a major opcode/first-event/first-error triple, learned from a
// QueryExtension reply, to either a known extension descriptor (one the
// embedded .proto corpus describes) or an unknown one (a placeholder that
// still lets the tracer say "SHAPE request, unrecognised" instead of
// silently misdecoding it as core).
package extreg

import (
	"fmt"

	"github.com/xtrace-go/xtrace/internal/protodesc"
)

// Binding is one learned extension (spec.md §3 "known extension list" /
// "unknown extension list" — both live here, distinguished by Desc==nil).
type Binding struct {
	Name        string
	MajorOpcode int
	FirstEvent  int
	FirstError  int
	Desc        *protodesc.Extension // nil for an unknown (no descriptor) extension
}

// Registry holds every extension bound on one connection. Zero value is
// ready to use.
type Registry struct {
	byOpcode map[int]*Binding
}

func New() *Registry {
	return &Registry{byOpcode: make(map[int]*Binding)}
}

// Bind records a learned extension. It is an error to rebind an opcode
// already in use (spec.md invariant 5 "no two known-extension records on
// the same connection share a major opcode" — extended here to cover
// unknown bindings too, since both occupy the same opcode space).
func (r *Registry) Bind(name string, major, firstEvent, firstError int, desc *protodesc.Extension) (*Binding, error) {
	if existing, ok := r.byOpcode[major]; ok {
		return nil, fmt.Errorf("extreg: major opcode %d already bound to %q, cannot rebind to %q", major, existing.Name, name)
	}
	b := &Binding{Name: name, MajorOpcode: major, FirstEvent: firstEvent, FirstError: firstError, Desc: desc}
	r.byOpcode[major] = b
	return b, nil
}

// ByName does a prefix-insensitive... no — an exact scan for a previously
// bound extension, used by the QueryExtension pre-hook to detect a repeat
// query for a name already resolved on this connection.
func (r *Registry) ByName(name string) (*Binding, bool) {
	for _, b := range r.byOpcode {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Lookup routes a request by its major opcode (spec.md §4.5 "routes
// request decoding by major_opcode"); the caller then resolves the minor
// opcode (request byte 1) via Binding.RequestByMinor.
func (r *Registry) Lookup(majorOpcode int) (*Binding, bool) {
	b, ok := r.byOpcode[majorOpcode]
	return b, ok
}

// RequestByMinor resolves req's sub-request descriptor given the minor
// opcode found at request byte 1.
func (b *Binding) RequestByMinor(minor int) (*protodesc.Request, bool) {
	if b.Desc == nil || minor < 0 || minor >= len(b.Desc.Requests) {
		return nil, false
	}
	return b.Desc.Requests[minor], true
}

// LookupEvent finds the binding whose event range covers code (spec.md
// §4.5 "events 64..127 looked up by code - first_event < numevents").
func (r *Registry) LookupEvent(code int) (*Binding, *protodesc.Event, bool) {
	for _, b := range r.byOpcode {
		if b.Desc == nil {
			continue
		}
		idx := code - b.FirstEvent
		if idx >= 0 && idx < len(b.Desc.Events) {
			return b, b.Desc.Events[idx], true
		}
	}
	return nil, nil, false
}

// LookupError finds the binding whose error range covers code.
func (r *Registry) LookupError(code int) (*Binding, *protodesc.ErrorDesc, bool) {
	for _, b := range r.byOpcode {
		if b.Desc == nil {
			continue
		}
		idx := code - b.FirstError
		if idx >= 0 && idx < len(b.Desc.Errors) {
			return b, b.Desc.Errors[idx], true
		}
	}
	return nil, nil, false
}

// LookupGeneric resolves an X Generic Event by the extension opcode and
// event-type fields carried inside the packet (spec.md §4.5).
func (r *Registry) LookupGeneric(extOpcode, eventType int) (*Binding, *protodesc.Event, bool) {
	b, ok := r.byOpcode[extOpcode]
	if !ok || b.Desc == nil || b.Desc.GenericEvents == nil {
		return b, nil, false
	}
	ev, ok := b.Desc.GenericEvents[eventType]
	return b, ev, ok
}

// Known returns every bound extension that resolved to a descriptor.
func (r *Registry) Known() []*Binding {
	var out []*Binding
	for _, b := range r.byOpcode {
		if b.Desc != nil {
			out = append(out, b)
		}
	}
	return out
}


