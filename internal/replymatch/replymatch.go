// Package replymatch implements the sequence-indexed expected-reply queue
// spec.md §4.3 describes, plus its three special hooks (QueryExtension,
// InternAtom, ListFontsWithInfo).
//
// Grounded on _examples/cypherbits-sandboxed-tor-browser's
// internal/sandbox/x11/surrogate.go replyRewriteQueue (a FIFO of pending
// sequence numbers awaiting a specific reply shape) and spec.md §3's
// Expected-reply record.
package replymatch

import (
	"fmt"

	"github.com/xtrace-go/xtrace/internal/atomtable"
	"github.com/xtrace-go/xtrace/internal/extreg"
	"github.com/xtrace-go/xtrace/internal/protodesc"
)

// PayloadKind tags what an ExpectedReply's special hook, if any, is
// waiting to do once the reply arrives (spec.md §3).
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadAtom
	PayloadKnownExtension
	PayloadUnknownExtension
)

// Payload carries whatever a pre-hook captured from the request, for the
// matching post-hook to act on.
type Payload struct {
	Kind          PayloadKind
	AtomName      string
	ExtensionName string
}

// ExpectedReply links one outstanding request to its future reply.
type ExpectedReply struct {
	Seq     uint32
	Request *protodesc.Request
	Payload Payload
	Stack   []uint64 // request-time stack values saved for the reply-time hook

	// MultiReply marks a request (ListFontsWithInfo) whose reply is
	// actually a stream sharing one sequence number; the queue entry is
	// only popped once the caller confirms the terminal reply.
	MultiReply bool
}

// Queue is the per-connection FIFO of outstanding requests awaiting a
// reply, oldest first.
type Queue struct {
	entries []*ExpectedReply
}

func NewQueue() *Queue { return &Queue{} }

// Push enqueues e. Callers must push in strictly increasing Seq order
// (spec.md invariant 3).
func (q *Queue) Push(e *ExpectedReply) {
	q.entries = append(q.entries, e)
}

// Peek finds the entry whose low 16 bits of sequence equal seq16,
// stranding (and dropping) every older entry along the way, but leaves
// the match itself in the queue. Returns the stranded sequences for a
// diagnostic and ok=false if nothing matched.
func (q *Queue) Peek(seq16 uint16) (*ExpectedReply, []uint32, bool) {
	idx := q.indexOf(seq16)
	if idx < 0 {
		return nil, nil, false
	}
	stranded := q.strandBefore(idx)
	return q.entries[0], stranded, true
}

// Resolve is Peek followed by removing the matched entry — the normal
// case, one reply fully answers one request.
func (q *Queue) Resolve(seq16 uint16) (*ExpectedReply, []uint32, bool) {
	e, stranded, ok := q.Peek(seq16)
	if !ok {
		return nil, stranded, false
	}
	q.entries = q.entries[1:]
	return e, stranded, true
}

// Drop removes the matching entry (and strands anything older) without
// returning it — used when an error carries the sequence number instead
// of a reply (spec.md §4.3 "Errors carrying a sequence number drop the
// matching entry without emitting a reply").
func (q *Queue) Drop(seq16 uint16) ([]uint32, bool) {
	_, stranded, ok := q.Resolve(seq16)
	return stranded, ok
}

func (q *Queue) indexOf(seq16 uint16) int {
	for i, e := range q.entries {
		if uint16(e.Seq) == seq16 {
			return i
		}
	}
	return -1
}

func (q *Queue) strandBefore(idx int) []uint32 {
	if idx == 0 {
		return nil
	}
	stranded := make([]uint32, idx)
	for i := 0; i < idx; i++ {
		stranded[i] = q.entries[i].Seq
	}
	q.entries = q.entries[idx:]
	return stranded
}

// Len reports the number of outstanding entries.
func (q *Queue) Len() int { return len(q.entries) }

// Drain empties the queue and returns every outstanding entry's sequence
// number, oldest first — used when a connection is torn down with
// requests still awaiting a reply that will now never arrive.
func (q *Queue) Drain() []uint32 {
	out := make([]uint32, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.Seq
	}
	q.entries = nil
	return out
}

// --- QueryExtension hook -----------------------------------------------

// PreHookQueryExtension resolves name against the finalised tables,
// tagging the resulting payload known or unknown (spec.md §4.5 /
// GLOSSARY "Extension"). Per spec.md §9 Open Question 2, name matching is
// prefix equality against the built-in names up to the client-supplied
// length — preserved here via a simple prefix scan rather than exact
// equality.
func PreHookQueryExtension(tables *protodesc.Tables, name string) Payload {
	for known := range tables.Extensions {
		if len(name) >= len(known) && name[:len(known)] == known {
			return Payload{Kind: PayloadKnownExtension, ExtensionName: known}
		}
	}
	return Payload{Kind: PayloadUnknownExtension, ExtensionName: name}
}

// PostHookQueryExtension binds the learned opcode triple once the server
// reports present=true. present=false leaves the registry untouched
// (spec.md boundary test "present=0 must not bind an opcode").
func PostHookQueryExtension(tables *protodesc.Tables, registry *extreg.Registry, payload Payload, present bool, major, firstEvent, firstError int) (*extreg.Binding, error) {
	if !present {
		return nil, nil
	}
	if payload.Kind != PayloadKnownExtension && payload.Kind != PayloadUnknownExtension {
		return nil, fmt.Errorf("replymatch: QueryExtension post-hook called on a non-extension payload")
	}
	desc := tables.Extensions[payload.ExtensionName] // nil for an unknown name, Bind accepts that
	return registry.Bind(payload.ExtensionName, major, firstEvent, firstError, desc)
}

// ApplyDenyExtensions forces the "present" byte (offset 8 of a
// QueryExtension reply) to 0, the core's one permitted stream mutation
// (spec.md §1, §6).
func ApplyDenyExtensions(reply []byte) {
	if len(reply) > 8 {
		reply[8] = 0
	}
}

// --- InternAtom hook -----------------------------------------------------

// PreHookInternAtom captures the requested name; the atom isn't owned by
// the connection table until the reply interns it (spec.md §9 "Atom
// lifetime": pending, owned by the expected-reply entry until then).
func PreHookInternAtom(name string) Payload {
	return Payload{Kind: PayloadAtom, AtomName: name}
}

// PostHookInternAtom interns payload's name under the id the server
// returned, transferring ownership into the connection's atom table.
func PostHookInternAtom(atoms *atomtable.Table, payload Payload, id uint32) (atomtable.Atom, error) {
	if payload.Kind != PayloadAtom {
		return atomtable.Atom{}, fmt.Errorf("replymatch: InternAtom post-hook called on a non-atom payload")
	}
	return atoms.Intern(id, payload.AtomName), nil
}

// --- ListFontsWithInfo hook -----------------------------------------------

// IsListFontsWithInfoTerminal reports whether a ListFontsWithInfo reply is
// the terminal, empty-name one, which is logged once as the end of the
// list and releases the queue entry (spec.md §4.3, boundary test).
func IsListFontsWithInfoTerminal(nameLen int) bool {
	return nameLen == 0
}
