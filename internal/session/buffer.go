package session

import "fmt"

// ErrBufferFull is returned by dirBuffer.Feed when appending would exceed
// the buffer's fixed capacity — the host loop is expected to gate reads
// on count < capacity (spec.md §5 backpressure) so this should only ever
// fire if that contract is violated.
var ErrBufferFull = fmt.Errorf("session: buffer full")

// dirBuffer is one direction's byte buffer (spec.md §3 "two ring-style
// byte buffers"). Implemented as a flat slice compacted on Advance rather
// than a true ring, which is simpler and behaves identically from the
// caller's point of view for the bounded sizes this tool deals with.
//
// count is bytes present; ignore is bytes belonging to packets already
// parsed and eligible for forwarding (spec.md invariant 1: ignore <=
// count <= capacity).
type dirBuffer struct {
	data   []byte
	count  int
	ignore int
}

func newDirBuffer(capacity int) *dirBuffer {
	return &dirBuffer{data: make([]byte, capacity)}
}

// Feed appends p to the buffer.
func (b *dirBuffer) Feed(p []byte) error {
	if b.count+len(p) > len(b.data) {
		return ErrBufferFull
	}
	copy(b.data[b.count:], p)
	b.count += len(p)
	return nil
}

// Pending returns the not-yet-parsed tail the framer should inspect next.
func (b *dirBuffer) Pending() []byte {
	return b.data[b.ignore:b.count]
}

// MarkParsed records that the next n bytes of Pending belong to a packet
// that has now been decoded and logged.
func (b *dirBuffer) MarkParsed(n int) {
	b.ignore += n
}

// Forwardable returns the bytes eligible to be written to the peer.
func (b *dirBuffer) Forwardable() []byte {
	return b.data[:b.ignore]
}

// Advance removes the first n bytes (already written to the peer) and
// shifts the remainder to the front.
func (b *dirBuffer) Advance(n int) {
	copy(b.data, b.data[n:b.count])
	b.count -= n
	b.ignore -= n
}

func (b *dirBuffer) Count() int  { return b.count }
func (b *dirBuffer) Ignore() int { return b.ignore }
