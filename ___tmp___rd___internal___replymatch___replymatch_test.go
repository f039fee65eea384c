package replymatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrace-go/xtrace/internal/atomtable"
	"github.com/xtrace-go/xtrace/internal/extreg"
	"github.com/xtrace-go/xtrace/internal/protodesc"
)

func TestQueueResolveStrandsOlderEntries(t *testing.T) {
	q := NewQueue()
	q.Push(&ExpectedReply{Seq: 1})
	q.Push(&ExpectedReply{Seq: 2})
	q.Push(&ExpectedReply{Seq: 3})

	e, stranded, ok := q.Resolve(3)
	require.True(t, ok)
	assert.Equal(t, uint32(3), e.Seq)
	assert.Equal(t, []uint32{1, 2}, stranded)
	assert.Equal(t, 0, q.Len())
}

func TestQueueResolveSequenceWrap(t *testing.T) {
	q := NewQueue()
	q.Push(&ExpectedReply{Seq: 65537})
	e, _, ok := q.Resolve(1)
	require.True(t, ok)
	assert.Equal(t, uint32(65537), e.Seq)
}

func TestQueueDropRemovesWithoutReturningEntry(t *testing.T) {
	q := NewQueue()
	q.Push(&ExpectedReply{Seq: 1})
	q.Push(&ExpectedReply{Seq: 2})

	stranded, ok := q.Drop(2)
	require.True(t, ok)
	assert.Equal(t, []uint32{1}, stranded)
	assert.Equal(t, 0, q.Len())
}

func TestQueueResolveUnmatchedReturnsFalse(t *testing.T) {
	q := NewQueue()
	q.Push(&ExpectedReply{Seq: 5})
	_, _, ok := q.Resolve(9)
	assert.False(t, ok)
	assert.Equal(t, 1, q.Len()) // nothing stranded when no match exists at all
}

func TestPeekLeavesMultiReplyEntryQueued(t *testing.T) {
	q := NewQueue()
	q.Push(&ExpectedReply{Seq: 4, MultiReply: true})

	_, _, ok := q.Peek(4)
	require.True(t, ok)
	assert.Equal(t, 1, q.Len())

	_, _, ok = q.Resolve(4)
	require.True(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueueDrainReturnsAllAndEmpties(t *testing.T) {
	q := NewQueue()
	q.Push(&ExpectedReply{Seq: 1})
	q.Push(&ExpectedReply{Seq: 2})

	seqs := q.Drain()
	assert.Equal(t, []uint32{1, 2}, seqs)
	assert.Equal(t, 0, q.Len())
}

func TestQueryExtensionHooksBindOnlyWhenPresent(t *testing.T) {
	tables := &protodesc.Tables{Extensions: map[string]*protodesc.Extension{
		"SHAPE": {Name: "SHAPE"},
	}}
	registry := extreg.New()

	payload := PreHookQueryExtension(tables, "SHAPE")
	assert.Equal(t, PayloadKnownExtension, payload.Kind)

	b, err := PostHookQueryExtension(tables, registry, payload, false, 128, 64, 128)
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = PostHookQueryExtension(tables, registry, payload, true, 128, 64, 128)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 128, b.MajorOpcode)
}

func TestQueryExtensionPrefixMatchPreservesLegacyBehavior(t *testing.T) {
	tables := &protodesc.Tables{Extensions: map[string]*protodesc.Extension{
		"SHAPE": {Name: "SHAPE"},
	}}
	payload := PreHookQueryExtension(tables, "SHAPE\x00EXTRA")
	assert.Equal(t, PayloadKnownExtension, payload.Kind)
	assert.Equal(t, "SHAPE", payload.ExtensionName)
}

func TestInternAtomHooksInternUnderReturnedID(t *testing.T) {
	at := atomtable.New()
	payload := PreHookInternAtom("WM_PROTOCOLS")
	a, err := PostHookInternAtom(at, payload, 332)
	require.NoError(t, err)
	assert.Equal(t, "WM_PROTOCOLS", a.Name)

	got, ok := at.ByID(332)
	require.True(t, ok)
	assert.Equal(t, "WM_PROTOCOLS", got.Name)
}

func TestApplyDenyExtensionsZeroesPresentByte(t *testing.T) {
	reply := make([]byte, 12)
	reply[8] = 1
	ApplyDenyExtensions(reply)
	assert.Equal(t, byte(0), reply[8])
}

func TestListFontsWithInfoTerminal(t *testing.T) {
	assert.True(t, IsListFontsWithInfoTerminal(0))
	assert.False(t, IsListFontsWithInfoTerminal(5))
}


