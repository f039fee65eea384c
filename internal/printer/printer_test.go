package printer

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrace-go/xtrace/internal/atomtable"
	"github.com/xtrace-go/xtrace/internal/protodesc"
)

func newPrinter(t *testing.T) (*Printer, *atomtable.Table) {
	t.Helper()
	at := atomtable.New()
	return New(binary.LittleEndian, at, 3), at
}

func TestRenderFixedFields(t *testing.T) {
	pr, _ := newPrinter(t)
	list := &protodesc.ParamList{Params: []*protodesc.Parameter{
		{Offset: 0, Name: "window", Type: protodesc.FieldCard32},
		{Offset: 4, Name: "x", Type: protodesc.FieldInt16},
	}}
	data := make([]byte, 6)
	binary.LittleEndian.PutUint32(data[0:], 0xdeadbeef)
	binary.LittleEndian.PutUint16(data[4:], uint16(int16(-5)))

	out, err := pr.Render(list, data)
	require.NoError(t, err)
	assert.Equal(t, "window=0xdeadbeef;x=-5;", out)
}

func TestRenderEnumUnknownFallsBackToHex(t *testing.T) {
	pr, _ := newPrinter(t)
	consts := &protodesc.ConstantSet{Name: "Kind", Members: []protodesc.Constant{{Value: 1, Name: "A"}}}
	list := &protodesc.ParamList{Params: []*protodesc.Parameter{
		{Offset: 0, Name: "kind", Type: protodesc.FieldEnum8, Consts: consts},
	}}
	out, err := pr.Render(list, []byte{9})
	require.NoError(t, err)
	assert.Equal(t, "kind=0x9;", out)
}

func TestRenderBitmaskJoinsNamesAndRemainder(t *testing.T) {
	pr, _ := newPrinter(t)
	consts := &protodesc.ConstantSet{
		Name: "Mask", IsBitmask: true,
		Members: []protodesc.Constant{{Value: 1, Name: "Read"}, {Value: 2, Name: "Write"}},
	}
	list := &protodesc.ParamList{Params: []*protodesc.Parameter{
		{Offset: 0, Name: "mask", Type: protodesc.FieldBitmask8, Consts: consts},
	}}
	out, err := pr.Render(list, []byte{0x7})
	require.NoError(t, err)
	assert.Equal(t, "mask=Read,Write,0x4;", out)
}

func TestRenderStringUsesStoredLength(t *testing.T) {
	pr, _ := newPrinter(t)
	list := &protodesc.ParamList{Params: []*protodesc.Parameter{
		{Offset: 0, Name: "n", Type: protodesc.FieldStore8},
		{Offset: 1, Name: "name", Type: protodesc.FieldString8},
	}}
	data := append([]byte{5}, []byte("hello")...)
	out, err := pr.Render(list, data)
	require.NoError(t, err)
	assert.Equal(t, `n=5;name="hello";`, out)
}

func TestRenderListCapsAtMaxLength(t *testing.T) {
	pr, _ := newPrinter(t)
	list := &protodesc.ParamList{Params: []*protodesc.Parameter{
		{Offset: 0, Name: "n", Type: protodesc.FieldStore8},
		{Offset: 1, Name: "items", Type: protodesc.FieldListCard8},
	}}
	data := append([]byte{5}, []byte{1, 2, 3, 4, 5}...)
	out, err := pr.Render(list, data)
	require.NoError(t, err)
	assert.Equal(t, "n=5;items=[1,2,3,...];", out)
}

func TestRenderAtomResolvesPredefinedName(t *testing.T) {
	pr, at := newPrinter(t)
	id, _ := at.ByName("STRING")
	list := &protodesc.ParamList{Params: []*protodesc.Parameter{
		{Offset: 0, Name: "type", Type: protodesc.FieldAtom},
	}}
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, id.ID)
	out, err := pr.Render(list, data)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("type=0x%x(%q);", id.ID, "STRING"), out)
}

func TestRenderSetSizeTruncatesPacket(t *testing.T) {
	pr, _ := newPrinter(t)
	list := &protodesc.ParamList{Params: []*protodesc.Parameter{
		{Offset: 0, Name: "n", Type: protodesc.FieldStore8},
		{Type: protodesc.FieldSetSize, IntOperand: 1},
		{Offset: 1, Name: "extra", Type: protodesc.FieldCard8},
	}}
	// n=1 truncates the packet to 1 byte, so reading "extra" at offset 1
	// runs past the truncated length even though the real buffer is longer.
	data := []byte{1, 9, 9, 9}
	_, err := pr.Render(list, data)
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestRenderIfChainTakesFirstMatchAndSkipsRest(t *testing.T) {
	pr, _ := newPrinter(t)
	list := &protodesc.ParamList{Params: []*protodesc.Parameter{
		{Offset: 0, Type: protodesc.FieldIf8, IfLiteral: 1,
			SubParams: &protodesc.ParamList{Params: []*protodesc.Parameter{
				{Offset: 1, Name: "a", Type: protodesc.FieldCard8},
			}}},
		{Offset: 0, Type: protodesc.FieldIf8, IfLiteral: 0,
			SubParams: &protodesc.ParamList{Params: []*protodesc.Parameter{
				{Offset: 1, Name: "b", Type: protodesc.FieldCard8},
			}}},
		{Type: protodesc.FieldElse,
			SubParams: &protodesc.ParamList{Params: []*protodesc.Parameter{
				{Offset: 1, Name: "c", Type: protodesc.FieldCard8},
			}}},
	}}
	out, err := pr.Render(list, []byte{0, 0xaa})
	require.NoError(t, err)
	assert.Equal(t, "b=0xaa;", out)
}

func TestRenderShortPacketErrors(t *testing.T) {
	pr, _ := newPrinter(t)
	list := &protodesc.ParamList{Params: []*protodesc.Parameter{
		{Offset: 0, Name: "window", Type: protodesc.FieldCard32},
	}}
	_, err := pr.Render(list, []byte{1, 2})
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestRenderValueListWalksBitmaskInLockstep(t *testing.T) {
	pr, _ := newPrinter(t)
	values := &protodesc.ValueList{Values: []protodesc.Value{
		{Bit: 1, Name: "background", Type: protodesc.FieldCard32},
		{Bit: 2, Name: "border", Type: protodesc.FieldCard32},
		{Bit: 4, Name: "override", Type: protodesc.FieldCard8},
	}}
	list := &protodesc.ParamList{Params: []*protodesc.Parameter{
		{Offset: 0, Name: "mask", Type: protodesc.FieldBitmask32, Consts: &protodesc.ConstantSet{IsBitmask: true}},
		{Offset: 4, Name: "list", Type: protodesc.FieldListValue, Values: values},
	}}
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], 0x5) // background + override
	binary.LittleEndian.PutUint32(data[4:], 0x11223344)
	data[8] = 1

	out, err := pr.Render(list, data)
	require.NoError(t, err)
	assert.Equal(t, "mask=0x5;list=background=287454020,override=1;", out)
}
