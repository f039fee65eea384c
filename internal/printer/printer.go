// Package printer renders a decoded wire record (spec.md §3's Parameter
// list matched against a byte range) into the "name=value;" text xtrace
// emits per request, reply, and event.
//
// Grounded on _examples/original_source/translate.c's parameter-finalize
// pass (the register semantics: stored count, pushed stack, format width)
// and on spec.md §4.4's single left-to-right walk.
package printer

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xtrace-go/xtrace/internal/atomtable"
	"github.com/xtrace-go/xtrace/internal/protodesc"
)

// ErrShortPacket is returned when a parameter's declared offset and size
// fall outside the supplied byte range.
var ErrShortPacket = fmt.Errorf("printer: packet too short")

// Printer renders ParamLists against raw bytes for one connection. It holds
// no per-call state; the same *Printer is shared by every Render call on a
// connection, while the register state (store/stack/format) lives in a
// fresh renderState per call.
type Printer struct {
	Order         binary.ByteOrder
	Atoms         *atomtable.Table
	MaxListLength int
}

// New returns a Printer. maxListLength <= 0 means unbounded, matching
// upstream xtrace's own maxshownlistlen default of "no cap".
func New(order binary.ByteOrder, atoms *atomtable.Table, maxListLength int) *Printer {
	if maxListLength <= 0 {
		maxListLength = math.MaxInt
	}
	return &Printer{Order: order, Atoms: atoms, MaxListLength: maxListLength}
}

// renderState is the stack machine spec.md §4.4 describes: a count
// register, an inline push stack, an element-width register, a running
// sequential cursor, and the "end of last variable field" marker that
// LATER-offset parameters resolve against.
type renderState struct {
	stored      uint64
	stack       [30]uint64
	nstack      int
	format      int // bytes per LISTofFormat element, 0 until set
	lastBitmask uint64
	cursor      int
	end         int
	limit       int // SET_SIZE's truncated packet length in bytes, 0 until set
}

// Render walks list against data and returns the joined "name=value;"
// segments.
func (pr *Printer) Render(list *protodesc.ParamList, data []byte) (string, error) {
	st := &renderState{}
	var sb strings.Builder
	if err := pr.renderList(list, data, st, &sb); err != nil {
		return sb.String(), err
	}
	return sb.String(), nil
}

func (pr *Printer) renderList(list *protodesc.ParamList, data []byte, st *renderState, sb *strings.Builder) error {
	params := list.Params
	i := 0
	for i < len(params) {
		if isChainMember(params[i].Type) {
			consumed, err := pr.renderIfChain(params, i, data, st, sb)
			if err != nil {
				return err
			}
			i += consumed
		} else {
			if err := pr.renderOne(params[i], data, st, sb); err != nil {
				return err
			}
			i++
		}
		if st.limit > 0 && st.limit < len(data) {
			data = data[:st.limit]
		}
	}
	return nil
}

func isChainMember(ft protodesc.FieldType) bool {
	switch ft {
	case protodesc.FieldIf8, protodesc.FieldIf16, protodesc.FieldIf32, protodesc.FieldIfAtom, protodesc.FieldElseIf, protodesc.FieldElse:
		return true
	}
	return false
}

// renderIfChain groups the contiguous run of IF/ELSEIF/ELSE siblings
// starting at i (the parser flattens a chain into adjacent Parameters, see
// protoparse.parseIfChain) and renders the first branch whose condition
// holds. Later links in a matched chain are skipped, never evaluated.
func (pr *Printer) renderIfChain(params []*protodesc.Parameter, i int, data []byte, st *renderState, sb *strings.Builder) (int, error) {
	j := i
	matched := false
	for j < len(params) && isChainMember(params[j].Type) {
		p := params[j]
		j++
		if matched {
			continue
		}
		ok, err := pr.ifMatches(p, data)
		if err != nil {
			return j - i, err
		}
		if !ok {
			continue
		}
		matched = true
		if p.SubParams != nil {
			if err := pr.renderList(p.SubParams, data, st, sb); err != nil {
				return j - i, err
			}
		}
	}
	return j - i, nil
}

func (pr *Printer) ifMatches(p *protodesc.Parameter, data []byte) (bool, error) {
	switch p.Type {
	case protodesc.FieldElse:
		return true, nil
	case protodesc.FieldIf8:
		v, err := pr.readUint(data, p.Offset, 1)
		return v == p.IfLiteral, err
	case protodesc.FieldIf16:
		v, err := pr.readUint(data, p.Offset, 2)
		return v == p.IfLiteral, err
	case protodesc.FieldIf32:
		v, err := pr.readUint(data, p.Offset, 4)
		return v == p.IfLiteral, err
	case protodesc.FieldIfAtom:
		v, err := pr.readUint(data, p.Offset, 4)
		if err != nil {
			return false, err
		}
		a, ok := pr.Atoms.ByName(p.IfAtomName)
		if !ok {
			return false, nil
		}
		return uint64(a.ID) == v, nil
	}
	return false, fmt.Errorf("printer: %s is not an IF-chain member", p.Type)
}

// renderOne dispatches a single non-control-chain parameter: either a pure
// register operation (no text emitted) or a value that gets appended as a
// "name=value;" segment.
func (pr *Printer) renderOne(p *protodesc.Parameter, data []byte, st *renderState, sb *strings.Builder) error {
	pos := p.Offset
	if pos == protodesc.OffsetLater {
		pos = st.end
	}

	switch p.Type {
	case protodesc.FieldGet:
		idx := int(p.IntOperand)
		if idx < st.nstack {
			st.stored = st.stack[st.nstack-1-idx]
		}
		return nil
	case protodesc.FieldSet:
		st.stored = p.IntOperand
		return nil
	case protodesc.FieldDecrementStored:
		if st.stored > 0 {
			st.stored--
		}
		return nil
	case protodesc.FieldDivideStored:
		d := p.IntOperand
		if d == 0 {
			d = 1
		}
		st.stored /= d
		return nil
	case protodesc.FieldLastMarker:
		c := st.cursor
		if p.IntOperand == 4 { // ROUND: align to the next 4-byte boundary
			c = (c + 3) &^ 3
		}
		st.end = c
		return nil
	case protodesc.FieldSetSize:
		unit := int(p.IntOperand)
		if unit <= 0 {
			unit = 1
		}
		if limit := int(st.stored) * unit; limit > 0 && (st.limit == 0 || limit < st.limit) {
			st.limit = limit
		}
		return nil
	case protodesc.FieldFormat8:
		v, err := pr.readUint(data, pos, 1)
		if err != nil {
			return err
		}
		st.format = int(v)
		st.cursor = pos + 1
		return nil
	case protodesc.FieldPush8, protodesc.FieldPush16, protodesc.FieldPush32:
		sz := p.Type.Flags().FixedSize
		v, err := pr.readUint(data, pos, sz)
		if err != nil {
			return err
		}
		if st.nstack < len(st.stack) {
			st.stack[st.nstack] = v
			st.nstack++
		}
		st.cursor = pos + sz
		return nil
	}

	text, consumed, err := pr.renderValue(p, pos, data, st)
	if err != nil {
		return err
	}
	st.cursor = pos + consumed
	if p.Type.Flags().AdvancesEnd {
		st.end = st.cursor
	}
	if text != "" {
		sb.WriteString(p.Name)
		sb.WriteByte('=')
		sb.WriteString(text)
		sb.WriteByte(';')
	}
	return nil
}

func (pr *Printer) renderValue(p *protodesc.Parameter, pos int, data []byte, st *renderState) (string, int, error) {
	switch p.Type {
	case protodesc.FieldInt8, protodesc.FieldInt16, protodesc.FieldInt32:
		sz := p.Type.Flags().FixedSize
		v, err := pr.readUint(data, pos, sz)
		if err != nil {
			return "", 0, err
		}
		return strconv.FormatInt(signExtend(v, sz), 10), sz, nil

	case protodesc.FieldUint8, protodesc.FieldUint16, protodesc.FieldUint32:
		sz := p.Type.Flags().FixedSize
		v, err := pr.readUint(data, pos, sz)
		if err != nil {
			return "", 0, err
		}
		return strconv.FormatUint(v, 10), sz, nil

	case protodesc.FieldCard8, protodesc.FieldCard16, protodesc.FieldCard32:
		sz := p.Type.Flags().FixedSize
		v, err := pr.readUint(data, pos, sz)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("0x%x", v), sz, nil

	case protodesc.FieldCard32BE:
		v, err := pr.readUintOrder(data, pos, 4, binary.BigEndian)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("0x%x", v), 4, nil

	case protodesc.FieldCard64:
		v, err := pr.readUint(data, pos, 8)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("0x%x", v), 8, nil

	case protodesc.FieldEnum8, protodesc.FieldEnum16, protodesc.FieldEnum32:
		sz := p.Type.Flags().FixedSize
		v, err := pr.readUint(data, pos, sz)
		if err != nil {
			return "", 0, err
		}
		if name, ok := p.Consts.NameOf(v); ok {
			return name, sz, nil
		}
		return fmt.Sprintf("%#x", v), sz, nil

	case protodesc.FieldBitmask8, protodesc.FieldBitmask16, protodesc.FieldBitmask32:
		sz := p.Type.Flags().FixedSize
		v, err := pr.readUint(data, pos, sz)
		if err != nil {
			return "", 0, err
		}
		st.lastBitmask = v
		if v == 0 {
			return "0", sz, nil
		}
		names := p.Consts.BitNames(v)
		remainder := v
		for _, m := range p.Consts.Members {
			remainder &^= m.Value
		}
		if remainder != 0 {
			names = append(names, fmt.Sprintf("0x%x", remainder))
		}
		return strings.Join(names, ","), sz, nil

	case protodesc.FieldStore8, protodesc.FieldStore16, protodesc.FieldStore32:
		sz := p.Type.Flags().FixedSize
		v, err := pr.readUint(data, pos, sz)
		if err != nil {
			return "", 0, err
		}
		st.stored = v
		return strconv.FormatUint(v, 10), sz, nil

	case protodesc.FieldString8:
		n := int(st.stored)
		raw, err := pr.slice(data, pos, n)
		if err != nil {
			return "", 0, err
		}
		return strconv.Quote(string(raw)), n, nil

	case protodesc.FieldListCard8, protodesc.FieldListUint8, protodesc.FieldListInt8:
		return pr.renderFixedList(p, pos, data, int(st.stored), 1)
	case protodesc.FieldListCard16, protodesc.FieldListUint16, protodesc.FieldListInt16:
		return pr.renderFixedList(p, pos, data, int(st.stored), 2)
	case protodesc.FieldListCard32, protodesc.FieldListUint32, protodesc.FieldListInt32:
		return pr.renderFixedList(p, pos, data, int(st.stored), 4)
	case protodesc.FieldListCard64:
		return pr.renderFixedList(p, pos, data, int(st.stored), 8)

	case protodesc.FieldListAtom:
		return pr.renderAtomList(pos, data, int(st.stored))

	case protodesc.FieldListFormat:
		elemSize := st.format / 8
		if elemSize == 0 {
			elemSize = 1
		}
		return pr.renderFixedList(p, pos, data, int(st.stored), elemSize)

	case protodesc.FieldListValue:
		return pr.renderValueList(p, pos, data, st)

	case protodesc.FieldStruct:
		return pr.renderStructList(p, pos, data, st, 1)
	case protodesc.FieldListStruct:
		return pr.renderStructList(p, pos, data, st, int(st.stored))
	case protodesc.FieldListVarStruct:
		return pr.renderVarStructList(p, pos, data, st, int(st.stored))

	case protodesc.FieldAtom:
		v, err := pr.readUint(data, pos, 4)
		if err != nil {
			return "", 0, err
		}
		if a, ok := pr.Atoms.ByID(uint32(v)); ok {
			return fmt.Sprintf("0x%x(%q)", v, a.Name), 4, nil
		}
		return fmt.Sprintf("0x%x", v), 4, nil

	case protodesc.FieldFixed1616:
		v, err := pr.readUint(data, pos, 4)
		if err != nil {
			return "", 0, err
		}
		return strconv.FormatFloat(float64(int32(v))/65536.0, 'g', -1, 64), 4, nil

	case protodesc.FieldFixed3232:
		v, err := pr.readUint(data, pos, 8)
		if err != nil {
			return "", 0, err
		}
		return strconv.FormatFloat(float64(int64(v))/4294967296.0, 'g', -1, 64), 8, nil

	case protodesc.FieldFloat32:
		v, err := pr.readUint(data, pos, 4)
		if err != nil {
			return "", 0, err
		}
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(v))), 'g', -1, 32), 4, nil

	case protodesc.FieldFraction:
		v, err := pr.readUint(data, pos, 4)
		if err != nil {
			return "", 0, err
		}
		return strconv.FormatFloat(float64(int32(v))/0x7fffffff, 'g', -1, 64), 4, nil

	case protodesc.FieldEvent:
		raw, err := pr.slice(data, pos, 32)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("% x", raw), 32, nil
	}

	return "", 0, fmt.Errorf("printer: unhandled field type %s", p.Type)
}

func (pr *Printer) renderFixedList(p *protodesc.Parameter, pos int, data []byte, count, elemSize int) (string, int, error) {
	var items []string
	shown := 0
	for k := 0; k < count; k++ {
		v, err := pr.readUint(data, pos+k*elemSize, elemSize)
		if err != nil {
			return "", 0, err
		}
		if shown < pr.MaxListLength {
			items = append(items, strconv.FormatUint(v, 10))
			shown++
		}
	}
	return listText(items, count, pr.MaxListLength), count * elemSize, nil
}

func (pr *Printer) renderAtomList(pos int, data []byte, count int) (string, int, error) {
	var items []string
	shown := 0
	for k := 0; k < count; k++ {
		v, err := pr.readUint(data, pos+k*4, 4)
		if err != nil {
			return "", 0, err
		}
		if shown < pr.MaxListLength {
			name := fmt.Sprintf("0x%x", v)
			if a, ok := pr.Atoms.ByID(uint32(v)); ok {
				name = a.Name
			}
			items = append(items, name)
			shown++
		}
	}
	return listText(items, count, pr.MaxListLength), count * 4, nil
}

// renderValueList walks the VALUE-mask-directed table in bit order,
// consuming one element for every bit set in the bitmask most recently
// read (spec.md §7 "walks its value list in lockstep with the remaining
// bitmask").
func (pr *Printer) renderValueList(p *protodesc.Parameter, pos int, data []byte, st *renderState) (string, int, error) {
	var parts []string
	mask := st.lastBitmask
	cursor := pos
	for _, v := range p.Values.Values {
		if mask&uint64(v.Bit) == 0 {
			continue
		}
		sz := v.Type.Flags().FixedSize
		if sz == 0 {
			sz = 4
		}
		raw, err := pr.readUint(data, cursor, sz)
		if err != nil {
			return "", 0, err
		}
		text := strconv.FormatUint(raw, 10)
		if v.Consts != nil {
			if name, ok := v.Consts.NameOf(raw); ok {
				text = name
			}
		}
		parts = append(parts, fmt.Sprintf("%s=%s", v.Name, text))
		cursor += sz
	}
	return strings.Join(parts, ","), cursor - pos, nil
}

func (pr *Printer) renderStructList(p *protodesc.Parameter, pos int, data []byte, st *renderState, count int) (string, int, error) {
	s := p.StructRef
	var items []string
	cursor := pos
	for k := 0; k < count; k++ {
		var sb strings.Builder
		elemState := &renderState{cursor: cursor, end: cursor}
		if err := pr.renderList(s.Params, data, elemState, &sb); err != nil {
			return "", 0, err
		}
		if len(items) < pr.MaxListLength {
			items = append(items, "{"+sb.String()+"}")
		}
		if s.Length > 0 {
			cursor += s.Length
		} else {
			cursor = elemState.cursor
		}
	}
	return listText(items, count, pr.MaxListLength), cursor - pos, nil
}

func (pr *Printer) renderVarStructList(p *protodesc.Parameter, pos int, data []byte, st *renderState, count int) (string, int, error) {
	return pr.renderStructList(p, pos, data, st, count)
}

func listText(items []string, total, max int) string {
	s := "[" + strings.Join(items, ",")
	if total > max {
		s += ",..."
	}
	return s + "]"
}

func (pr *Printer) slice(data []byte, pos, n int) ([]byte, error) {
	if pos < 0 || n < 0 || pos+n > len(data) {
		return nil, ErrShortPacket
	}
	return data[pos : pos+n], nil
}

func (pr *Printer) readUint(data []byte, pos, size int) (uint64, error) {
	return pr.readUintOrder(data, pos, size, pr.Order)
}

func (pr *Printer) readUintOrder(data []byte, pos, size int, order binary.ByteOrder) (uint64, error) {
	raw, err := pr.slice(data, pos, size)
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(raw[0]), nil
	case 2:
		return uint64(order.Uint16(raw)), nil
	case 4:
		return uint64(order.Uint32(raw)), nil
	case 8:
		return order.Uint64(raw), nil
	}
	return 0, fmt.Errorf("printer: unsupported field width %d", size)
}

func signExtend(v uint64, size int) int64 {
	switch size {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	case 4:
		return int64(int32(v))
	}
	return int64(v)
}
