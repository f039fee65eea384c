package protodesc

import "fmt"

// OffsetLater is the sentinel parameter offset meaning "after the last
// variable-length list processed so far" (spec.md §3, the DSL's LATER).
const OffsetLater = -1

// Constant is a (value, name) pair inside a ConstantSet.
type Constant struct {
	Value uint64
	Name  string
}

// ConstantSet is an ordered sequence of constants, optionally used as a
// bitmask (spec.md §3). Bitmask sets forbid an explicit zero entry (value 0
// names the "no bits set" rendering) and forbid an entry whose bits are a
// strict subset of another entry's.
type ConstantSet struct {
	Name      string
	IsBitmask bool
	Members   []Constant
}

// Validate checks the bitmask-specific invariants spec.md §3 requires.
func (cs *ConstantSet) Validate() error {
	if !cs.IsBitmask {
		return nil
	}
	for _, m := range cs.Members {
		if m.Value == 0 {
			return fmt.Errorf("bitmask %s: explicit zero-valued member %q forbidden (0 is the implicit \"no bits set\" rendering)", cs.Name, m.Name)
		}
	}
	for i, a := range cs.Members {
		for j, b := range cs.Members {
			if i == j {
				continue
			}
			if a.Value != 0 && a.Value&b.Value == a.Value && a.Value != b.Value {
				return fmt.Errorf("bitmask %s: member %q (0x%x) is a subset of %q (0x%x)", cs.Name, a.Name, a.Value, b.Name, b.Value)
			}
		}
	}
	return nil
}

// NameOf returns the constant name for value, and ok=false if none matches.
func (cs *ConstantSet) NameOf(value uint64) (string, bool) {
	for _, m := range cs.Members {
		if m.Value == value {
			return m.Name, true
		}
	}
	return "", false
}

// BitNames returns the comma-joinable list of member names whose bits are
// all set in value, in declaration order.
func (cs *ConstantSet) BitNames(value uint64) []string {
	var names []string
	for _, m := range cs.Members {
		if m.Value != 0 && value&m.Value == m.Value {
			names = append(names, m.Name)
			value &^= m.Value
		}
	}
	return names
}

// Value is one named optional field inside a VALUES table (spec.md §3).
type Value struct {
	Bit     uint32
	Name    string
	Type    FieldType
	Consts  *ConstantSet // optional
}

// ValueList is an ordered VALUES table (DSL: VALUES ... END).
type ValueList struct {
	Name   string
	Values []Value
}

// Parameter is the atomic unit of the descriptor (spec.md §3).
type Parameter struct {
	Offset int // byte offset, or OffsetLater
	Name   string
	Type   FieldType

	Consts    *ConstantSet // for ENUM*/BITMASK*
	SubParams *ParamList   // for Struct/LISTofStruct/LISTofVarStruct/IF* branches
	Values    *ValueList   // for LISTofVALUE
	StructRef *Struct      // for Struct/LISTofStruct/LISTofVarStruct

	// IfLiteral is the value an IF8/IF16/IF32/IFATOM branch compares
	// against; IfAtomName holds the atom name for IFATOM.
	IfLiteral  uint64
	IfAtomName string

	// SetSizeValue/DecrementAmount carry the control types' operands.
	IntOperand uint64
}

// ParamList is an ordered sequence of Parameters. It is also consulted as a
// stack machine: list-length types consume the store register; STORE/PUSH/
// GET/SET/DECREMENT_STORED/DIVIDE_STORED mutate it.
type ParamList struct {
	Params []*Parameter
}

// Struct is a fixed- or variable-sized record (DSL: STRUCT/LIST).
type Struct struct {
	Name       string
	Variable   bool
	Length     int // fixed byte length if !Variable
	MinLength  int // minimum byte length if Variable
	Params     *ParamList
}

// RequestRowKind tags a roster row (spec.md §4.1).
type RequestRowKind int

const (
	RowDefined RequestRowKind = iota
	RowUnknown
	RowUnsupported
)

// Request is a request descriptor (spec.md §3).
type Request struct {
	Opcode  int
	Name    string
	Kind    RequestRowKind
	Params  *ParamList
	Reply   *ParamList // nil if the request has no reply
	Special string     // "" or one of "QueryExtension", "InternAtom", "ListFontsWithInfo"

	// RecordVariables is the number of stack values captured at request
	// time for use by the reply-time hook (spec.md §3 Request descriptor).
	RecordVariables int
}

// EventKind distinguishes normal core/extension events from X Generic Events.
type EventKind int

const (
	EventNormal EventKind = iota
	EventGeneric
)

// Event is an event descriptor (spec.md §3).
type Event struct {
	Code   int
	Name   string
	Kind   EventKind
	Params *ParamList
}

// ErrorDesc is an error descriptor: just a code/name pair plus the standard
// bad-value parameter list every X11 error shares.
type ErrorDesc struct {
	Code   int
	Name   string
	Params *ParamList
}

// Extension is an extension descriptor (spec.md §3): name, sub-request
// table, event table, error-name table, generic-event table.
type Extension struct {
	Name          string
	Requests      []*Request
	Events        []*Event // indexed by code - first_event
	Errors        []*ErrorDesc
	GenericEvents map[int]*Event // indexed by the extension's own event-type field
}

// Namespace groups everything declared under one NAMESPACE/EXTENSION block.
type Namespace struct {
	Name      string
	IsCore    bool
	Constants map[string]*ConstantSet
	Types     map[string]FieldType // TYPE aliases
	Structs   map[string]*Struct
	ValueLists map[string]*ValueList
	Requests  []*Request
	Events    []*Event
	Errors    []*ErrorDesc
	Setup     *ParamList // only valid in namespace "core"

	Extension *Extension // non-nil if this namespace is an EXTENSION body
}

// Model is the full mutable descriptor graph assembled by the DSL parser
// (spec.md §4.1). It is discarded after a successful Finalize.
type Model struct {
	Namespaces map[string]*Namespace
	Order      []string // namespace declaration order, for deterministic finalisation
}

// NewModel returns an empty, mutable descriptor model.
func NewModel() *Model {
	return &Model{Namespaces: make(map[string]*Namespace)}
}

// Namespace returns (creating if necessary) the named namespace, recording
// first-seen order.
func (m *Model) Namespace(name string) *Namespace {
	if ns, ok := m.Namespaces[name]; ok {
		return ns
	}
	ns := &Namespace{
		Name:       name,
		IsCore:     name == "core",
		Constants:  make(map[string]*ConstantSet),
		Types:      make(map[string]FieldType),
		Structs:    make(map[string]*Struct),
		ValueLists: make(map[string]*ValueList),
	}
	m.Namespaces[name] = ns
	m.Order = append(m.Order, name)
	return ns
}


