// Package protodesc is the in-memory representation of the X11 protocol DSL:
// namespaces, requests, responses, events, errors, structs, value lists,
// constant sets and type aliases (spec.md §3, §4.1), plus the finaliser that
// lowers the mutable model into immutable, pointer-stable tables.
package protodesc

// FieldType is the closed enumeration of parameter kinds the DSL can
// express. Grounded on _examples/original_source/parse.h's enum fieldtype
// (ft_INT8 .. ft_IF32), renamed to Go conventions.
type FieldType int

const (
	FieldInvalid FieldType = iota

	// Signed, endian-specific integers.
	FieldInt8
	FieldInt16
	FieldInt32

	// Unsigned decimal, endian-specific integers.
	FieldUint8
	FieldUint16
	FieldUint32

	// Unsigned hex-formatted, endian-specific "cards".
	FieldCard8
	FieldCard16
	FieldCard32
	FieldCard32BE // big-endian CARD32, used by a handful of extension fields

	// Enumerations: value is printed by its constant-set name, or in hex when
	// no member matches.
	FieldEnum8
	FieldEnum16
	FieldEnum32

	// Bitmasks: zero or more names, comma-joined.
	FieldBitmask8
	FieldBitmask16
	FieldBitmask32

	// Stack machine: STORE writes the count register, PUSH pushes a value
	// for later GET, GET loads a pushed value back into the count register.
	FieldStore8
	FieldStore16
	FieldStore32
	FieldPush8
	FieldPush16
	FieldPush32

	FieldCard64

	// List types.
	FieldString8
	FieldListCard8
	FieldListCard16
	FieldListCard32
	FieldListCard64
	FieldListInt8
	FieldListInt16
	FieldListInt32
	FieldListUint8
	FieldListUint16
	FieldListUint32
	FieldListAtom
	FieldListFormat  // element size taken from a prior FORMAT8 capture
	FieldListStruct  // fixed-count list of a named Struct
	FieldListVarStruct
	FieldListValue // VALUE-mask-directed list

	FieldStruct // a ListStruct with an implied count of 1
	FieldFormat8

	FieldAtom
	FieldFixed1616 // 16.16 fixed point
	FieldFixed3232 // 32.32 fixed point
	FieldFloat32
	FieldFraction

	FieldEvent // a nested, fully-typed event (used by SendEvent's payload)

	// Control opcodes: direct the printer, never emit output.
	FieldIf8
	FieldIf16
	FieldIf32
	FieldIfAtom
	FieldElseIf
	FieldElse
	FieldGet
	FieldSet
	FieldDecrementStored
	FieldDivideStored
	FieldLastMarker
	FieldSetSize

	fieldTypeCount
)

// TypeFlags captures the behavioural attributes of a FieldType: the single
// source of truth spec.md §4.1 calls for, driving both DSL validation and
// printer dispatch.
type TypeFlags struct {
	Name string

	NeedsConstants bool // must have an attached constant/bitmask set
	AllowConstants bool // may optionally have one

	ConsumesStore bool // a list-length-bearing type that reads the store register
	SetsStore     bool // STORE*/GET write the store register
	Pushes        bool // PUSH* pushes onto the per-packet stack
	SetsFormat    bool // FORMAT8 captures the element-width register
	AdvancesEnd   bool // updates "after the last variable-length list" marker
	IsControl     bool // control opcode: never emits a value

	// FixedSize is the field's size in bytes when constant, 0 when variable
	// (strings, lists, and anything ConsumesStore-driven).
	FixedSize int
}

var typeFlags = [fieldTypeCount]TypeFlags{
	FieldInt8:    {Name: "INT8", FixedSize: 1},
	FieldInt16:   {Name: "INT16", FixedSize: 2},
	FieldInt32:   {Name: "INT32", FixedSize: 4},
	FieldUint8:   {Name: "UINT8", FixedSize: 1},
	FieldUint16:  {Name: "UINT16", FixedSize: 2},
	FieldUint32:  {Name: "UINT32", FixedSize: 4},
	FieldCard8:   {Name: "CARD8", FixedSize: 1},
	FieldCard16:  {Name: "CARD16", FixedSize: 2},
	FieldCard32:  {Name: "CARD32", FixedSize: 4},
	FieldCard32BE: {Name: "CARD32BE", FixedSize: 4},
	FieldCard64:  {Name: "CARD64", FixedSize: 8},

	FieldEnum8:  {Name: "ENUM8", NeedsConstants: true, FixedSize: 1},
	FieldEnum16: {Name: "ENUM16", NeedsConstants: true, FixedSize: 2},
	FieldEnum32: {Name: "ENUM32", NeedsConstants: true, FixedSize: 4},

	FieldBitmask8:  {Name: "BITMASK8", NeedsConstants: true, FixedSize: 1},
	FieldBitmask16: {Name: "BITMASK16", NeedsConstants: true, FixedSize: 2},
	FieldBitmask32: {Name: "BITMASK32", NeedsConstants: true, FixedSize: 4},

	FieldStore8:  {Name: "STORE8", SetsStore: true, FixedSize: 1},
	FieldStore16: {Name: "STORE16", SetsStore: true, FixedSize: 2},
	FieldStore32: {Name: "STORE32", SetsStore: true, FixedSize: 4},
	FieldPush8:   {Name: "PUSH8", Pushes: true, FixedSize: 1},
	FieldPush16:  {Name: "PUSH16", Pushes: true, FixedSize: 2},
	FieldPush32:  {Name: "PUSH32", Pushes: true, FixedSize: 4},

	FieldString8:    {Name: "STRING8", ConsumesStore: true, AdvancesEnd: true},
	FieldListCard8:  {Name: "LISTofCARD8", ConsumesStore: true, AdvancesEnd: true},
	FieldListCard16: {Name: "LISTofCARD16", ConsumesStore: true, AdvancesEnd: true},
	FieldListCard32: {Name: "LISTofCARD32", ConsumesStore: true, AdvancesEnd: true},
	FieldListCard64: {Name: "LISTofCARD64", ConsumesStore: true, AdvancesEnd: true},
	FieldListInt8:   {Name: "LISTofINT8", ConsumesStore: true, AdvancesEnd: true},
	FieldListInt16:  {Name: "LISTofINT16", ConsumesStore: true, AdvancesEnd: true},
	FieldListInt32:  {Name: "LISTofINT32", ConsumesStore: true, AdvancesEnd: true},
	FieldListUint8:  {Name: "LISTofUINT8", ConsumesStore: true, AdvancesEnd: true},
	FieldListUint16: {Name: "LISTofUINT16", ConsumesStore: true, AdvancesEnd: true},
	FieldListUint32: {Name: "LISTofUINT32", ConsumesStore: true, AdvancesEnd: true},
	FieldListAtom:   {Name: "LISTofATOM", ConsumesStore: true, AdvancesEnd: true},
	FieldListFormat: {Name: "LISTofFormat", ConsumesStore: true, AdvancesEnd: true},
	FieldListStruct: {Name: "LISTofStruct", NeedsConstants: false, ConsumesStore: true, AdvancesEnd: true},
	FieldListVarStruct: {Name: "LISTofVarStruct", ConsumesStore: true, AdvancesEnd: true},
	FieldListValue:  {Name: "LISTofVALUE", AllowConstants: true, AdvancesEnd: true},

	FieldStruct:  {Name: "Struct"},
	FieldFormat8: {Name: "FORMAT8", SetsFormat: true, FixedSize: 1},

	FieldAtom:      {Name: "ATOM", FixedSize: 4},
	FieldFixed1616: {Name: "FIXED1616", FixedSize: 4},
	FieldFixed3232: {Name: "FIXED3232", FixedSize: 8},
	FieldFloat32:   {Name: "FLOAT32", FixedSize: 4},
	FieldFraction:  {Name: "FRACTION", FixedSize: 4},

	FieldEvent: {Name: "EVENT", FixedSize: 32},

	FieldIf8:             {Name: "IF8", IsControl: true},
	FieldIf16:            {Name: "IF16", IsControl: true},
	FieldIf32:            {Name: "IF32", IsControl: true},
	FieldIfAtom:          {Name: "IFATOM", IsControl: true},
	FieldElseIf:          {Name: "ELSEIF", IsControl: true},
	FieldElse:            {Name: "ELSE", IsControl: true},
	FieldGet:             {Name: "GET", IsControl: true, SetsStore: true},
	FieldSet:             {Name: "SET", IsControl: true, SetsStore: true},
	FieldDecrementStored: {Name: "DECREMENT_STORED", IsControl: true, SetsStore: true},
	FieldDivideStored:    {Name: "DIVIDE_STORED", IsControl: true, SetsStore: true},
	FieldLastMarker:      {Name: "LASTMARKER", IsControl: true, AdvancesEnd: true},
	FieldSetSize:         {Name: "SET_SIZE", IsControl: true},
}

// Flags returns a copy of the behavioural attributes of ft; changing the
// copy leaves the package-global table untouched.
func (ft FieldType) Flags() TypeFlags {
	if ft <= FieldInvalid || ft >= fieldTypeCount {
		return TypeFlags{Name: "INVALID"}
	}
	return typeFlags[ft]
}

func (ft FieldType) String() string { return ft.Flags().Name }
