package protoparse

import "github.com/xtrace-go/xtrace/internal/protodesc"

// baseTypeNames maps the DSL's spelling of a base type to its FieldType.
// This is the DSL-facing half of the base-type catalogue; the behavioural
// half lives in protodesc.FieldType.Flags().
var baseTypeNames = map[string]protodesc.FieldType{
	"INT8": protodesc.FieldInt8, "INT16": protodesc.FieldInt16, "INT32": protodesc.FieldInt32,
	"UINT8": protodesc.FieldUint8, "UINT16": protodesc.FieldUint16, "UINT32": protodesc.FieldUint32,
	"CARD8": protodesc.FieldCard8, "CARD16": protodesc.FieldCard16, "CARD32": protodesc.FieldCard32,
	"CARD32BE": protodesc.FieldCard32BE, "CARD64": protodesc.FieldCard64,
	"ENUM8": protodesc.FieldEnum8, "ENUM16": protodesc.FieldEnum16, "ENUM32": protodesc.FieldEnum32,
	"BITMASK8": protodesc.FieldBitmask8, "BITMASK16": protodesc.FieldBitmask16, "BITMASK32": protodesc.FieldBitmask32,
	"STORE8": protodesc.FieldStore8, "STORE16": protodesc.FieldStore16, "STORE32": protodesc.FieldStore32,
	"PUSH8": protodesc.FieldPush8, "PUSH16": protodesc.FieldPush16, "PUSH32": protodesc.FieldPush32,
	"STRING8": protodesc.FieldString8,
	"LISTofCARD8": protodesc.FieldListCard8, "LISTofCARD16": protodesc.FieldListCard16,
	"LISTofCARD32": protodesc.FieldListCard32, "LISTofCARD64": protodesc.FieldListCard64,
	"LISTofINT8": protodesc.FieldListInt8, "LISTofINT16": protodesc.FieldListInt16, "LISTofINT32": protodesc.FieldListInt32,
	"LISTofUINT8": protodesc.FieldListUint8, "LISTofUINT16": protodesc.FieldListUint16, "LISTofUINT32": protodesc.FieldListUint32,
	"LISTofATOM": protodesc.FieldListAtom, "LISTofFormat": protodesc.FieldListFormat,
	"LISTofStruct": protodesc.FieldListStruct, "LISTofVarStruct": protodesc.FieldListVarStruct,
	"LISTofVALUE": protodesc.FieldListValue,
	"Struct":       protodesc.FieldStruct,
	"FORMAT8":      protodesc.FieldFormat8,
	"ATOM":         protodesc.FieldAtom,
	"FIXED1616":    protodesc.FieldFixed1616, "FIXED3232": protodesc.FieldFixed3232,
	"FLOAT32":  protodesc.FieldFloat32,
	"FRACTION": protodesc.FieldFraction,
	"EVENT":    protodesc.FieldEvent,
}

// blockOpeners are the first tokens whose block is closed by a matching END.
var blockOpeners = map[string]bool{
	"CONSTANTS": true, "BITMASK": true,
	"STRUCT": true, "LIST": true,
	"VALUES":   true,
	"REQUESTS": true, "EVENTS": true, "ERRORS": true,
	"REQUEST": true, "RESPONSE": true, "EVENT": true,
	"templateREQUEST": true, "templateRESPONSE": true, "templateEVENT": true,
	"SETUP": true,
	"IF":    true,
}
