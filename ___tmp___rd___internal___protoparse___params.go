package protoparse

import (
	"fmt"
	"strconv"

	"github.com/xtrace-go/xtrace/internal/protodesc"
)

func (p *parser) parseConstants(lines []Line, i int, ns *protodesc.Namespace, isBitmask bool) int {
	header := lines[i].Tokens
	openPos := lines[i].Pos
	if len(header) < 2 {
		p.fail(openPos, "%s requires a name", header[0])
		_, next, _ := extractBlock(lines, i+1)
		return next
	}
	name := header[1]
	body, next, err := extractBlock(lines, i+1)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}

	cs := &protodesc.ConstantSet{Name: name, IsBitmask: isBitmask}
	for _, ln := range body {
		if len(ln.Tokens) < 2 {
			p.fail(ln.Pos, "constant row requires a value and a name")
			continue
		}
		v, err := strconv.ParseUint(ln.Tokens[0], 0, 64)
		if err != nil {
			p.fail(ln.Pos, "invalid constant value %q: %v", ln.Tokens[0], err)
			continue
		}
		cs.Members = append(cs.Members, protodesc.Constant{Value: v, Name: ln.Tokens[1]})
	}
	if err := cs.Validate(); err != nil {
		p.fail(openPos, "%v", err)
	}
	if ns != nil {
		ns.Constants[name] = cs
	}
	p.namedConsts[name] = cs
	return next
}

func (p *parser) parseTypeAlias(lines []Line, i int, ns *protodesc.Namespace) int {
	toks := lines[i].Tokens
	pos := lines[i].Pos
	if len(toks) < 3 {
		p.fail(pos, "TYPE requires a name and a base type")
		return i + 1
	}
	name, baseName := toks[1], toks[2]
	base, ok := baseTypeNames[baseName]
	if !ok {
		base, ok = p.typeAliases[baseName]
	}
	if !ok {
		p.fail(pos, "TYPE %s: unknown base type %q", name, baseName)
		return i + 1
	}
	p.typeAliases[name] = base
	if ns != nil {
		ns.Types[name] = base
	}
	return i + 1
}

func (p *parser) parseStruct(lines []Line, i int, ns *protodesc.Namespace, useImports []string) int {
	header := lines[i].Tokens
	openPos := lines[i].Pos
	if len(header) < 2 {
		p.fail(openPos, "%s requires a name", header[0])
		_, next, _ := extractBlock(lines, i+1)
		return next
	}
	name := header[1]

	s := &protodesc.Struct{Name: name}
	rest := header[2:]
	switch {
	case len(rest) >= 2 && rest[0] == "length":
		n, err := strconv.Atoi(rest[1])
		if err != nil {
			p.fail(openPos, "STRUCT %s: invalid length %q", name, rest[1])
		}
		s.Length = n
	case len(rest) >= 3 && rest[0] == "variable" && rest[1] == "min-length":
		n, err := strconv.Atoi(rest[2])
		if err != nil {
			p.fail(openPos, "STRUCT %s: invalid min-length %q", name, rest[2])
		}
		s.Variable = true
		s.MinLength = n
	default:
		p.fail(openPos, "STRUCT %s: expected \"length N\" or \"variable min-length N\"", name)
	}

	body, next, err := extractBlock(lines, i+1)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}
	pl, err := p.parseParamList(body, ns, useImports)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}
	s.Params = pl

	if ns != nil {
		ns.Structs[name] = s
	}
	p.namedStructs[name] = s
	return next
}

func (p *parser) parseValues(lines []Line, i int, ns *protodesc.Namespace, useImports []string) int {
	header := lines[i].Tokens
	openPos := lines[i].Pos
	if len(header) < 2 {
		p.fail(openPos, "VALUES requires a name")
		_, next, _ := extractBlock(lines, i+1)
		return next
	}
	name := header[1]
	body, next, err := extractBlock(lines, i+1)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}

	vl := &protodesc.ValueList{Name: name}
	for _, ln := range body {
		toks := ln.Tokens
		if len(toks) < 3 {
			p.fail(ln.Pos, "VALUES row requires bit, name and type")
			continue
		}
		bit, err := strconv.ParseUint(toks[0], 0, 32)
		if err != nil {
			p.fail(ln.Pos, "invalid bit %q: %v", toks[0], err)
			continue
		}
		ft, ok := p.resolveType(toks[2])
		if !ok {
			p.fail(ln.Pos, "unknown type %q", toks[2])
			continue
		}
		v := protodesc.Value{Bit: uint32(bit), Name: toks[1], Type: ft}
		if len(toks) > 3 {
			if cs, ok := p.namedConsts[toks[3]]; ok {
				v.Consts = cs
			} else {
				p.fail(ln.Pos, "unknown constant set %q", toks[3])
			}
		}
		vl.Values = append(vl.Values, v)
	}

	if ns != nil {
		ns.ValueLists[name] = vl
	}
	p.namedValueLists[name] = vl
	return next
}

func (p *parser) resolveType(name string) (protodesc.FieldType, bool) {
	if ft, ok := baseTypeNames[name]; ok {
		return ft, true
	}
	if ft, ok := p.typeAliases[name]; ok {
		return ft, true
	}
	return protodesc.FieldInvalid, false
}

// parseParamList parses a flat sequence of parameter-body lines (spec.md
// §4.1): "offset name type [attr]", the literal LATER (in offset position),
// or a control word (IF/ELSEIF/ELSE/GET/SET_COUNTER/DECREMENT_STORED/
// DIVIDE_STORED/RESET_COUNTER/LASTMARKER/NEXT/ROUND/SET_SIZE).
func (p *parser) parseParamList(lines []Line, ns *protodesc.Namespace, useImports []string) (*protodesc.ParamList, error) {
	pl := &protodesc.ParamList{}

	j := 0
	for j < len(lines) {
		ln := lines[j]
		tok := ln.Tokens[0]

		switch tok {
		case "IF":
			params, next, err := p.parseIfChain(lines, j, ns, useImports)
			if err != nil {
				return nil, fmt.Errorf("%s: %v", ln.Pos, err)
			}
			pl.Params = append(pl.Params, params...)
			j = next
			continue

		case "ELSEIF", "ELSE":
			return nil, fmt.Errorf("%s: %s without a preceding IF", ln.Pos, tok)

		case "GET":
			idx := uint64(0)
			if len(ln.Tokens) > 1 {
				v, _ := strconv.ParseUint(ln.Tokens[1], 0, 64)
				idx = v
			}
			pl.Params = append(pl.Params, &protodesc.Parameter{Type: protodesc.FieldGet, IntOperand: idx})

		case "SET_COUNTER":
			v := uint64(0)
			if len(ln.Tokens) > 1 {
				n, _ := strconv.ParseUint(ln.Tokens[1], 0, 64)
				v = n
			}
			pl.Params = append(pl.Params, &protodesc.Parameter{Type: protodesc.FieldSet, IntOperand: v})

		case "RESET_COUNTER":
			pl.Params = append(pl.Params, &protodesc.Parameter{Type: protodesc.FieldSet, IntOperand: 0})

		case "DECREMENT_STORED":
			pl.Params = append(pl.Params, &protodesc.Parameter{Type: protodesc.FieldDecrementStored})

		case "DIVIDE_STORED":
			v := uint64(1)
			if len(ln.Tokens) > 1 {
				n, _ := strconv.ParseUint(ln.Tokens[1], 0, 64)
				v = n
			}
			pl.Params = append(pl.Params, &protodesc.Parameter{Type: protodesc.FieldDivideStored, IntOperand: v})

		case "LASTMARKER", "NEXT":
			pl.Params = append(pl.Params, &protodesc.Parameter{Type: protodesc.FieldLastMarker})

		case "ROUND":
			pl.Params = append(pl.Params, &protodesc.Parameter{Type: protodesc.FieldLastMarker, IntOperand: 4})

		case "SET_SIZE":
			v := uint64(0)
			if len(ln.Tokens) > 1 {
				n, _ := strconv.ParseUint(ln.Tokens[1], 0, 64)
				v = n
			}
			pl.Params = append(pl.Params, &protodesc.Parameter{Type: protodesc.FieldSetSize, IntOperand: v})

		default:
			param, err := p.parseFieldLine(ln, ns, useImports)
			if err != nil {
				return nil, err
			}
			pl.Params = append(pl.Params, param)
		}
		j++
	}
	return pl, nil
}

func (p *parser) parseFieldLine(ln Line, ns *protodesc.Namespace, useImports []string) (*protodesc.Parameter, error) {
	toks := ln.Tokens
	if len(toks) < 3 {
		return nil, fmt.Errorf("%s: malformed parameter line (need offset, name, type)", ln.Pos)
	}
	off, ok := atoiOrOffset(toks[0])
	if !ok {
		return nil, fmt.Errorf("%s: invalid offset %q", ln.Pos, toks[0])
	}
	ft, ok := p.resolveType(toks[2])
	if !ok {
		return nil, fmt.Errorf("%s: unknown type %q", ln.Pos, toks[2])
	}
	param := &protodesc.Parameter{Offset: off, Name: toks[1], Type: ft}

	flags := ft.Flags()
	attr := ""
	if len(toks) > 3 {
		attr = toks[3]
	}

	switch {
	case flags.NeedsConstants || (flags.AllowConstants && attr != "" && ft != protodesc.FieldListValue):
		if attr == "" {
			if flags.NeedsConstants {
				return nil, fmt.Errorf("%s: %s requires a constant set", ln.Pos, ft)
			}
			break
		}
		cs, ok := p.namedConsts[attr]
		if !ok {
			return nil, fmt.Errorf("%s: unknown constant set %q", ln.Pos, attr)
		}
		param.Consts = cs

	case ft == protodesc.FieldListValue:
		if attr == "" {
			return nil, fmt.Errorf("%s: LISTofVALUE requires a VALUES table name", ln.Pos)
		}
		vl, ok := p.namedValueLists[attr]
		if !ok {
			return nil, fmt.Errorf("%s: unknown VALUES table %q", ln.Pos, attr)
		}
		param.Values = vl

	case ft == protodesc.FieldStruct || ft == protodesc.FieldListStruct || ft == protodesc.FieldListVarStruct:
		if attr == "" {
			return nil, fmt.Errorf("%s: %s requires a STRUCT/LIST name", ln.Pos, ft)
		}
		s, ok := p.namedStructs[attr]
		if !ok {
			return nil, fmt.Errorf("%s: unknown struct %q", ln.Pos, attr)
		}
		param.StructRef = s
		param.SubParams = s.Params
	}

	return param, nil
}

func (p *parser) parseIfChain(lines []Line, i int, ns *protodesc.Namespace, useImports []string) ([]*protodesc.Parameter, int, error) {
	var params []*protodesc.Parameter
	j := i

	for {
		header := lines[j].Tokens
		kind := header[0]

		var param *protodesc.Parameter
		switch kind {
		case "IF", "ELSEIF":
			if len(header) < 3 {
				return nil, j, fmt.Errorf("%s: %s requires an offset and a type", lines[j].Pos, kind)
			}
			off, ok := atoiOrOffset(header[1])
			if !ok {
				return nil, j, fmt.Errorf("%s: invalid offset %q", lines[j].Pos, header[1])
			}
			if header[2] == "ATOM" {
				if len(header) < 4 {
					return nil, j, fmt.Errorf("%s: IF ATOM requires an atom name literal", lines[j].Pos)
				}
				param = &protodesc.Parameter{Offset: off, Type: protodesc.FieldIfAtom, IfAtomName: header[3]}
			} else {
				var ft protodesc.FieldType
				switch header[2] {
				case "CARD8":
					ft = protodesc.FieldIf8
				case "CARD16":
					ft = protodesc.FieldIf16
				case "CARD32":
					ft = protodesc.FieldIf32
				default:
					return nil, j, fmt.Errorf("%s: IF type must be CARD8/CARD16/CARD32/ATOM, got %q", lines[j].Pos, header[2])
				}
				if len(header) < 4 {
					return nil, j, fmt.Errorf("%s: IF requires a literal to compare against", lines[j].Pos)
				}
				lit, err := strconv.ParseUint(header[3], 0, 64)
				if err != nil {
					return nil, j, fmt.Errorf("%s: invalid IF literal %q", lines[j].Pos, header[3])
				}
				param = &protodesc.Parameter{Offset: off, Type: ft, IfLiteral: lit}
			}
		case "ELSE":
			param = &protodesc.Parameter{Type: protodesc.FieldElse}
		default:
			return params, j, fmt.Errorf("%s: expected IF/ELSEIF/ELSE, got %q", lines[j].Pos, kind)
		}

		depth := 0
		k := j + 1
		bodyStart := k
		for {
			if k >= len(lines) {
				return nil, k, fmt.Errorf("unterminated IF/ELSEIF/ELSE chain (missing END)")
			}
			t := lines[k].Tokens[0]
			if depth == 0 && (t == "ELSEIF" || t == "ELSE" || t == "END") {
				break
			}
			if blockOpeners[t] {
				depth++
			} else if t == "END" {
				depth--
			}
			k++
		}
		body := lines[bodyStart:k]
		pl, err := p.parseParamList(body, ns, useImports)
		if err != nil {
			return nil, k, err
		}
		param.SubParams = pl
		params = append(params, param)

		if lines[k].Tokens[0] == "END" {
			return params, k + 1, nil
		}
		j = k // ELSEIF or ELSE: loop around and parse it as the next link
	}
}


