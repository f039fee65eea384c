package protoparse

import "github.com/xtrace-go/xtrace/internal/protodesc"

type rosterKind int

const (
	rosterRequests rosterKind = iota
	rosterEvents
	rosterErrors
)

type rosterRow struct {
	Index   int
	Name    string
	Unknown bool
	Tags    map[string]bool // RESPONDS, SPECIAL, UNSUPPORTED, GENERIC
}

type nsBodies struct {
	rosters      map[rosterKind][]rosterRow
	requestBody  map[string]*protodesc.ParamList
	responseBody map[string]*protodesc.ParamList
	eventBody    map[string]*protodesc.ParamList
	errorBody    map[string]*protodesc.ParamList
	eventGeneric map[string]bool
	aliasOf      map[string]string // name -> name it ALIASES
}

func (p *parser) bodiesFor(ns *protodesc.Namespace) *nsBodies {
	if p.bodies == nil {
		p.bodies = make(map[*protodesc.Namespace]*nsBodies)
	}
	b, ok := p.bodies[ns]
	if !ok {
		b = &nsBodies{
			rosters:      make(map[rosterKind][]rosterRow),
			requestBody:  make(map[string]*protodesc.ParamList),
			responseBody: make(map[string]*protodesc.ParamList),
			eventBody:    make(map[string]*protodesc.ParamList),
			errorBody:    make(map[string]*protodesc.ParamList),
			eventGeneric: make(map[string]bool),
			aliasOf:      make(map[string]string),
		}
		p.bodies[ns] = b
	}
	return b
}

func (p *parser) parseRoster(lines []Line, i int, ns *protodesc.Namespace, kind rosterKind) int {
	openPos := lines[i].Pos
	body, next, err := extractBlock(lines, i+1)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}
	if ns == nil {
		p.fail(openPos, "roster declared outside of any namespace")
		return next
	}

	b := p.bodiesFor(ns)
	idx := 0
	for _, ln := range body {
		toks := ln.Tokens
		if len(toks) > 0 && toks[0][0] == '@' {
			n, ok := atoiOrOffset(toks[0][1:])
			if !ok {
				p.fail(ln.Pos, "invalid index assertion %q", toks[0])
			} else if n != idx {
				p.fail(ln.Pos, "index assertion %q does not match computed index %d", toks[0], idx)
			}
			toks = toks[1:]
		}
		if len(toks) == 0 {
			p.fail(ln.Pos, "empty roster row")
			idx++
			continue
		}
		row := rosterRow{Index: idx, Tags: make(map[string]bool)}
		if toks[0] == "UNKNOWN" {
			row.Unknown = true
		} else {
			row.Name = toks[0]
			for _, t := range toks[1:] {
				row.Tags[t] = true
			}
		}
		b.rosters[kind] = append(b.rosters[kind], row)
		idx++
	}
	return next
}

func (p *parser) parseRequestBody(lines []Line, i int, ns *protodesc.Namespace, useImports []string) int {
	toks := lines[i].Tokens
	openPos := lines[i].Pos
	if len(toks) < 2 {
		p.fail(openPos, "REQUEST requires a name")
		_, next, _ := extractBlock(lines, i+1)
		return next
	}
	name := toks[1]
	body, next, err := extractBlock(lines, i+1)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}
	if ns == nil {
		p.fail(openPos, "REQUEST declared outside of any namespace")
		return next
	}
	b := p.bodiesFor(ns)
	if len(body) == 1 && len(body[0].Tokens) == 2 && body[0].Tokens[0] == "ALIASES" {
		b.aliasOf[name] = body[0].Tokens[1]
		return next
	}
	pl, err := p.parseParamList(body, ns, useImports)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}
	b.requestBody[name] = pl
	return next
}

func (p *parser) parseResponseBody(lines []Line, i int, ns *protodesc.Namespace, useImports []string) int {
	toks := lines[i].Tokens
	openPos := lines[i].Pos
	if len(toks) < 2 {
		p.fail(openPos, "RESPONSE requires a name")
		_, next, _ := extractBlock(lines, i+1)
		return next
	}
	name := toks[1]
	body, next, err := extractBlock(lines, i+1)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}
	b := p.bodiesFor(ns)
	pl, err := p.parseParamList(body, ns, useImports)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}
	b.responseBody[name] = pl
	return next
}

func (p *parser) parseEventBody(lines []Line, i int, ns *protodesc.Namespace, useImports []string) int {
	toks := lines[i].Tokens
	openPos := lines[i].Pos
	if len(toks) < 2 {
		p.fail(openPos, "EVENT requires a name")
		_, next, _ := extractBlock(lines, i+1)
		return next
	}
	name := toks[1]
	generic := false
	for _, t := range toks[2:] {
		if t == "GENERIC" {
			generic = true
		}
	}
	body, next, err := extractBlock(lines, i+1)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}
	b := p.bodiesFor(ns)
	if len(body) == 1 && len(body[0].Tokens) == 2 && body[0].Tokens[0] == "ALIASES" {
		b.aliasOf[name] = body[0].Tokens[1]
		return next
	}
	pl, err := p.parseParamList(body, ns, useImports)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}
	b.eventBody[name] = pl
	if generic {
		b.eventGeneric[name] = true
	}
	return next
}

func (p *parser) parseErrorBody(lines []Line, i int, ns *protodesc.Namespace, useImports []string) int {
	toks := lines[i].Tokens
	openPos := lines[i].Pos
	if len(toks) < 2 {
		p.fail(openPos, "ERROR requires a name")
		_, next, _ := extractBlock(lines, i+1)
		return next
	}
	name := toks[1]
	body, next, err := extractBlock(lines, i+1)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}
	b := p.bodiesFor(ns)
	pl, err := p.parseParamList(body, ns, useImports)
	if err != nil {
		p.fail(openPos, "%v", err)
		return next
	}
	b.errorBody[name] = pl
	return next
}

// resolvePendingRosters merges every roster row with its matching body block
// (REQUEST/RESPONSE/EVENT/ERROR), resolving ALIASES, and populates ns's
// final Requests/Events/Errors slices.
func (p *parser) resolvePendingRosters(ns *protodesc.Namespace) {
	if ns == nil {
		return
	}
	b, ok := p.bodies[ns]
	if !ok {
		return
	}

	resolveAlias := func(m map[string]*protodesc.ParamList, name string) *protodesc.ParamList {
		seen := map[string]bool{}
		for {
			if pl, ok := m[name]; ok {
				return pl
			}
			next, ok := b.aliasOf[name]
			if !ok || seen[name] {
				return nil
			}
			seen[name] = true
			name = next
		}
	}

	for _, row := range b.rosters[rosterRequests] {
		if row.Unknown {
			ns.Requests = append(ns.Requests, &protodesc.Request{Opcode: row.Index, Kind: protodesc.RowUnknown, Name: "<unknown>"})
			continue
		}
		req := &protodesc.Request{Opcode: row.Index, Name: row.Name, Kind: protodesc.RowDefined}
		if row.Tags["UNSUPPORTED"] {
			req.Kind = protodesc.RowUnsupported
		}
		req.Params = resolveAlias(b.requestBody, row.Name)
		if row.Tags["RESPONDS"] {
			req.Reply = resolveAlias(b.responseBody, row.Name)
		}
		if row.Tags["SPECIAL"] {
			req.Special = row.Name
		}
		ns.Requests = append(ns.Requests, req)
	}

	for _, row := range b.rosters[rosterEvents] {
		if row.Unknown {
			ns.Events = append(ns.Events, &protodesc.Event{Code: row.Index, Name: "<unknown>"})
			continue
		}
		ev := &protodesc.Event{Code: row.Index, Name: row.Name}
		ev.Params = resolveAlias(b.eventBody, row.Name)
		if row.Tags["GENERIC"] || b.eventGeneric[row.Name] {
			ev.Kind = protodesc.EventGeneric
		}
		ns.Events = append(ns.Events, ev)
	}

	for _, row := range b.rosters[rosterErrors] {
		if row.Unknown {
			ns.Errors = append(ns.Errors, &protodesc.ErrorDesc{Code: row.Index, Name: "<unknown>"})
			continue
		}
		ed := &protodesc.ErrorDesc{Code: row.Index, Name: row.Name}
		ed.Params = resolveAlias(b.errorBody, row.Name)
		ns.Errors = append(ns.Errors, ed)
	}
}


