package protodesc

import (
	"fmt"
	"sort"
)

// emptyParamList is the shared terminator every branch and every
// parameter-less roster entry points at, saving an allocation per entry
// (spec.md §4.1 "finalisation ... branches reuse a shared empty terminator").
var emptyParamList = &ParamList{}

// Tables is the finalised, immutable form of a Model. Every field is
// read-only after Finalize returns; every session.Connection shares the
// same *Tables pointer (spec.md §9 "ownership of interpreter tables").
type Tables struct {
	Core *CoreTables

	// Extensions indexes every known extension descriptor by name, as
	// parsed from the DSL (not yet learned on any connection — connection
	// level opcode binding lives in internal/extreg).
	Extensions map[string]*Extension
}

// CoreTables holds the core namespace's numbered rosters plus SETUP.
type CoreTables struct {
	Setup    *ParamList
	Requests []*Request   // indexed by opcode
	Events   []*Event     // indexed by code, 2..63
	Errors   []*ErrorDesc // indexed by code
}

// Finalize lowers model into an immutable Tables, or returns an aggregated
// error if any namespace fails validation. No partial Tables is ever
// returned alongside a non-nil error (spec.md §7, DSL parse time).
func Finalize(model *Model) (*Tables, error) {
	var errs []string

	tables := &Tables{Extensions: make(map[string]*Extension)}

	for _, nsName := range model.Order {
		ns := model.Namespaces[nsName]

		for _, cs := range ns.Constants {
			if err := cs.Validate(); err != nil {
				errs = append(errs, err.Error())
			}
		}

		nilToEmpty := func(pl *ParamList) *ParamList {
			if pl == nil || len(pl.Params) == 0 {
				return emptyParamList
			}
			return pl
		}

		for _, r := range ns.Requests {
			r.Params = nilToEmpty(r.Params)
			if r.Reply != nil {
				r.Reply = nilToEmpty(r.Reply)
			}
		}
		for _, e := range ns.Events {
			e.Params = nilToEmpty(e.Params)
		}
		for _, e := range ns.Errors {
			e.Params = nilToEmpty(e.Params)
		}

		if err := checkNoCycles(ns); err != nil {
			errs = append(errs, err.Error())
		}

		if ns.IsCore {
			if ns.Setup == nil {
				ns.Setup = emptyParamList
			}
			core := &CoreTables{Setup: ns.Setup}
			core.Requests = indexRequests(ns.Requests)
			core.Events = indexEvents(ns.Events)
			core.Errors = indexErrors(ns.Errors)
			tables.Core = core
		} else if ns.Setup != nil {
			errs = append(errs, fmt.Sprintf("namespace %q: SETUP is only permitted in namespace \"core\"", ns.Name))
		}

		if ns.Extension != nil {
			ext := ns.Extension
			ext.Requests = sortedRequests(ns.Requests)
			sort.Slice(ns.Events, func(i, j int) bool { return ns.Events[i].Code < ns.Events[j].Code })
			ext.Events = make([]*Event, len(ns.Events))
			copy(ext.Events, ns.Events)
			ext.Errors = make([]*ErrorDesc, len(ns.Errors))
			copy(ext.Errors, ns.Errors)
			tables.Extensions[ext.Name] = ext
		}
	}

	if len(errs) > 0 {
		return nil, &FinalizeError{Errors: errs}
	}
	if tables.Core == nil {
		return nil, &FinalizeError{Errors: []string{"no \"core\" namespace defined"}}
	}
	return tables, nil
}

// FinalizeError aggregates every violation found while lowering a Model,
// mirroring the DSL parser's sticky-error-flag behaviour (spec.md §7).
type FinalizeError struct {
	Errors []string
}

func (e *FinalizeError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	s := fmt.Sprintf("%d finalisation errors:", len(e.Errors))
	for _, m := range e.Errors {
		s += "\n  - " + m
	}
	return s
}

func indexRequests(reqs []*Request) []*Request {
	maxOp := -1
	for _, r := range reqs {
		if r.Opcode > maxOp {
			maxOp = r.Opcode
		}
	}
	out := make([]*Request, maxOp+1)
	for _, r := range reqs {
		out[r.Opcode] = r
	}
	return out
}

func indexEvents(evs []*Event) []*Event {
	maxCode := -1
	for _, e := range evs {
		if e.Code > maxCode {
			maxCode = e.Code
		}
	}
	out := make([]*Event, maxCode+1)
	for _, e := range evs {
		out[e.Code] = e
	}
	return out
}

func indexErrors(errs []*ErrorDesc) []*ErrorDesc {
	maxCode := -1
	for _, e := range errs {
		if e.Code > maxCode {
			maxCode = e.Code
		}
	}
	out := make([]*ErrorDesc, maxCode+1)
	for _, e := range errs {
		out[e.Code] = e
	}
	return out
}

func sortedRequests(reqs []*Request) []*Request {
	out := make([]*Request, len(reqs))
	copy(out, reqs)
	sort.Slice(out, func(i, j int) bool { return out[i].Opcode < out[j].Opcode })
	return out
}

// checkNoCycles walks every Struct reachable from ns and rejects a Struct
// that (directly or transitively) refers to itself. The DSL has no
// recursive types by construction; this is a defence against a parser bug
// producing one (spec.md §9 "cycles are forbidden by construction").
func checkNoCycles(ns *Namespace) error {
	visiting := make(map[*Struct]bool)
	done := make(map[*Struct]bool)

	var visit func(s *Struct) error
	visit = func(s *Struct) error {
		if done[s] {
			return nil
		}
		if visiting[s] {
			return fmt.Errorf("namespace %q: struct %q participates in a reference cycle", ns.Name, s.Name)
		}
		visiting[s] = true
		if s.Params != nil {
			for _, p := range s.Params.Params {
				if p.StructRef != nil {
					if err := visit(p.StructRef); err != nil {
						return err
					}
				}
			}
		}
		visiting[s] = false
		done[s] = true
		return nil
	}

	for _, s := range ns.Structs {
		if err := visit(s); err != nil {
			return err
		}
	}
	return nil
}
