// Package protoparse implements the line-oriented parser that populates an
// protodesc.Model from the ".proto" DSL files found on a search path
// (spec.md §4.1). Grounded on the tokenizing/line-scanning style of
// _examples/original_source/translate.c, which is the original xtrace's
// DSL-to-table compiler.
package protoparse

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/xtrace-go/xtrace/internal/protodesc"
)

// FS lets callers supply an alternate source for .proto files (e.g. the
// embedded default corpus in data/). Load needs a non-nil FS; LoadDir
// supplies one that reads from the OS filesystem over a directory list.
type FS interface {
	ReadFile(name string) ([]byte, error)
}

type osFS struct{ dirs []string }

func (f osFS) ReadFile(name string) ([]byte, error) {
	if filepath.IsAbs(name) {
		return os.ReadFile(name)
	}
	var lastErr error
	for _, d := range f.dirs {
		b, err := os.ReadFile(filepath.Join(d, name))
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fs.ErrNotExist
	}
	return nil, lastErr
}

// parser holds the mutable state accumulated while walking the DSL.
type parser struct {
	fsys FS

	model *protodesc.Model

	loaded   map[string]bool // files already spliced in
	visiting map[string]bool // files on the current NEEDS stack, for cycle detection

	errs *multierror.Error

	// typeAliases maps a TYPE-declared name to the base FieldType it
	// stands for. Shared across the whole parse (the DSL corpus in
	// practice defines each alias once, ahead of use).
	typeAliases map[string]protodesc.FieldType

	// namedStructs / namedValueLists mirror ns.Structs/ns.ValueLists but
	// are indexed without namespace qualification, since USE-imported
	// namespaces are searched unqualified (spec.md §4.1 "USE ns ...
	// Import namespaces for unqualified lookup").
	namedStructs    map[string]*protodesc.Struct
	namedValueLists map[string]*protodesc.ValueList
	namedConsts     map[string]*protodesc.ConstantSet

	// bodies holds, per namespace, every roster row and every
	// REQUEST/RESPONSE/EVENT/ERROR body block not yet merged together.
	// resolvePendingRosters does the merge once a namespace's file is
	// fully read.
	bodies map[*protodesc.Namespace]*nsBodies
}

// Load parses entry (and everything it NEEDS, transitively) using fsys to
// resolve file names, and finalises the result. Every violation encountered
// is aggregated; Load returns a non-nil error (and a nil *protodesc.Tables)
// if any file failed to parse or the model failed to finalise.
func Load(fsys FS, entry string) (*protodesc.Tables, error) {
	p := &parser{
		fsys:            fsys,
		model:           protodesc.NewModel(),
		loaded:          make(map[string]bool),
		visiting:        make(map[string]bool),
		typeAliases:     make(map[string]protodesc.FieldType),
		namedStructs:    make(map[string]*protodesc.Struct),
		namedValueLists: make(map[string]*protodesc.ValueList),
		namedConsts:     make(map[string]*protodesc.ConstantSet),
	}

	p.loadFile(entry)

	if err := p.errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	tables, err := protodesc.Finalize(p.model)
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// LoadDir is a convenience wrapper around Load that resolves .proto files
// relative to the given directories (spec.md §6 "entry point is a file
// named all.proto found on the search path").
func LoadDir(searchPath []string, entry string) (*protodesc.Tables, error) {
	return Load(osFS{dirs: searchPath}, entry)
}

func (p *parser) fail(pos Pos, format string, args ...interface{}) {
	p.errs = multierror.Append(p.errs, fmt.Errorf("%s: %s", pos, fmt.Sprintf(format, args...)))
}

func (p *parser) loadFile(name string) {
	if p.loaded[name] {
		return
	}
	if p.visiting[name] {
		p.fail(Pos{File: name}, "circular NEEDS involving %q", name)
		return
	}
	p.visiting[name] = true
	defer func() { p.visiting[name] = false; p.loaded[name] = true }()

	raw, err := p.fsys.ReadFile(name)
	if err != nil {
		p.fail(Pos{File: name}, "cannot open: %v", err)
		return
	}
	lines, err := lexFile(name, string(raw))
	if err != nil {
		p.errs = multierror.Append(p.errs, err)
		return
	}

	var curNS *protodesc.Namespace
	var nsSeen bool
	var useImports []string

	i := 0
	for i < len(lines) {
		ln := lines[i]
		cmd := ln.Tokens[0]

		switch cmd {
		case "NEEDS":
			if len(ln.Tokens) < 2 {
				p.fail(ln.Pos, "NEEDS requires a filename")
				i++
				continue
			}
			p.loadFile(ln.Tokens[1])
			i++

		case "NAMESPACE":
			if nsSeen {
				p.fail(ln.Pos, "at most one NAMESPACE/EXTENSION permitted per file")
			}
			if len(ln.Tokens) < 2 {
				p.fail(ln.Pos, "NAMESPACE requires a name")
				i++
				continue
			}
			curNS = p.model.Namespace(ln.Tokens[1])
			nsSeen = true
			i++

		case "EXTENSION":
			if nsSeen {
				p.fail(ln.Pos, "at most one NAMESPACE/EXTENSION permitted per file")
			}
			if len(ln.Tokens) < 3 {
				p.fail(ln.Pos, "EXTENSION requires an extension name and a namespace")
				i++
				continue
			}
			curNS = p.model.Namespace(ln.Tokens[2])
			if curNS.Extension == nil {
				curNS.Extension = &protodesc.Extension{Name: ln.Tokens[1], GenericEvents: make(map[int]*protodesc.Event)}
			}
			nsSeen = true
			i++

		case "USE":
			useImports = append(useImports, ln.Tokens[1:]...)
			i++

		case "CONSTANTS", "BITMASK":
			i = p.parseConstants(lines, i, curNS, cmd == "BITMASK")

		case "TYPE":
			i = p.parseTypeAlias(lines, i, curNS)

		case "STRUCT", "LIST":
			i = p.parseStruct(lines, i, curNS, useImports)

		case "VALUES":
			i = p.parseValues(lines, i, curNS, useImports)

		case "REQUESTS":
			i = p.parseRoster(lines, i, curNS, rosterRequests)

		case "EVENTS":
			i = p.parseRoster(lines, i, curNS, rosterEvents)

		case "ERRORS":
			i = p.parseRoster(lines, i, curNS, rosterErrors)

		case "REQUEST", "templateREQUEST":
			i = p.parseRequestBody(lines, i, curNS, useImports)

		case "RESPONSE", "templateRESPONSE":
			i = p.parseResponseBody(lines, i, curNS, useImports)

		case "EVENT", "templateEVENT":
			i = p.parseEventBody(lines, i, curNS, useImports)

		case "ERROR":
			i = p.parseErrorBody(lines, i, curNS, useImports)

		case "SETUP":
			if curNS == nil || !curNS.IsCore {
				p.fail(ln.Pos, "SETUP is only permitted in namespace \"core\"")
			}
			body, next, err := extractBlock(lines, i+1)
			if err != nil {
				p.fail(ln.Pos, "%v", err)
				i = next
				continue
			}
			pl, err := p.parseParamList(body, curNS, useImports)
			if err != nil {
				p.fail(ln.Pos, "%v", err)
			} else if curNS != nil {
				curNS.Setup = pl
			}
			i = next

		default:
			p.fail(ln.Pos, "unknown command %q", cmd)
			i++
		}
	}

	p.resolvePendingRosters(curNS)
}

// extractBlock finds the line closing the block that was opened at
// lines[start-1], walking from start, tracking nested block-openers.
// It returns the body lines (exclusive of the closing END) and the index
// just past that END.
func extractBlock(lines []Line, start int) ([]Line, int, error) {
	depth := 1
	i := start
	for i < len(lines) {
		tok := lines[i].Tokens[0]
		if blockOpeners[tok] {
			depth++
		} else if tok == "END" {
			depth--
			if depth == 0 {
				return lines[start:i], i + 1, nil
			}
		}
		i++
	}
	return nil, i, fmt.Errorf("unterminated block (missing END)")
}

func atoiOrOffset(tok string) (int, bool) {
	if tok == "LATER" {
		return protodesc.OffsetLater, true
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	return n, true
}

