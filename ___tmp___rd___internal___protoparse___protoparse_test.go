package protoparse

import (
	"strings"
	"testing"

	"github.com/xtrace-go/xtrace/internal/protodesc"
)

type memFS map[string]string

func (m memFS) ReadFile(name string) ([]byte, error) {
	if s, ok := m[name]; ok {
		return []byte(s), nil
	}
	return nil, errNotFound(name)
}

type errNotFound string

func (e errNotFound) Error() string { return "not found: " + string(e) }

func TestLoadEmbeddedCorpus(t *testing.T) {
	tables, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded: %v", err)
	}
	if tables.Core == nil {
		t.Fatal("no core tables")
	}
	req := tables.Core.Requests[16]
	if req == nil || req.Name != "InternAtom" {
		t.Fatalf("opcode 16 = %+v, want InternAtom", req)
	}
	if req.Special != "InternAtom" {
		t.Fatalf("InternAtom should be tagged SPECIAL, got %q", req.Special)
	}
	if req.Reply == nil {
		t.Fatal("InternAtom should have a reply (RESPONDS)")
	}

	ext, ok := tables.Extensions["SHAPE"]
	if !ok {
		t.Fatal("SHAPE extension not loaded")
	}
	if len(ext.Events) != 1 || ext.Events[0].Name != "ShapeNotify" {
		t.Fatalf("SHAPE events = %+v", ext.Events)
	}
}

func TestParserRejectsUnknownCommand(t *testing.T) {
	fs := memFS{"x.proto": "NAMESPACE core\nBOGUS whatever\n"}
	_, err := Load(fs, "x.proto")
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestParserDetectsCircularNeeds(t *testing.T) {
	fs := memFS{
		"a.proto": "NEEDS b.proto\nNAMESPACE core\n",
		"b.proto": "NEEDS a.proto\n",
	}
	_, err := Load(fs, "a.proto")
	if err == nil || !strings.Contains(err.Error(), "circular NEEDS") {
		t.Fatalf("expected circular NEEDS error, got %v", err)
	}
}

func TestParserRejectsMissingEnd(t *testing.T) {
	fs := memFS{"x.proto": "NAMESPACE core\nCONSTANTS Foo\n\t1\tBar\n"}
	_, err := Load(fs, "x.proto")
	if err == nil || !strings.Contains(err.Error(), "missing END") {
		t.Fatalf("expected missing END error, got %v", err)
	}
}

func TestParserAggregatesMultipleErrors(t *testing.T) {
	fs := memFS{"x.proto": "NAMESPACE core\nBOGUS1\nBOGUS2\n"}
	_, err := Load(fs, "x.proto")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "BOGUS1") || !strings.Contains(err.Error(), "BOGUS2") {
		t.Fatalf("expected both violations reported, got: %v", err)
	}
}

func TestIfChainParsesAllBranches(t *testing.T) {
	src := `NAMESPACE core
REQUEST TestReq
	IF 1 CARD8 0
		4	a	CARD32
	ELSEIF 1 CARD8 1
		4	b	CARD32
	ELSE
		4	c	CARD32
	END
END
`
	fs := memFS{"x.proto": src}
	tables, err := Load(fs, "x.proto")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = tables // core namespace has no roster row pointing at TestReq in this
	// minimal fixture; this test only exercises that the IF/ELSEIF/ELSE/END
	// chain parses without error.
	var _ = protodesc.FieldIf8
}


