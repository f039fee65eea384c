package protoparse

import (
	"embed"
	"path"

	"github.com/xtrace-go/xtrace/internal/protodesc"
)

//go:embed data/*.proto
var embeddedData embed.FS

type embedFS struct{}

func (embedFS) ReadFile(name string) ([]byte, error) {
	return embeddedData.ReadFile(path.Join("data", name))
}

// DefaultEntry is the name Load resolves against FS when loading the
// embedded corpus (spec.md §6 "all.proto found on the search path").
const DefaultEntry = "all.proto"

// LoadEmbedded parses and finalises the protocol corpus built into the
// binary (internal/protoparse/data). Operators that want to trace
// extensions this corpus doesn't carry a descriptor for can instead call
// LoadDir against a directory containing their own all.proto.
func LoadEmbedded() (*protodesc.Tables, error) {
	return Load(embedFS{}, DefaultEntry)
}


