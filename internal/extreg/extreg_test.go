package extreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrace-go/xtrace/internal/protodesc"
)

func TestBindRejectsOpcodeReuse(t *testing.T) {
	r := New()
	_, err := r.Bind("SHAPE", 128, 64, 128, &protodesc.Extension{Name: "SHAPE"})
	require.NoError(t, err)

	_, err = r.Bind("RANDR", 128, 89, 147, &protodesc.Extension{Name: "RANDR"})
	assert.Error(t, err)
}

func TestLookupEventRoutesByFirstEvent(t *testing.T) {
	r := New()
	ext := &protodesc.Extension{
		Name:   "SHAPE",
		Events: []*protodesc.Event{{Code: 0, Name: "ShapeNotify"}},
	}
	_, err := r.Bind("SHAPE", 128, 64, 128, ext)
	require.NoError(t, err)

	b, ev, ok := r.LookupEvent(64)
	require.True(t, ok)
	assert.Equal(t, "SHAPE", b.Name)
	assert.Equal(t, "ShapeNotify", ev.Name)

	_, _, ok = r.LookupEvent(65)
	assert.False(t, ok)
}

func TestLookupErrorRoutesByFirstError(t *testing.T) {
	r := New()
	ext := &protodesc.Extension{
		Name:   "SHAPE",
		Errors: []*protodesc.ErrorDesc{{Code: 0, Name: "BadShape"}},
	}
	_, err := r.Bind("SHAPE", 128, 64, 128, ext)
	require.NoError(t, err)

	_, errDesc, ok := r.LookupError(128)
	require.True(t, ok)
	assert.Equal(t, "BadShape", errDesc.Name)
}

func TestRequestByMinorOpcode(t *testing.T) {
	ext := &protodesc.Extension{
		Name: "SHAPE",
		Requests: []*protodesc.Request{
			{Opcode: 0, Name: "ShapeQueryVersion"},
			{Opcode: 1, Name: "ShapeRectangles"},
		},
	}
	b := &Binding{Name: "SHAPE", Desc: ext}
	req, ok := b.RequestByMinor(1)
	require.True(t, ok)
	assert.Equal(t, "ShapeRectangles", req.Name)

	_, ok = b.RequestByMinor(5)
	assert.False(t, ok)
}

func TestUnknownExtensionNeverRoutesRequests(t *testing.T) {
	r := New()
	_, err := r.Bind("MIT-UNKNOWN", 150, 90, 150, nil)
	require.NoError(t, err)

	b, ok := r.Lookup(150)
	require.True(t, ok)
	_, ok = b.RequestByMinor(0)
	assert.False(t, ok)
}
