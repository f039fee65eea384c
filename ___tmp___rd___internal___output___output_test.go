package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineFormatsConnIDAndDirection(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, TimestampNone, false)

	w.Line(1234, DirectionClient, "NoOperation()", false)
	assert.Equal(t, "234:> NoOperation()\n", buf.String())
}

func TestLineMarksServerDirection(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, TimestampNone, false)

	w.Line(1, DirectionServer, "Reply to InternAtom: atom=68;", false)
	assert.Equal(t, "001:< Reply to InternAtom: atom=68;\n", buf.String())
}

func TestLineNoColorWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, TimestampNone, false)
	w.Line(1, DirectionClient, "NoOperation()", false)
	assert.NotContains(t, buf.String(), "\x1b[")
}


