package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrace-go/xtrace/internal/protoparse"
	"github.com/xtrace-go/xtrace/internal/replymatch"
)

func newConn(t *testing.T) *Connection {
	t.Helper()
	tables, err := protoparse.LoadEmbedded()
	require.NoError(t, err)
	return NewConnection(1, tables, 20, 0, false)
}

func clientHandshake() []byte {
	pkt := make([]byte, 12)
	pkt[0] = 'l'
	pkt[2] = 11 // protocol-major
	return pkt
}

func TestParseClientHandshakeReportsByteOrderAndAuth(t *testing.T) {
	c := newConn(t)
	lines, err := c.ParseClient(clientHandshake())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "am lsb-first want 11:0 authorising with '' of length 0", lines[0])
}

func TestParseClientRequestDispatchesCoreOpcode(t *testing.T) {
	c := newConn(t)
	_, err := c.ParseClient(clientHandshake())
	require.NoError(t, err)

	// NoOperation: opcode 127, 1 unit (4 bytes).
	req := []byte{127, 0, 1, 0}
	lines, err := c.ParseClient(req)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "NoOperation")
}

func TestParseClientUnknownOpcodeIsReported(t *testing.T) {
	c := newConn(t)
	_, err := c.ParseClient(clientHandshake())
	require.NoError(t, err)

	req := []byte{200, 0, 1, 0}
	lines, err := c.ParseClient(req)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "unknown request")
}

func TestQueryExtensionRoundTripBindsRegistry(t *testing.T) {
	c := newConn(t)
	_, err := c.ParseClient(clientHandshake())
	require.NoError(t, err)
	_, err = c.ParseServer(serverHandshake(t))
	require.NoError(t, err)

	// QueryExtension opcode 98, name "SHAPE" (5 bytes, no padding needed -> pad to 8).
	name := "SHAPE"
	reqLen := 8 + 8 // header(8) + padded name(8)
	req := make([]byte, reqLen)
	req[0] = 98
	c.Order.PutUint16(req[2:4], uint16(reqLen/4))
	c.Order.PutUint16(req[4:6], uint16(len(name)))
	copy(req[8:], name)

	_, err = c.ParseClient(req)
	require.NoError(t, err)
	require.Equal(t, 1, c.Replies.Len())

	reply := make([]byte, 32)
	reply[0] = 1
	c.Order.PutUint16(reply[2:4], uint16(c.Seq))
	reply[8] = 1  // present
	reply[9] = 130 // major_opcode
	reply[10] = 64 // first_event
	reply[11] = 128 // first_error

	lines, err := c.ParseServer(reply)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	b, ok := c.Extensions.Lookup(130)
	require.True(t, ok)
	assert.Equal(t, "SHAPE", b.Name)
	assert.Equal(t, 0, c.Replies.Len())
}

func serverHandshake(t *testing.T) []byte {
	t.Helper()
	pkt := make([]byte, 8)
	pkt[0] = 1 // success
	copy(pkt[2:4], []byte{11, 0})
	return pkt
}

func TestServerErrorDropsOutstandingReply(t *testing.T) {
	c := newConn(t)
	_, err := c.ParseClient(clientHandshake())
	require.NoError(t, err)
	_, err = c.ParseServer(serverHandshake(t))
	require.NoError(t, err)

	// InternAtom opcode 16, name "FOO"
	name := "FOO"
	req := make([]byte, 12)
	req[0] = 16
	c.Order.PutUint16(req[2:4], uint16(len(req)/4))
	c.Order.PutUint16(req[4:6], uint16(len(name)))
	copy(req[8:], name)
	_, err = c.ParseClient(req)
	require.NoError(t, err)
	require.Equal(t, 1, c.Replies.Len())

	errPkt := make([]byte, 32)
	errPkt[0] = 0
	errPkt[1] = 2 // Value error
	c.Order.PutUint16(errPkt[2:4], uint16(c.Seq))

	lines, err := c.ParseServer(errPkt)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Value")
	assert.Equal(t, 0, c.Replies.Len())
}

func TestReleaseConnectionReportsOutstandingRequests(t *testing.T) {
	c := newConn(t)
	c.Replies.Push(&replymatch.ExpectedReply{Seq: 7})
	lines := c.ReleaseConnection()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "still outstanding")
}


