package xproxy

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xtrace-go/xtrace/internal/output"
	"github.com/xtrace-go/xtrace/internal/protoparse"
)

// fakeXServer accepts one connection, echoes back a minimal successful
// handshake, then just keeps the connection open.
func fakeXServer(t *testing.T, ln net.Listener) {
	t.Helper()
	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	clientHdr := make([]byte, 12)
	_, err = conn.Read(clientHdr)
	require.NoError(t, err)

	reply := make([]byte, 8)
	reply[0] = 1 // success
	conn.Write(reply)

	buf := make([]byte, 4096)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

func TestServeForwardsHandshakeBothWays(t *testing.T) {
	tables, err := protoparse.LoadEmbedded()
	require.NoError(t, err)

	realLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer realLn.Close()
	go fakeXServer(t, realLn)

	var out bytes.Buffer
	writer := output.New(&out, output.TimestampNone, false)

	srv, err := Listen(Config{
		ListenNetwork: "tcp",
		ListenAddress: "127.0.0.1:0",
		DialNetwork:   "tcp",
		DialAddress:   realLn.Addr().String(),
		Tables:        tables,
		MaxListLength: 20,
		BufferSize:    0,
		Out:           writer,
	})
	require.NoError(t, err)
	defer srv.Close()

	go srv.Serve()

	client, err := net.Dial("tcp", srv.listener.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	hdr := make([]byte, 12)
	hdr[0] = 'l'
	hdr[2] = 11
	_, err = client.Write(hdr)
	require.NoError(t, err)

	replyBuf := make([]byte, 8)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = client.Read(replyBuf)
	require.NoError(t, err)
	require.Equal(t, byte(1), replyBuf[0])

	time.Sleep(50 * time.Millisecond)
	require.Contains(t, out.String(), "am lsb-first")
}
