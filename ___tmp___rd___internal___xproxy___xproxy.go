// Package xproxy is the host loop collaborator: it owns the fake display
// listener, dials the real display for each accepted connection, and
// feeds bytes into a session.Connection, applying the parsed "ignore"
// prefix before forwarding bytes onward (SPEC_FULL.md §13).
//
// Grounded on the teacher's internal/sandbox/x11/surrogate.go
// acceptLoop/proxyConns: one goroutine per direction per connection,
// generalized from a fixed extension whitelist filter to the tracer's
// "observe and optionally deny-all-extensions" contract. The teacher's
// single xcb_query_extension cgo call that built its whitelist has no
// home here — see DESIGN.md.
package xproxy

import (
	"io"
	"net"
	"sync"

	"github.com/xtrace-go/xtrace/internal/output"
	"github.com/xtrace-go/xtrace/internal/protodesc"
	"github.com/xtrace-go/xtrace/internal/session"
	"github.com/xtrace-go/xtrace/internal/xlog"
	"github.com/xtrace-go/xtrace/internal/xmetrics"
)

// Config collects everything the host loop needs to proxy connections.
type Config struct {
	ListenNetwork string
	ListenAddress string
	DialNetwork   string
	DialAddress   string

	Tables         *protodesc.Tables
	MaxListLength  int
	DenyExtensions bool
	BufferSize     int

	Out *output.Writer

	// Gate, if non-nil, is consulted before every client->server packet is
	// forwarded, blocking until it returns — the "interactive" single-step
	// mode's hook point (SPEC_FULL.md §13).
	Gate func()
}

// Server listens for fake-display connections and proxies each to the
// real display.
type Server struct {
	cfg      Config
	listener net.Listener
	nextID   uint32
	mu       sync.Mutex
}

// Listen opens the fake display's listening socket.
func Listen(cfg Config) (*Server, error) {
	l, err := net.Listen(cfg.ListenNetwork, cfg.ListenAddress)
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, listener: l}, nil
}

// Close stops accepting new connections.
func (s *Server) Close() error { return s.listener.Close() }

// Serve runs the accept loop until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				continue
			}
			return err
		}

		s.mu.Lock()
		s.nextID++
		id := s.nextID
		s.mu.Unlock()

		go s.handle(conn, id)
	}
}

func (s *Server) handle(client net.Conn, id uint32) {
	defer client.Close()

	real, err := net.Dial(s.cfg.DialNetwork, s.cfg.DialAddress)
	if err != nil {
		xlog.Conn(id).Warnf("failed to dial real display: %v", err)
		return
	}
	defer real.Close()

	conn := session.NewConnection(id, s.cfg.Tables, s.cfg.MaxListLength, s.cfg.BufferSize, s.cfg.DenyExtensions)

	xmetrics.ConnectionsTotal.Inc()
	xmetrics.ConnectionsActive.Inc()
	defer xmetrics.ConnectionsActive.Dec()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer real.Close()
		defer client.Close()
		s.pumpClientToServer(client, real, conn, id)
	}()
	go func() {
		defer wg.Done()
		defer real.Close()
		defer client.Close()
		s.pumpServerToClient(real, client, conn, id)
	}()
	wg.Wait()

	for _, line := range conn.ReleaseConnection() {
		s.cfg.Out.Line(id, output.DirectionClient, line, false)
	}
}

func (s *Server) pumpClientToServer(src, dst net.Conn, conn *session.Connection, id uint32) {
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			lines, perr := conn.ParseClient(buf[:n])
			for _, line := range lines {
				s.cfg.Out.Line(id, output.DirectionClient, line, false)
			}
			if perr != nil {
				xlog.Conn(id).Warnf("client framing lost: %v", perr)
				xmetrics.FramingLost.WithLabelValues("client").Inc()
			}
			if s.cfg.Gate != nil {
				s.cfg.Gate()
			}
			fwd := conn.ClientForwardable()
			if werr := writeAll(dst, fwd); werr != nil {
				return
			}
			conn.AdvanceClient(len(fwd))
		}
		if err != nil {
			if err != io.EOF {
				xlog.Conn(id).Debugf("client read: %v", err)
			}
			return
		}
	}
}

func (s *Server) pumpServerToClient(src, dst net.Conn, conn *session.Connection, id uint32) {
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			lines, perr := conn.ParseServer(buf[:n])
			for _, line := range lines {
				s.cfg.Out.Line(id, output.DirectionServer, line, false)
			}
			if perr != nil {
				xlog.Conn(id).Warnf("server framing lost: %v", perr)
				xmetrics.FramingLost.WithLabelValues("server").Inc()
			}
			fwd := conn.ServerForwardable()
			if werr := writeAll(dst, fwd); werr != nil {
				return
			}
			conn.AdvanceServer(len(fwd))
		}
		if err != nil {
			if err != io.EOF {
				xlog.Conn(id).Debugf("server read: %v", err)
			}
			return
		}
	}
}

func writeAll(w io.Writer, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	_, err := w.Write(p)
	return err
}


