// Interactive single-step mode: stdin is put into raw mode so each
// keypress advances a manual token counter, gating client->server writes
// one packet at a time — the debugging affordance SPEC_FULL.md §13 (and
// spec.md §5) describes for stepping through a trace live.
package xproxy

import (
	"os"
	"sync"

	"golang.org/x/term"
)

// Stepper implements Config.Gate by blocking until the operator presses a
// key on stdin, once per call.
type Stepper struct {
	mu       sync.Mutex
	fd       int
	oldState *term.State
	tokens   chan struct{}
	closed   bool
}

// NewStepper puts stdin into raw mode and starts a background reader that
// turns every keypress into one token.
func NewStepper() (*Stepper, error) {
	fd := int(os.Stdin.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	s := &Stepper{fd: fd, oldState: old, tokens: make(chan struct{}, 1)}
	go s.readLoop()
	return s, nil
}

func (s *Stepper) readLoop() {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n > 0 {
			select {
			case s.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Gate blocks until one keypress token is available.
func (s *Stepper) Gate() {
	<-s.tokens
}

// Close restores the terminal's original mode.
func (s *Stepper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return term.Restore(s.fd, s.oldState)
}


