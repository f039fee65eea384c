// Package output formats decoded trace lines for the configured sink:
// connection id, direction marker, optional timestamp prefix, colored via
// fatih/color when the sink is a terminal.
//
// Grounded on SPEC_FULL.md §12's restatement of the original xtrace
// "startline" helper (_examples/original_source/xtrace.c), which prints
// the zero-padded connection number, a `---`/`<`/`>` direction marker, and
// an optional `-t`/`-n`/`-p` timestamp before every logged line.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// TimestampMode selects which of the three timestamp styles xtrace's
// original `-t`/`-d`/`-p` flags offered (SPEC_FULL.md §3 operator surface).
type TimestampMode int

const (
	TimestampNone TimestampMode = iota
	TimestampWallClock
	TimestampRelative
	TimestampMonotonicDelta
)

// Direction tags which leg of the connection a line describes.
type Direction int

const (
	DirectionClient Direction = iota
	DirectionServer
)

func (d Direction) marker() string {
	if d == DirectionClient {
		return ">"
	}
	return "<"
}

// Writer formats and emits trace lines to an underlying sink.
type Writer struct {
	sink          io.Writer
	mode          TimestampMode
	colorEnabled  bool
	clientColor   *color.Color
	serverColor   *color.Color
	errorColor    *color.Color
	start         time.Time
	last          time.Time
}

// New builds a Writer. colorEnabled should reflect whether sink is a
// terminal (the caller decides, typically via golang.org/x/term.IsTerminal
// wired in cmd/xtrace).
func New(sink io.Writer, mode TimestampMode, colorEnabled bool) *Writer {
	now := time.Now()
	return &Writer{
		sink:         sink,
		mode:         mode,
		colorEnabled: colorEnabled,
		clientColor:  color.New(color.FgGreen),
		serverColor:  color.New(color.FgCyan),
		errorColor:   color.New(color.FgRed, color.Bold),
		start:        now,
		last:         now,
	}
}

// Line writes one decoded summary for connID/dir, optionally marking it an
// error line (colored red instead of the direction's usual color).
func (w *Writer) Line(connID uint32, dir Direction, text string, isError bool) {
	now := time.Now()
	prefix := w.timestampPrefix(now)
	w.last = now

	body := fmt.Sprintf("%03d:%s %s", connID%1000, dir.marker(), text)
	line := prefix + body + "\n"

	if !w.colorEnabled {
		fmt.Fprint(w.sink, line)
		return
	}

	c := w.serverColor
	if dir == DirectionClient {
		c = w.clientColor
	}
	if isError {
		c = w.errorColor
	}
	c.Fprint(w.sink, line)
}

func (w *Writer) timestampPrefix(now time.Time) string {
	switch w.mode {
	case TimestampWallClock:
		return now.Format("15:04:05.000000 ")
	case TimestampRelative:
		return fmt.Sprintf("+%.6f ", now.Sub(w.start).Seconds())
	case TimestampMonotonicDelta:
		d := now.Sub(w.last)
		return fmt.Sprintf("+%.6f ", d.Seconds())
	default:
		return ""
	}
}
