package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// x11SockDir mirrors the teacher's x11.SockDir: the well-known directory
// X servers bind their Unix-domain sockets under.
const x11SockDir = "/tmp/.X11-unix"

// displayNumber extracts the leading digits of a display string like
// ":1" or ":1.0" (screen suffixes are accepted and ignored, matching the
// teacher's x11.go display-number parsing).
func displayNumber(display string) (string, error) {
	if !strings.HasPrefix(display, ":") {
		return "", fmt.Errorf("non-local X11 display %q not supported", display)
	}
	trimmed := strings.TrimLeft(display, ":")
	var digits []byte
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if c < '0' || c > '9' {
			break
		}
		digits = append(digits, c)
	}
	if len(digits) == 0 {
		return "", fmt.Errorf("failed to determine display number from %q", display)
	}
	return string(digits), nil
}

// displaySocket resolves a display string to its Unix-domain socket path.
func displaySocket(display string) (string, error) {
	num, err := displayNumber(display)
	if err != nil {
		return "", err
	}
	return filepath.Join(x11SockDir, "X"+num), nil
}

// parseDisplayNumber is displayNumber but returning an int, used when the
// caller needs to do arithmetic (xauth lookups) rather than string work.
func parseDisplayNumber(display string) (int, error) {
	s, err := displayNumber(display)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}


