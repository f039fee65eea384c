// Package xauth reads the operator's .Xauthority file and re-presents a
// matching cookie for the real display, the way an X11 client normally
// obtains one itself. SPEC_FULL.md §14 places this out of the core
// session/framer decoding path since it's a one-shot setup helper, not a
// per-packet concern.
//
// Grounded on _examples/original_source/authdata.c/copyauth.c (the
// family/addr/disp/method/data record shape) and on the teacher's
// x11.go:craftAuthority, which parses the identical Xauthority format.
package xauth

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// FamilyLocal is the Xauthority family tag for a Unix-domain ("local")
// display entry (the only kind xtrace, itself local-only, needs).
const FamilyLocal = 256

// Entry is one decoded Xauthority record.
type Entry struct {
	Family  uint16
	Address string
	Display string
	Method  string
	Data    []byte
}

// Path resolves the Xauthority file location the same way Xlib does:
// $XAUTHORITY, else ~/.Xauthority.
func Path() (string, error) {
	if p := os.Getenv("XAUTHORITY"); p != "" {
		if strings.HasPrefix(p, "~/") {
			u, err := user.Current()
			if err != nil {
				return "", err
			}
			return filepath.Join(u.HomeDir, p[2:]), nil
		}
		return p, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return filepath.Join(u.HomeDir, ".Xauthority"), nil
}

// Load reads and parses every record in the Xauthority file at path.
func Load(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(raw)
}

func parse(raw []byte) ([]Entry, error) {
	var entries []Entry
	for len(raw) > 0 {
		if len(raw) < 2 {
			break
		}
		family := binary.BigEndian.Uint16(raw)
		raw = raw[2:]

		addr, rest, err := readString(raw)
		if err != nil {
			return nil, err
		}
		raw = rest

		disp, rest, err := readString(raw)
		if err != nil {
			return nil, err
		}
		raw = rest

		method, rest, err := readString(raw)
		if err != nil {
			return nil, err
		}
		raw = rest

		data, rest, err := readString(raw)
		if err != nil {
			return nil, err
		}
		raw = rest

		entries = append(entries, Entry{
			Family:  family,
			Address: string(addr),
			Display: string(disp),
			Method:  string(method),
			Data:    data,
		})
	}
	return entries, nil
}

func readString(b []byte) (value []byte, rest []byte, err error) {
	if len(b) < 2 {
		return nil, nil, fmt.Errorf("xauth: truncated record length")
	}
	n := int(binary.BigEndian.Uint16(b))
	if len(b[2:]) < n {
		return nil, nil, fmt.Errorf("xauth: truncated record body")
	}
	return b[2 : 2+n], b[2+n:], nil
}

func encodeString(s []byte) []byte {
	out := make([]byte, 2, 2+len(s))
	binary.BigEndian.PutUint16(out, uint16(len(s)))
	return append(out, s...)
}

// FindLocal returns the entry matching hostname/displayNum on the local
// family, the same lookup the teacher's craftAuthority performs.
func FindLocal(entries []Entry, hostname, displayNum string) (Entry, bool) {
	for _, e := range entries {
		if e.Family == FamilyLocal && e.Address == hostname && e.Display == displayNum {
			return e, true
		}
	}
	return Entry{}, false
}

// Encode serialises e back into Xauthority's wire record format, with the
// hostname and display optionally rewritten — used to present a cookie for
// xtrace's fake display under a different advertised name/number than the
// real one it proxies to.
func Encode(e Entry, hostname, displayNum string) []byte {
	if hostname == "" {
		hostname = e.Address
	}
	if displayNum == "" {
		displayNum = e.Display
	}
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, e.Family)
	out = append(out, encodeString([]byte(hostname))...)
	out = append(out, encodeString([]byte(displayNum))...)
	out = append(out, encodeString([]byte(e.Method))...)
	out = append(out, encodeString(e.Data)...)
	return out
}


