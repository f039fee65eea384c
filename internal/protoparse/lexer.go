package protoparse

import (
	"bufio"
	"fmt"
	"strings"
)

// Pos identifies a location in a .proto source file, for diagnostics
// (spec.md §7: "reported with file, line and column").
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col) }

// Line is one non-comment, non-blank physical line, already tokenized.
type Line struct {
	Pos    Pos
	Tokens []string
	// TokenCols[i] is the 1-based column where Tokens[i] started, for
	// per-token diagnostics.
	TokenCols []int
}

// lexFile tokenizes src (the contents of file), skipping blank lines and
// '#'-comment lines. Tokens are whitespace-separated; a token beginning
// with '"' is read as a C-style escaped string until the matching quote
// (spec.md §4.1).
func lexFile(file string, src string) ([]Line, error) {
	scanner := bufio.NewScanner(strings.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lines []Line
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		trimmed := strings.TrimLeft(raw, " \t")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		toks, cols, err := tokenizeLine(raw)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %v", file, lineNo, err)
		}
		if len(toks) == 0 {
			continue
		}
		lines = append(lines, Line{
			Pos:       Pos{File: file, Line: lineNo, Col: cols[0]},
			Tokens:    toks,
			TokenCols: cols,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", file, err)
	}
	return lines, nil
}

func tokenizeLine(raw string) ([]string, []int, error) {
	var toks []string
	var cols []int

	i := 0
	n := len(raw)
	for i < n {
		for i < n && (raw[i] == ' ' || raw[i] == '\t') {
			i++
		}
		if i >= n {
			break
		}
		if raw[i] == '#' {
			break // rest of line is a comment
		}
		start := i
		if raw[i] == '"' {
			var sb strings.Builder
			i++
			closed := false
			for i < n {
				c := raw[i]
				if c == '"' {
					closed = true
					i++
					break
				}
				if c == '\\' && i+1 < n {
					i++
					switch raw[i] {
					case 'n':
						sb.WriteByte('\n')
					case 't':
						sb.WriteByte('\t')
					case '\\':
						sb.WriteByte('\\')
					case '"':
						sb.WriteByte('"')
					case '0':
						sb.WriteByte(0)
					default:
						sb.WriteByte(raw[i])
					}
					i++
					continue
				}
				sb.WriteByte(c)
				i++
			}
			if !closed {
				return nil, nil, fmt.Errorf("unterminated string literal starting at column %d", start+1)
			}
			toks = append(toks, sb.String())
			cols = append(cols, start+1)
			continue
		}

		for i < n && raw[i] != ' ' && raw[i] != '\t' && raw[i] != '#' {
			i++
		}
		toks = append(toks, raw[start:i])
		cols = append(cols, start+1)
	}
	return toks, cols, nil
}
