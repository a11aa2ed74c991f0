// Package directive rewrites "#define NAME value" lines in C/C++ headers.
//
// A line is a directive when it starts with "#define " and its second
// whitespace separated word is a mapped name. Every other byte of the input is
// copied through unchanged, including line terminators, so rewriting is
// idempotent and never disturbs surrounding code.
package directive

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Prefix marks a directive line.
const Prefix = "#define "

// Parse splits a directive line into its name and value. The value is the
// remainder of the line after the name with surrounding space removed.
func Parse(line string) (name, value string, ok bool) {
	body, _ := splitTerminator(line)
	if !strings.HasPrefix(body, Prefix) {
		return "", "", false
	}

	fields := strings.Fields(body)
	if len(fields) < 2 {
		return "", "", false
	}
	name = fields[1]

	rest := strings.TrimLeft(body[len("#define"):], " \t")
	value = strings.TrimSpace(strings.TrimPrefix(rest, name))
	return name, value, true
}

// Format renders a directive line without a terminator.
func Format(name, value string) string {
	return Prefix + name + " " + value
}

// Substitute copies r to w, replacing the value of every directive whose name
// is in values. Names absent from the input are ignored. It returns the number
// of rewritten lines.
func Substitute(r io.Reader, w io.Writer, values map[string]string) (int, error) {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	rewritten := 0
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			out := line
			if name, _, ok := Parse(line); ok {
				if value, mapped := values[name]; mapped {
					_, term := splitTerminator(line)
					out = Format(name, value) + term
					rewritten++
				}
			}
			if _, werr := bw.WriteString(out); werr != nil {
				return rewritten, werr
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rewritten, err
		}
	}

	return rewritten, bw.Flush()
}

// Collect returns the value of every directive in r. When a name repeats the
// last definition wins.
func Collect(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if name, value, ok := Parse(line); ok {
			values[name] = value
		}
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// splitTerminator separates a line from its "\n" or "\r\n" ending.
func splitTerminator(line string) (body, term string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	default:
		return line, ""
	}
}
