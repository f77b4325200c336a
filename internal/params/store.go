// Package params reads and writes the plain-text parameter files exchanged
// with the external solver.
//
// A file holds one assignment per line, either as `NAME=VALUE` or in the
// declarative `*SET,NAME,VALUE` form the solver uses when it dumps its own
// parameters. Numbers may use Fortran exponents (`1.5D+03`).
package params

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
)

// ErrNoData is returned by ReadFile when the file does not exist. It lets a
// caller tell "nothing was written" apart from "an empty set was written".
var ErrNoData = errors.New("params: no data")

const valueToken = `('[^']*'|[^\s,!]+)`

var (
	assignLine = regexp.MustCompile(`^\s*(\w+)\s*=\s*` + valueToken)
	setLine    = regexp.MustCompile(`(?i)^\s*\*SET\s*,\s*(\w+)\s*,\s*` + valueToken)
)

// WriteFile overwrites path with one NAME=VALUE line per entry.
func WriteFile(path string, set *Set) error {
	var buf bytes.Buffer
	if err := Format(&buf, set); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("params: write %s: %w", path, err)
	}
	return nil
}

// Format writes set to w in insertion order. Text values are quoted.
func Format(w io.Writer, set *Set) error {
	var err error
	set.Range(func(name string, value Value) bool {
		if value.IsNumeric() {
			_, err = fmt.Fprintf(w, "%s=%s\n", name, value)
		} else {
			_, err = fmt.Fprintf(w, "%s='%s'\n", name, value)
		}
		return err == nil
	})
	return err
}

// ReadFile parses path. A missing file yields ErrNoData.
func ReadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("params: open %s: %w", path, err)
	}
	defer f.Close()

	set, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("params: read %s: %w", path, err)
	}
	return set, nil
}

// Parse reads assignments from r. Each line is matched against NAME=VALUE
// first and *SET,NAME,VALUE second; lines matching neither are ignored.
// A later assignment to the same name overwrites the earlier one.
func Parse(r io.Reader) (*Set, error) {
	set := New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		name, token, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		set.Put(name, ParseValue(token))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

func parseLine(line string) (name, token string, ok bool) {
	if m := assignLine.FindStringSubmatch(line); m != nil {
		return m[1], m[2], true
	}
	if m := setLine.FindStringSubmatch(line); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}
