// Package history exchanges time-history data with the solver.
//
// Before a run the driver writes a request file listing the time-history
// variables to export. The monitor script runs it after the solve; each line
// calls the export macro, which appends one block per variable to the result
// file:
//
//	*HISTVAR=2
//	 0.100000000000000E+01
//	 ...
//	*HISTEND
//
// Variable 1 is always the time axis and is always requested first.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/specialistvlad/femloop/internal/monitor"
)

// TimeSeries is the variable holding the time axis.
const TimeSeries = 1

var (
	blockStart = regexp.MustCompile(`(?i)^\s*\*HISTVAR\s*=\s*(\S+)`)
	blockEnd   = regexp.MustCompile(`(?i)^\s*\*HISTEND\b`)
)

// Normalize returns the series to export: TimeSeries first, then every other
// positive id once, in the given order.
func Normalize(series []int) []int {
	out := []int{TimeSeries}
	seen := map[int]bool{TimeSeries: true}
	for _, id := range series {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// WriteRequest writes the export request for series to path. With no series
// requested any previous request is removed instead.
func WriteRequest(path string, series []int) error {
	if len(series) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("history: remove request: %w", err)
		}
		return nil
	}

	var b strings.Builder
	// Argument 0 truncates the result file.
	fmt.Fprintf(&b, "%s,0\n", monitor.HistoryMacro)
	for _, id := range Normalize(series) {
		fmt.Fprintf(&b, "%s,%d\n", monitor.HistoryMacro, id)
	}
	// The request deletes itself so a later run without one exports nothing.
	fmt.Fprintf(&b, "/DELETE,%s\n", strings.Replace(monitor.HistoryRequestFile, ".", ",", 1))

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("history: write request: %w", err)
	}
	return nil
}

// ParseRequest returns the series ids a request file asks for, in order.
func ParseRequest(r io.Reader) ([]int, error) {
	prefix := strings.ToUpper(monitor.HistoryMacro) + ","
	var ids []int
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(strings.ToUpper(line), prefix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(line[len(prefix):]))
		if err != nil {
			return nil, fmt.Errorf("history: bad request line %q: %w", line, err)
		}
		if id > 0 {
			ids = append(ids, id)
		}
	}
	return ids, sc.Err()
}

// ReadFile parses the export at path. A missing file yields an empty table.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads export blocks from r. Lines outside a block are ignored.
func Parse(r io.Reader) (*Table, error) {
	t := NewTable()
	current := 0
	var values []float64

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if m := blockStart.FindStringSubmatch(line); m != nil {
			id, err := parseNumber(m[1])
			if err != nil {
				return nil, fmt.Errorf("history: bad block header %q: %w", line, err)
			}
			current, values = int(id), nil
			continue
		}
		if current == 0 {
			continue
		}
		if blockEnd.MatchString(line) {
			t.Set(current, values)
			current, values = 0, nil
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		v, err := parseNumber(line)
		if err != nil {
			return nil, fmt.Errorf("history: variable %d: %w", current, err)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}
	return t, nil
}

// Format writes t as export blocks, time axis first.
func Format(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	for _, id := range t.IDs() {
		values, _ := t.Get(id)
		fmt.Fprintf(bw, "*HISTVAR=%d\n", id)
		for _, v := range values {
			fmt.Fprintf(bw, " %.15E\n", v)
		}
		fmt.Fprintln(bw, "*HISTEND")
	}
	return bw.Flush()
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("D", "E", "d", "e").Replace(s)
	return strconv.ParseFloat(s, 64)
}
