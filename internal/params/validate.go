package params

import "fmt"

// Mismatch describes an input parameter that did not come back unchanged
// from a solve.
type Mismatch struct {
	Name    string
	Input   Value
	Output  Value
	Missing bool
}

// String renders the mismatch as a warning line.
func (m Mismatch) String() string {
	if m.Missing {
		return fmt.Sprintf("input parameter %q was set as %s but is missing from the outputs", m.Name, m.Input)
	}
	return fmt.Sprintf("input parameter %q was set as %s but finished as %s", m.Name, m.Input, m.Output)
}

// Validate checks that every input reappears in output with an equal value.
// The result is advisory: callers report mismatches as warnings.
func Validate(input, output *Set) []Mismatch {
	var out []Mismatch
	input.Range(func(name string, in Value) bool {
		got, ok := output.Get(name)
		switch {
		case !ok:
			out = append(out, Mismatch{Name: name, Input: in, Missing: true})
		case !in.Equal(got):
			out = append(out, Mismatch{Name: name, Input: in, Output: got})
		}
		return true
	})
	return out
}
