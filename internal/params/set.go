package params

import "strings"

// Fold normalizes a parameter name. The external interpreter is case
// insensitive, so names are upper-cased once when they enter a Set.
func Fold(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Set is an ordered mapping of folded parameter names to values. Insertion
// order is preserved; overwriting a name keeps its original position.
type Set struct {
	names  []string
	values map[string]Value
}

// New returns an empty Set.
func New() *Set {
	return &Set{values: make(map[string]Value)}
}

// Put stores value under the folded name.
func (s *Set) Put(name string, value Value) {
	if s.values == nil {
		s.values = make(map[string]Value)
	}
	key := Fold(name)
	if _, exists := s.values[key]; !exists {
		s.names = append(s.names, key)
	}
	s.values[key] = value
}

// Get looks a name up, folding it first.
func (s *Set) Get(name string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s.values[Fold(name)]
	return v, ok
}

// Has reports whether the folded name is present.
func (s *Set) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names returns the folded names in insertion order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of entries.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Range calls fn for every entry in insertion order until fn returns false.
func (s *Set) Range(fn func(name string, value Value) bool) {
	if s == nil {
		return
	}
	for _, name := range s.names {
		if !fn(name, s.values[name]) {
			return
		}
	}
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	out := New()
	s.Range(func(name string, value Value) bool {
		out.Put(name, value)
		return true
	})
	return out
}

// Equal reports whether both sets hold the same names with numerically equal
// values. Order is not significant.
func (s *Set) Equal(o *Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	equal := true
	s.Range(func(name string, value Value) bool {
		other, ok := o.Get(name)
		if !ok || !value.Equal(other) {
			equal = false
		}
		return equal
	})
	return equal
}

// Map returns a plain map view, mostly for logging and serialization.
func (s *Set) Map() map[string]Value {
	out := make(map[string]Value, s.Len())
	s.Range(func(name string, value Value) bool {
		out[name] = value
		return true
	})
	return out
}
