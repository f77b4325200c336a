package params

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind distinguishes the three shapes a parameter value can take.
type Kind int

const (
	// KindInt is an exactly integral numeric value.
	KindInt Kind = iota
	// KindFloat is a non-integral numeric value.
	KindFloat
	// KindText is a token that could not be read as a number.
	KindText
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Value is a single parameter value. The zero Value is the integer 0.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Int returns an integer value.
func Int(v int64) Value {
	return Value{kind: KindInt, i: v}
}

// Number returns v as an integer value when it is exactly integral and fits
// in an int64, and as a float value otherwise.
func Number(v float64) Value {
	if isIntegral(v) {
		return Value{kind: KindInt, i: int64(v)}
	}
	return Value{kind: KindFloat, f: v}
}

// Text returns a literal text value.
func Text(v string) Value {
	return Value{kind: KindText, s: v}
}

// Kind reports the shape of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// Float64 returns the numeric value and true, or 0 and false for text.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// IsNumeric reports whether the value holds a number.
func (v Value) IsNumeric() bool {
	return v.kind != KindText
}

// String formats the value the way it is written into parameter files.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'G', -1, 64)
	default:
		return v.s
	}
}

// Equal compares numerically across int and float; text compares literally.
func (v Value) Equal(o Value) bool {
	a, aok := v.Float64()
	b, bok := o.Float64()
	if aok && bok {
		return a == b
	}
	if aok != bok {
		return false
	}
	return v.s == o.s
}

// Add returns v+d as a normalized number. Text values are returned unchanged.
func (v Value) Add(d float64) Value {
	f, ok := v.Float64()
	if !ok {
		return v
	}
	return Number(f + d)
}

// numericToken accepts plain decimals and Fortran style exponents (E or D).
var numericToken = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([EeDd][+-]?\d+)?$`)

// ParseValue coerces a token into an int when it round-trips exactly to an
// integer, otherwise into a float, otherwise keeps it as literal text.
func ParseValue(token string) Value {
	token = strings.TrimSpace(token)
	if !numericToken.MatchString(token) {
		return Text(strings.TrimSpace(strings.Trim(token, "'")))
	}
	normalized := strings.NewReplacer("D", "E", "d", "E").Replace(token)
	f, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return Text(token)
	}
	return Number(f)
}

func isIntegral(f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	if f != math.Trunc(f) {
		return false
	}
	return f >= math.MinInt64 && f < math.MaxInt64
}
