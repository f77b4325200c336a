package model

import (
	"bytes"
	"io"
	"regexp"
	"strings"
)

// CommentPrefix is prepended to every line the filter neutralizes.
const CommentPrefix = "! Line removed by femloop, old content: "

// commentChar starts a comment in the solver's scripting language.
const commentChar = '!'

// declaringCommands assign, query, delete or dimension a parameter in the
// form COMMAND,NAME,...
var declaringCommands = []string{`\*SET`, `\*GET`, `\*DEL`, `\*DIM`}

// disruptive directives break the handshake when run inside a driven solve.
var disruptive = regexp.MustCompile(`(?i)(?:^|[\s$,])(?:/CLEAR|/EXIT|/EOF|\*ASK|EOF)\b`)

// Filter decides which lines of a model script must be commented out.
type Filter struct {
	redeclare *regexp.Regexp
	declare   *regexp.Regexp
}

// NewFilter builds a filter guarding names. With no names only disruptive
// directives are matched.
func NewFilter(names []string) *Filter {
	f := &Filter{}
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(n))
	}
	if len(quoted) == 0 {
		return f
	}
	alt := strings.Join(quoted, "|")
	f.redeclare = regexp.MustCompile(`(?i)\b(?:` + alt + `)\b\s*=`)
	f.declare = regexp.MustCompile(`(?i)(?:` + strings.Join(declaringCommands, "|") + `)\s*,\s*(?:` + alt + `)\s*,`)
	return f
}

// Match reports whether line must be commented out. Text after the first
// comment character is inert and never matched.
func (f *Filter) Match(line string) bool {
	code := line
	if i := strings.IndexByte(code, commentChar); i >= 0 {
		code = code[:i]
	}
	if f.redeclare != nil && f.redeclare.MatchString(code) {
		return true
	}
	if f.declare != nil && f.declare.MatchString(code) {
		return true
	}
	return disruptive.MatchString(code)
}

// Apply copies src to dst, commenting out matching lines. Line endings are
// kept as they are. It returns the number of lines commented out.
func (f *Filter) Apply(dst io.Writer, src []byte) (int, error) {
	commented := 0
	for _, line := range bytes.SplitAfter(src, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if f.Match(string(line)) {
			if _, err := io.WriteString(dst, CommentPrefix); err != nil {
				return commented, err
			}
			commented++
		}
		if _, err := dst.Write(line); err != nil {
			return commented, err
		}
	}
	return commented, nil
}
