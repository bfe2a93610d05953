// Package placeholder implements the token marker syntax shared by template
// paths, template contents and manifest fragments.
//
// A marker is "{{name}}", optionally padded with spaces inside the braces.
// Names start with a letter and continue with letters, digits or
// underscores. Substitution is purely textual.
package placeholder

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Marker is one placeholder occurrence.
type Marker struct {
	Name   string
	Line   int // 1-based
	Offset int // byte offset of the opening braces
	End    int // byte offset just past the closing braces
}

// SyntaxError reports a malformed marker.
type SyntaxError struct {
	Line int
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// ValidName reports whether s is a legal token name.
func ValidName(s string) bool {
	return namePattern.MatchString(s)
}

// Scan returns every marker in text in order of appearance. An opening
// marker without a closing one on the same line, or a marker whose inner
// text is not a valid name, yields a *SyntaxError.
func Scan(text string) ([]Marker, error) {
	var markers []Marker
	line := 1
	i := 0
	for i < len(text) {
		if text[i] == '\n' {
			line++
			i++
			continue
		}
		if !strings.HasPrefix(text[i:], openDelim) {
			i++
			continue
		}
		rest := text[i+len(openDelim):]
		eol := strings.IndexByte(rest, '\n')
		if eol < 0 {
			eol = len(rest)
		}
		j := strings.Index(rest[:eol], closeDelim)
		if j < 0 {
			return nil, &SyntaxError{Line: line, Text: clip(text[i : i+len(openDelim)+eol]), Msg: "unclosed marker"}
		}
		name := strings.TrimSpace(rest[:j])
		if !ValidName(name) {
			return nil, &SyntaxError{Line: line, Text: text[i : i+len(openDelim)+j+len(closeDelim)], Msg: "invalid token name"}
		}
		end := i + len(openDelim) + j + len(closeDelim)
		markers = append(markers, Marker{Name: name, Line: line, Offset: i, End: end})
		i = end
	}
	return markers, nil
}

// Names returns the sorted, de-duplicated token names used in text.
func Names(text string) ([]string, error) {
	markers, err := Scan(text)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(markers))
	var names []string
	for _, m := range markers {
		if !seen[m.Name] {
			seen[m.Name] = true
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Missing returns the sorted names used in text that have no value in
// values.
func Missing(text string, values map[string]string) ([]string, error) {
	names, err := Names(text)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, n := range names {
		if _, ok := values[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing, nil
}

// Expand substitutes every marker in text with its value. Callers validate
// with Missing first; an unknown name is an error here as well.
func Expand(text string, values map[string]string) (string, error) {
	markers, err := Scan(text)
	if err != nil {
		return "", err
	}
	if len(markers) == 0 {
		return text, nil
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range markers {
		v, ok := values[m.Name]
		if !ok {
			return "", fmt.Errorf("line %d: no value for token %q", m.Line, m.Name)
		}
		b.WriteString(text[last:m.Offset])
		b.WriteString(v)
		last = m.End
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func clip(s string) string {
	const limit = 40
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
