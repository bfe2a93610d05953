package merge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/phovea/generator-phovea/internal/kinds"
)

const defaultIndent = "  "

var utf8BOM = []byte("\xef\xbb\xbf")

// ensureJSON merges a structured-document fragment into a JSON manifest.
//
// The document is never re-encoded. Values are located on a comment-free
// copy of the text (jsonc keeps byte offsets) and new text is spliced into
// the original bytes, so every byte outside the touched collection or the
// inserted member stays as it was, comments included.
func ensureJSON(existing []byte, exists bool, f kinds.Fragment) outcome {
	if bytes.HasPrefix(existing, utf8BOM) {
		// Edit the text after the mark and keep the mark in front.
		o := ensureJSON(existing[len(utf8BOM):], exists, f)
		if o.action == ActionMerge {
			o.content = append(append([]byte{}, utf8BOM...), o.content...)
		}
		return o
	}

	segs := splitPath(f.Path)
	if len(segs) == 0 {
		return conflict("empty document path")
	}

	if !exists || len(bytes.TrimSpace(existing)) == 0 {
		out, err := newDocument(segs, f)
		if err != nil {
			return conflict("building document: %v", err)
		}
		return merged(out, "create document with %s", f.Path)
	}

	doc, err := parseDoc(existing)
	if err != nil {
		return conflict("%v", err)
	}

	// Walk down to the deepest existing member.
	parent := doc.root
	for i := 0; i < len(segs)-1; i++ {
		r := gjson.GetBytes(doc.clean, gjsonPath(segs[:i+1]))
		if !r.Exists() {
			return doc.insertMember(parent, segs[i:], f)
		}
		prefix := strings.Join(segs[:i+1], ".")
		if !r.IsObject() {
			return conflict("%s is %s, not an object", prefix, describeType(r))
		}
		if !doc.locate(r, '{', '}') {
			return conflict("cannot locate %s in document", prefix)
		}
		parent = r
	}

	r := gjson.GetBytes(doc.clean, gjsonPath(segs))
	if !r.Exists() {
		return doc.insertMember(parent, segs[len(segs)-1:], f)
	}
	return doc.ensureAt(r, f)
}

type jsonDoc struct {
	src   []byte
	clean []byte
	root  gjson.Result
	nl    string
	unit  string
}

func parseDoc(src []byte) (*jsonDoc, error) {
	clean := jsonc.ToJSON(src)
	if len(clean) != len(src) {
		return nil, fmt.Errorf("document layout not supported")
	}
	if !gjson.ValidBytes(clean) {
		return nil, fmt.Errorf("document is not valid JSON")
	}

	start := bytes.IndexFunc(clean, func(r rune) bool { return !unicode.IsSpace(r) })
	end := bytes.LastIndexFunc(clean, func(r rune) bool { return !unicode.IsSpace(r) })
	if start < 0 || clean[start] != '{' || clean[end] != '}' {
		return nil, fmt.Errorf("document root is not an object")
	}

	root := gjson.ParseBytes(clean[start : end+1])
	root.Index = start

	d := &jsonDoc{src: src, clean: clean, root: root, nl: lineEnding(src), unit: defaultIndent}
	if indent, multiline := d.memberIndent(root); multiline && indent != "" {
		d.unit = indent
	}
	return d, nil
}

// locate checks that r's offsets point at a collection in the document.
func (d *jsonDoc) locate(r gjson.Result, openByte, closeByte byte) bool {
	end := r.Index + len(r.Raw)
	if len(r.Raw) < 2 || r.Index < 0 || end > len(d.clean) {
		return false
	}
	return d.clean[r.Index] == openByte && d.clean[end-1] == closeByte &&
		string(d.clean[r.Index:end]) == r.Raw
}

// ensureAt handles a fragment whose full path exists.
func (d *jsonDoc) ensureAt(r gjson.Result, f kinds.Fragment) outcome {
	switch f.Mode {
	case kinds.ModeMember:
		if !r.IsArray() {
			return conflict("%s is %s, not a list", f.Path, describeType(r))
		}
		for _, el := range r.Array() {
			if jsonEqual([]byte(el.Raw), f.Value) {
				return skip("%s already contains %s", f.Path, f.Value)
			}
		}
		if !d.locate(r, '[', ']') {
			return conflict("cannot locate %s in document", f.Path)
		}
		return d.appendElement(r, f)
	default:
		if jsonEqual([]byte(r.Raw), f.Value) {
			return skip("%s is already %s", f.Path, f.Value)
		}
		detail := fmt.Sprintf("%s is %s, want %s", f.Path, r.Raw, f.Value)
		if note := rangeNote(r, f.Value); note != "" {
			detail += " (" + note + ")"
		}
		return conflict("%s", detail)
	}
}

// appendElement appends the fragment value after the last element of the
// array r, matching the array's layout.
func (d *jsonDoc) appendElement(r gjson.Result, f kinds.Fragment) outcome {
	lo := r.Index
	hi := r.Index + len(r.Raw) - 1

	last := d.lastContent(lo, hi)
	if last < 0 {
		// Empty array: replace its inside.
		var text string
		if bytes.IndexByte(d.clean[lo:hi], '\n') >= 0 {
			indent := d.lineIndent(lo)
			text = d.nl + indent + d.unit + d.encode(f.Value, indent+d.unit) + d.nl + indent
		} else {
			text = string(f.Value)
		}
		return d.result(splice(d.src, lo+1, hi, text), "append %s to %s", f.Value, f.Path)
	}

	var text string
	if indent, multiline := d.memberIndent(r); multiline {
		text = "," + d.nl + indent + d.encode(f.Value, indent)
	} else {
		text = d.inlineSeparator(lo, hi) + string(f.Value)
	}
	return d.result(splice(d.src, last+1, last+1, text), "append %s to %s", f.Value, f.Path)
}

// insertMember adds the first missing path segment, wrapping the remaining
// segments, as the last member of parent.
func (d *jsonDoc) insertMember(parent gjson.Result, missing []string, f kinds.Fragment) outcome {
	if !d.locate(parent, '{', '}') {
		return conflict("cannot locate parent of %s in document", f.Path)
	}

	value, err := nestedValue(missing[1:], f)
	if err != nil {
		return conflict("building %s: %v", f.Path, err)
	}
	key := encodeString(missing[0])

	lo := parent.Index
	hi := parent.Index + len(parent.Raw) - 1
	last := d.lastContent(lo, hi)

	var out []byte
	if last < 0 {
		indent := d.lineIndent(lo)
		if bytes.IndexByte(d.clean[lo:hi], '\n') >= 0 {
			child := indent + d.unit
			text := d.nl + child + key + ": " + d.encode(value, child) + d.nl + indent
			out = splice(d.src, lo+1, hi, text)
		} else {
			out = splice(d.src, lo+1, hi, key+": "+string(value))
		}
	} else {
		var text string
		if indent, multiline := d.memberIndent(parent); multiline {
			text = "," + d.nl + indent + key + ": " + d.encode(value, indent)
		} else {
			text = d.inlineSeparator(lo, hi) + key + ": " + string(value)
		}
		out = splice(d.src, last+1, last+1, text)
	}
	return d.result(out, "insert %s", f.Path)
}

func (d *jsonDoc) result(out []byte, format string, args ...interface{}) outcome {
	if !gjson.ValidBytes(jsonc.ToJSON(out)) {
		return conflict("merged document would not be valid JSON")
	}
	return merged(out, format, args...)
}

// lastContent returns the offset of the last non-space byte strictly
// between lo and hi, or -1 for an empty collection.
func (d *jsonDoc) lastContent(lo, hi int) int {
	for i := hi - 1; i > lo; i-- {
		if !isSpace(d.clean[i]) {
			return i
		}
	}
	return -1
}

// memberIndent reports the indentation of the first member of an object or
// array and whether the collection spans lines.
func (d *jsonDoc) memberIndent(r gjson.Result) (string, bool) {
	i := r.Index + 1
	lineStart := -1
	for i < len(d.clean) && isSpace(d.clean[i]) {
		if d.clean[i] == '\n' {
			lineStart = i + 1
		}
		i++
	}
	if lineStart < 0 {
		return "", false
	}
	return string(d.src[lineStart:i]), true
}

// lineIndent returns the leading whitespace of the line containing pos.
func (d *jsonDoc) lineIndent(pos int) string {
	start := bytes.LastIndexByte(d.src[:pos], '\n') + 1
	end := start
	for end < pos && (d.src[end] == ' ' || d.src[end] == '\t') {
		end++
	}
	return string(d.src[start:end])
}

// inlineSeparator returns ", " or "," following the collection's style.
func (d *jsonDoc) inlineSeparator(lo, hi int) string {
	if bytes.Contains(d.clean[lo:hi], []byte(", ")) {
		return ", "
	}
	if bytes.Contains(d.clean[lo:hi], []byte(",")) {
		return ","
	}
	return ", "
}

// encode pretty-prints a JSON value for insertion at a line indented with
// indent.
func (d *jsonDoc) encode(value []byte, indent string) string {
	out := pretty.PrettyOptions(value, &pretty.Options{Width: 80, Indent: d.unit})
	s := strings.TrimRight(string(out), "\n")
	return strings.ReplaceAll(s, "\n", d.nl+indent)
}

// newDocument builds a fresh document holding only the fragment.
func newDocument(segs []string, f kinds.Fragment) ([]byte, error) {
	value := []byte(f.Value)
	if f.Mode == kinds.ModeMember {
		value = append(append([]byte("["), value...), ']')
	}
	out, err := sjson.SetRawBytes([]byte("{}"), gjsonPath(segs), value)
	if err != nil {
		return nil, err
	}
	return pretty.PrettyOptions(out, &pretty.Options{Width: 80, Indent: defaultIndent}), nil
}

// nestedValue wraps the fragment value in objects for the path segments
// that do not exist yet.
func nestedValue(rest []string, f kinds.Fragment) ([]byte, error) {
	value := []byte(f.Value)
	if f.Mode == kinds.ModeMember {
		value = append(append([]byte("["), value...), ']')
	}
	if len(rest) == 0 {
		return value, nil
	}
	return sjson.SetRawBytes([]byte("{}"), gjsonPath(rest), value)
}

func splice(src []byte, from, to int, text string) []byte {
	out := make([]byte, 0, len(src)-(to-from)+len(text))
	out = append(out, src[:from]...)
	out = append(out, text...)
	return append(out, src[to:]...)
}

// splitPath splits a dotted path; "\." escapes a literal dot.
func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	var segs []string
	var cur strings.Builder
	for i := 0; i < len(p); i++ {
		switch {
		case p[i] == '\\' && i+1 < len(p) && p[i+1] == '.':
			cur.WriteByte('.')
			i++
		case p[i] == '.':
			segs = append(segs, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(p[i])
		}
	}
	return append(segs, cur.String())
}

// gjsonPath joins segments into a gjson/sjson path, escaping every byte
// the path syntax gives a meaning to.
func gjsonPath(segs []string) string {
	var b strings.Builder
	for i, seg := range segs {
		if i > 0 {
			b.WriteByte('.')
		}
		for _, r := range seg {
			if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-') {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func jsonEqual(a, b []byte) bool {
	var va, vb interface{}
	if err := json.Unmarshal(a, &va); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

func encodeString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimRight(buf.String(), "\n")
}

func describeType(r gjson.Result) string {
	switch {
	case r.IsArray():
		return "a list"
	case r.IsObject():
		return "an object"
	case r.Type == gjson.String:
		return "a string"
	case r.Type == gjson.Number:
		return "a number"
	case r.Type == gjson.True, r.Type == gjson.False:
		return "a boolean"
	default:
		return "null"
	}
}

var versionNumber = regexp.MustCompile(`\d+(\.\d+){0,2}`)

// rangeNote explains a version-range conflict, e.g. that the existing
// "^5.0.0" does not admit the wanted "^6.0.0".
func rangeNote(existing gjson.Result, want []byte) string {
	if existing.Type != gjson.String {
		return ""
	}
	var w string
	if err := json.Unmarshal(want, &w); err != nil {
		return ""
	}
	have, err := semver.NewConstraint(existing.Str)
	if err != nil {
		return ""
	}
	if _, err := semver.NewConstraint(w); err != nil {
		return ""
	}
	v, err := semver.NewVersion(versionNumber.FindString(w))
	if err != nil {
		return ""
	}
	if have.Check(v) {
		return fmt.Sprintf("existing range %s admits %s", existing.Str, v)
	}
	return fmt.Sprintf("existing range %s excludes %s", existing.Str, v)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
