package merge

import (
	"bytes"
	"strings"

	"github.com/phovea/generator-phovea/internal/kinds"
)

// ensureBeforeMarker registers a line immediately before an anchor line,
// the way phovea plugins list their extensions between
// "# generator-phovea:begin" and "# generator-phovea:end".
func ensureBeforeMarker(existing []byte, exists bool, f kinds.Fragment) outcome {
	want := strings.TrimSpace(f.Line)
	anchor := strings.TrimSpace(f.Marker)

	if !exists {
		if f.Seed == "" {
			return conflict("file is missing and the fragment has no seed content")
		}
		seed := []byte(f.Seed)
		if !bytes.HasSuffix(seed, []byte("\n")) {
			seed = append(seed, '\n')
		}
		out, ok := insertBefore(seed, anchor, f.Line)
		if !ok {
			return conflict("seed content has no %q anchor", anchor)
		}
		return merged(out, "create file and register %q", want)
	}

	if hasLine(existing, want) {
		return skip("%q already registered", want)
	}
	out, ok := insertBefore(existing, anchor, f.Line)
	if !ok {
		return conflict("anchor %q not found", anchor)
	}
	return merged(out, "register %q before %q", want, anchor)
}

// insertBefore inserts line before the first line whose trimmed text is
// anchor.
func insertBefore(data []byte, anchor, line string) ([]byte, bool) {
	nl := lineEnding(data)
	start := 0
	for start <= len(data) {
		end := bytes.IndexByte(data[start:], '\n')
		var l []byte
		if end < 0 {
			l = data[start:]
		} else {
			l = data[start : start+end]
		}
		if string(bytes.TrimSpace(l)) == anchor {
			out := make([]byte, 0, len(data)+len(line)+len(nl))
			out = append(out, data[:start]...)
			out = append(out, line...)
			out = append(out, nl...)
			return append(out, data[start:]...), true
		}
		if end < 0 {
			break
		}
		start += end + 1
	}
	return nil, false
}
