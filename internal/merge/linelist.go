package merge

import (
	"bytes"
	"strings"
)

// ensureLine appends line to a line-oriented file unless a line with the
// same trimmed text is already present. Existing lines are never touched;
// the file's line ending style is kept and a missing final newline is
// added before the new line.
func ensureLine(existing []byte, exists bool, line string) outcome {
	want := strings.TrimSpace(line)
	if !exists {
		return merged([]byte(line+"\n"), "create file with %q", want)
	}
	if hasLine(existing, want) {
		return skip("%q already listed", want)
	}
	return merged(appendLine(existing, line), "append %q", want)
}

func hasLine(data []byte, trimmed string) bool {
	for _, l := range bytes.Split(data, []byte("\n")) {
		if string(bytes.TrimSpace(l)) == trimmed {
			return true
		}
	}
	return false
}

func lineEnding(data []byte) string {
	if bytes.Contains(data, []byte("\r\n")) {
		return "\r\n"
	}
	return "\n"
}

func appendLine(data []byte, line string) []byte {
	nl := lineEnding(data)
	out := make([]byte, 0, len(data)+len(line)+2*len(nl))
	out = append(out, data...)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, nl...)
	}
	out = append(out, line...)
	return append(out, nl...)
}
