package merge

import (
	"bytes"
	"fmt"

	"github.com/phovea/generator-phovea/internal/bundle"
	"github.com/phovea/generator-phovea/internal/kinds"
	"github.com/phovea/generator-phovea/internal/logging"
	"github.com/phovea/generator-phovea/internal/render"
)

// Action is the classification of one file or fragment.
type Action string

const (
	ActionCreate        Action = "CREATE"
	ActionSkipIdentical Action = "SKIP_IDENTICAL"
	ActionMerge         Action = "MERGE"
	ActionConflict      Action = "CONFLICT"
)

// Writes reports whether the action requires the writer to touch the disk.
func (a Action) Writes() bool {
	return a == ActionCreate || a == ActionMerge
}

// Decision is the planned outcome for one rendered file or fragment.
type Decision struct {
	Path   string `json:"path"`
	Action Action `json:"action"`
	Detail string `json:"detail,omitempty"`
	Source string `json:"source,omitempty"` // template or fragment that produced it

	// Existing is the file content the decision was computed against; nil
	// when no file exists. Content is the full file to write for CREATE and
	// MERGE, and the rendered file for a conflicting template.
	Existing []byte `json:"existing,omitempty"`
	Content  []byte `json:"content,omitempty"`
}

// outcome is what a strategy computes for one fragment.
type outcome struct {
	action  Action
	content []byte
	detail  string
}

func conflict(format string, args ...interface{}) outcome {
	return outcome{action: ActionConflict, detail: fmt.Sprintf(format, args...)}
}

func skip(format string, args ...interface{}) outcome {
	return outcome{action: ActionSkipIdentical, detail: fmt.Sprintf(format, args...)}
}

func merged(content []byte, format string, args ...interface{}) outcome {
	return outcome{action: ActionMerge, content: content, detail: fmt.Sprintf(format, args...)}
}

// Plan classifies every rendered file and fragment against the snapshot.
// Files come first in render order, then fragments in registry order.
//
// Fragments that target the same manifest are folded: each one is
// classified against the snapshot content with the earlier MERGE results
// for that manifest applied, and its MERGE decision carries the cumulative
// content. A conflicting fragment leaves the folded content unchanged, so
// the remaining fragments are still planned.
//
// The only error is a failure to read the project.
func Plan(files []render.File, fragments []render.Fragment, snap *Snapshot) ([]Decision, error) {
	logger := logging.GetLogger("merge")
	decisions := make([]Decision, 0, len(files)+len(fragments))

	for _, f := range files {
		d, err := planFile(f, snap)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("path", d.Path).Str("action", string(d.Action)).Msg("Planned file")
		decisions = append(decisions, d)
	}

	folded := make(map[string][]byte)
	for _, f := range fragments {
		existing, exists, isDir, err := snap.Read(f.Target)
		if err != nil {
			return nil, err
		}
		if cur, ok := folded[f.Target]; ok {
			existing, exists = cur, true
		}

		d := Decision{
			Path:     f.Target,
			Source:   fmt.Sprintf("fragment %d (%s)", f.Index, f.Strategy),
			Existing: existing,
		}

		var o outcome
		switch {
		case isDir && !exists:
			o = conflict("a directory exists at %s", f.Target)
		case f.Strategy == kinds.StrategyStructured:
			o = ensureJSON(existing, exists, f.Fragment)
		case f.Strategy == kinds.StrategyLineList:
			o = ensureLine(existing, exists, f.Line)
		case f.Strategy == kinds.StrategyMarkerInsert:
			o = ensureBeforeMarker(existing, exists, f.Fragment)
		default:
			o = conflict("unsupported merge strategy %q", f.Strategy)
		}

		d.Action, d.Detail = o.action, o.detail
		if o.action == ActionMerge {
			d.Content = o.content
			folded[f.Target] = o.content
		}
		logger.Debug().
			Str("path", d.Path).
			Str("source", d.Source).
			Str("action", string(d.Action)).
			Str("detail", d.Detail).
			Msg("Planned fragment")
		decisions = append(decisions, d)
	}
	return decisions, nil
}

func planFile(f render.File, snap *Snapshot) (Decision, error) {
	content := []byte(f.Content)
	d := Decision{Path: f.Path, Source: f.Template}

	existing, exists, isDir, err := snap.Read(f.Path)
	if err != nil {
		return d, err
	}

	switch {
	case isDir:
		d.Action = ActionConflict
		d.Detail = "a directory exists at this path"
		d.Content = content
	case !exists:
		d.Action = ActionCreate
		d.Content = content
	case f.Mode == bundle.ModeInitializeOnce:
		d.Action = ActionSkipIdentical
		d.Detail = "kept existing file"
		d.Existing = existing
	case bytes.Equal(existing, content):
		d.Action = ActionSkipIdentical
		d.Existing = existing
	default:
		d.Action = ActionConflict
		d.Detail = "existing file differs from the rendered template"
		d.Existing = existing
		d.Content = content
	}
	return d, nil
}

// Summary counts decisions per action.
func Summary(decisions []Decision) map[Action]int {
	counts := make(map[Action]int, 4)
	for _, d := range decisions {
		counts[d.Action]++
	}
	return counts
}

// Conflicts returns the conflicting decisions.
func Conflicts(decisions []Decision) []Decision {
	var out []Decision
	for _, d := range decisions {
		if d.Action == ActionConflict {
			out = append(out, d)
		}
	}
	return out
}
