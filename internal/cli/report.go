package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/phovea/generator-phovea/internal/merge"
	"github.com/phovea/generator-phovea/internal/writer"
)

// reportEntry is the JSON shape of one report entry. File contents are
// left out; conflicts carry a unified diff instead.
type reportEntry struct {
	Path   string        `json:"path"`
	Action merge.Action  `json:"action"`
	Status writer.Status `json:"status"`
	Source string        `json:"source,omitempty"`
	Detail string        `json:"detail,omitempty"`
	Digest string        `json:"digest,omitempty"`
	Error  string        `json:"error,omitempty"`
	Diff   string        `json:"diff,omitempty"`
}

type reportJSON struct {
	DryRun   bool                  `json:"dry_run"`
	Summary  map[writer.Status]int `json:"summary"`
	Entries  []reportEntry         `json:"entries"`
	ExitCode int                   `json:"exit_code"`
}

func printReport(out io.Writer, r *writer.Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ACTION\tSTATUS\tPATH\tDETAIL")
	for _, e := range r.Entries {
		detail := e.Detail
		if e.Error != "" {
			detail = e.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Action, e.Status, e.Path, detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, e := range r.Conflicts() {
		if diff := conflictDiff(e); diff != "" {
			fmt.Fprintf(out, "\n%s", diff)
		}
	}

	fmt.Fprintf(out, "\n%s\n", summaryLine(r))
	return nil
}

func printReportJSON(out io.Writer, r *writer.Report) error {
	doc := reportJSON{
		DryRun:   r.DryRun,
		Summary:  summary(r),
		Entries:  make([]reportEntry, 0, len(r.Entries)),
		ExitCode: r.ExitCode(),
	}
	for _, e := range r.Entries {
		entry := reportEntry{
			Path:   e.Path,
			Action: e.Action,
			Status: e.Status,
			Source: e.Source,
			Detail: e.Detail,
			Digest: e.Digest,
			Error:  e.Error,
		}
		if e.Status == writer.StatusConflicted {
			entry.Diff = conflictDiff(e)
		}
		doc.Entries = append(doc.Entries, entry)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// conflictDiff renders the difference between the file on disk and the
// generated file. Fragment conflicts carry no generated file and yield "".
func conflictDiff(e writer.Entry) string {
	if e.Content == nil {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(e.Existing)),
		B:        difflib.SplitLines(string(e.Content)),
		FromFile: e.Path + " (existing)",
		ToFile:   e.Path + " (generated)",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}

func summary(r *writer.Report) map[writer.Status]int {
	out := make(map[writer.Status]int)
	for _, e := range r.Entries {
		out[e.Status]++
	}
	return out
}

func summaryLine(r *writer.Report) string {
	order := []writer.Status{
		writer.StatusApplied,
		writer.StatusPlanned,
		writer.StatusSkipped,
		writer.StatusConflicted,
		writer.StatusFailed,
		writer.StatusNotAttempted,
	}
	counts := summary(r)
	var parts []string
	for _, s := range order {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "Nothing to do."
	}
	line := strings.Join(parts, ", ")
	if r.DryRun {
		line += " (dry run, nothing written)"
	}
	return line
}
