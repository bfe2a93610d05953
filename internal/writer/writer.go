// Package writer applies a merge plan to the target project.
//
// Every CREATE and MERGE is written to a temporary file in the destination
// directory and renamed over the target, so a crash never leaves a half
// written file. The first I/O failure halts the run; earlier writes stay in
// place and re-running converges because they plan as SKIP_IDENTICAL.
package writer

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"

	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/logging"
	"github.com/phovea/generator-phovea/internal/merge"
)

// Status is what happened to one decision.
type Status string

const (
	StatusApplied      Status = "applied"
	StatusSkipped      Status = "skipped"
	StatusConflicted   Status = "conflicted"
	StatusFailed       Status = "failed"
	StatusNotAttempted Status = "not-attempted"
	StatusPlanned      Status = "planned" // dry run only
)

const defaultFileMode os.FileMode = 0o644

// Entry reports one decision.
type Entry struct {
	merge.Decision
	Status Status `json:"status"`
	Digest string `json:"digest,omitempty"` // blake3 of the written content
	Error  string `json:"error,omitempty"`
}

// Report is the outcome of applying a plan.
type Report struct {
	Entries []Entry `json:"entries"`
	DryRun  bool    `json:"dry_run,omitempty"`

	// Err is the write failure that halted the run, if any.
	Err error `json:"-"`
}

// Apply executes decisions against fs in order.
func Apply(fs afero.Fs, decisions []merge.Decision) *Report {
	logger := logging.GetLogger("writer")
	report := &Report{Entries: make([]Entry, 0, len(decisions))}

	for _, d := range decisions {
		e := Entry{Decision: d}
		switch {
		case d.Action == merge.ActionConflict:
			e.Status = StatusConflicted
		case !d.Action.Writes():
			e.Status = StatusSkipped
		case report.Err != nil:
			e.Status = StatusNotAttempted
		default:
			if err := writeFile(fs, d.Path, d.Content); err != nil {
				e.Status = StatusFailed
				e.Error = err.Error()
				report.Err = err
				logger.Error().Err(err).Str("path", d.Path).Msg("Write failed, halting")
			} else {
				e.Status = StatusApplied
				e.Digest = Digest(d.Content)
				logger.Debug().Str("path", d.Path).Str("action", string(d.Action)).Msg("Wrote file")
			}
		}
		report.Entries = append(report.Entries, e)
	}

	logger.Info().
		Int("applied", report.Count(StatusApplied)).
		Int("skipped", report.Count(StatusSkipped)).
		Int("conflicted", report.Count(StatusConflicted)).
		Int("failed", report.Count(StatusFailed)).
		Msg("Plan applied")
	return report
}

// Preview reports what Apply would do without touching the disk.
func Preview(decisions []merge.Decision) *Report {
	report := &Report{Entries: make([]Entry, 0, len(decisions)), DryRun: true}
	for _, d := range decisions {
		e := Entry{Decision: d}
		switch {
		case d.Action == merge.ActionConflict:
			e.Status = StatusConflicted
		case d.Action.Writes():
			e.Status = StatusPlanned
			e.Digest = Digest(d.Content)
		default:
			e.Status = StatusSkipped
		}
		report.Entries = append(report.Entries, e)
	}
	return report
}

// Count returns the number of entries with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == s {
			n++
		}
	}
	return n
}

// Conflicts returns the conflicted entries.
func (r *Report) Conflicts() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Status == StatusConflicted {
			out = append(out, e)
		}
	}
	return out
}

// Actions returns the planned action of every entry in order.
func (r *Report) Actions() []merge.Action {
	out := make([]merge.Action, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Action
	}
	return out
}

// ExitCode maps the report to the CLI contract: 3 after a write failure,
// 1 when any decision conflicted, 0 otherwise.
func (r *Report) ExitCode() int {
	switch {
	case r.Err != nil:
		return errors.ExitWrite
	case r.Count(StatusConflicted) > 0:
		return errors.ExitConflict
	default:
		return errors.ExitOK
	}
}

// Digest returns the hex blake3 digest of content.
func Digest(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// writeFile atomically replaces p with content. An existing file keeps its
// permission bits.
func writeFile(fs afero.Fs, p string, content []byte) error {
	name := filepath.FromSlash(p)
	dir := filepath.Dir(name)

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrWriteFailed, "creating directory for %s", p).WithDetail("path", p)
	}

	mode := defaultFileMode
	if info, err := fs.Stat(name); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, errors.ErrWriteFailed, "creating temp file for %s", p).WithDetail("path", p)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, errors.ErrWriteFailed, "writing %s", p).WithDetail("path", p)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, errors.ErrWriteFailed, "syncing %s", p).WithDetail("path", p)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrWriteFailed, "closing temp file for %s", p).WithDetail("path", p)
	}
	if err := fs.Chmod(tmpName, mode); err != nil {
		return errors.Wrapf(err, errors.ErrWriteFailed, "setting mode of %s", p).WithDetail("path", p)
	}
	if err := fs.Rename(tmpName, name); err != nil {
		return errors.Wrapf(err, errors.ErrWriteFailed, "replacing %s", p).WithDetail("path", p)
	}

	success = true
	return nil
}
