package writer

import (
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/merge"
)

func decision(path string, action merge.Action, content string) merge.Decision {
	d := merge.Decision{Path: path, Action: action}
	if content != "" {
		d.Content = []byte(content)
	}
	return d
}

func assertNoTempFiles(t *testing.T, fs afero.Fs) {
	t.Helper()
	err := afero.Walk(fs, "", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		assert.False(t, strings.HasSuffix(path, ".tmp"), "leftover temp file %s", path)
		return nil
	})
	require.NoError(t, err)
}

func TestApply(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "requirements.txt", []byte("flask\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "demo/edited.py", []byte("mine\n"), 0o644))

	report := Apply(fs, []merge.Decision{
		decision("demo/sample.py", merge.ActionCreate, "app = 1\n"),
		decision("requirements.txt", merge.ActionMerge, "flask\ntdp_core\n"),
		decision("demo/same.py", merge.ActionSkipIdentical, ""),
		decision("demo/edited.py", merge.ActionConflict, "theirs\n"),
	})

	require.NoError(t, report.Err)
	assert.Equal(t, []Status{StatusApplied, StatusApplied, StatusSkipped, StatusConflicted},
		[]Status{report.Entries[0].Status, report.Entries[1].Status, report.Entries[2].Status, report.Entries[3].Status})
	assert.Equal(t, errors.ExitConflict, report.ExitCode())
	assert.Len(t, report.Conflicts(), 1)

	data, err := afero.ReadFile(fs, "demo/sample.py")
	require.NoError(t, err)
	assert.Equal(t, "app = 1\n", string(data))
	assert.Equal(t, Digest([]byte("app = 1\n")), report.Entries[0].Digest)

	data, err = afero.ReadFile(fs, "requirements.txt")
	require.NoError(t, err)
	assert.Equal(t, "flask\ntdp_core\n", string(data))

	data, err = afero.ReadFile(fs, "demo/edited.py")
	require.NoError(t, err)
	assert.Equal(t, "mine\n", string(data), "conflicts are never written")

	assertNoTempFiles(t, fs)
}

func TestApplyKeepsFileMode(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "run.sh", []byte("#!/bin/sh\n"), 0o755))

	report := Apply(fs, []merge.Decision{decision("run.sh", merge.ActionMerge, "#!/bin/sh\necho hi\n")})
	require.NoError(t, report.Err)

	info, err := fs.Stat("run.sh")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestApplyHaltsOnFirstFailure(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())

	report := Apply(fs, []merge.Decision{
		decision("a.txt", merge.ActionCreate, "a"),
		decision("b.txt", merge.ActionSkipIdentical, ""),
		decision("c.txt", merge.ActionCreate, "c"),
		decision("d.txt", merge.ActionConflict, "d"),
	})

	require.Error(t, report.Err)
	assert.True(t, errors.IsCode(report.Err, errors.ErrWriteFailed))
	assert.Contains(t, report.Err.Error(), "a.txt")
	assert.Equal(t, StatusFailed, report.Entries[0].Status)
	assert.NotEmpty(t, report.Entries[0].Error)
	assert.Equal(t, StatusSkipped, report.Entries[1].Status)
	assert.Equal(t, StatusNotAttempted, report.Entries[2].Status)
	assert.Equal(t, StatusConflicted, report.Entries[3].Status)
	assert.Equal(t, errors.ExitWrite, report.ExitCode())
}

func TestApplyKeepsEarlierWrites(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("locked", 0o755))
	fs := &failingFs{Fs: base, failDir: "locked"}

	report := Apply(fs, []merge.Decision{
		decision("ok.txt", merge.ActionCreate, "ok"),
		decision("locked/x.txt", merge.ActionCreate, "x"),
		decision("later.txt", merge.ActionCreate, "later"),
	})

	assert.Equal(t, errors.ExitWrite, report.ExitCode())
	assert.Equal(t, StatusApplied, report.Entries[0].Status)
	assert.Equal(t, StatusFailed, report.Entries[1].Status)
	assert.Equal(t, StatusNotAttempted, report.Entries[2].Status)

	exists, err := afero.Exists(base, "ok.txt")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = afero.Exists(base, "later.txt")
	require.NoError(t, err)
	assert.False(t, exists)
	assertNoTempFiles(t, base)
}

func TestPreview(t *testing.T) {
	report := Preview([]merge.Decision{
		decision("a.txt", merge.ActionCreate, "a"),
		decision("b.txt", merge.ActionSkipIdentical, ""),
		decision("c.txt", merge.ActionConflict, "c"),
	})
	assert.True(t, report.DryRun)
	assert.Equal(t, StatusPlanned, report.Entries[0].Status)
	assert.Equal(t, StatusSkipped, report.Entries[1].Status)
	assert.Equal(t, StatusConflicted, report.Entries[2].Status)
	assert.Equal(t, []merge.Action{merge.ActionCreate, merge.ActionSkipIdentical, merge.ActionConflict}, report.Actions())
	assert.Equal(t, errors.ExitConflict, report.ExitCode())
}

func TestExitCodeClean(t *testing.T) {
	report := Apply(afero.NewMemMapFs(), []merge.Decision{decision("a.txt", merge.ActionCreate, "a")})
	assert.Equal(t, errors.ExitOK, report.ExitCode())
}

// failingFs fails renames into one directory, after the temp file has been
// written, to exercise cleanup.
type failingFs struct {
	afero.Fs
	failDir string
}

func (f *failingFs) Rename(oldname, newname string) error {
	if strings.HasPrefix(newname, f.failDir+string(os.PathSeparator)) {
		return &os.PathError{Op: "rename", Path: newname, Err: os.ErrPermission}
	}
	return f.Fs.Rename(oldname, newname)
}
