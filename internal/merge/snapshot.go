package merge

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/phovea/generator-phovea/internal/errors"
)

// Snapshot is a read-through view of the target project. Each path is
// read at most once, so every decision of a plan sees the same bytes.
type Snapshot struct {
	fs    afero.Fs
	cache map[string]snapshotEntry
}

type snapshotEntry struct {
	data   []byte
	exists bool
	isDir  bool
}

// NewSnapshot returns a snapshot over fs. Paths are slash-separated and
// relative to the root of fs.
func NewSnapshot(fs afero.Fs) *Snapshot {
	return &Snapshot{fs: fs, cache: make(map[string]snapshotEntry)}
}

// Read returns the content of p and whether a regular file exists there.
// isDir reports a directory occupying p.
func (s *Snapshot) Read(p string) (data []byte, exists, isDir bool, err error) {
	if e, ok := s.cache[p]; ok {
		return e.data, e.exists, e.isDir, nil
	}

	name := filepath.FromSlash(p)
	info, err := s.fs.Stat(name)
	switch {
	case err == nil:
	case stderrors.Is(err, fs.ErrNotExist), stderrors.Is(err, os.ErrNotExist), isNotDir(err):
		s.cache[p] = snapshotEntry{}
		return nil, false, false, nil
	default:
		return nil, false, false, errors.Wrapf(err, errors.ErrReadFailed, "stat %s", p)
	}

	if info.IsDir() {
		s.cache[p] = snapshotEntry{isDir: true}
		return nil, false, true, nil
	}

	data, err = afero.ReadFile(s.fs, name)
	if err != nil {
		return nil, false, false, errors.Wrapf(err, errors.ErrReadFailed, "reading %s", p)
	}
	s.cache[p] = snapshotEntry{data: data, exists: true}
	return data, true, false, nil
}

// isNotDir reports the error returned when a parent path component is a
// regular file. The path cannot exist, so it is treated as missing and the
// writer reports the failure if it is ever written.
func isNotDir(err error) bool {
	var pe *fs.PathError
	if stderrors.As(err, &pe) {
		return stderrors.Is(pe.Err, errNotDir)
	}
	return false
}
