// Package bundle holds the template bundles a source provides.
//
// A source lays bundles out as templates/<bundle>/<mode>/<path template>.
// The mode directory decides how a file is written: processed files have
// tokens substituted in path and content, plain files only in the path, and
// initialize_once files are processed but never replace an existing file.
// A trailing .tmpl is dropped from every file name.
package bundle

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/logging"
	"github.com/phovea/generator-phovea/internal/placeholder"
)

// Root is the directory of a source that holds bundles.
const Root = "templates"

// Mode is the write mode of a template file.
type Mode string

const (
	ModeProcessed      Mode = "processed"
	ModePlain          Mode = "plain"
	ModeInitializeOnce Mode = "initialize_once"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeProcessed, ModePlain, ModeInitializeOnce:
		return true
	}
	return false
}

// Substituted reports whether file contents of this mode carry markers.
func (m Mode) Substituted() bool {
	return m != ModePlain
}

// File is one template file of a bundle.
type File struct {
	Path    string // slash-separated path template, .tmpl stripped
	Content string
	Mode    Mode
	Source  string // location inside the source FS
}

// Bundle is an ordered, immutable set of template files.
type Bundle struct {
	name         string
	files        []File
	placeholders []string
}

// Name returns the bundle name.
func (b *Bundle) Name() string { return b.name }

// Files returns the template files ordered by path template.
func (b *Bundle) Files() []File {
	out := make([]File, len(b.files))
	copy(out, b.files)
	return out
}

// Placeholders returns the sorted token names used anywhere in the bundle.
func (b *Bundle) Placeholders() []string {
	out := make([]string, len(b.placeholders))
	copy(out, b.placeholders)
	return out
}

// Paths returns the path templates of the bundle.
func (b *Bundle) Paths() []string {
	paths := make([]string, len(b.files))
	for i, f := range b.files {
		paths[i] = f.Path
	}
	return paths
}

// Store maps bundle names to bundles. It is read-only after Load.
type Store struct {
	bundles map[string]*Bundle
}

// Get returns the named bundle.
func (s *Store) Get(name string) (*Bundle, bool) {
	b, ok := s.bundles[name]
	return b, ok
}

// Names returns the sorted bundle names.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.bundles))
	for n := range s.bundles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bundles.
func (s *Store) Len() int { return len(s.bundles) }

// Merge combines stores; the first store providing a bundle name wins.
func Merge(stores ...*Store) *Store {
	merged := &Store{bundles: make(map[string]*Bundle)}
	for _, s := range stores {
		if s == nil {
			continue
		}
		for name, b := range s.bundles {
			if _, ok := merged.bundles[name]; !ok {
				merged.bundles[name] = b
			}
		}
	}
	return merged
}

// Load reads every bundle under templates/ in fsys. A source without a
// templates directory yields an empty store. Marker syntax is validated in
// every path template and in the content of every substituted file.
func Load(fsys fs.FS) (*Store, error) {
	logger := logging.GetLogger("bundle")
	store := &Store{bundles: make(map[string]*Bundle)}

	if _, err := fs.Stat(fsys, Root); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return store, nil
		}
		return nil, errors.Wrap(err, errors.ErrReadFailed, "reading template root")
	}

	files := make(map[string][]File)
	err := fs.WalkDir(fsys, Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel := strings.TrimPrefix(p, Root+"/")
		parts := strings.SplitN(rel, "/", 3)
		if len(parts) != 3 {
			return errors.Newf(errors.ErrMalformedTemplate, "%s: expected templates/<bundle>/<mode>/<file>", p)
		}
		name, mode, tmplPath := parts[0], Mode(parts[1]), parts[2]
		if !mode.Valid() {
			return errors.Newf(errors.ErrMalformedTemplate, "%s: unknown mode %q", p, mode)
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return errors.Wrapf(err, errors.ErrReadFailed, "reading %s", p)
		}

		f := File{
			Path:    stripTmpl(tmplPath),
			Content: string(data),
			Mode:    mode,
			Source:  p,
		}
		if _, err := placeholder.Scan(f.Path); err != nil {
			return errors.Wrapf(err, errors.ErrMalformedTemplate, "%s: path", p)
		}
		if mode.Substituted() {
			if _, err := placeholder.Scan(f.Content); err != nil {
				return errors.Wrapf(err, errors.ErrMalformedTemplate, "%s", p)
			}
		}
		files[name] = append(files[name], f)
		return nil
	})
	if err != nil {
		if errors.CodeOf(err) == "" {
			return nil, errors.Wrap(err, errors.ErrReadFailed, "walking templates")
		}
		return nil, err
	}

	for name, fl := range files {
		b, err := newBundle(name, fl)
		if err != nil {
			return nil, err
		}
		store.bundles[name] = b
		logger.Debug().Str("bundle", name).Int("files", len(fl)).Msg("Loaded bundle")
	}
	return store, nil
}

func newBundle(name string, files []File) (*Bundle, error) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	used := make(map[string]bool)
	for i, f := range files {
		if i > 0 && files[i-1].Path == f.Path {
			return nil, errors.Newf(errors.ErrMalformedTemplate,
				"bundle %s: %s and %s render to the same path", name, files[i-1].Source, f.Source)
		}
		if err := checkLocal(f.Path); err != nil {
			return nil, errors.Wrapf(err, errors.ErrMalformedTemplate, "bundle %s: %s", name, f.Source)
		}
		texts := []string{f.Path}
		if f.Mode.Substituted() {
			texts = append(texts, f.Content)
		}
		for _, text := range texts {
			names, err := placeholder.Names(text)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrMalformedTemplate, "bundle %s: %s", name, f.Source)
			}
			for _, n := range names {
				used[n] = true
			}
		}
	}

	placeholders := make([]string, 0, len(used))
	for n := range used {
		placeholders = append(placeholders, n)
	}
	sort.Strings(placeholders)

	return &Bundle{name: name, files: files, placeholders: placeholders}, nil
}

// checkLocal rejects path templates that can never name a file inside the
// target project.
func checkLocal(p string) error {
	if path.IsAbs(p) {
		return fmt.Errorf("absolute path %q", p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return fmt.Errorf("path %q leaves the project", p)
		}
	}
	return nil
}

func stripTmpl(p string) string {
	dir, file := path.Split(p)
	return dir + strings.TrimSuffix(file, ".tmpl")
}
