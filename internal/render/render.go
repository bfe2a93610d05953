// Package render substitutes token values into template bundles and
// manifest fragments. Rendering is pure: it never touches the disk, and the
// same inputs always give the same output.
package render

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/phovea/generator-phovea/internal/bundle"
	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/kinds"
	"github.com/phovea/generator-phovea/internal/placeholder"
	"github.com/phovea/generator-phovea/internal/tokens"
)

// File is a rendered template file.
type File struct {
	Path     string // slash-separated, relative to the project root
	Content  string
	Mode     bundle.Mode
	Template string // source location of the template
}

// Fragment is a manifest fragment with its tokens substituted.
type Fragment struct {
	kinds.Fragment
	Index int // position in the kind's fragment list
}

// Output is everything one run renders.
type Output struct {
	Files     []File
	Fragments []Fragment
}

// Render renders every file of b and every fragment. All markers are checked
// before anything is expanded, so an unresolved token aborts the whole
// render.
func Render(b *bundle.Bundle, fragments []kinds.Fragment, ctx tokens.Context) (*Output, error) {
	if err := check(b, fragments, ctx); err != nil {
		return nil, err
	}

	files, err := renderFiles(b, ctx)
	if err != nil {
		return nil, err
	}
	frags, err := renderFragments(fragments, ctx)
	if err != nil {
		return nil, err
	}

	rendered := make(map[string]bool, len(files))
	for _, f := range files {
		rendered[f.Path] = true
	}
	for _, f := range frags {
		if rendered[f.Target] {
			return nil, errors.Newf(errors.ErrMalformedTemplate,
				"fragment %d targets %s, which the bundle %s also renders", f.Index, f.Target, b.Name())
		}
	}
	return &Output{Files: files, Fragments: frags}, nil
}

// Files renders only the bundle.
func Files(b *bundle.Bundle, ctx tokens.Context) ([]File, error) {
	if err := check(b, nil, ctx); err != nil {
		return nil, err
	}
	return renderFiles(b, ctx)
}

func check(b *bundle.Bundle, fragments []kinds.Fragment, ctx tokens.Context) error {
	unresolved := make(map[string][]string)
	scan := func(where, text string) error {
		missing, err := placeholder.Missing(text, ctx)
		if err != nil {
			return errors.Wrapf(err, errors.ErrMalformedTemplate, "%s", where)
		}
		for _, name := range missing {
			unresolved[name] = append(unresolved[name], where)
		}
		return nil
	}

	for _, f := range b.Files() {
		if err := scan(f.Source, f.Path); err != nil {
			return err
		}
		if f.Mode.Substituted() {
			if err := scan(f.Source, f.Content); err != nil {
				return err
			}
		}
	}
	for i, f := range fragments {
		where := fmt.Sprintf("fragment %d (%s)", i, f.Target)
		for _, text := range f.Texts() {
			if err := scan(where, text); err != nil {
				return err
			}
		}
	}

	if len(unresolved) == 0 {
		return nil
	}
	names := make([]string, 0, len(unresolved))
	for n := range unresolved {
		names = append(names, n)
	}
	sort.Strings(names)
	return errors.Newf(errors.ErrUnresolvedToken, "bundle %s: no value for %s (used in %s)",
		b.Name(), strings.Join(names, ", "), strings.Join(unique(unresolved[names[0]]), ", ")).
		WithDetail("tokens", names)
}

func renderFiles(b *bundle.Bundle, ctx tokens.Context) ([]File, error) {
	templates := b.Files()
	files := make([]File, 0, len(templates))
	seen := make(map[string]string, len(templates))

	for _, t := range templates {
		p, err := expandPath(t.Path, ctx)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrMalformedTemplate, "%s", t.Source)
		}
		if prev, ok := seen[p]; ok {
			return nil, errors.Newf(errors.ErrMalformedTemplate, "%s and %s both render to %s", prev, t.Source, p)
		}
		seen[p] = t.Source

		content := t.Content
		if t.Mode.Substituted() {
			content, err = placeholder.Expand(t.Content, ctx)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrUnresolvedToken, "%s", t.Source)
			}
		}
		files = append(files, File{Path: p, Content: content, Mode: t.Mode, Template: t.Source})
	}
	return files, nil
}

func renderFragments(fragments []kinds.Fragment, ctx tokens.Context) ([]Fragment, error) {
	out := make([]Fragment, 0, len(fragments))
	for i, f := range fragments {
		r := Fragment{Fragment: f, Index: i}
		var err error
		expand := func(s string) string {
			if err != nil {
				return s
			}
			var v string
			v, err = placeholder.Expand(s, ctx)
			return v
		}

		r.Target = expand(f.Target)
		r.Path = expand(f.Path)
		r.Line = expand(f.Line)
		r.Marker = expand(f.Marker)
		r.Seed = expand(f.Seed)
		if len(f.Value) > 0 {
			r.Value = json.RawMessage(expand(string(f.Value)))
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrUnresolvedToken, "fragment %d", i)
		}

		target, perr := cleanPath(r.Target)
		if perr != nil {
			return nil, errors.Wrapf(perr, errors.ErrMalformedTemplate, "fragment %d", i)
		}
		r.Target = target
		if len(r.Value) > 0 && !json.Valid(r.Value) {
			return nil, errors.Newf(errors.ErrMalformedTemplate, "fragment %d: value is not valid JSON after substitution", i)
		}
		out = append(out, r)
	}
	return out, nil
}

func expandPath(tmpl string, ctx tokens.Context) (string, error) {
	p, err := placeholder.Expand(tmpl, ctx)
	if err != nil {
		return "", err
	}
	return cleanPath(p)
}

// cleanPath normalizes a rendered path and rejects anything that does not
// stay inside the project root.
func cleanPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	if path.IsAbs(p) || strings.HasPrefix(p, `\`) {
		return "", fmt.Errorf("absolute path %q", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q leaves the project", p)
	}
	return clean, nil
}

func unique(s []string) []string {
	seen := make(map[string]bool, len(s))
	out := s[:0:0]
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
