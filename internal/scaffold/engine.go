package scaffold

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/phovea/generator-phovea/internal/assets"
	"github.com/phovea/generator-phovea/internal/bundle"
	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/kinds"
	"github.com/phovea/generator-phovea/internal/logging"
	"github.com/phovea/generator-phovea/internal/placeholder"
	"github.com/phovea/generator-phovea/internal/tokens"
)

// Source is a named tree holding kinds.yaml and templates/.
type Source struct {
	Name string
	FS   fs.FS
}

// BuiltinSource returns the source embedded in the binary.
func BuiltinSource() Source {
	return Source{Name: "builtin", FS: assets.Builtin()}
}

// Engine holds the immutable bundle store and kind registry. It is safe
// for concurrent use by runs against different projects.
type Engine struct {
	bundles *bundle.Store
	kinds   *kinds.Registry
}

var (
	defaultEngine *Engine
	defaultOnce   sync.Once
	defaultErr    error
)

// Default returns the engine over the built-in source, built on first use.
func Default() (*Engine, error) {
	defaultOnce.Do(func() {
		defaultEngine, defaultErr = NewEngine(BuiltinSource())
	})
	return defaultEngine, defaultErr
}

// NewEngine loads sources in priority order: bundles and kinds from an
// earlier source hide those with the same name in later sources. The
// result is checked with Check before it is returned.
func NewEngine(sources ...Source) (*Engine, error) {
	logger := logging.GetLogger("scaffold")
	done := logging.LogOperationStart(logger, "load sources")
	defer done()

	stores := make([]*bundle.Store, 0, len(sources))
	sets := make([][]*kinds.Kind, 0, len(sources))
	for _, src := range sources {
		store, err := bundle.Load(src.FS)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		ks, err := kinds.LoadFS(src.FS, src.Name)
		if err != nil {
			return nil, err
		}
		logger.Debug().
			Str("source", src.Name).
			Int("bundles", store.Len()).
			Int("kinds", len(ks)).
			Msg("Loaded source")
		stores = append(stores, store)
		sets = append(sets, ks)
	}

	e := &Engine{bundles: bundle.Merge(stores...), kinds: kinds.New(sets...)}
	if problems := e.Check(); len(problems) > 0 {
		msgs := make([]string, len(problems))
		for i, p := range problems {
			msgs[i] = p.String()
		}
		return nil, errors.New(problems[0].Code, strings.Join(msgs, "; ")).WithDetail("problems", problems)
	}
	return e, nil
}

// Kinds returns the kind registry.
func (e *Engine) Kinds() *kinds.Registry { return e.kinds }

// Bundles returns the bundle store.
func (e *Engine) Bundles() *bundle.Store { return e.bundles }

// Problem is a static defect in a kind definition.
type Problem struct {
	Kind    string
	Code    errors.ErrorCode
	Message string
}

func (p Problem) String() string {
	return fmt.Sprintf("kind %s: %s", p.Kind, p.Message)
}

// Check validates every kind without generating anything: its bundle
// exists, its token names do not collide with derived variants, every
// placeholder in its bundle and fragments is a token Resolve guarantees,
// and no fragment targets a file the bundle renders.
func (e *Engine) Check() []Problem {
	var problems []Problem
	for _, k := range e.kinds.Kinds() {
		problems = append(problems, e.checkKind(k)...)
	}
	return problems
}

func (e *Engine) checkKind(k *kinds.Kind) []Problem {
	var problems []Problem
	add := func(code errors.ErrorCode, format string, args ...interface{}) {
		problems = append(problems, Problem{Kind: k.ID, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	guaranteed := make(map[string]bool)
	for _, name := range tokens.Guaranteed(k) {
		if guaranteed[name] {
			add(errors.ErrInvalidRegistry, "token %s collides with a derived variant", name)
		}
		guaranteed[name] = true
	}

	b, ok := e.bundles.Get(k.Bundle)
	if !ok {
		add(errors.ErrInvalidRegistry, "bundle %q not found", k.Bundle)
		return problems
	}

	unresolved := func(where string, names []string) {
		var missing []string
		for _, n := range names {
			if !guaranteed[n] {
				missing = append(missing, n)
			}
		}
		if len(missing) > 0 {
			add(errors.ErrUnresolvedToken, "%s uses %s, which no token provides", where, strings.Join(missing, ", "))
		}
	}
	unresolved("bundle "+b.Name(), b.Placeholders())

	paths := make(map[string]bool)
	for _, p := range b.Paths() {
		paths[p] = true
	}
	for i, f := range k.Fragments {
		var names []string
		for _, text := range f.Texts() {
			ns, err := placeholder.Names(text)
			if err != nil {
				add(errors.ErrMalformedTemplate, "fragment %d: %v", i, err)
				continue
			}
			names = append(names, ns...)
		}
		sort.Strings(names)
		unresolved(fmt.Sprintf("fragment %d", i), dedupe(names))

		if paths[f.Target] {
			add(errors.ErrInvalidRegistry, "fragment %d targets %s, which bundle %s renders", i, f.Target, b.Name())
		}
	}
	return problems
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
