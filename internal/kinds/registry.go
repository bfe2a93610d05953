package kinds

import (
	stderrors "errors"
	"io/fs"
	"sort"

	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/logging"
)

// Registry maps kind ids to kinds. It is read-only after construction and
// safe for concurrent use.
type Registry struct {
	kinds map[string]*Kind
}

// LoadFS parses kinds.yaml from fsys. A source without the file provides
// no kinds.
func LoadFS(fsys fs.FS, source string) ([]*Kind, error) {
	data, err := fs.ReadFile(fsys, FileName)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrReadFailed, "%s: reading %s", source, FileName)
	}
	return Parse(data, source)
}

// New builds a registry from kind sets in priority order: a kind id defined
// by an earlier set hides the same id in later sets.
func New(sets ...[]*Kind) *Registry {
	logger := logging.GetLogger("kinds")
	r := &Registry{kinds: make(map[string]*Kind)}
	for _, set := range sets {
		for _, k := range set {
			if prev, ok := r.kinds[k.ID]; ok {
				logger.Debug().
					Str("kind", k.ID).
					Str("source", k.Source).
					Str("shadowed_by", prev.Source).
					Msg("Kind shadowed by higher priority source")
				continue
			}
			r.kinds[k.ID] = k
		}
	}
	return r
}

// Lookup returns the kind registered under id.
func (r *Registry) Lookup(id string) (*Kind, error) {
	k, ok := r.kinds[id]
	if !ok {
		return nil, errors.Newf(errors.ErrUnknownKind, "unknown extension kind %q", id).
			WithDetail("kind", id).
			WithDetail("known", r.IDs())
	}
	return k, nil
}

// IDs returns the sorted kind ids.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.kinds))
	for id := range r.kinds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Kinds returns all kinds ordered by id.
func (r *Registry) Kinds() []*Kind {
	ids := r.IDs()
	out := make([]*Kind, len(ids))
	for i, id := range ids {
		out[i] = r.kinds[id]
	}
	return out
}

// Len returns the number of registered kinds.
func (r *Registry) Len() int { return len(r.kinds) }
