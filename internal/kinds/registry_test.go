package kinds

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phovea/generator-phovea/internal/errors"
)

func TestRegistryPriority(t *testing.T) {
	overlay := []*Kind{{ID: "namespace", Bundle: "custom-ns", Source: "overlay"}}
	builtin := []*Kind{
		{ID: "namespace", Bundle: "namespace", Source: "builtin"},
		{ID: "service", Bundle: "service", Source: "builtin"},
	}

	r := New(overlay, nil, builtin)
	assert.Equal(t, 2, r.Len())

	ns, err := r.Lookup("namespace")
	require.NoError(t, err)
	assert.Equal(t, "custom-ns", ns.Bundle)
	assert.Equal(t, "overlay", ns.Source)

	ids := make([]string, 0)
	for _, k := range r.Kinds() {
		ids = append(ids, k.ID)
	}
	assert.Equal(t, []string{"namespace", "service"}, ids)
}

func TestLookupUnknown(t *testing.T) {
	r := New([]*Kind{{ID: "namespace"}})

	_, err := r.Lookup("nope")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUnknownKind))
	assert.Equal(t, errors.ExitInput, errors.ExitCode(err))
}

func TestLoadFSWithoutRegistry(t *testing.T) {
	ks, err := LoadFS(fstest.MapFS{}, "empty")
	require.NoError(t, err)
	assert.Empty(t, ks)
}
