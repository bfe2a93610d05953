package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/kinds"
)

func namespaceKind() *kinds.Kind {
	return &kinds.Kind{
		ID:       "namespace",
		Bundle:   "namespace",
		Required: []string{"moduleName"},
		Optional: []kinds.Optional{
			{Name: "plugin", FromProject: true},
			{Name: "idType", Default: "Ensembl"},
		},
	}
}

func TestWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"sample", []string{"sample"}},
		{"moduleName", []string{"module", "Name"}},
		{"gene_score", []string{"gene", "score"}},
		{"my-table.view", []string{"my", "table", "view"}},
		{"mapTDPGenes", []string{"map", "TDP", "Genes"}},
		{"HTTPServer", []string{"HTTP", "Server"}},
		{"v2Api", []string{"v2", "Api"}},
		{"  two  words ", []string{"two", "words"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Words(tt.in), tt.in)
	}
}

func TestDerive(t *testing.T) {
	got := Derive("module", "gene_score")
	assert.Equal(t, map[string]string{
		"module":       "gene_score",
		"modulePascal": "GeneScore",
		"moduleCamel":  "geneScore",
		"moduleSnake":  "gene_score",
		"moduleKebab":  "gene-score",
		"moduleUpper":  "GENE_SCORE",
	}, got)

	got = Derive("id", "mapTDPGenes")
	assert.Equal(t, "MapTDPGenes", got["idPascal"])
	assert.Equal(t, "mapTDPGenes", got["idCamel"])
	assert.Equal(t, "map_tdp_genes", got["idSnake"])
	assert.Equal(t, "map-tdp-genes", got["idKebab"])
	assert.Equal(t, "MAP_TDP_GENES", got["idUpper"])
}

func TestDeriveIsDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, Derive("x", "Some Value-42"), Derive("x", "Some Value-42"))
	}
}

func TestResolve(t *testing.T) {
	ctx, err := Resolve(namespaceKind(), map[string]string{
		"moduleName": "  sample ",
		"plugin":     "demo_plugin",
		"unrelated":  "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "sample", ctx["moduleName"])
	assert.Equal(t, "Sample", ctx["moduleNamePascal"])
	assert.Equal(t, "demo_plugin", ctx["plugin"])
	assert.Equal(t, "DemoPlugin", ctx["pluginPascal"])
	assert.Equal(t, "Ensembl", ctx["idType"])
	assert.NotContains(t, ctx, "unrelated")
	assert.Equal(t, Guaranteed(namespaceKind()), ctx.Names())
}

func TestResolveMissing(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]string
	}{
		{"absent", map[string]string{"plugin": "p"}},
		{"empty", map[string]string{"moduleName": "", "plugin": "p"}},
		{"whitespace", map[string]string{"moduleName": " \t", "plugin": "p"}},
		{"project token absent", map[string]string{"moduleName": "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(namespaceKind(), tt.raw)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrMissingToken), err.Error())
		})
	}
}

func TestResolveInvalid(t *testing.T) {
	for _, v := range []string{"a/b", `a\b`, "a:b", "x*", "q?", `"q"`, "<a>", "a|b", "..", ".", "___", "tab\x01"} {
		_, err := Resolve(namespaceKind(), map[string]string{"moduleName": v, "plugin": "p"})
		require.Error(t, err, v)
		assert.True(t, errors.IsCode(err, errors.ErrInvalidToken), "%q: %v", v, err)
	}
}

func TestGuaranteed(t *testing.T) {
	k := &kinds.Kind{ID: "mapping-provider", Required: []string{"module"}}
	assert.Equal(t, []string{
		"module", "moduleCamel", "moduleKebab", "modulePascal", "moduleSnake", "moduleUpper",
	}, Guaranteed(k))
}
