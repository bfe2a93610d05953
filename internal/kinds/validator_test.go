package kinds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		valid bool
		path  string
	}{
		{
			name:  "minimal",
			doc:   "kinds: []\n",
			valid: true,
		},
		{
			name: "empty document",
			doc:  "",
		},
		{
			name: "unknown strategy",
			doc: `
kinds:
  - id: widget
    bundle: widget
    required: [name]
    fragments:
      - target: a.txt
        strategy: overwrite
        line: x
`,
			path: "/kinds/0/fragments/0/strategy",
		},
		{
			name: "line and requirement together",
			doc: `
kinds:
  - id: widget
    bundle: widget
    required: [name]
    fragments:
      - target: requirements.txt
        strategy: line-list
        line: flask
        requirement: {name: flask, version: "^2.0.0"}
`,
			path: "/kinds/0/fragments/0",
		},
		{
			name: "aliased seed is validated as text",
			doc: `
seeds:
  init: &init |
    # generator-phovea:end
kinds:
  - id: widget
    bundle: widget
    required: [name]
    fragments:
      - target: __init__.py
        strategy: marker-insert
        marker: "# generator-phovea:end"
        line: x
        seed: *init
`,
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Validate([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid, "%v", result.Issues)
			if tt.valid {
				assert.Empty(t, result.Issues)
				return
			}
			require.NotEmpty(t, result.Issues)
			if tt.path != "" {
				paths := make([]string, len(result.Issues))
				for i, issue := range result.Issues {
					paths[i] = issue.Path
				}
				assert.Contains(t, paths, tt.path)
			}
		})
	}
}

func TestValidateSyntaxError(t *testing.T) {
	_, err := Validate([]byte("kinds: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing YAML")
}
