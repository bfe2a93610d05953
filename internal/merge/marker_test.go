package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phovea/generator-phovea/internal/kinds"
)

const initPy = `def phovea(registry):
  # generator-phovea:begin
  registry.append('namespace', 'a', 'demo.a', {})
  # generator-phovea:end
  pass
`

func registration(line string) kinds.Fragment {
	return kinds.Fragment{
		Target:   "demo/__init__.py",
		Strategy: kinds.StrategyMarkerInsert,
		Marker:   "  # generator-phovea:end",
		Line:     line,
		Seed:     "def phovea(registry):\n  # generator-phovea:end\n",
	}
}

func TestEnsureBeforeMarker(t *testing.T) {
	o := ensureBeforeMarker([]byte(initPy), true, registration("  registry.append('namespace', 'b', 'demo.b', {})"))
	require.Equal(t, ActionMerge, o.action)
	assert.Equal(t, `def phovea(registry):
  # generator-phovea:begin
  registry.append('namespace', 'a', 'demo.a', {})
  registry.append('namespace', 'b', 'demo.b', {})
  # generator-phovea:end
  pass
`, string(o.content))
}

func TestEnsureBeforeMarkerPresent(t *testing.T) {
	o := ensureBeforeMarker([]byte(initPy), true, registration("  registry.append('namespace', 'a', 'demo.a', {})"))
	assert.Equal(t, ActionSkipIdentical, o.action)
}

func TestEnsureBeforeMarkerMissingAnchor(t *testing.T) {
	o := ensureBeforeMarker([]byte("def phovea(registry):\n  pass\n"), true, registration("  registry.append('x')"))
	assert.Equal(t, ActionConflict, o.action)
	assert.Contains(t, o.detail, "generator-phovea:end")
}

func TestEnsureBeforeMarkerSeedsMissingFile(t *testing.T) {
	o := ensureBeforeMarker(nil, false, registration("  registry.append('x')"))
	require.Equal(t, ActionMerge, o.action)
	assert.Equal(t, "def phovea(registry):\n  registry.append('x')\n  # generator-phovea:end\n", string(o.content))

	f := registration("  registry.append('x')")
	f.Seed = ""
	o = ensureBeforeMarker(nil, false, f)
	assert.Equal(t, ActionConflict, o.action)
}

func TestEnsureBeforeMarkerCRLF(t *testing.T) {
	o := ensureBeforeMarker([]byte("a\r\n  # generator-phovea:end\r\n"), true, registration("  x"))
	require.Equal(t, ActionMerge, o.action)
	assert.Equal(t, "a\r\n  x\r\n  # generator-phovea:end\r\n", string(o.content))
}
