package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func execute(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// newProject returns a project directory whose .yo-rc.json names it demo.
func newProject(t *testing.T) string {
	t.Helper()
	t.Setenv("PHOVEA_HOME", t.TempDir())
	t.Setenv("PHOVEA_TEMPLATES_DIR", "")
	dir := t.TempDir()
	writeFile(t, dir, ".yo-rc.json", "{\n  \"generator-phovea\": {\n    \"name\": \"demo\"\n  }\n}\n")
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func TestAddNamespace(t *testing.T) {
	dir := newProject(t)

	first := execute(t, "add", "namespace", "sample", "-C", dir)
	require.Equal(t, 0, first.code, first.stderr)
	assert.Contains(t, first.stdout, "CREATE")
	assert.Contains(t, first.stdout, "demo/sample.py")
	assert.FileExists(t, filepath.Join(dir, "demo", "sample.py"))
	assert.Contains(t, readFile(t, dir, "demo/__init__.py"), "registry.append('namespace', 'sample', 'demo.sample'")

	second := execute(t, "add", "namespace", "--moduleName", "sample", "-C", dir)
	require.Equal(t, 0, second.code, second.stderr)
	assert.NotContains(t, second.stdout, "CREATE")
	assert.NotContains(t, second.stdout, "MERGE")
	assert.Contains(t, second.stdout, "SKIP_IDENTICAL")
}

func TestAddConflictLeavesFileAlone(t *testing.T) {
	dir := newProject(t)
	writeFile(t, dir, "demo/sample.py", "# mine\n")

	res := execute(t, "add", "namespace", "sample", "-C", dir)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stdout, "--- demo/sample.py (existing)")
	assert.Contains(t, res.stdout, "+++ demo/sample.py (generated)")
	assert.Contains(t, res.stdout, "-# mine")
	assert.Contains(t, res.stderr, "CONFLICT")
	assert.Equal(t, "# mine\n", readFile(t, dir, "demo/sample.py"))
}

func TestAddInputErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing token", args: []string{"add", "table-view", "--module", "views"}, want: "MISSING_TOKEN"},
		{name: "unknown kind", args: []string{"add", "widget"}, want: "UNKNOWN_KIND"},
		{name: "bad set pair", args: []string{"add", "service", "--set", "serviceName"}, want: "expected name=value"},
		{name: "undeclared set token", args: []string{"add", "service", "--set", "color=red"}, want: "has no token color"},
		{name: "unknown flag", args: []string{"add", "service", "--colour", "red"}, want: "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newProject(t)
			res := execute(t, append(tt.args, "-C", dir)...)
			assert.Equal(t, 2, res.code)
			assert.Contains(t, res.stderr, tt.want)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1, "only .yo-rc.json may exist")
		})
	}
}

func TestAddDryRun(t *testing.T) {
	dir := newProject(t)

	res := execute(t, "add", "service", "my_service", "--dry-run", "-C", dir)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "planned")
	assert.Contains(t, res.stdout, "dry run, nothing written")
	assert.NoFileExists(t, filepath.Join(dir, "requirements.txt"))
	assert.NoDirExists(t, filepath.Join(dir, "my_service"))
}

func TestAddJSON(t *testing.T) {
	dir := newProject(t)

	res := execute(t, "add", "service", "--set", "serviceName=my_service", "--json", "-C", dir)
	require.Equal(t, 0, res.code, res.stderr)

	var report reportJSON
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.False(t, report.DryRun)
	assert.Equal(t, 0, report.ExitCode)
	require.NotEmpty(t, report.Entries)
	for _, e := range report.Entries {
		assert.Equal(t, "applied", string(e.Status), e.Path)
		assert.Len(t, e.Digest, 64, e.Path)
	}
	assert.Equal(t, "phovea_server>=5.0.0,<6.0.0\n", readFile(t, dir, "requirements.txt"))
}

func TestAddWriteFailure(t *testing.T) {
	dir := newProject(t)
	// A plain file where the plugin directory has to go.
	writeFile(t, dir, "demo", "not a directory\n")

	res := execute(t, "add", "namespace", "sample", "-C", dir)
	assert.Equal(t, 3, res.code)
	assert.Contains(t, res.stdout, "failed")
	assert.Contains(t, res.stderr, "WRITE_FAILED")
	assert.Equal(t, "not a directory\n", readFile(t, dir, "demo"))
}

func TestKinds(t *testing.T) {
	newProject(t)

	res := execute(t, "kinds", "--json")
	require.Equal(t, 0, res.code, res.stderr)

	var entries []kindEntry
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"namespace", "mapping-provider", "table-view", "service", "score"}, ids)

	table := execute(t, "kinds")
	require.Equal(t, 0, table.code)
	assert.Contains(t, table.stdout, "KIND")
	assert.Contains(t, table.stdout, "serviceName")
}

func TestCheck(t *testing.T) {
	newProject(t)

	ok := execute(t, "check")
	require.Equal(t, 0, ok.code, ok.stderr)
	assert.Contains(t, ok.stdout, "5 kinds")

	overlay := t.TempDir()
	writeFile(t, overlay, "kinds.yaml", `
kinds:
  - id: widget
    bundle: widget
    required: [name]
`)
	bad := execute(t, "check", overlay)
	assert.Equal(t, 2, bad.code)
	assert.Contains(t, bad.stdout, "INVALID_REGISTRY")
	assert.Contains(t, bad.stdout, "kind widget")
}

func TestTemplatesDirOverlay(t *testing.T) {
	dir := newProject(t)
	overlay := t.TempDir()
	writeFile(t, overlay, "kinds.yaml", `
kinds:
  - id: readme
    label: README
    bundle: readme
    required: [title]
    fragments:
      - target: package.json
        strategy: structured-document
        path: keywords
        mode: member
        value: "{{titleKebab}}"
`)
	writeFile(t, overlay, "templates/readme/processed/README.md.tmpl", "# {{title}}\n")
	t.Setenv("PHOVEA_TEMPLATES_DIR", overlay)

	res := execute(t, "add", "readme", "My Plugin", "-C", dir)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "# My Plugin\n", readFile(t, dir, "README.md"))
	assert.JSONEq(t, `{"keywords": ["my-plugin"]}`, readFile(t, dir, "package.json"))

	// Built-in kinds stay available.
	assert.Equal(t, 0, execute(t, "add", "service", "svc", "--dry-run", "-C", dir).code)
}

func TestTemplatesDirMissing(t *testing.T) {
	newProject(t)
	t.Setenv("PHOVEA_TEMPLATES_DIR", filepath.Join(t.TempDir(), "nope"))

	res := execute(t, "kinds")
	assert.Equal(t, 3, res.code)
	assert.Contains(t, res.stderr, "READ_FAILED")
}

func TestConfigSetGet(t *testing.T) {
	newProject(t)

	set := execute(t, "config", "set", "verbosity", "1")
	require.Equal(t, 0, set.code, set.stderr)
	assert.Contains(t, set.stdout, "Set verbosity = 1")

	get := execute(t, "config", "get", "verbosity")
	require.Equal(t, 0, get.code)
	assert.Equal(t, "1\n", get.stdout)

	bad := execute(t, "config", "set", "mirror", "x")
	assert.Equal(t, 2, bad.code)
}

func TestVersion(t *testing.T) {
	newProject(t)

	res := execute(t, "version", "--short")
	require.Equal(t, 0, res.code)
	assert.Equal(t, buildVersion+"\n", res.stdout)

	full := execute(t, "version")
	assert.Contains(t, full.stdout, "phovea version "+buildVersion)
}

func TestVersionJSON(t *testing.T) {
	newProject(t)

	res := execute(t, "version", "--json")
	require.Equal(t, 0, res.code, res.stderr)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
	assert.Equal(t, buildVersion, info["version"])
	assert.Equal(t, "github.com/phovea/generator-phovea", info["module"])
}
