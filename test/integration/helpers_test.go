//go:build integration

package integration_test

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phovea/generator-phovea/internal/cli"
	"github.com/phovea/generator-phovea/internal/errors"
)

// testEnv holds paths to isolated test directories.
type testEnv struct {
	HomeDir    string // PHOVEA_HOME, holds config.yaml
	ProjectDir string // a phovea plugin checkout
}

// setupTestEnv creates isolated temp directories and sets environment variables
// so no user config leaks into the run. The env vars are restored after the test.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		HomeDir:    t.TempDir(),
		ProjectDir: t.TempDir(),
	}

	t.Setenv("PHOVEA_HOME", env.HomeDir)
	t.Setenv("PHOVEA_TEMPLATES_DIR", "")
	t.Setenv("PHOVEA_VERBOSITY", "")

	return env
}

// setupProject lays out a minimal hybrid phovea plugin named tdp_demo, the
// way the yeoman generator leaves it after `yo phovea:init-lib-slib`.
func setupProject(t *testing.T, projectDir string) {
	t.Helper()

	writeFile(t, filepath.Join(projectDir, ".yo-rc.json"), `{
  "generator-phovea": {
    "type": "lib-slib",
    "name": "tdp_demo",
    "extensions": [],
    "sextensions": []
  }
}
`)
	writeFile(t, filepath.Join(projectDir, "package.json"), `{
  "name": "tdp_demo",
  "version": "1.0.0",
  "keywords": [
    "phovea",
    "bio"
  ],
  "dependencies": {
    "phovea_core": "^5.0.0"
  }
}
`)
	writeFile(t, filepath.Join(projectDir, "requirements.txt"), "phovea_server>=5.0.0,<6.0.0\nnumpy\n")
	writeFile(t, filepath.Join(projectDir, "tdp_demo", "__init__.py"), `def phovea(registry):
  """
  register extension points
  :param registry:
  """
  # generator-phovea:begin
  # generator-phovea:end
  pass
`)
}

// runCLI executes the command tree in-process and returns the exit code
// with everything written to stdout.
func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := cli.NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.Execute()
	if err != nil {
		t.Logf("%s: %v\n%s", strings.Join(args, " "), err, errOut.String())
	}
	return errors.ExitCode(err), out.String()
}

// snapshotTree returns every file under root with its content.
func snapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()

	files := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("walking %s: %v", root, err)
	}
	return files
}

// writeFile creates a file at the given path with the given content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating dir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// readFile returns the content of path or fails the test.
func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

// assertFileExists fails the test if the file does not exist.
func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist: %s (error: %v)", path, err)
	}
}

// assertFileNotExists fails the test if the file exists.
func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected file NOT to exist: %s", path)
	}
}

// assertFileContains fails if the file doesn't exist or doesn't contain substr.
func assertFileContains(t *testing.T, path, substr string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("reading %s: %v", path, err)
		return
	}
	if !strings.Contains(string(data), substr) {
		t.Errorf("file %s does not contain %q.\nContents:\n%s", path, substr, string(data))
	}
}

// assertCount fails if substr does not occur exactly n times in s.
func assertCount(t *testing.T, s, substr string, n int) {
	t.Helper()
	if got := strings.Count(s, substr); got != n {
		t.Errorf("expected %d occurrences of %q, got %d in:\n%s", n, substr, got, s)
	}
}
