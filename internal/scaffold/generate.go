package scaffold

import (
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"

	"github.com/phovea/generator-phovea/internal/branding"
	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/kinds"
	"github.com/phovea/generator-phovea/internal/logging"
	"github.com/phovea/generator-phovea/internal/merge"
	"github.com/phovea/generator-phovea/internal/render"
	"github.com/phovea/generator-phovea/internal/tokens"
	"github.com/phovea/generator-phovea/internal/writer"
)

// ProjectConfigFile holds the generator state of a project.
const ProjectConfigFile = ".yo-rc.json"

// Plan is a computed, not yet applied, generator run.
type Plan struct {
	Kind      *kinds.Kind
	Tokens    tokens.Context
	Decisions []merge.Decision
}

// Plan resolves, renders and merges kindID against fs without writing.
// projectName fills from_project tokens the caller left blank when the
// project config does not name the project.
func (e *Engine) Plan(kindID string, raw map[string]string, fs afero.Fs, projectName string) (*Plan, error) {
	logger := logging.GetLogger("scaffold")

	k, err := e.kinds.Lookup(kindID)
	if err != nil {
		return nil, err
	}
	b, ok := e.bundles.Get(k.Bundle)
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidRegistry, "kind %s: bundle %q not found", k.ID, k.Bundle)
	}

	values := withProjectTokens(k, raw, ProjectName(fs, projectName))
	ctx, err := tokens.Resolve(k, values)
	if err != nil {
		return nil, err
	}
	out, err := render.Render(b, k.Fragments, ctx)
	if err != nil {
		return nil, err
	}
	decisions, err := merge.Plan(out.Files, out.Fragments, merge.NewSnapshot(fs))
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("kind", k.ID).
		Int("decisions", len(decisions)).
		Int("conflicts", len(merge.Conflicts(decisions))).
		Msg("Planned run")
	return &Plan{Kind: k, Tokens: ctx, Decisions: decisions}, nil
}

// GenerateFS plans kindID against fs and applies the plan. Conflicts and
// write failures are reported in the returned report; the error is
// reserved for runs that never reached the writer.
func (e *Engine) GenerateFS(kindID string, raw map[string]string, fs afero.Fs, projectName string) (*writer.Report, error) {
	logger := logging.GetLogger("scaffold")
	done := logging.LogOperationStart(logger, "generate "+kindID)
	defer done()

	p, err := e.Plan(kindID, raw, fs, projectName)
	if err != nil {
		return nil, err
	}
	return writer.Apply(fs, p.Decisions), nil
}

// Generate runs kindID against the project rooted at targetDir.
func (e *Engine) Generate(kindID string, raw map[string]string, targetDir string) (*writer.Report, error) {
	fs, name, err := ProjectFs(targetDir)
	if err != nil {
		return nil, err
	}
	return e.GenerateFS(kindID, raw, fs, name)
}

// ProjectFs confines all access to targetDir and returns the directory's
// base name as the fallback project name.
func ProjectFs(targetDir string) (afero.Fs, string, error) {
	abs, err := filepath.Abs(targetDir)
	if err != nil {
		return nil, "", errors.Wrapf(err, errors.ErrReadFailed, "resolving %s", targetDir).WithDetail("path", targetDir)
	}
	return afero.NewBasePathFs(afero.NewOsFs(), abs), filepath.Base(abs), nil
}

// ProjectName returns generator-phovea.name from the project config,
// falling back to fallback when the file or key is missing.
func ProjectName(fs afero.Fs, fallback string) string {
	data, err := afero.ReadFile(fs, ProjectConfigFile)
	if err != nil {
		return fallback
	}
	name := gjson.GetBytes(jsonc.ToJSON(data), branding.ConfigKey()+".name")
	if name.Type != gjson.String || name.Str == "" {
		return fallback
	}
	return name.Str
}

func withProjectTokens(k *kinds.Kind, raw map[string]string, project string) map[string]string {
	values := make(map[string]string, len(raw))
	for name, v := range raw {
		values[name] = v
	}
	if project == "" {
		return values
	}
	for _, opt := range k.Optional {
		if opt.FromProject && values[opt.Name] == "" {
			values[opt.Name] = project
		}
	}
	return values
}
