package kinds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.yaml.in/yaml/v3"

	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/placeholder"
)

// FileName is the registry document inside a source.
const FileName = "kinds.yaml"

type document struct {
	Version int       `yaml:"version"`
	Kinds   []rawKind `yaml:"kinds"`
}

type rawKind struct {
	ID          string        `yaml:"id"`
	Label       string        `yaml:"label"`
	Description string        `yaml:"description"`
	Bundle      string        `yaml:"bundle"`
	Required    []string      `yaml:"required"`
	Optional    []Optional    `yaml:"optional"`
	Fragments   []rawFragment `yaml:"fragments"`
}

type rawFragment struct {
	Target      string       `yaml:"target"`
	Strategy    Strategy     `yaml:"strategy"`
	Path        string       `yaml:"path"`
	Mode        Mode         `yaml:"mode"`
	Value       yaml.Node    `yaml:"value"`
	Version     string       `yaml:"version"`
	Line        string       `yaml:"line"`
	Requirement *Requirement `yaml:"requirement"`
	Marker      string       `yaml:"marker"`
	Seed        string       `yaml:"seed"`
}

var (
	versionNumber  = regexp.MustCompile(`\d+(\.\d+){0,2}`)
	numericSegment = regexp.MustCompile(`(^|[^\\]\.)\d+(\.|$)`)
)

// Parse validates and decodes a registry document. source names the
// document in error messages and on every returned kind.
func Parse(data []byte, source string) ([]*Kind, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidRegistry, "%s", source)
	}
	result, err := validateNode(&root)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidRegistry, "%s", source)
	}
	if !result.Valid {
		msgs := make([]string, len(result.Issues))
		for i, issue := range result.Issues {
			msgs[i] = issue.String()
		}
		return nil, errors.Newf(errors.ErrInvalidRegistry, "%s: %s", source, strings.Join(msgs, "; ")).
			WithDetail("issues", result.Issues)
	}

	var doc document
	if err := root.Decode(&doc); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidRegistry, "%s", source)
	}

	seen := make(map[string]bool, len(doc.Kinds))
	kinds := make([]*Kind, 0, len(doc.Kinds))
	for _, rk := range doc.Kinds {
		if seen[rk.ID] {
			return nil, errors.Newf(errors.ErrInvalidRegistry, "%s: duplicate kind %q", source, rk.ID)
		}
		seen[rk.ID] = true

		k, err := convertKind(rk, source)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func convertKind(rk rawKind, source string) (*Kind, error) {
	k := &Kind{
		ID:          rk.ID,
		Label:       rk.Label,
		Description: rk.Description,
		Bundle:      rk.Bundle,
		Required:    rk.Required,
		Optional:    rk.Optional,
		Source:      source,
	}
	if k.Label == "" {
		k.Label = k.ID
	}

	names := make(map[string]bool)
	for _, n := range k.TokenNames() {
		if names[n] {
			return nil, errors.Newf(errors.ErrInvalidRegistry, "%s: kind %s: token %q declared twice", source, k.ID, n)
		}
		names[n] = true
	}

	for i, rf := range rk.Fragments {
		f, err := convertFragment(rf)
		if err != nil {
			code := errors.CodeOf(err)
			if code == "" {
				code = errors.ErrInvalidRegistry
			}
			return nil, errors.Wrapf(err, code, "%s: kind %s: fragment %d", source, k.ID, i)
		}
		k.Fragments = append(k.Fragments, f)
	}
	return k, nil
}

func convertFragment(rf rawFragment) (Fragment, error) {
	f := Fragment{
		Target:      rf.Target,
		Strategy:    rf.Strategy,
		Path:        rf.Path,
		Mode:        rf.Mode,
		Version:     rf.Version,
		Line:        rf.Line,
		Requirement: rf.Requirement,
		Marker:      rf.Marker,
		Seed:        rf.Seed,
	}

	switch f.Strategy {
	case StrategyStructured:
		if numericSegment.MatchString(f.Path) {
			return f, fmt.Errorf("path %q: numeric segments are not supported", f.Path)
		}
		if f.Version != "" {
			if f.Mode == ModeMember {
				return f, fmt.Errorf("version implies mode %q", ModeValue)
			}
			if _, err := semver.NewConstraint(f.Version); err != nil {
				return f, fmt.Errorf("version %q: %w", f.Version, err)
			}
			f.Mode = ModeValue
			value, err := json.Marshal(f.Version)
			if err != nil {
				return f, err
			}
			f.Value = value
		} else {
			value, err := nodeJSON(&rf.Value)
			if err != nil {
				return f, fmt.Errorf("value: %w", err)
			}
			f.Value = value
			if f.Mode == "" {
				f.Mode = ModeValue
			}
		}
	case StrategyLineList:
		if f.Requirement != nil {
			line, err := RequirementLine(*f.Requirement)
			if err != nil {
				return f, err
			}
			f.Line = line
		}
	case StrategyMarkerInsert:
		if f.Seed != "" && !containsLine(f.Seed, f.Marker) {
			return f, fmt.Errorf("seed does not contain marker %q", strings.TrimSpace(f.Marker))
		}
	}

	if strings.ContainsAny(f.Line, "\r\n") || strings.ContainsAny(f.Marker, "\r\n") {
		return f, fmt.Errorf("line and marker must be single lines")
	}
	for _, text := range f.Texts() {
		if _, err := placeholder.Scan(text); err != nil {
			return f, errors.Wrap(err, errors.ErrMalformedTemplate, "fragment marker syntax")
		}
	}
	return f, nil
}

// RequirementLine renders a requirements.txt line accepting every release
// of the requirement's major version, e.g. "phovea_server>=5.0.0,<6.0.0".
func RequirementLine(r Requirement) (string, error) {
	if _, err := semver.NewConstraint(r.Version); err != nil {
		return "", fmt.Errorf("requirement %s: version %q: %w", r.Name, r.Version, err)
	}
	v, err := semver.NewVersion(versionNumber.FindString(r.Version))
	if err != nil {
		return "", fmt.Errorf("requirement %s: version %q: %w", r.Name, r.Version, err)
	}
	return fmt.Sprintf("%s>=%d.0.0,<%d.0.0", r.Name, v.Major(), v.Major()+1), nil
}

func containsLine(text, line string) bool {
	want := strings.TrimSpace(line)
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == want {
			return true
		}
	}
	return false
}

// nodeJSON converts a YAML node to compact JSON, keeping mapping key order.
func nodeJSON(n *yaml.Node) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := writeNode(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeNode(buf, n.Content[0])
	case yaml.AliasNode:
		return writeNode(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return fmt.Errorf("line %d: mapping key: %w", n.Content[i].Line, err)
			}
			if err := writeScalar(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNode(buf, c); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.ScalarNode:
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		return writeScalar(buf, v)
	default:
		return fmt.Errorf("missing value")
	}
}

func writeScalar(buf *bytes.Buffer, v interface{}) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
