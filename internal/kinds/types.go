package kinds

import (
	"encoding/json"
	"strings"
)

// Strategy names a manifest merge algorithm.
type Strategy string

const (
	StrategyStructured   Strategy = "structured-document"
	StrategyLineList     Strategy = "line-list"
	StrategyMarkerInsert Strategy = "marker-insert"
)

// Mode selects how a structured-document fragment treats its path.
type Mode string

const (
	// ModeMember ensures the value is an element of a set-like array.
	ModeMember Mode = "member"
	// ModeValue ensures a single-valued field holds the value.
	ModeValue Mode = "value"
)

// Optional is a token a kind accepts but does not require.
type Optional struct {
	Name        string `yaml:"name" json:"name"`
	Default     string `yaml:"default,omitempty" json:"default,omitempty"`
	FromProject bool   `yaml:"from_project,omitempty" json:"from_project,omitempty"`
}

// Requirement is a Python dependency pinned to one major version.
type Requirement struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// Fragment is a declarative change merged into a project manifest.
// All string fields, and string leaves of Value, may carry token markers.
type Fragment struct {
	Target   string   `json:"target"`
	Strategy Strategy `json:"strategy"`

	// structured-document
	Path    string          `json:"path,omitempty"`
	Mode    Mode            `json:"mode,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"` // compact JSON, key order kept
	Version string          `json:"version,omitempty"`

	// line-list and marker-insert
	Line        string       `json:"line,omitempty"`
	Requirement *Requirement `json:"requirement,omitempty"`

	// marker-insert
	Marker string `json:"marker,omitempty"`
	Seed   string `json:"seed,omitempty"`
}

// Texts returns every field that may carry token markers.
func (f Fragment) Texts() []string {
	texts := []string{f.Target, f.Path, f.Line, f.Marker, f.Seed}
	if len(f.Value) > 0 {
		texts = append(texts, string(f.Value))
	}
	return texts
}

// Describe returns a short human-readable form of the fragment payload.
func (f Fragment) Describe() string {
	switch f.Strategy {
	case StrategyStructured:
		return f.Path + " " + string(f.Mode) + " " + string(f.Value)
	case StrategyMarkerInsert:
		return strings.TrimSpace(f.Line) + " before " + strings.TrimSpace(f.Marker)
	default:
		return f.Line
	}
}

// Kind is one registered extension kind.
type Kind struct {
	ID          string     `json:"id"`
	Label       string     `json:"label,omitempty"`
	Description string     `json:"description,omitempty"`
	Bundle      string     `json:"bundle"`
	Required    []string   `json:"required"`
	Optional    []Optional `json:"optional,omitempty"`
	Fragments   []Fragment `json:"fragments,omitempty"`
	Source      string     `json:"source,omitempty"` // name of the source that defined it
}

// TokenNames returns required then optional token names.
func (k *Kind) TokenNames() []string {
	names := make([]string, 0, len(k.Required)+len(k.Optional))
	names = append(names, k.Required...)
	for _, o := range k.Optional {
		names = append(names, o.Name)
	}
	return names
}

// IsRequired reports whether name is a required token of k.
func (k *Kind) IsRequired(name string) bool {
	for _, r := range k.Required {
		if r == name {
			return true
		}
	}
	return false
}
