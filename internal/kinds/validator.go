package kinds

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/kinds.schema.json
var schemaBytes []byte

const schemaURL = "kinds.schema.json"

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
	printer        = message.NewPrinter(language.English)
)

// ValidationResult is the outcome of validating a registry document.
type ValidationResult struct {
	Valid  bool
	Issues []Issue
}

// Issue is one schema violation.
type Issue struct {
	Path    string // instance location, e.g. "/kinds/0/fragments/1/strategy"
	Message string
	Keyword string
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		if compiledSchema, err = c.Compile(schemaURL); err != nil {
			compileErr = fmt.Errorf("compiling schema: %w", err)
		}
	})
	return compiledSchema, compileErr
}

// Validate checks a kinds.yaml document against the registry schema.
// The error return is for YAML syntax or schema compilation failures;
// schema violations are reported in the result.
func Validate(data []byte) (*ValidationResult, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return validateNode(&root)
}

// validateNode validates an already decoded document. The node is
// converted with nodeJSON, so anchors and aliases are resolved the same
// way the parser sees them.
func validateNode(root *yaml.Node) (*ValidationResult, error) {
	schema, err := getSchema()
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	instance := []byte("null")
	if root.Kind != 0 {
		if instance, err = nodeJSON(root); err != nil {
			return nil, fmt.Errorf("converting to JSON: %w", err)
		}
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(instance))
	if err != nil {
		return nil, fmt.Errorf("preparing JSON for validation: %w", err)
	}

	err = schema.Validate(inst)
	if err == nil {
		return &ValidationResult{Valid: true}, nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, fmt.Errorf("unexpected validation error type: %w", err)
	}
	return &ValidationResult{Issues: leafIssues(ve)}, nil
}

// leafIssues flattens the error tree into its leaves, sorted by location.
// Branch keywords (allOf, if/then, $ref) only repeat what their leaves say.
// A oneOf with several matching branches has no causes and is kept.
func leafIssues(ve *jsonschema.ValidationError) []Issue {
	seen := make(map[Issue]bool)
	var issues []Issue

	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		for _, cause := range e.Causes {
			walk(cause)
		}
		if len(e.Causes) > 0 || e.ErrorKind == nil {
			return
		}
		issue := Issue{Message: e.ErrorKind.LocalizedString(printer)}
		if kw := e.ErrorKind.KeywordPath(); len(kw) > 0 {
			issue.Keyword = kw[len(kw)-1]
		}
		switch issue.Keyword {
		case "", "allOf", "$ref", "then":
			return
		}
		if len(e.InstanceLocation) > 0 {
			issue.Path = "/" + strings.Join(e.InstanceLocation, "/")
		}
		if !seen[issue] {
			seen[issue] = true
			issues = append(issues, issue)
		}
	}
	walk(ve)

	if len(issues) == 0 {
		return []Issue{{Message: ve.Error()}}
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	return issues
}
