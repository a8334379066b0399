package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zombor/docscan/internal/apperr"
	"github.com/zombor/docscan/internal/document"
)

// Validator checks extracted documents against their compiled JSON schemas
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every schema once
func NewValidator(schemas ...document.Schema) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(schemas))}
	for _, s := range schemas {
		raw, err := json.Marshal(s.Definition)
		if err != nil {
			return nil, apperr.Configuration("extraction.validator", fmt.Sprintf("marshaling %s schema: %v", s.Name, err))
		}
		url := "mem://schemas/" + s.Name + ".json"
		if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, apperr.Configuration("extraction.validator", fmt.Sprintf("adding %s schema: %v", s.Name, err))
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, apperr.Configuration("extraction.validator", fmt.Sprintf("compiling %s schema: %v", s.Name, err))
		}
		v.schemas[s.Name] = compiled
	}
	return v, nil
}

// Validate returns a validation error listing every violation, or nil
func (v *Validator) Validate(schemaName string, data map[string]any) error {
	schema, ok := v.schemas[schemaName]
	if !ok {
		return apperr.Configuration("extraction.validator", fmt.Sprintf("unknown schema %q", schemaName))
	}

	// Round-trip through JSON so typed values (decimal strings, nested maps) are
	// presented to the validator the way they will be serialized.
	raw, err := json.Marshal(data)
	if err != nil {
		return apperr.Validation("extraction.validate", []apperr.Issue{{Path: "/", Code: "encoding", Message: err.Error()}})
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return apperr.Validation("extraction.validate", []apperr.Issue{{Path: "/", Code: "encoding", Message: err.Error()}})
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return apperr.Validation("extraction.validate", []apperr.Issue{{Path: "/", Code: "invalid", Message: err.Error()}})
	}

	issues := collectIssues(verr, nil)
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Path != issues[j].Path {
			return issues[i].Path < issues[j].Path
		}
		return issues[i].Code < issues[j].Code
	})
	return apperr.Validation("extraction.validate", issues)
}

// collectIssues flattens the validation error tree into its leaves
func collectIssues(verr *jsonschema.ValidationError, issues []apperr.Issue) []apperr.Issue {
	if len(verr.Causes) == 0 {
		path := verr.InstanceLocation
		if path == "" {
			path = "/"
		}
		code := verr.KeywordLocation
		if i := strings.LastIndex(code, "/"); i >= 0 {
			code = code[i+1:]
		}
		return append(issues, apperr.Issue{Path: path, Code: code, Message: verr.Message})
	}
	for _, cause := range verr.Causes {
		issues = collectIssues(cause, issues)
	}
	return issues
}
