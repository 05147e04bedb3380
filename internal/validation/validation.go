// Package validation checks raw request bodies against the embedded JSON
// schemas before they are decoded into inventory inputs.
package validation

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/garnizeh/probetas/internal/inventory"
	"github.com/qri-io/jsonschema"
)

// Schema names.
const (
	Batch          = "batch"
	SpecimenCreate = "specimen_create"
	SpecimenPatch  = "specimen_patch"
	Register       = "register"
	Login          = "login"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator holds compiled schemas keyed by file name without extension.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	return NewFromFS(schemaFS, "schemas")
}

// NewFromFS compiles every *.json file under dir.
func NewFromFS(fsys fs.FS, dir string) (*Validator, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(files))}
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", f, err)
		}

		rs := &jsonschema.Schema{}
		if err := json.Unmarshal(b, rs); err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", f, err)
		}

		v.schemas[strings.TrimSuffix(path.Base(f), ".json")] = rs
	}

	return v, nil
}

// Has reports whether a schema with the given name was loaded.
func (v *Validator) Has(name string) bool {
	_, ok := v.schemas[name]
	return ok
}

// Validate checks body against the named schema. A malformed body or a
// schema violation is returned as *inventory.ValidationError naming the first
// offending field.
func (v *Validator) Validate(ctx context.Context, name string, body []byte) error {
	s, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	if !json.Valid(body) {
		return &inventory.ValidationError{Field: "body", Message: "malformed JSON"}
	}

	errs, err := s.ValidateBytes(ctx, body)
	if err != nil {
		return &inventory.ValidationError{Field: "body", Message: err.Error()}
	}
	if len(errs) == 0 {
		return nil
	}

	first := errs[0]
	field := fieldName(first.PropertyPath)
	if key, ok := requiredKey(first.Message); ok {
		field = joinField(field, key)
	}
	return &inventory.ValidationError{Field: field, Message: first.Message}
}

// requiredKey extracts the property named by a `"x" value is required` error,
// which is reported at the enclosing object.
func requiredKey(msg string) (string, bool) {
	rest, ok := strings.CutSuffix(msg, " value is required")
	if !ok || len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

func joinField(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// fieldName turns a JSON pointer such as /specimens/2/orden into
// specimens[2].orden.
func fieldName(pointer string) string {
	parts := strings.Split(strings.Trim(pointer, "/"), "/")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if isIndex(p) {
			b.WriteString("[" + p + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(p)
	}

	return b.String()
}

func isIndex(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
