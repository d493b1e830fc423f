package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"persona/internal/domain"
)

const (
	defaultCacheExpiration = 10 * time.Minute
	cacheCleanupInterval   = 30 * time.Minute
)

// Loader reads workflow templates from disk, validates them against the
// bindings and caches the parsed result. Callers always receive a private
// deep copy.
type Loader struct {
	bindings Bindings
	schema   *jsonschema.Schema
	cache    *cache.Cache
}

// NewLoader compiles the validation schema for b.
func NewLoader(b Bindings) (*Loader, error) {
	ids := b.NodeIDs()
	if len(ids) == 0 {
		return nil, errors.New("workflow: bindings reference no nodes")
	}
	schema, err := compileSchema(ids)
	if err != nil {
		return nil, err
	}
	return &Loader{
		bindings: b,
		schema:   schema,
		cache:    cache.New(defaultCacheExpiration, cacheCleanupInterval),
	}, nil
}

// Bindings returns the node bindings the loader validates against.
func (l *Loader) Bindings() Bindings {
	return l.bindings
}

// Load returns the template at path. A missing file yields
// domain.ErrTemplateNotFound, undecodable or incomplete content yields
// domain.ErrMalformedTemplate.
func (l *Loader) Load(path string) (Template, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, path)
		}
		return nil, fmt.Errorf("workflow: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrTemplateNotFound, path)
	}
	key := fmt.Sprintf("%s@%d", path, info.ModTime().UnixNano())
	if cached, ok := l.cache.Get(key); ok {
		return cached.(Template).Clone()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	tpl, err := l.Parse(raw)
	if err != nil {
		return nil, err
	}
	l.cache.Set(key, tpl, cache.DefaultExpiration)
	return tpl.Clone()
}

// Parse decodes and validates raw template JSON.
func (l *Loader) Parse(raw []byte) (Template, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedTemplate, err)
	}
	if err := l.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedTemplate, err)
	}
	tpl, err := decodeTemplate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedTemplate, err)
	}
	return tpl, nil
}

func compileSchema(ids []string) (*jsonschema.Schema, error) {
	nodeSchema := map[string]any{
		"type":     "object",
		"required": []string{"class_type", "inputs"},
		"properties": map[string]any{
			"class_type": map[string]any{"type": "string", "minLength": 1},
			"inputs":     map[string]any{"type": "object"},
		},
	}
	properties := make(map[string]any, len(ids))
	for _, id := range ids {
		properties[id] = nodeSchema
	}
	doc := map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"required":             ids,
		"properties":           properties,
		"additionalProperties": map[string]any{"type": "object"},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("workflow: encode schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("workflow.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("workflow: add schema: %w", err)
	}
	schema, err := compiler.Compile("workflow.json")
	if err != nil {
		return nil, fmt.Errorf("workflow: compile schema: %w", err)
	}
	return schema, nil
}
