// Package schema provides the FHIR element registry consulted by the
// compiler for path navigation.
//
// The registry only answers two questions: what type an element has, and
// whether it repeats. Repeating elements become unnest steps in the
// generated SQL; choice elements (value[x]) resolve to their typed JSON
// property (valueQuantity, valueString, ...).
//
// A Registry is read-only after construction and safe for concurrent use.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"
)

//go:embed r4.yaml
var r4Definitions []byte

// Registry answers element lookups for FHIR types.
type Registry interface {
	// Element returns the definition of field on typeName.
	Element(typeName, field string) (Element, bool)
	// IsResource reports whether name is a resource type.
	IsResource(name string) bool
	// HasType reports whether name is a known complex type or resource.
	HasType(name string) bool
}

// Element describes one element of a FHIR type.
type Element struct {
	Name    string
	Type    string // empty for choice elements
	Array   bool
	Choices []string
}

// IsChoice reports whether the element is a value[x] style choice.
func (e Element) IsChoice() bool { return len(e.Choices) > 0 }

// ChoiceField returns the JSON property carrying the choice of type t,
// e.g. value + Quantity = valueQuantity.
func (e Element) ChoiceField(t string) (string, bool) {
	want := NormalizeTypeName(t)
	for _, c := range e.Choices {
		if strings.EqualFold(c, want) {
			return e.Name + strings.ToUpper(c[:1]) + c[1:], true
		}
	}
	return "", false
}

// ChoiceFields returns every JSON property the choice may appear under.
func (e Element) ChoiceFields() []string {
	out := make([]string, len(e.Choices))
	for i, c := range e.Choices {
		out[i] = e.Name + strings.ToUpper(c[:1]) + c[1:]
	}
	return out
}

// TableName is the storage table holding resources of one type.
func TableName(resourceType string) string { return strings.ToLower(resourceType) }

// StaticRegistry is a Registry backed by an in-memory table.
type StaticRegistry struct {
	resources map[string]bool
	types     map[string]map[string]Element
}

type definitionFile struct {
	Resources []string                              `json:"resources"`
	Types     map[string]map[string]json.RawMessage `json:"types"`
}

// Default returns the registry built from the bundled R4 definitions.
// Each call parses a fresh copy.
func Default() (*StaticRegistry, error) {
	return Load(r4Definitions)
}

// Load parses a YAML definition document. See r4.yaml for the format.
func Load(data []byte) (*StaticRegistry, error) {
	var doc definitionFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing registry definitions: %w", err)
	}

	r := &StaticRegistry{
		resources: make(map[string]bool, len(doc.Resources)),
		types:     make(map[string]map[string]Element, len(doc.Types)),
	}
	for _, name := range doc.Resources {
		r.resources[name] = true
	}
	for typeName, fields := range doc.Types {
		elems := make(map[string]Element, len(fields))
		for key, raw := range fields {
			el, err := decodeElement(key, raw)
			if err != nil {
				return nil, fmt.Errorf("type %s: %w", typeName, err)
			}
			elems[el.Name] = el
		}
		r.types[typeName] = elems
	}
	for name := range r.resources {
		if _, ok := r.types[name]; !ok {
			return nil, fmt.Errorf("resource %s has no type definition", name)
		}
	}
	return r, nil
}

func decodeElement(key string, raw json.RawMessage) (Element, error) {
	if name, ok := strings.CutSuffix(key, "[x]"); ok {
		var choices []string
		if err := json.Unmarshal(raw, &choices); err != nil || len(choices) == 0 {
			return Element{}, fmt.Errorf("choice element %s must list its types", key)
		}
		return Element{Name: name, Choices: choices}, nil
	}

	var decl string
	if err := json.Unmarshal(raw, &decl); err != nil {
		return Element{}, fmt.Errorf("element %s: expected a type name", key)
	}
	typ, array := strings.CutSuffix(decl, "[]")
	if typ == "" {
		return Element{}, fmt.Errorf("element %s: empty type", key)
	}
	return Element{Name: key, Type: typ, Array: array}, nil
}

// Element implements Registry.
func (r *StaticRegistry) Element(typeName, field string) (Element, bool) {
	fields, ok := r.types[typeName]
	if !ok {
		return Element{}, false
	}
	el, ok := fields[field]
	return el, ok
}

// IsResource implements Registry.
func (r *StaticRegistry) IsResource(name string) bool {
	return r.resources[name]
}

// HasType implements Registry.
func (r *StaticRegistry) HasType(name string) bool {
	_, ok := r.types[NormalizeTypeName(name)]
	return ok
}

// Resources returns the resource type names in sorted order.
func (r *StaticRegistry) Resources() []string {
	out := make([]string, 0, len(r.resources))
	for name := range r.resources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
