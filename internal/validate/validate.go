// Package validate checks incoming board payloads against JSON schemas
// before they reach the domain service.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	// TitleMin and TitleMax bound project and task titles (inclusive).
	TitleMin = 3
	TitleMax = 30
)

// Error describes the first offending field of a rejected payload.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

type property struct {
	name      string
	typ       string
	minLength int
	maxLength int
}

// payload pairs a compiled schema with the property table it was built from,
// so schema failures can be rendered as field-level messages.
type payload struct {
	name     string
	props    []property
	required []string
	schema   *jsonschema.Schema
}

var (
	projectPayload = mustPayload("project", []property{
		{name: "title", typ: "string", minLength: TitleMin, maxLength: TitleMax},
		{name: "description", typ: "string", minLength: 1},
	}, []string{"title", "description"}, nil)

	taskPayload = mustPayload("task", []property{
		{name: "title", typ: "string", minLength: TitleMin, maxLength: TitleMax},
		{name: "description", typ: "string", minLength: 1},
		{name: "attachment", typ: "array"},
	}, []string{"title", "description"}, map[string]any{
		"attachment": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"required":             []string{"url"},
				"additionalProperties": false,
				"properties": map[string]any{
					"type": map[string]any{"type": "string"},
					"url":  map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
	})

	stageGroupsSchema = mustCompile("stages.json", map[string]any{
		"type": "object",
		"additionalProperties": map[string]any{
			"type":     "object",
			"required": []string{"items"},
			"properties": map[string]any{
				"items": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []string{"_id"},
						"properties": map[string]any{
							"_id": map[string]any{"type": "string", "minLength": 1},
						},
					},
				},
			},
		},
	})
)

// ProjectJSON validates a raw project payload ({title, description}).
func ProjectJSON(data []byte) error { return projectPayload.validateJSON(data) }

// TaskJSON validates a raw task payload ({title, description, attachment?}).
func TaskJSON(data []byte) error { return taskPayload.validateJSON(data) }

// Project validates an already decoded project input.
func Project(v any) error { return projectPayload.validateValue(v) }

// Task validates an already decoded task input.
func Task(v any) error { return taskPayload.validateValue(v) }

// StageGroupsJSON validates a raw reassignment payload
// ({"<stage>": {"items": [{"_id": "..."}]}}).
func StageGroupsJSON(data []byte) error {
	doc, err := decode(data)
	if err != nil {
		return err
	}
	if err := stageGroupsSchema.Validate(doc); err != nil {
		return leafError(err, nil, stageMessage)
	}
	return nil
}

func mustPayload(name string, props []property, required []string, overrides map[string]any) *payload {
	properties := make(map[string]any, len(props))
	for _, p := range props {
		if o, ok := overrides[p.name]; ok {
			properties[p.name] = o
			continue
		}
		s := map[string]any{"type": p.typ}
		if p.minLength > 0 {
			s["minLength"] = p.minLength
		}
		if p.maxLength > 0 {
			s["maxLength"] = p.maxLength
		}
		properties[p.name] = s
	}

	return &payload{
		name:     name,
		props:    props,
		required: required,
		schema: mustCompile(name+".json", map[string]any{
			"type":                 "object",
			"required":             required,
			"additionalProperties": false,
			"properties":           properties,
		}),
	}
}

func mustCompile(url string, doc map[string]any) *jsonschema.Schema {
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("marshal schema %s: %v", url, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", url, err))
	}
	return compiler.MustCompile(url)
}

func decode(data []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Message: "request body must be valid JSON"}
	}
	return doc, nil
}

func (p *payload) validateJSON(data []byte) error {
	doc, err := decode(data)
	if err != nil {
		return err
	}
	return p.validate(doc)
}

func (p *payload) validateValue(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", p.name, err)
	}
	return p.validateJSON(data)
}

func (p *payload) validate(doc any) error {
	obj, ok := doc.(map[string]any)
	if !ok {
		return &Error{Message: fmt.Sprintf("%q must be of type object", "value")}
	}

	// Object-level failures are reported from the instance itself: the
	// library's messages for these keywords don't carry a stable field name.
	for _, name := range p.required {
		if _, ok := obj[name]; !ok {
			return &Error{Field: name, Message: fmt.Sprintf("%q is required", name)}
		}
	}
	for key := range obj {
		if !p.known(key) {
			return &Error{Field: key, Message: fmt.Sprintf("%q is not allowed", key)}
		}
	}

	if err := p.schema.Validate(doc); err != nil {
		return leafError(err, p.rank, p.message)
	}
	return nil
}

func (p *payload) known(key string) bool {
	for _, prop := range p.props {
		if prop.name == key {
			return true
		}
	}
	return false
}

// rank orders fields the way they are declared, so the reported field is
// stable when several fail at once.
func (p *payload) rank(field string) int {
	for i, prop := range p.props {
		if prop.name == field {
			return i
		}
	}
	return len(p.props)
}

func (p *payload) property(name string) (property, bool) {
	for _, prop := range p.props {
		if prop.name == name {
			return prop, true
		}
	}
	return property{}, false
}

// message renders a joi-style message for a failing keyword.
func (p *payload) message(field, keyword, libMsg string) string {
	prop, ok := p.property(field)
	if !ok {
		return fmt.Sprintf("%q %s", field, libMsg)
	}

	switch keyword {
	case "type":
		if prop.typ == "array" {
			return fmt.Sprintf("%q must be an array", field)
		}
		return fmt.Sprintf("%q must be a %s", field, prop.typ)
	case "minLength":
		var limit, got int
		if _, err := fmt.Sscanf(libMsg, "length must be >= %d, but got %d", &limit, &got); err == nil && got == 0 {
			return fmt.Sprintf("%q is not allowed to be empty", field)
		}
		if prop.minLength <= 1 {
			return fmt.Sprintf("%q is not allowed to be empty", field)
		}
		return fmt.Sprintf("%q length must be at least %d characters long", field, prop.minLength)
	case "maxLength":
		return fmt.Sprintf("%q length must be less than or equal to %d characters long", field, prop.maxLength)
	default:
		return fmt.Sprintf("%q %s", field, libMsg)
	}
}

// stageMessage renders reassignment failures in the same style as payload
// messages. Field paths are dotted ("Done.items.0._id").
func stageMessage(field, keyword, libMsg string) string {
	switch keyword {
	case "type":
		want, _, _ := strings.Cut(strings.TrimPrefix(libMsg, "expected "), ",")
		return typeMessage(field, want)
	case "required":
		missing := strings.TrimPrefix(libMsg, "missing properties: ")
		name, _, _ := strings.Cut(missing, ",")
		name = strings.Trim(strings.TrimSpace(name), "'\"")
		if field != "value" {
			name = field + "." + name
		}
		return fmt.Sprintf("%q is required", name)
	case "minLength":
		return fmt.Sprintf("%q is not allowed to be empty", field)
	default:
		return fmt.Sprintf("%q %s", field, libMsg)
	}
}

func typeMessage(field, typ string) string {
	switch typ {
	case "array":
		return fmt.Sprintf("%q must be an array", field)
	case "string":
		return fmt.Sprintf("%q must be a string", field)
	default:
		return fmt.Sprintf("%q must be of type %s", field, typ)
	}
}

// leafError picks the best ranked leaf cause of a schema failure and renders it.
func leafError(err error, rank func(field string) int, render func(field, keyword, msg string) string) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &Error{Message: err.Error()}
	}

	var best *jsonschema.ValidationError
	bestRank := 0
	for _, leaf := range leaves(ve) {
		r := 0
		if rank != nil {
			r = rank(topField(pointerToPath(leaf.InstanceLocation)))
		}
		if best == nil || r < bestRank {
			best, bestRank = leaf, r
		}
	}

	field := pointerToPath(best.InstanceLocation)
	keyword := best.KeywordLocation
	if i := strings.LastIndex(keyword, "/"); i >= 0 {
		keyword = keyword[i+1:]
	}
	return &Error{Field: topField(field), Message: render(field, keyword, best.Message)}
}

func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

func topField(path string) string {
	if i := strings.Index(path, "."); i >= 0 {
		return path[:i]
	}
	return path
}

// pointerToPath turns "/items/0/_id" into "items.0._id".
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return "value"
	}
	parts := strings.Split(ptr, "/")
	for i, part := range parts {
		part = strings.ReplaceAll(part, "~1", "/")
		parts[i] = strings.ReplaceAll(part, "~0", "~")
	}
	return strings.Join(parts, ".")
}
