package cms

import (
	"context"
	"strings"

	"contentdesk/internal/registry"
	"contentdesk/internal/schema"
	"contentdesk/internal/store"

	"github.com/go-openapi/inflect"
)

// Rule tokens.
const (
	RuleString   = "string"
	RuleNumeric  = "numeric"
	RuleDate     = "date"
	RuleBoolean  = "boolean"
	RuleOptional = "optional"
	RuleRequired = "required"
)

// ComponentConfig is the blob a front-end widget is mounted with.
type ComponentConfig struct {
	Config       map[string]any `json:"config"`
	Relationship string         `json:"relationship,omitempty"`
	Name         string         `json:"name"`
	Value        any            `json:"value"`
}

// FieldDescriptor describes how to render and validate one attribute.
// Built per request, never stored.
type FieldDescriptor struct {
	Property        string          `json:"property"`
	Caption         string          `json:"caption"`
	Type            string          `json:"type"`
	Component       string          `json:"component"`
	ComponentConfig ComponentConfig `json:"component_config"`
	ValidationRules []string        `json:"validation_rules"`
	Required        bool            `json:"required"`

	position int
}

// FieldInput is what a factory gets to build one descriptor.
type FieldInput struct {
	Type      *registry.ContentType
	Record    *store.Record
	Attribute string
	Caption   string
	Column    schema.Column
}

// FieldFactory builds the descriptor for one logical field type.
type FieldFactory func(ctx context.Context, in FieldInput) (FieldDescriptor, error)

// Caption: "published_at" -> "Published At", "authorName" -> "Author Name".
func Caption(attr string) string {
	words := strings.Split(inflect.Underscore(attr), "_")
	out := words[:0]
	for _, w := range words {
		if w == "" {
			continue
		}
		out = append(out, inflect.Capitalize(w))
	}
	return strings.Join(out, " ")
}

// columnRules: базовое правило плюс optional, если колонку можно не заполнять.
func columnRules(base string, col schema.Column) []string {
	if col.Optional() {
		return []string{base, RuleOptional}
	}
	return []string{base, RuleRequired}
}

func hasRule(rules []string, rule string) bool {
	for _, r := range rules {
		if r == rule {
			return true
		}
	}
	return false
}

// scalarFactory builds the factory for a plain column-backed type.
func scalarFactory(logical, component, baseRule string) FieldFactory {
	return func(_ context.Context, in FieldInput) (FieldDescriptor, error) {
		rules := columnRules(baseRule, in.Column)
		return FieldDescriptor{
			Property:  in.Attribute,
			Caption:   in.Caption,
			Type:      logical,
			Component: component,
			ComponentConfig: ComponentConfig{
				Config: map[string]any{},
				Name:   in.Attribute,
				Value:  in.Record.Get(in.Attribute),
			},
			ValidationRules: rules,
			Required:        hasRule(rules, RuleRequired),
		}, nil
	}
}

func builtinFactories() map[string]FieldFactory {
	return map[string]FieldFactory{
		"string":   scalarFactory("string", "field-text", RuleString),
		"int":      scalarFactory("int", "field-number", RuleNumeric),
		"float":    scalarFactory("float", "field-number", RuleNumeric),
		"text":     scalarFactory("text", "field-textarea", RuleString),
		"datetime": scalarFactory("datetime", "field-date", RuleDate),
		"date":     scalarFactory("date", "field-date", RuleDate),
		"bool":     scalarFactory("bool", "field-checkbox", RuleBoolean),
	}
}
