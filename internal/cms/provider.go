// Package cms turns registered content types into form descriptors, derives
// validation rules from the live schema, and saves submissions together with
// their relationships.
package cms

import (
	"context"
	"fmt"
	"sort"

	"contentdesk/internal/dsl"
	"contentdesk/internal/registry"
	"contentdesk/internal/schema"
	"contentdesk/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

// ColumnSource returns a table's columns in ordinal order.
type ColumnSource interface {
	Columns(ctx context.Context, table string) ([]schema.Column, error)
}

// Provider is built once at startup and shared by all requests.
type Provider struct {
	registry  *registry.Registry
	columns   ColumnSource
	store     *store.Store
	factories map[string]FieldFactory
	validate  *validator.Validate
}

type Option func(*Provider)

// WithFieldType registers (or replaces) the factory of a logical type.
func WithFieldType(name string, f FieldFactory) Option {
	return func(p *Provider) { p.factories[name] = f }
}

func NewProvider(reg *registry.Registry, cols ColumnSource, st *store.Store, opts ...Option) *Provider {
	p := &Provider{
		registry:  reg,
		columns:   cols,
		store:     st,
		factories: builtinFactories(),
		validate:  newValidator(),
	}
	p.factories["relationship"] = p.relationshipField
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) Registry() *registry.Registry { return p.registry }

func (p *Provider) Store() *store.Store { return p.store }

func (p *Provider) contentType(typ string) (*registry.ContentType, *dsl.Entity, error) {
	ct, err := p.registry.Get(typ)
	if err != nil {
		return nil, nil, err
	}
	return ct, p.registry.EntityFor(ct), nil
}

// relationKeyColumns — колонки таблицы сущности, которые принадлежат связям:
// собственные ключи belongs_to/morph_to и внешние ключи has_*/morph_* других сущностей.
func (p *Provider) relationKeyColumns(ent *dsl.Entity) map[string]bool {
	keys := map[string]bool{}
	for _, r := range ent.Relations {
		for _, c := range r.KeyColumns() {
			keys[c] = true
		}
	}
	for _, other := range p.registry.Catalog().Sorted() {
		for _, r := range other.Relations {
			switch r.Kind {
			case dsl.HasOne, dsl.HasMany, dsl.MorphOne, dsl.MorphMany:
			default:
				continue
			}
			target, ok := p.registry.ResolveClass(r.Target())
			if !ok || target != ent {
				continue
			}
			keys[r.ForeignKey] = true
			if r.TypeColumn != "" {
				keys[r.TypeColumn] = true
			}
		}
	}
	return keys
}

// fieldType: явное переопределение типа, затем каст сущности, иначе string.
func fieldType(ct *registry.ContentType, ent *dsl.Entity, attr string) string {
	if t, ok := ct.FieldTypes[attr]; ok && t != "" {
		return t
	}
	if t, ok := ent.Casts()[attr]; ok && t != "" {
		return t
	}
	return "string"
}

// GetFields returns one descriptor per editable column of the type, in column
// order. Hidden, read-only, relationship and relationship-key columns are skipped.
func (p *Provider) GetFields(ctx context.Context, typ string, rec *store.Record) ([]FieldDescriptor, error) {
	ct, ent, err := p.contentType(typ)
	if err != nil {
		return nil, err
	}
	cols, err := p.columns.Columns(ctx, ent.Table)
	if err != nil {
		return nil, err
	}
	keys := p.relationKeyColumns(ent)

	fields := make([]FieldDescriptor, 0, len(cols))
	for _, col := range cols {
		attr := col.Name
		if ent.IsHidden(attr) || ct.IsReadOnly(attr) {
			continue
		}
		if ct.HasRelationship(attr) || keys[attr] {
			continue
		}
		if _, ok := ent.Relation(attr); ok {
			continue
		}

		t := fieldType(ct, ent, attr)
		factory, ok := p.factories[t]
		if !ok {
			return nil, fmt.Errorf("%w %q (%s.%s)", ErrUnknownFieldType, t, ct.Type, attr)
		}
		fd, err := factory(ctx, FieldInput{Type: ct, Record: rec, Attribute: attr, Caption: Caption(attr), Column: col})
		if err != nil {
			return nil, err
		}
		fd.position = col.Position
		fields = append(fields, fd)
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].position < fields[j].position })
	return fields, nil
}

// GetRelationshipFields returns one descriptor per relationship of the type,
// sorted by attribute.
func (p *Provider) GetRelationshipFields(ctx context.Context, typ string, rec *store.Record) ([]FieldDescriptor, error) {
	ct, _, err := p.contentType(typ)
	if err != nil {
		return nil, err
	}
	factory, ok := p.factories["relationship"]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFieldType, "relationship")
	}
	names := ct.RelationshipNames()
	fields := make([]FieldDescriptor, 0, len(names))
	for _, attr := range names {
		fd, err := factory(ctx, FieldInput{Type: ct, Record: rec, Attribute: attr, Caption: Caption(attr)})
		if err != nil {
			return nil, err
		}
		fields = append(fields, fd)
	}
	return fields, nil
}

// GetValidationRules is GetFields projected to property -> rules.
func (p *Provider) GetValidationRules(ctx context.Context, typ string, rec *store.Record) (map[string][]string, error) {
	fields, err := p.GetFields(ctx, typ, rec)
	if err != nil {
		return nil, err
	}
	return rulesOf(fields), nil
}

func rulesOf(fields []FieldDescriptor) map[string][]string {
	rules := make(map[string][]string, len(fields))
	for _, f := range fields {
		rules[f.Property] = f.ValidationRules
	}
	return rules
}

// relationshipField — фабрика для связей: кардинальность, текущее значение с _type,
// разрешённые типы из описания контента.
func (p *Provider) relationshipField(ctx context.Context, in FieldInput) (FieldDescriptor, error) {
	rel, ok := in.Record.Entity.Relation(in.Attribute)
	if !ok {
		return FieldDescriptor{}, fmt.Errorf("cms: %s.%s is not a relationship", in.Record.Class(), in.Attribute)
	}
	related, err := p.store.Related(ctx, in.Record, rel)
	if err != nil {
		return FieldDescriptor{}, err
	}

	card := rel.Kind.Cardinality()
	var value any
	if card == dsl.Many {
		rows := make([]map[string]any, 0, len(related))
		for _, r := range related {
			rows = append(rows, tagged(r))
		}
		value = rows
	} else if len(related) > 0 {
		value = tagged(related[0])
	}

	types := in.Type.Relationships[in.Attribute].Types
	if types == nil {
		types = []string{}
	}
	return FieldDescriptor{
		Property:  in.Attribute,
		Caption:   in.Caption,
		Type:      "relationship",
		Component: "field-relationship-" + string(card),
		ComponentConfig: ComponentConfig{
			Config:       map[string]any{"types": types},
			Relationship: string(rel.Kind),
			Name:         in.Attribute,
			Value:        value,
		},
		ValidationRules: []string{RuleOptional},
	}, nil
}

// tagged serializes a record with its concrete class under "_type".
func tagged(r *store.Record) map[string]any {
	m := r.ToMap()
	m["_type"] = r.Class()
	return m
}

// CheckSchema сверяет типы с живой схемой при старте: таблицы читаются,
// поля поиска и сводки есть в таблице, у каждого типа поля есть фабрика.
func (p *Provider) CheckSchema(ctx context.Context) error {
	var result *multierror.Error
	for _, ct := range p.registry.Types() {
		ent := p.registry.EntityFor(ct)
		cols, err := p.columns.Columns(ctx, ent.Table)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", ct.Type, err))
			continue
		}
		have := make(map[string]bool, len(cols))
		for _, c := range cols {
			have[c.Name] = true
		}
		for _, f := range append(append([]string{}, ct.SearchFields...), ct.SummaryFields...) {
			if !have[f] {
				result = multierror.Append(result, fmt.Errorf("%s: column %q not in table %s", ct.Type, f, ent.Table))
			}
		}
		for _, c := range cols {
			t := fieldType(ct, ent, c.Name)
			if _, ok := p.factories[t]; !ok {
				result = multierror.Append(result, fmt.Errorf("%s.%s: %w %q", ct.Type, c.Name, ErrUnknownFieldType, t))
			}
		}
	}
	return result.ErrorOrNil()
}
