package registry

import (
	"errors"
	"fmt"
	"sort"

	"contentdesk/internal/dsl"

	"github.com/hashicorp/go-multierror"
)

var ErrTypeNotFound = errors.New("content type not found")

// Registry is built once and passed to the controller layer. It is safe for
// concurrent reads; there are no writers after New.
type Registry struct {
	types   map[string]*ContentType
	byClass map[string]string
	catalog dsl.Catalog
}

// New регистрирует типы. Класс каждого типа должен разрешаться в сущность каталога;
// в byClass попадают и FQN сущности, и значение class как записано в YAML.
func New(types []ContentType, catalog dsl.Catalog) (*Registry, error) {
	r := &Registry{
		types:   make(map[string]*ContentType, len(types)),
		byClass: make(map[string]string, len(types)*2),
		catalog: catalog,
	}
	for i := range types {
		ct := types[i]
		ct.normalize()
		if ct.Type == "" {
			return nil, fmt.Errorf("registry: content type with empty key (class %q)", ct.Class)
		}
		if _, dup := r.types[ct.Type]; dup {
			return nil, fmt.Errorf("registry: duplicate content type %q", ct.Type)
		}
		ent, ok := catalog.Resolve(ct.Class)
		if !ok {
			return nil, fmt.Errorf("registry: %s: unknown class %q", ct.Type, ct.Class)
		}
		r.types[ct.Type] = &ct
		r.byClass[ct.Class] = ct.Type
		r.byClass[ent.FQN()] = ct.Type
	}
	return r, nil
}

// Get ищет тип по ключу, затем по классу.
func (r *Registry) Get(typeOrClass string) (*ContentType, error) {
	if ct, ok := r.types[typeOrClass]; ok {
		return ct, nil
	}
	if key, ok := r.byClass[typeOrClass]; ok {
		return r.types[key], nil
	}
	if ent, ok := r.catalog.Resolve(typeOrClass); ok {
		if key, ok := r.byClass[ent.FQN()]; ok {
			return r.types[key], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrTypeNotFound, typeOrClass)
}

// Types returns all content types sorted by key.
func (r *Registry) Types() []*ContentType {
	keys := make([]string, 0, len(r.types))
	for k := range r.types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*ContentType, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.types[k])
	}
	return out
}

func (r *Registry) EntityFor(ct *ContentType) *dsl.Entity {
	ent, _ := r.catalog.Resolve(ct.Class)
	return ent
}

// ResolveClass maps a class name (FQN or bare) to its entity.
func (r *Registry) ResolveClass(name string) (*dsl.Entity, bool) {
	return r.catalog.Resolve(name)
}

func (r *Registry) Catalog() dsl.Catalog { return r.catalog }

// Lint проверяет, что каждый атрибут, на который ссылается тип, есть у сущности,
// а цели связей совпадают с объявленными в DSL. Возвращает все найденные проблемы разом.
func (r *Registry) Lint() error {
	var result *multierror.Error
	for _, ct := range r.Types() {
		ent := r.EntityFor(ct)

		check := func(list, attr string) {
			if !ent.HasAttribute(attr) {
				result = multierror.Append(result, fmt.Errorf("%s: %s attribute %q not found on %s", ct.Type, list, attr, ent.FQN()))
			}
		}
		for _, a := range ct.SearchFields {
			check("search", a)
			if _, ok := ent.Relation(a); ok {
				result = multierror.Append(result, fmt.Errorf("%s: search attribute %q is a relationship", ct.Type, a))
			}
		}
		for _, a := range ct.SummaryFields {
			check("summary", a)
		}
		for _, a := range ct.ReadOnly {
			check("read_only", a)
		}
		for a := range ct.FieldTypes {
			check("field_types", a)
		}
		if ct.OwnerField != "" {
			check("owner", ct.OwnerField)
		}

		for _, a := range ct.RelationshipNames() {
			rel, ok := ent.Relation(a)
			if !ok {
				result = multierror.Append(result, fmt.Errorf("%s: relationship %q is not declared on %s", ct.Type, a, ent.FQN()))
				continue
			}
			for _, target := range ct.Relationships[a].Types {
				te, ok := r.catalog.Resolve(target)
				if !ok {
					result = multierror.Append(result, fmt.Errorf("%s.%s: unknown related class %q", ct.Type, a, target))
					continue
				}
				// morph_to без списка целей принимает любой класс
				if len(rel.Targets) > 0 && !rel.AllowsTarget(te.FQN()) {
					result = multierror.Append(result, fmt.Errorf("%s.%s: %s is not a target of %s", ct.Type, a, te.FQN(), rel.Kind))
				}
			}
		}
	}
	return result.ErrorOrNil()
}
