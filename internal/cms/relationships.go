package cms

import (
	"fmt"

	"contentdesk/internal/dsl"
	"contentdesk/internal/registry"
	"contentdesk/internal/store"
)

// parseRelationships reads the relationship values of a submission.
//
//	to-one:  {"id": 5, "type": "Tag"} or null
//	to-many: [{"id": 1, "type": "Comment"}, ...] or null
//
// A relationship absent from the payload is left untouched. has_one and
// morph_one accept a single object as well.
func (c *Controller) parseRelationships(ct *registry.ContentType, ent *dsl.Entity, payload map[string]any) ([]relInput, []FieldError) {
	var (
		out  []relInput
		errs []FieldError
	)
	for _, name := range ct.RelationshipNames() {
		raw, present := payload[name]
		if !present {
			continue
		}
		rel, ok := ent.Relation(name)
		if !ok {
			errs = append(errs, ferr(CodeTypeMismatch, name, "Field '"+name+"' is not a relationship"))
			continue
		}

		var items []any
		switch v := raw.(type) {
		case nil:
		case map[string]any:
			if rel.Kind.Cardinality() == dsl.Many {
				errs = append(errs, ferr(CodeTypeMismatch, name, "Field '"+name+"' expected a list"))
				continue
			}
			items = []any{v}
		case []any:
			if rel.Kind.OwnsForeignKey() {
				errs = append(errs, ferr(CodeTypeMismatch, name, "Field '"+name+"' expected a single {id, type} object"))
				continue
			}
			items = v
		default:
			errs = append(errs, ferr(CodeTypeMismatch, name, "Field '"+name+"' expected {id, type}"))
			continue
		}

		in := relInput{rel: rel}
		for i, item := range items {
			prefix := name
			if !rel.Kind.OwnsForeignKey() {
				prefix = fmt.Sprintf("%s.%d", name, i)
			}
			r, ferrs := c.parseRef(ct, rel, prefix, item)
			if len(ferrs) > 0 {
				errs = append(errs, ferrs...)
				continue
			}
			in.refs = append(in.refs, r)
		}
		out = append(out, in)
	}
	return out, errs
}

func (c *Controller) parseRef(ct *registry.ContentType, rel dsl.Relation, prefix string, item any) (ref, []FieldError) {
	m, ok := item.(map[string]any)
	if !ok {
		return ref{}, []FieldError{ferr(CodeTypeMismatch, prefix, "Field '"+prefix+"' expected {id, type}")}
	}
	var errs []FieldError
	id, idOK := store.ToInt64(m["id"])
	if m["id"] == nil {
		errs = append(errs, ferr(CodeRequired, prefix+".id", "Field '"+prefix+".id' is required"))
	} else if !idOK {
		errs = append(errs, ferr(CodeTypeMismatch, prefix+".id", "Field '"+prefix+".id' expected numeric"))
	}
	class, _ := m["type"].(string)
	if class == "" {
		errs = append(errs, ferr(CodeRequired, prefix+".type", "Field '"+prefix+".type' is required"))
	}
	if len(errs) > 0 {
		return ref{}, errs
	}

	target, ok := c.allowedTarget(ct, rel, class)
	if !ok {
		return ref{}, []FieldError{ferr(CodeRefType, prefix+".type", fmt.Sprintf("Type '%s' is not allowed for '%s'", class, rel.Name))}
	}
	return ref{ID: id, Entity: target}, nil
}

// allowedTarget resolves class and checks it against the types configured
// for the relationship, or against the entity declaration when none are.
func (c *Controller) allowedTarget(ct *registry.ContentType, rel dsl.Relation, class string) (*dsl.Entity, bool) {
	reg := c.cms.registry
	target, ok := reg.ResolveClass(class)
	if !ok {
		return nil, false
	}
	if types := ct.Relationships[rel.Name].Types; len(types) > 0 {
		for _, t := range types {
			if te, ok := reg.ResolveClass(t); ok && te == target {
				return target, true
			}
		}
		return nil, false
	}
	if len(rel.Targets) == 0 || rel.AllowsTarget(target.FQN()) {
		return target, true
	}
	return nil, false
}
