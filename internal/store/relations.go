package store

import (
	"context"
	"errors"
	"fmt"

	"contentdesk/internal/dsl"

	entsql "entgo.io/ent/dialect/sql"
)

// Resolve maps a class discriminator to its entity.
func (s *Store) Resolve(class string) (*dsl.Entity, error) {
	e, ok := s.catalog.Resolve(class)
	if !ok {
		return nil, fmt.Errorf("store: unknown class %q", class)
	}
	return e, nil
}

// Related loads the records currently linked to rec through rel. Unsaved
// records have no related rows.
func (s *Store) Related(ctx context.Context, rec *Record, rel dsl.Relation) ([]*Record, error) {
	switch rel.Kind {
	case dsl.BelongsTo, dsl.MorphTo:
		return s.owner(ctx, rec, rel)
	}
	if !rec.exists {
		return nil, nil
	}

	switch rel.Kind {
	case dsl.HasOne, dsl.HasMany, dsl.MorphOne, dsl.MorphMany:
		target, err := s.Resolve(rel.Target())
		if err != nil {
			return nil, err
		}
		sel := s.selectAll(target).Where(entsql.EQ(rel.ForeignKey, rec.ID()))
		if rel.Kind.Polymorphic() {
			sel.Where(entsql.EQ(rel.TypeColumn, rec.Class()))
		}
		return s.query(ctx, target, sel.OrderBy("id"))

	case dsl.BelongsToMany, dsl.MorphToMany:
		target, err := s.Resolve(rel.Target())
		if err != nil {
			return nil, err
		}
		ids, err := s.pivotIDs(ctx, rec, rel)
		if err != nil || len(ids) == 0 {
			return nil, err
		}
		return s.query(ctx, target, s.selectAll(target).Where(entsql.In("id", ids...)).OrderBy("id"))
	}
	return nil, fmt.Errorf("store: unsupported relation kind %q", rel.Kind)
}

// owner loads the record referenced by the key columns on rec itself.
func (s *Store) owner(ctx context.Context, rec *Record, rel dsl.Relation) ([]*Record, error) {
	id, ok := ToInt64(rec.Get(rel.ForeignKey))
	if !ok || id == 0 {
		return nil, nil
	}
	class := rel.Target()
	if rel.Kind == dsl.MorphTo {
		class, _ = rec.Get(rel.TypeColumn).(string)
		if class == "" {
			return nil, nil
		}
	}
	target, err := s.Resolve(class)
	if err != nil {
		return nil, err
	}
	found, err := s.Find(ctx, target, id)
	if errors.Is(err, ErrNotFound) {
		// висячий ключ считаем пустой связью
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []*Record{found}, nil
}

// Associate points rec's owning key columns at target. rec is not saved.
func Associate(rec *Record, rel dsl.Relation, target *Record) {
	rec.Set(rel.ForeignKey, target.ID())
	if rel.TypeColumn != "" {
		rec.Set(rel.TypeColumn, target.Class())
	}
}

// Dissociate clears rec's owning key columns. rec is not saved.
func Dissociate(rec *Record, rel dsl.Relation) {
	rec.Set(rel.ForeignKey, nil)
	if rel.TypeColumn != "" {
		rec.Set(rel.TypeColumn, nil)
	}
}

// Attach re-points a has/morph child at the parent.
func (s *Store) Attach(ctx context.Context, parent *Record, rel dsl.Relation, child *Record) error {
	values := map[string]any{rel.ForeignKey: parent.ID()}
	if rel.Kind.Polymorphic() {
		values[rel.TypeColumn] = parent.Class()
	}
	if err := s.UpdateColumns(ctx, child.Entity, child.ID(), values); err != nil {
		return err
	}
	for k, v := range values {
		child.Set(k, v)
	}
	return nil
}

func (s *Store) pivotWhere(rec *Record, rel dsl.Relation) *entsql.Predicate {
	p := entsql.EQ(rel.ForeignKey, rec.ID())
	if rel.Kind == dsl.MorphToMany {
		p = entsql.And(p, entsql.EQ(rel.TypeColumn, rec.Class()))
	}
	return p
}

func (s *Store) pivotIDs(ctx context.Context, rec *Record, rel dsl.Relation) ([]any, error) {
	b := s.builder()
	q, args := b.Select(rel.RelatedKey).From(b.Table(rel.Pivot)).
		Where(s.pivotWhere(rec, rel)).OrderBy(rel.RelatedKey).Query()
	var rows entsql.Rows
	if err := s.conn.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("store: %s: %w", rel.Pivot, err)
	}
	defer rows.Close()
	var ids []any
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SyncPivot replaces the pivot rows of rec with exactly ids. Rows already
// present are left alone.
func (s *Store) SyncPivot(ctx context.Context, rec *Record, rel dsl.Relation, ids []int64) error {
	current, err := s.pivotIDs(ctx, rec, rel)
	if err != nil {
		return err
	}
	have := make(map[int64]bool, len(current))
	for _, v := range current {
		have[v.(int64)] = true
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var detach []any
	for id := range have {
		if !want[id] {
			detach = append(detach, id)
		}
	}
	if len(detach) > 0 {
		del := s.builder().Delete(rel.Pivot).
			Where(entsql.And(s.pivotWhere(rec, rel), entsql.In(rel.RelatedKey, detach...)))
		if err := s.exec(ctx, del); err != nil {
			return err
		}
	}

	attached := map[int64]bool{}
	for _, id := range ids {
		if have[id] || attached[id] {
			continue
		}
		attached[id] = true
		cols := []string{rel.ForeignKey, rel.RelatedKey}
		vals := []any{rec.ID(), id}
		if rel.Kind == dsl.MorphToMany {
			cols = append(cols, rel.TypeColumn)
			vals = append(vals, rec.Class())
		}
		if err := s.exec(ctx, s.builder().Insert(rel.Pivot).Columns(cols...).Values(vals...)); err != nil {
			return err
		}
	}
	return nil
}
