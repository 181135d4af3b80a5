// Package store reads and writes entity records through ent's SQL builders.
// Records carry their attributes in an explicit map; nothing is reflected.
package store

import (
	"fmt"
	"sort"
	"strconv"

	"contentdesk/internal/dsl"
)

// Record — одна строка таблицы сущности.
type Record struct {
	Entity *dsl.Entity
	attrs  map[string]any
	exists bool
}

// NewRecord returns an unsaved record of the entity.
func NewRecord(e *dsl.Entity) *Record {
	return &Record{Entity: e, attrs: map[string]any{}}
}

func (r *Record) Get(attr string) any { return r.attrs[attr] }

func (r *Record) Set(attr string, v any) { r.attrs[attr] = v }

// Has reports whether the attribute was loaded or assigned.
func (r *Record) Has(attr string) bool {
	_, ok := r.attrs[attr]
	return ok
}

func (r *Record) Exists() bool { return r.exists }

// Class — дискриминатор конкретного класса записи (FQN сущности).
func (r *Record) Class() string { return r.Entity.FQN() }

// ID returns the primary key or 0 for an unsaved record.
func (r *Record) ID() int64 {
	id, _ := ToInt64(r.attrs["id"])
	return id
}

// Key is the composite "class::id" identity used when diffing related sets.
func (r *Record) Key() string {
	return RelatedKey(r.Class(), r.ID())
}

func RelatedKey(class string, id int64) string {
	return class + "::" + strconv.FormatInt(id, 10)
}

// Columns returns attribute names in sorted order.
func (r *Record) Columns() []string {
	out := make([]string, 0, len(r.attrs))
	for k := range r.attrs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ToMap serializes the record to plain data, leaving out hidden attributes.
func (r *Record) ToMap() map[string]any {
	out := make(map[string]any, len(r.attrs))
	for k, v := range r.attrs {
		if r.Entity.IsHidden(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// ToInt64 converts ids coming from drivers or JSON payloads.
func ToInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case float64:
		return int64(x), x == float64(int64(x))
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(x), 10, 64)
		return n, err == nil
	case fmt.Stringer:
		n, err := strconv.ParseInt(x.String(), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
