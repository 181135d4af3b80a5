package dsl

import (
	"fmt"
	"strings"
)

// RelationKind is the closed set of relationship kinds an entity can declare.
type RelationKind string

const (
	BelongsTo     RelationKind = "belongs_to"
	MorphTo       RelationKind = "morph_to"
	HasOne        RelationKind = "has_one"
	MorphOne      RelationKind = "morph_one"
	HasMany       RelationKind = "has_many"
	MorphMany     RelationKind = "morph_many"
	BelongsToMany RelationKind = "belongs_to_many"
	MorphToMany   RelationKind = "morph_to_many"
)

// RelationKinds lists every kind in declaration order.
func RelationKinds() []RelationKind {
	return []RelationKind{
		BelongsTo, MorphTo, HasOne, MorphOne,
		HasMany, MorphMany, BelongsToMany, MorphToMany,
	}
}

func ParseRelationKind(s string) (RelationKind, error) {
	k := RelationKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range RelationKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown relation kind %q", s)
}

// Cardinality says whether a relationship refers to at most one or to many records.
type Cardinality string

const (
	Single Cardinality = "single"
	Many   Cardinality = "many"
)

// Cardinality classifies the kind: the to-one family (including polymorphic
// to-one) is single, everything else is many.
func (k RelationKind) Cardinality() Cardinality {
	switch k {
	case BelongsTo, MorphTo, HasOne, MorphOne:
		return Single
	default:
		return Many
	}
}

// OwnsForeignKey reports whether the key columns live on the declaring record.
func (k RelationKind) OwnsForeignKey() bool {
	return k == BelongsTo || k == MorphTo
}

// UsesPivot reports whether membership is stored in a pivot table.
func (k RelationKind) UsesPivot() bool {
	return k == BelongsToMany || k == MorphToMany
}

func (k RelationKind) Polymorphic() bool {
	switch k {
	case MorphTo, MorphOne, MorphMany, MorphToMany:
		return true
	}
	return false
}

// Relation is one relationship declared on an entity.
//
//	belongs_to / morph_to:       ForeignKey (+TypeColumn) on the declaring table
//	has_one / has_many:          ForeignKey on the target table
//	morph_one / morph_many:      ForeignKey + TypeColumn on the target table
//	belongs_to_many:             Pivot(ForeignKey -> declaring id, RelatedKey -> target id)
//	morph_to_many:               same as above plus TypeColumn in the pivot
type Relation struct {
	Name       string
	Kind       RelationKind
	Targets    []string
	ForeignKey string
	TypeColumn string
	Pivot      string
	RelatedKey string
}

// Target returns the first declared target; morph_to may declare several.
func (r Relation) Target() string {
	if len(r.Targets) == 0 {
		return ""
	}
	return r.Targets[0]
}

// KeyColumns returns the columns of the declaring table that belong to the
// relationship. They are edited through the relationship, not as plain fields.
func (r Relation) KeyColumns() []string {
	if !r.Kind.OwnsForeignKey() {
		return nil
	}
	cols := []string{r.ForeignKey}
	if r.TypeColumn != "" {
		cols = append(cols, r.TypeColumn)
	}
	return cols
}

func (r Relation) AllowsTarget(class string) bool {
	for _, t := range r.Targets {
		if strings.EqualFold(t, class) || strings.EqualFold(shortName(t), shortName(class)) {
			return true
		}
	}
	return false
}

func shortName(class string) string {
	if i := strings.LastIndexByte(class, '.'); i >= 0 {
		return class[i+1:]
	}
	return class
}
