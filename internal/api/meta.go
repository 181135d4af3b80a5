package api

import (
	"net/http"
	"strings"

	"contentdesk/internal/dsl"
	"contentdesk/internal/registry"

	"github.com/gin-gonic/gin"
)

// ===== META HANDLERS =====

type metaRelationship struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Cardinality string   `json:"cardinality"`
	Types       []string `json:"types"`
}

type metaType struct {
	Type          string             `json:"type"`
	Name          string             `json:"name"`
	Class         string             `json:"class"`
	Module        string             `json:"module"`
	Entity        string             `json:"entity"`
	Table         string             `json:"table"`
	SearchFields  []string           `json:"search_fields"`
	SummaryFields []string           `json:"summary_fields"`
	ReadOnly      []string           `json:"read_only"`
	Relationships []metaRelationship `json:"relationships"`
}

func describeType(reg *registry.Registry, ct *registry.ContentType) metaType {
	ent := reg.EntityFor(ct)
	m, e := splitFQN(ent.FQN())
	out := metaType{
		Type:          ct.Type,
		Name:          ct.Name,
		Class:         ent.FQN(),
		Module:        m,
		Entity:        e,
		Table:         ent.Table,
		SearchFields:  nonNil(ct.SearchFields),
		SummaryFields: nonNil(ct.SummaryFields),
		ReadOnly:      nonNil(ct.ReadOnly),
		Relationships: []metaRelationship{},
	}
	for _, name := range ct.RelationshipNames() {
		rel, ok := ent.Relation(name)
		if !ok {
			continue
		}
		out.Relationships = append(out.Relationships, metaRelationship{
			Name:        name,
			Kind:        string(rel.Kind),
			Cardinality: string(rel.Kind.Cardinality()),
			Types:       nonNil(ct.Relationships[name].Types),
		})
	}
	return out
}

// GET /api/cms/meta
func MetaListHandler(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		types := reg.Types()
		out := make([]metaType, 0, len(types))
		for _, ct := range types {
			out = append(out, describeType(reg, ct))
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/cms/meta/:type — тип по ключу или классу.
func MetaTypeHandler(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ct, err := reg.Get(c.Param("type"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, describeType(reg, ct))
	}
}

// GET /api/cms/meta/kinds — классификация всех видов связей.
func MetaKindsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		out := make([]gin.H, 0, len(dsl.RelationKinds()))
		for _, k := range dsl.RelationKinds() {
			out = append(out, gin.H{
				"kind":        k,
				"cardinality": k.Cardinality(),
				"owns_key":    k.OwnsForeignKey(),
				"pivot":       k.UsesPivot(),
				"polymorphic": k.Polymorphic(),
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// splitFQN("module.entity") -> ("module","entity")
func splitFQN(fqn string) (string, string) {
	i := strings.LastIndexByte(fqn, '.')
	if i <= 0 || i >= len(fqn)-1 {
		return "", fqn
	}
	return fqn[:i], fqn[i+1:]
}
