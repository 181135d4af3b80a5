package authz

import (
	"fmt"
	"strings"

	"contentdesk/internal/registry"
	"contentdesk/internal/store"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// Gate answers the two permission questions of the admin:
// may the principal edit records of a type, and may it edit this record.
type Gate struct{}

func NewGate() *Gate { return &Gate{} }

// AllowsType: admin и editor — любые типы, editor:<type> — только свой.
func (g *Gate) AllowsType(p *Principal, typ string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		switch {
		case r == RoleAdmin, r == RoleEditor:
			return true
		case strings.HasPrefix(r, RoleEditor+":") && strings.TrimPrefix(r, RoleEditor+":") == typ:
			return true
		}
	}
	return false
}

// AllowsRecord adds the ownership check: when the type names an owner
// field, non-admins may edit only records whose owner is their subject.
func (g *Gate) AllowsRecord(p *Principal, ct *registry.ContentType, rec *store.Record) bool {
	if !g.AllowsType(p, ct.Type) {
		return false
	}
	if ct.OwnerField == "" || p.HasRole(RoleAdmin) {
		return true
	}
	owner := rec.Get(ct.OwnerField)
	if owner == nil {
		return false
	}
	return fmt.Sprint(owner) == p.Subject
}
