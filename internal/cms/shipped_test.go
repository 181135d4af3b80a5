package cms

import (
	"context"
	"strconv"
	"testing"

	"contentdesk/internal/authz"
	"contentdesk/internal/db"
	"contentdesk/internal/dsl"
	"contentdesk/internal/registry"
	"contentdesk/internal/schema"
	"contentdesk/internal/store"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Каталог dsl/ и types/ из корня репозитория должны собираться в рабочую админку.
func TestShippedContentTypes(t *testing.T) {
	ctx := authz.WithPrincipal(context.Background(), &authz.Principal{Subject: "1", Roles: []string{authz.RoleAdmin}})

	cat, err := dsl.LoadAllEntities("../../dsl")
	require.NoError(t, err)
	types, err := registry.LoadDir("../../types")
	require.NoError(t, err)
	reg, err := registry.New(types, cat)
	require.NoError(t, err)
	require.NoError(t, reg.Lint())

	conn, d, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer conn.Close()
	stmts, err := db.GenerateDDL(cat, d)
	require.NoError(t, err)
	require.NoError(t, db.ApplyDDL(ctx, conn, stmts))

	in, err := schema.New(conn, d)
	require.NoError(t, err)
	p := NewProvider(reg, in, store.New(entsql.OpenDB(d, conn), cat))
	require.NoError(t, p.CheckSchema(ctx))

	c := NewController(p, authz.NewGate(), 0)
	for _, ct := range reg.Types() {
		form, err := c.Create(ctx, ct.Type)
		require.NoError(t, err, ct.Type)
		assert.Len(t, form.Relationships, len(ct.Relationships), ct.Type)
	}

	page, err := c.Create(ctx, "page")
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "slug", "body", "published_at", "featured"}, properties(page.Fields))

	author, err := c.Store(ctx, "author", map[string]any{"name": "Ann", "email": "ann@example.com"})
	require.NoError(t, err)
	authorID, _ := store.ToInt64(author.Record["id"])
	cat1, err := c.Store(ctx, "category", map[string]any{"name": "News"})
	require.NoError(t, err)
	catID, _ := store.ToInt64(cat1.Record["id"])

	res, err := c.Store(ctx, "page", map[string]any{
		"title":        "Home",
		"published_at": "2024-05-01T10:00:00Z",
		"featured":     true,
		"author":       map[string]any{"id": float64(authorID), "type": "Author"},
		"parent":       map[string]any{"id": float64(catID), "type": "blog.Category"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"associate blog.Author::" + itoa(authorID), "associate blog.Category::" + itoa(catID)}, opKinds(res.Ops))
	assert.Equal(t, "blog.Category", res.Record["parent_type"])
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
