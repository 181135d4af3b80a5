package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"contentdesk/internal/db"
	"contentdesk/internal/dsl"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogDSL = `
module blog

entity Page:
  title: string required
  slug: string
  views: int default=0
  author: belongs_to[Author]
  parent: morph_to[Page, Author]
  comments: has_many[Comment]
  images: morph_many[Image] morph=imageable
  tags: belongs_to_many[Tag]
  labels: morph_to_many[Label] morph=labelable

entity Author:
  name: string

entity Comment:
  body: text

entity Image:
  url: string

entity Tag:
  name: string

entity Label:
  name: string
`

type fixture struct {
	store *Store
	cat   dsl.Catalog
}

func (f fixture) entity(t *testing.T, name string) *dsl.Entity {
	t.Helper()
	e, ok := f.cat.Resolve(name)
	require.True(t, ok, name)
	return e
}

func (f fixture) create(t *testing.T, entity string, attrs map[string]any) *Record {
	t.Helper()
	rec := NewRecord(f.entity(t, entity))
	for k, v := range attrs {
		rec.Set(k, v)
	}
	require.NoError(t, f.store.Save(context.Background(), rec))
	return rec
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ents, err := dsl.ParseEntities(strings.NewReader(blogDSL))
	require.NoError(t, err)
	cat := dsl.Catalog{}
	require.NoError(t, cat.Add(ents...))

	conn, d, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	stmts, err := db.GenerateDDL(cat, d)
	require.NoError(t, err)
	require.NoError(t, db.ApplyDDL(context.Background(), conn, stmts))

	return fixture{store: New(entsql.OpenDB(d, conn), cat), cat: cat}
}

func TestSaveInsertAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f.store.now = func() time.Time { return clock }

	page := f.create(t, "Page", map[string]any{"title": "Home", "slug": "home"})
	require.True(t, page.Exists())
	require.NotZero(t, page.ID())
	assert.Equal(t, "blog.Page::1", page.Key())

	clock = clock.Add(time.Hour)
	page.Set("title", "Home page")
	require.NoError(t, f.store.Save(ctx, page))

	got, err := f.store.Find(ctx, f.entity(t, "Page"), page.ID())
	require.NoError(t, err)
	assert.Equal(t, "Home page", got.Get("title"))
	assert.Equal(t, "home", got.Get("slug"))

	_, err = f.store.Find(ctx, f.entity(t, "Page"), 999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSearchIsCaseInsensitiveOr(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Page", map[string]any{"title": "Welcome HOME", "slug": "welcome"})
	f.create(t, "Page", map[string]any{"title": "About", "slug": "about-homestead"})
	f.create(t, "Page", map[string]any{"title": "Contact", "slug": "contact"})

	page := f.entity(t, "Page")
	found, err := f.store.Search(context.Background(), page, []string{"title", "slug"}, "home")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Welcome HOME", found[0].Get("title"))
	assert.Equal(t, "About", found[1].Get("title"))

	none, err := f.store.Search(context.Background(), page, nil, "home")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRelatedByKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.create(t, "Author", map[string]any{"name": "Ann"})
	page := f.create(t, "Page", map[string]any{"title": "Home", "author_id": author.ID(), "parent_id": author.ID(), "parent_type": "blog.Author"})
	other := f.create(t, "Page", map[string]any{"title": "Other"})

	c1 := f.create(t, "Comment", map[string]any{"body": "first", "page_id": page.ID()})
	f.create(t, "Comment", map[string]any{"body": "elsewhere", "page_id": other.ID()})
	img := f.create(t, "Image", map[string]any{"url": "a.png"})
	require.NoError(t, f.store.Attach(ctx, page, mustRel(t, page, "images"), img))

	rels := func(name string) []*Record {
		out, err := f.store.Related(ctx, page, mustRel(t, page, name))
		require.NoError(t, err)
		return out
	}

	require.Len(t, rels("author"), 1)
	assert.Equal(t, "Ann", rels("author")[0].Get("name"))
	require.Len(t, rels("parent"), 1)
	assert.Equal(t, "blog.Author", rels("parent")[0].Class())
	require.Len(t, rels("comments"), 1)
	assert.Equal(t, c1.ID(), rels("comments")[0].ID())
	require.Len(t, rels("images"), 1)
	assert.Equal(t, "blog.Page", rels("images")[0].Get("imageable_type"))
	assert.Empty(t, rels("tags"))

	Dissociate(page, mustRel(t, page, "author"))
	assert.Empty(t, rels("author"))
}

func TestSyncPivot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page := f.create(t, "Page", map[string]any{"title": "Home"})
	var tags []int64
	for _, n := range []string{"go", "sql", "cms"} {
		tags = append(tags, f.create(t, "Tag", map[string]any{"name": n}).ID())
	}
	rel := mustRel(t, page, "tags")

	require.NoError(t, f.store.SyncPivot(ctx, page, rel, []int64{tags[0], tags[1]}))
	got, err := f.store.Related(ctx, page, rel)
	require.NoError(t, err)
	assert.Equal(t, []int64{tags[0], tags[1]}, ids(got))

	require.NoError(t, f.store.SyncPivot(ctx, page, rel, []int64{tags[1], tags[2], tags[2]}))
	got, err = f.store.Related(ctx, page, rel)
	require.NoError(t, err)
	assert.Equal(t, []int64{tags[1], tags[2]}, ids(got))

	labels := mustRel(t, page, "labels")
	label := f.create(t, "Label", map[string]any{"name": "featured"})
	require.NoError(t, f.store.SyncPivot(ctx, page, labels, []int64{label.ID()}))
	got, err = f.store.Related(ctx, page, labels)
	require.NoError(t, err)
	assert.Equal(t, []int64{label.ID()}, ids(got))
}

func TestWithTxRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page := f.entity(t, "Page")

	boom := errors.New("boom")
	err := f.store.WithTx(ctx, func(tx *Store) error {
		rec := NewRecord(page)
		rec.Set("title", "draft")
		if err := tx.Save(ctx, rec); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := f.store.All(ctx, page)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, f.store.WithTx(ctx, func(tx *Store) error {
		rec := NewRecord(page)
		rec.Set("title", "kept")
		return tx.Save(ctx, rec)
	}))
	all, err = f.store.All(ctx, page)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.create(t, "Tag", map[string]any{"name": "old"})
	require.NoError(t, f.store.Delete(ctx, rec))
	assert.False(t, rec.Exists())
	_, err := f.store.Find(ctx, rec.Entity, rec.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func mustRel(t *testing.T, rec *Record, name string) dsl.Relation {
	t.Helper()
	rel, ok := rec.Entity.Relation(name)
	require.True(t, ok, name)
	return rel
}

func ids(recs []*Record) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID())
	}
	return out
}
