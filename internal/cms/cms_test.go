package cms

import (
	"context"
	"strings"
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

const blogDSL = `
module blog

entity Page:
  title: string required
  slug: string
  views: int required default=0
  body: text
  published_at: datetime
  featured: bool
  secret_token: string hidden
  owner: string
  tag: belongs_to[Tag]
  comments: has_many[Comment]
  tags: belongs_to_many[Tag]

entity Tag:
  name: string required

entity Comment:
  body: text
`

func blogTypes() []registry.ContentType {
	return []registry.ContentType{
		{
			Type:          "page",
			Name:          "Pages",
			Class:         "Page",
			SearchFields:  []string{"title", "slug"},
			SummaryFields: []string{"slug"},
			PushReadOnly:  []string{"owner"},
			OwnerField:    "owner",
			Relationships: map[string]registry.RelationshipConfig{
				"tag":      {Types: []string{"Tag"}},
				"comments": {Types: []string{"Comment"}},
				"tags":     {Types: []string{"blog.Tag"}},
			},
		},
		{Type: "tag", Class: "Tag", SearchFields: []string{"name"}},
		{Type: "comment", Class: "Comment"},
	}
}

type env struct {
	provider   *Provider
	controller *Controller
	store      *store.Store
	cat        dsl.Catalog
	ctx        context.Context
}

func newEnv(t *testing.T, opts ...Option) *env {
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

	reg, err := registry.New(blogTypes(), cat)
	require.NoError(t, err)
	require.NoError(t, reg.Lint())

	in, err := schema.New(conn, d)
	require.NoError(t, err)
	st := store.New(entsql.OpenDB(d, conn), cat)
	p := NewProvider(reg, in, st, opts...)

	admin := &authz.Principal{Subject: "1", Roles: []string{authz.RoleAdmin}}
	return &env{
		provider:   p,
		controller: NewController(p, authz.NewGate(), 0),
		store:      st,
		cat:        cat,
		ctx:        authz.WithPrincipal(context.Background(), admin),
	}
}

func (e *env) create(t *testing.T, entity string, attrs map[string]any) *store.Record {
	t.Helper()
	ent, ok := e.cat.Resolve(entity)
	require.True(t, ok)
	rec := store.NewRecord(ent)
	for k, v := range attrs {
		rec.Set(k, v)
	}
	require.NoError(t, e.store.Save(context.Background(), rec))
	return rec
}

func properties(fields []FieldDescriptor) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Property)
	}
	return out
}

func TestCaption(t *testing.T) {
	assert.Equal(t, "Published At", Caption("published_at"))
	assert.Equal(t, "Author Name", Caption("authorName"))
	assert.Equal(t, "Title", Caption("title"))
}

func TestGetFieldsSkipsHiddenReadOnlyAndRelationshipKeys(t *testing.T) {
	e := newEnv(t)
	page, _ := e.cat.Resolve("Page")

	fields, err := e.provider.GetFields(e.ctx, "page", store.NewRecord(page))
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "slug", "views", "body", "published_at", "featured"}, properties(fields))

	byProp := map[string]FieldDescriptor{}
	for _, f := range fields {
		byProp[f.Property] = f
	}
	assert.Equal(t, "field-text", byProp["title"].Component)
	assert.Equal(t, []string{"string", "required"}, byProp["title"].ValidationRules)
	assert.True(t, byProp["title"].Required)
	assert.Equal(t, "Title", byProp["title"].Caption)

	assert.Equal(t, []string{"string", "optional"}, byProp["slug"].ValidationRules)
	assert.Equal(t, "int", byProp["views"].Type)
	assert.Equal(t, "field-number", byProp["views"].Component)
	assert.Equal(t, []string{"numeric", "optional"}, byProp["views"].ValidationRules, "column default makes the field optional")
	assert.Equal(t, "field-textarea", byProp["body"].Component)
	assert.Equal(t, "field-date", byProp["published_at"].Component)
	assert.Equal(t, []string{"date", "optional"}, byProp["published_at"].ValidationRules)
	assert.Equal(t, "field-checkbox", byProp["featured"].Component)

	comment, _ := e.cat.Resolve("Comment")
	cf, err := e.provider.GetFields(e.ctx, "comment", store.NewRecord(comment))
	require.NoError(t, err)
	assert.Equal(t, []string{"body"}, properties(cf), "page_id belongs to Page.comments")

	rules, err := e.provider.GetValidationRules(e.ctx, "page", store.NewRecord(page))
	require.NoError(t, err)
	assert.Len(t, rules, 6)
	assert.Equal(t, []string{"string", "required"}, rules["title"])
}

func TestGetFieldsUnknownTypes(t *testing.T) {
	e := newEnv(t)
	page, _ := e.cat.Resolve("Page")

	_, err := e.provider.GetFields(e.ctx, "missing", store.NewRecord(page))
	assert.ErrorIs(t, err, ErrTypeNotFound)

	ct, err := e.provider.Registry().Get("page")
	require.NoError(t, err)
	ct.FieldTypes = map[string]string{"slug": "money"}
	defer func() { ct.FieldTypes = nil }()

	_, err = e.provider.GetFields(e.ctx, "page", store.NewRecord(page))
	assert.ErrorIs(t, err, ErrUnknownFieldType)
	assert.ErrorIs(t, e.provider.CheckSchema(e.ctx), ErrUnknownFieldType)
}

func TestWithFieldTypeRegistersFactory(t *testing.T) {
	money := func(_ context.Context, in FieldInput) (FieldDescriptor, error) {
		return FieldDescriptor{Property: in.Attribute, Caption: in.Caption, Type: "money", Component: "field-money",
			ValidationRules: columnRules(RuleNumeric, in.Column)}, nil
	}
	e := newEnv(t, WithFieldType("money", money))
	ct, err := e.provider.Registry().Get("page")
	require.NoError(t, err)
	ct.FieldTypes = map[string]string{"views": "money"}
	defer func() { ct.FieldTypes = nil }()

	page, _ := e.cat.Resolve("Page")
	fields, err := e.provider.GetFields(e.ctx, "page", store.NewRecord(page))
	require.NoError(t, err)
	assert.Equal(t, "field-money", fields[2].Component)
	assert.NoError(t, e.provider.CheckSchema(e.ctx))
}

type fixedColumns []schema.Column

func (f fixedColumns) Columns(context.Context, string) ([]schema.Column, error) { return f, nil }

func TestRulesFollowColumnMetadata(t *testing.T) {
	e := newEnv(t)
	zero := "0"
	cols := fixedColumns{
		{Name: "views", Position: 2, Type: "int", Default: &zero},
		{Name: "title", Position: 1, Type: "varchar", Length: 255},
		{Name: "slug", Position: 0, Type: "varchar", Nullable: true},
	}
	p := NewProvider(e.provider.Registry(), cols, e.store)
	page, _ := e.cat.Resolve("Page")

	fields, err := p.GetFields(e.ctx, "page", store.NewRecord(page))
	require.NoError(t, err)
	require.Equal(t, []string{"slug", "title", "views"}, properties(fields), "ordered by column position")

	assert.Contains(t, fields[2].ValidationRules, RuleOptional)
	assert.NotContains(t, fields[2].ValidationRules, RuleRequired)
	assert.Contains(t, fields[1].ValidationRules, RuleRequired)
	assert.Contains(t, fields[0].ValidationRules, RuleOptional)
}

func TestRelationshipFields(t *testing.T) {
	e := newEnv(t)
	tag := e.create(t, "Tag", map[string]any{"name": "go"})
	page := e.create(t, "Page", map[string]any{"title": "Home", "tag_id": tag.ID()})
	e.create(t, "Comment", map[string]any{"body": "hi", "page_id": page.ID()})

	fields, err := e.provider.GetRelationshipFields(e.ctx, "page", page)
	require.NoError(t, err)
	require.Equal(t, []string{"comments", "tag", "tags"}, properties(fields))

	comments, single, tags := fields[0], fields[1], fields[2]
	assert.Equal(t, "field-relationship-many", comments.Component)
	assert.Equal(t, "has_many", comments.ComponentConfig.Relationship)
	assert.Equal(t, []string{"optional"}, comments.ValidationRules)
	rows := comments.ComponentConfig.Value.([]map[string]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "blog.Comment", rows[0]["_type"])

	assert.Equal(t, "field-relationship-single", single.Component)
	assert.Equal(t, map[string]any{"types": []string{"Tag"}}, single.ComponentConfig.Config)
	val := single.ComponentConfig.Value.(map[string]any)
	assert.Equal(t, "blog.Tag", val["_type"])
	assert.Equal(t, "go", val["name"])

	assert.Equal(t, "field-relationship-many", tags.Component)
	assert.Empty(t, tags.ComponentConfig.Value)
}

func TestCardinalityForEveryKind(t *testing.T) {
	single := map[dsl.RelationKind]bool{dsl.BelongsTo: true, dsl.MorphTo: true, dsl.HasOne: true, dsl.MorphOne: true}
	for _, k := range dsl.RelationKinds() {
		want := dsl.Many
		if single[k] {
			want = dsl.Single
		}
		assert.Equal(t, want, k.Cardinality(), string(k))
	}
}

func TestValidate(t *testing.T) {
	e := newEnv(t)
	rules := map[string][]string{
		"title":  {RuleString, RuleRequired},
		"views":  {RuleNumeric, RuleOptional},
		"when":   {RuleDate, RuleOptional},
		"active": {RuleBoolean, RuleOptional},
	}

	assert.Empty(t, e.provider.Validate(rules, map[string]any{"title": "x", "views": float64(0), "when": "2024-01-02", "active": true}))
	assert.Empty(t, e.provider.Validate(rules, map[string]any{"title": "x", "views": nil}))

	errs := e.provider.Validate(rules, map[string]any{"title": "  ", "views": "many", "when": "yesterday", "active": 3.0})
	require.Len(t, errs, 4)
	codes := map[string]string{}
	for _, fe := range errs {
		codes[fe.Field] = fe.Code
	}
	assert.Equal(t, map[string]string{
		"title":  CodeRequired,
		"views":  CodeTypeMismatch,
		"when":   CodeTypeMismatch,
		"active": CodeTypeMismatch,
	}, codes)

	errs = e.provider.Validate(rules, map[string]any{"title": 12.0})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeTypeMismatch, errs[0].Code)
}

func TestSearchAndLookup(t *testing.T) {
	e := newEnv(t)
	e.create(t, "Page", map[string]any{"title": "Home", "slug": "index"})
	e.create(t, "Page", map[string]any{"title": "About", "slug": "HOMEstead"})
	e.create(t, "Page", map[string]any{"title": "Contact", "slug": "contact"})
	e.create(t, "Tag", map[string]any{"name": "homepage"})
	e.create(t, "Comment", map[string]any{"body": "home sweet home"})

	pages, err := e.provider.Search(e.ctx, "page", "home")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	for _, p := range pages {
		assert.Equal(t, "blog.Page", p.Class())
	}

	results, err := e.provider.Lookup(e.ctx, []string{"page", "nope", "comment", "tag"}, "home")
	require.NoError(t, err)
	require.Len(t, results, 3, "unknown and unsearchable types add nothing")
	assert.Equal(t, "blog.Page", results[0]["_type"])
	assert.Equal(t, "blog.Page", results[1]["_type"])
	assert.Equal(t, "blog.Tag", results[2]["_type"])
	assert.NotContains(t, results[0], "secret_token")
}

func ref64(id int64, class string) map[string]any {
	return map[string]any{"id": float64(id), "type": class}
}

func opKinds(ops []Op) []string {
	out := make([]string, 0, len(ops))
	for _, o := range ops {
		out = append(out, o.Kind+" "+o.Target)
	}
	return out
}

func TestLookupRequiresText(t *testing.T) {
	e := newEnv(t)
	e.create(t, "Page", map[string]any{"title": "Home"})

	for _, text := range []string{"", "   "} {
		_, err := e.provider.Lookup(e.ctx, []string{"page"}, text)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []FieldError{{Code: CodeRequired, Field: "text", Message: "Field 'text' is required"}}, verr.Errors)
	}
}

func TestSaveToOneRelationship(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 5; i++ {
		e.create(t, "Tag", map[string]any{"name": "t"})
	}

	res, err := e.controller.Store(e.ctx, "page", map[string]any{"title": "Home", "tag": ref64(5, "Tag")})
	require.NoError(t, err)
	assert.Equal(t, []Op{{Kind: OpAssociate, Relation: "tag", Target: "blog.Tag::5"}}, res.Ops, "nothing to dissociate on a new record")
	id, _ := store.ToInt64(res.Record["id"])

	page, _ := e.cat.Resolve("Page")
	saved, err := e.store.Find(e.ctx, page, id)
	require.NoError(t, err)
	tagID, _ := store.ToInt64(saved.Get("tag_id"))
	assert.Equal(t, int64(5), tagID)
	assert.Equal(t, "Home", saved.Get("title"))

	res, err = e.controller.Update(e.ctx, "page", id, map[string]any{"title": "Home", "tag": ref64(2, "blog.Tag")})
	require.NoError(t, err)
	assert.Equal(t, []string{"dissociate blog.Tag::5", "associate blog.Tag::2"}, opKinds(res.Ops))

	res, err = e.controller.Update(e.ctx, "page", id, map[string]any{"title": "Home", "tag": nil})
	require.NoError(t, err)
	assert.Equal(t, []string{"dissociate blog.Tag::2"}, opKinds(res.Ops))
	saved, err = e.store.Find(e.ctx, page, id)
	require.NoError(t, err)
	assert.Nil(t, saved.Get("tag_id"))

	res, err = e.controller.Update(e.ctx, "page", id, map[string]any{"title": "Home", "tag": ref64(99, "Tag")})
	require.NoError(t, err, "a missing to-one target is skipped")
	assert.Empty(t, res.Ops)

	res, err = e.controller.Update(e.ctx, "page", id, map[string]any{"title": "Renamed"})
	require.NoError(t, err)
	assert.Empty(t, res.Ops, "absent relationships are left alone")
	assert.Equal(t, "Renamed", res.Record["title"])
}

func TestSaveToManyDiff(t *testing.T) {
	e := newEnv(t)
	page := e.create(t, "Page", map[string]any{"title": "Home"})
	c1 := e.create(t, "Comment", map[string]any{"body": "one", "page_id": page.ID()})
	c2 := e.create(t, "Comment", map[string]any{"body": "two", "page_id": page.ID()})
	c3 := e.create(t, "Comment", map[string]any{"body": "three"})

	same := []any{ref64(c2.ID(), "Comment"), ref64(c1.ID(), "Comment")}
	res, err := e.controller.Update(e.ctx, "page", page.ID(), map[string]any{"title": "Home", "comments": same})
	require.NoError(t, err)
	assert.Empty(t, res.Ops, "an unchanged set produces no work")

	next := []any{ref64(c2.ID(), "Comment"), ref64(c3.ID(), "Comment")}
	res, err = e.controller.Update(e.ctx, "page", page.ID(), map[string]any{"title": "Home", "comments": next})
	require.NoError(t, err)
	assert.Equal(t, []Op{
		{Kind: OpDelete, Relation: "comments", Target: c1.Key()},
		{Kind: OpAttach, Relation: "comments", Target: c3.Key()},
	}, res.Ops)

	_, err = e.store.Find(e.ctx, c1.Entity, c1.ID())
	assert.ErrorIs(t, err, ErrRecordNotFound)
	attached, err := e.store.Find(e.ctx, c3.Entity, c3.ID())
	require.NoError(t, err)
	owner, _ := store.ToInt64(attached.Get("page_id"))
	assert.Equal(t, page.ID(), owner)
}

func TestSaveRollsBackOnMissingTarget(t *testing.T) {
	e := newEnv(t)
	page := e.create(t, "Page", map[string]any{"title": "Home"})
	c1 := e.create(t, "Comment", map[string]any{"body": "one", "page_id": page.ID()})

	_, err := e.controller.Update(e.ctx, "page", page.ID(), map[string]any{
		"title":    "Changed",
		"comments": []any{ref64(999, "Comment")},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, CodeRefNotFound, verr.Errors[0].Code)
	assert.Equal(t, "comments.0", verr.Errors[0].Field)

	saved, err := e.store.Find(e.ctx, page.Entity, page.ID())
	require.NoError(t, err)
	assert.Equal(t, "Home", saved.Get("title"))
	_, err = e.store.Find(e.ctx, c1.Entity, c1.ID())
	assert.NoError(t, err, "the delete of c1 is rolled back with the rest")
}

func TestSavePivotSync(t *testing.T) {
	e := newEnv(t)
	page := e.create(t, "Page", map[string]any{"title": "Home"})
	t1 := e.create(t, "Tag", map[string]any{"name": "a"})
	t2 := e.create(t, "Tag", map[string]any{"name": "b"})
	t3 := e.create(t, "Tag", map[string]any{"name": "c"})

	res, err := e.controller.Update(e.ctx, "page", page.ID(), map[string]any{
		"title": "Home", "tags": []any{ref64(t1.ID(), "Tag"), ref64(t2.ID(), "Tag")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pivot_attach " + t1.Key(), "pivot_attach " + t2.Key()}, opKinds(res.Ops))

	res, err = e.controller.Update(e.ctx, "page", page.ID(), map[string]any{
		"title": "Home", "tags": []any{ref64(t2.ID(), "Tag"), ref64(t3.ID(), "Tag")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pivot_attach " + t3.Key(), "pivot_detach " + t1.Key()}, opKinds(res.Ops))

	rel, _ := page.Entity.Relation("tags")
	related, err := e.store.Related(e.ctx, page, rel)
	require.NoError(t, err)
	keys := []string{}
	for _, r := range related {
		keys = append(keys, r.Key())
	}
	assert.ElementsMatch(t, []string{t2.Key(), t3.Key()}, keys)

	res, err = e.controller.Update(e.ctx, "page", page.ID(), map[string]any{"title": "Home", "tags": nil})
	require.NoError(t, err)
	assert.Len(t, res.Ops, 2)
}

func TestSaveRejectsBadPayload(t *testing.T) {
	e := newEnv(t)
	e.create(t, "Comment", map[string]any{"body": "x"})

	_, err := e.controller.Store(e.ctx, "page", map[string]any{
		"views":    "lots",
		"tag":      []any{ref64(1, "Tag")},
		"comments": map[string]any{"id": 1.0, "type": "Comment"},
		"tags":     []any{ref64(1, "Comment"), map[string]any{"type": "Tag"}},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	got := map[string]string{}
	for _, fe := range verr.Errors {
		got[fe.Field] = fe.Code
	}
	assert.Equal(t, map[string]string{
		"title":       CodeRequired,
		"views":       CodeTypeMismatch,
		"tag":         CodeTypeMismatch,
		"comments":    CodeTypeMismatch,
		"tags.0.type": CodeRefType,
		"tags.1.id":   CodeRequired,
	}, got)

	all, err := e.store.All(e.ctx, e.cat["blog.Page"])
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSaveRejectsFractionalInt(t *testing.T) {
	e := newEnv(t)

	for _, views := range []any{1.5, "2.5"} {
		_, err := e.controller.Store(e.ctx, "page", map[string]any{"title": "x", "views": views})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "%v", views)
		require.Len(t, verr.Errors, 1)
		assert.Equal(t, FieldError{Code: CodeTypeMismatch, Field: "views", Message: "Field 'views' expected integer"}, verr.Errors[0])
	}

	res, err := e.controller.Store(e.ctx, "page", map[string]any{"title": "x", "views": 3.0})
	require.NoError(t, err)
	id, _ := store.ToInt64(res.Record["id"])
	rec, err := e.store.Find(e.ctx, e.cat["blog.Page"], id)
	require.NoError(t, err)
	n, ok := store.ToInt64(rec.Get("views"))
	require.True(t, ok)
	assert.Equal(t, int64(3), n)
}

func TestStoreAssignsOwnerToEditor(t *testing.T) {
	e := newEnv(t)
	editor := authz.WithPrincipal(context.Background(), &authz.Principal{Subject: "7", Roles: []string{authz.RoleEditor}})

	res, err := e.controller.Store(editor, "page", map[string]any{"title": "draft", "owner": "8"})
	require.NoError(t, err)
	assert.Equal(t, "7", res.Record["owner"])
	id, _ := store.ToInt64(res.Record["id"])

	form, err := e.controller.Edit(editor, "page", id)
	require.NoError(t, err)
	assert.Equal(t, "draft", form.Record["title"])
	_, err = e.controller.Update(editor, "page", id, map[string]any{"title": "final"})
	require.NoError(t, err)

	page, err := e.controller.Index(editor, "page", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	other := authz.WithPrincipal(context.Background(), &authz.Principal{Subject: "8", Roles: []string{authz.RoleEditor}})
	_, err = e.controller.Edit(other, "page", id)
	assert.ErrorIs(t, err, ErrForbidden)

	// админ владельца не назначает
	res, err = e.controller.Store(e.ctx, "page", map[string]any{"title": "shared"})
	require.NoError(t, err)
	assert.Nil(t, res.Record["owner"])
}

func TestIndexPaginatesVisibleRecords(t *testing.T) {
	e := newEnv(t)
	for _, owner := range []string{"7", "8", "7", "7"} {
		e.create(t, "Page", map[string]any{"title": "p", "slug": "s", "owner": owner})
	}
	c := NewController(e.provider, authz.NewGate(), 2)

	page, err := c.Index(e.ctx, "page", 2)
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.LastPage)
	assert.Equal(t, []string{"id", "slug"}, page.Columns)
	assert.Len(t, page.Records, 2)

	editor := authz.WithPrincipal(context.Background(), &authz.Principal{Subject: "7", Roles: []string{authz.RoleEditor}})
	page, err = c.Index(editor, "page", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "blog.Page", page.Records[0]["_type"])
	assert.Equal(t, "7", page.Records[0]["owner"])

	page, err = c.Index(editor, "page", 9)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
}

func TestControllerPermissions(t *testing.T) {
	e := newEnv(t)
	mine := e.create(t, "Page", map[string]any{"title": "mine", "owner": "7"})
	theirs := e.create(t, "Page", map[string]any{"title": "theirs", "owner": "8", "secret_token": "s3cret"})

	_, err := e.controller.Create(context.Background(), "page")
	assert.ErrorIs(t, err, ErrForbidden)

	tagEditor := authz.WithPrincipal(context.Background(), &authz.Principal{Subject: "7", Roles: []string{"editor:tag"}})
	_, err = e.controller.Create(tagEditor, "page")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.controller.Store(tagEditor, "page", map[string]any{"title": "x"})
	assert.ErrorIs(t, err, ErrForbidden)
	form, err := e.controller.Create(tagEditor, "tag")
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, properties(form.Fields))

	editor := authz.WithPrincipal(context.Background(), &authz.Principal{Subject: "7", Roles: []string{authz.RoleEditor}})
	form, err = e.controller.Edit(editor, "page", mine.ID())
	require.NoError(t, err)
	assert.Equal(t, "mine", form.Record["title"])
	assert.Len(t, form.Relationships, 3)

	_, err = e.controller.Edit(editor, "page", theirs.ID())
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.controller.Update(editor, "page", theirs.ID(), map[string]any{"title": "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	form, err = e.controller.Edit(e.ctx, "page", theirs.ID())
	require.NoError(t, err)
	assert.NotContains(t, form.Record, "secret_token")

	_, err = e.controller.Edit(e.ctx, "page", 999)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = e.controller.Index(e.ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrTypeNotFound)
}

func TestCheckSchemaReportsMissingColumns(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.provider.CheckSchema(e.ctx))

	ct, err := e.provider.Registry().Get("tag")
	require.NoError(t, err)
	ct.SearchFields = []string{"name", "colour"}
	defer func() { ct.SearchFields = []string{"name"} }()

	err = e.provider.CheckSchema(e.ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"colour"`)
}
