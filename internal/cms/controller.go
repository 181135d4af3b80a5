package cms

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"contentdesk/internal/authz"
	"contentdesk/internal/dsl"
	"contentdesk/internal/logger"
	"contentdesk/internal/registry"
	"contentdesk/internal/store"

	"github.com/sirupsen/logrus"
)

const DefaultPerPage = 15

// Controller runs the list / create / edit / save flows of the admin.
// The request principal is taken from the context.
type Controller struct {
	cms     *Provider
	gate    *authz.Gate
	perPage int
}

func NewController(p *Provider, gate *authz.Gate, perPage int) *Controller {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Controller{cms: p, gate: gate, perPage: perPage}
}

type ListPage struct {
	Type     *registry.ContentType `json:"type"`
	Columns  []string              `json:"columns"`
	Records  []map[string]any      `json:"records"`
	Page     int                   `json:"page"`
	PerPage  int                   `json:"per_page"`
	Total    int                   `json:"total"`
	LastPage int                   `json:"last_page"`
}

type Form struct {
	Type          *registry.ContentType `json:"type"`
	Record        map[string]any        `json:"record"`
	Fields        []FieldDescriptor     `json:"fields"`
	Relationships []FieldDescriptor     `json:"relationships"`
}

// Op is one relationship change applied by a save.
type Op struct {
	Kind     string `json:"kind"`
	Relation string `json:"relation"`
	Target   string `json:"target,omitempty"`
}

const (
	OpDissociate  = "dissociate"
	OpAssociate   = "associate"
	OpDelete      = "delete"
	OpAttach      = "attach"
	OpPivotAttach = "pivot_attach"
	OpPivotDetach = "pivot_detach"
)

type SaveResult struct {
	Record map[string]any `json:"record"`
	Ops    []Op           `json:"ops"`
}

// Index lists the records the principal may edit, one page at a time.
func (c *Controller) Index(ctx context.Context, typ string, page int) (*ListPage, error) {
	ct, ent, err := c.cms.contentType(typ)
	if err != nil {
		return nil, err
	}
	all, err := c.cms.store.All(ctx, ent)
	if err != nil {
		return nil, err
	}
	principal := authz.FromContext(ctx)
	visible := all[:0]
	for _, r := range all {
		if c.gate.AllowsRecord(principal, ct, r) {
			visible = append(visible, r)
		}
	}

	total := len(visible)
	last := (total + c.perPage - 1) / c.perPage
	if last < 1 {
		last = 1
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * c.perPage
	if start > total {
		start = total
	}
	end := start + c.perPage
	if end > total {
		end = total
	}

	out := &ListPage{
		Type:     ct,
		Columns:  append([]string{"id"}, ct.SummaryFields...),
		Records:  make([]map[string]any, 0, end-start),
		Page:     page,
		PerPage:  c.perPage,
		Total:    total,
		LastPage: last,
	}
	for _, r := range visible[start:end] {
		out.Records = append(out.Records, tagged(r))
	}
	return out, nil
}

// Create returns the blank form of a new record.
func (c *Controller) Create(ctx context.Context, typ string) (*Form, error) {
	ct, ent, err := c.cms.contentType(typ)
	if err != nil {
		return nil, err
	}
	if !c.gate.AllowsType(authz.FromContext(ctx), ct.Type) {
		return nil, ErrForbidden
	}
	return c.form(ctx, ct, store.NewRecord(ent))
}

// Edit returns the form of an existing record.
func (c *Controller) Edit(ctx context.Context, typ string, id int64) (*Form, error) {
	ct, rec, err := c.load(ctx, typ, id)
	if err != nil {
		return nil, err
	}
	return c.form(ctx, ct, rec)
}

// Store creates a record from the submitted payload.
func (c *Controller) Store(ctx context.Context, typ string, payload map[string]any) (*SaveResult, error) {
	ct, ent, err := c.cms.contentType(typ)
	if err != nil {
		return nil, err
	}
	if !c.gate.AllowsType(authz.FromContext(ctx), ct.Type) {
		return nil, ErrForbidden
	}
	return c.save(ctx, ct, store.NewRecord(ent), payload)
}

// Update saves the submitted payload over an existing record.
func (c *Controller) Update(ctx context.Context, typ string, id int64, payload map[string]any) (*SaveResult, error) {
	ct, rec, err := c.load(ctx, typ, id)
	if err != nil {
		return nil, err
	}
	return c.save(ctx, ct, rec, payload)
}

func (c *Controller) load(ctx context.Context, typ string, id int64) (*registry.ContentType, *store.Record, error) {
	ct, ent, err := c.cms.contentType(typ)
	if err != nil {
		return nil, nil, err
	}
	rec, err := c.cms.store.Find(ctx, ent, id)
	if err != nil {
		return nil, nil, err
	}
	if !c.gate.AllowsRecord(authz.FromContext(ctx), ct, rec) {
		return nil, nil, ErrForbidden
	}
	return ct, rec, nil
}

func (c *Controller) form(ctx context.Context, ct *registry.ContentType, rec *store.Record) (*Form, error) {
	fields, err := c.cms.GetFields(ctx, ct.Type, rec)
	if err != nil {
		return nil, err
	}
	rels, err := c.cms.GetRelationshipFields(ctx, ct.Type, rec)
	if err != nil {
		return nil, err
	}
	return &Form{Type: ct, Record: rec.ToMap(), Fields: fields, Relationships: rels}, nil
}

// assignOwner: новая запись не-админа сразу принадлежит ему, иначе
// AllowsRecord закроет её от автора.
func (c *Controller) assignOwner(ctx context.Context, ct *registry.ContentType, rec *store.Record) {
	p := authz.FromContext(ctx)
	if rec.Exists() || ct.OwnerField == "" || p == nil || p.HasRole(authz.RoleAdmin) {
		return
	}
	rec.Set(ct.OwnerField, coerce(fieldType(ct, rec.Entity, ct.OwnerField), p.Subject))
}

// ref — ссылка {id, type} из формы, уже разрешённая в сущность.
type ref struct {
	ID     int64
	Entity *dsl.Entity
}

func (r ref) key() string { return store.RelatedKey(r.Entity.FQN(), r.ID) }

type relInput struct {
	rel  dsl.Relation
	refs []ref
}

// save: скаляры -> to-one (dissociate/associate) -> запись -> to-many diff -> pivot sync.
// Всё внутри одной транзакции; любая ошибка откатывает сохранение целиком.
func (c *Controller) save(ctx context.Context, ct *registry.ContentType, rec *store.Record, payload map[string]any) (*SaveResult, error) {
	ent := rec.Entity

	// схема читается до транзакции: sqlite держит одно соединение
	fields, err := c.cms.GetFields(ctx, ct.Type, rec)
	if err != nil {
		return nil, err
	}
	errs := c.cms.Validate(rulesOf(fields), payload)
	errs = c.cms.checkIntegers(fields, payload, errs)
	inputs, refErrs := c.parseRelationships(ct, ent, payload)
	errs = append(errs, refErrs...)
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	var ops []Op
	err = c.cms.store.WithTx(ctx, func(tx *store.Store) error {
		for _, f := range fields {
			if v, ok := payload[f.Property]; ok {
				rec.Set(f.Property, coerce(f.Type, v))
			}
		}
		c.assignOwner(ctx, ct, rec)

		var toMany, pivots []relInput
		for _, in := range inputs {
			switch {
			case in.rel.Kind.OwnsForeignKey():
				current, err := tx.Related(ctx, rec, in.rel)
				if err != nil {
					return err
				}
				if len(current) > 0 {
					store.Dissociate(rec, in.rel)
					ops = append(ops, Op{Kind: OpDissociate, Relation: in.rel.Name, Target: current[0].Key()})
				}
				if len(in.refs) == 0 {
					continue
				}
				target, err := tx.Find(ctx, in.refs[0].Entity, in.refs[0].ID)
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				store.Associate(rec, in.rel, target)
				ops = append(ops, Op{Kind: OpAssociate, Relation: in.rel.Name, Target: target.Key()})
			case in.rel.Kind.UsesPivot():
				pivots = append(pivots, in)
			default:
				toMany = append(toMany, in)
			}
		}

		if err := tx.Save(ctx, rec); err != nil {
			return err
		}

		for _, in := range toMany {
			applied, err := c.syncChildren(ctx, tx, rec, in)
			if err != nil {
				return err
			}
			ops = append(ops, applied...)
		}
		for _, in := range pivots {
			applied, err := c.syncPivot(ctx, tx, rec, in)
			if err != nil {
				return err
			}
			ops = append(ops, applied...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{"type": ct.Type, "id": rec.ID(), "ops": len(ops)}).Info("record saved")
	return &SaveResult{Record: tagged(rec), Ops: ops}, nil
}

// syncChildren сравнивает текущий и присланный набор по ключу class::id:
// лишние удаляются, новые перепривязываются внешним ключом к rec.
func (c *Controller) syncChildren(ctx context.Context, tx *store.Store, rec *store.Record, in relInput) ([]Op, error) {
	current, err := tx.Related(ctx, rec, in.rel)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]*store.Record, len(current))
	for _, r := range current {
		existing[r.Key()] = r
	}

	submitted := make(map[string]*store.Record, len(in.refs))
	var order []string
	for i, r := range in.refs {
		m, err := tx.Find(ctx, r.Entity, r.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ValidationError{Errors: []FieldError{
				ferr(CodeRefNotFound, fmt.Sprintf("%s.%d", in.rel.Name, i), "Related record "+r.key()+" not found"),
			}}
		}
		if err != nil {
			return nil, err
		}
		if _, dup := submitted[m.Key()]; !dup {
			order = append(order, m.Key())
		}
		submitted[m.Key()] = m
	}

	var ops []Op
	for _, k := range sortedKeys(existing) {
		if _, keep := submitted[k]; keep {
			continue
		}
		if err := tx.Delete(ctx, existing[k]); err != nil {
			return nil, err
		}
		ops = append(ops, Op{Kind: OpDelete, Relation: in.rel.Name, Target: k})
	}
	for _, k := range order {
		if _, had := existing[k]; had {
			continue
		}
		if err := tx.Attach(ctx, rec, in.rel, submitted[k]); err != nil {
			return nil, err
		}
		ops = append(ops, Op{Kind: OpAttach, Relation: in.rel.Name, Target: k})
	}
	return ops, nil
}

func (c *Controller) syncPivot(ctx context.Context, tx *store.Store, rec *store.Record, in relInput) ([]Op, error) {
	current, err := tx.Related(ctx, rec, in.rel)
	if err != nil {
		return nil, err
	}
	had := make(map[string]bool, len(current))
	for _, r := range current {
		had[r.Key()] = true
	}

	ids := make([]int64, 0, len(in.refs))
	want := map[string]bool{}
	var ops []Op
	for i, r := range in.refs {
		if _, err := tx.Find(ctx, r.Entity, r.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, &ValidationError{Errors: []FieldError{
					ferr(CodeRefNotFound, fmt.Sprintf("%s.%d", in.rel.Name, i), "Related record "+r.key()+" not found"),
				}}
			}
			return nil, err
		}
		ids = append(ids, r.ID)
		if !want[r.key()] && !had[r.key()] {
			ops = append(ops, Op{Kind: OpPivotAttach, Relation: in.rel.Name, Target: r.key()})
		}
		want[r.key()] = true
	}
	for _, r := range current {
		if !want[r.Key()] {
			ops = append(ops, Op{Kind: OpPivotDetach, Relation: in.rel.Name, Target: r.Key()})
		}
	}
	if err := tx.SyncPivot(ctx, rec, in.rel, ids); err != nil {
		return nil, err
	}
	return ops, nil
}

func sortedKeys(m map[string]*store.Record) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
