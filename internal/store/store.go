package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contentdesk/internal/dsl"
	"contentdesk/internal/logger"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

var ErrNotFound = errors.New("record not found")

// Store executes record queries against one connection or one transaction.
type Store struct {
	drv     *entsql.Driver
	conn    dialect.ExecQuerier
	catalog dsl.Catalog
	now     func() time.Time
	inTx    bool
}

// New wraps an ent SQL driver. The catalog resolves relationship targets.
func New(drv *entsql.Driver, catalog dsl.Catalog) *Store {
	return &Store{
		drv:     drv,
		conn:    drv,
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Dialect() string { return s.drv.Dialect() }

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

// WithTx runs fn inside a transaction. An error or panic from fn rolls the
// transaction back; nested calls reuse the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return err
	}
	txs := &Store{drv: s.drv, conn: tx, catalog: s.catalog, now: s.now, inTx: true}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(txs); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, e *dsl.Entity, sel *entsql.Selector) ([]*Record, error) {
	q, args := sel.Query()
	var rows entsql.Rows
	if err := s.conn.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("store: %s: %w", e.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []*Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := &Record{Entity: e, attrs: make(map[string]any, len(cols)), exists: true}
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec.attrs[c] = string(b)
				continue
			}
			rec.attrs[c] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) selectAll(e *dsl.Entity) *entsql.Selector {
	b := s.builder()
	return b.Select("*").From(b.Table(e.Table))
}

// Find loads a record by id.
func (s *Store) Find(ctx context.Context, e *dsl.Entity, id int64) (*Record, error) {
	recs, err := s.query(ctx, e, s.selectAll(e).Where(entsql.EQ("id", id)).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s#%d", ErrNotFound, e.FQN(), id)
	}
	return recs[0], nil
}

// All returns every record of the entity ordered by id.
func (s *Store) All(ctx context.Context, e *dsl.Entity) ([]*Record, error) {
	return s.query(ctx, e, s.selectAll(e).OrderBy("id"))
}

// Search returns records where any of the fields contains text, ignoring case.
// No fields means no results.
func (s *Store) Search(ctx context.Context, e *dsl.Entity, fields []string, text string) ([]*Record, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	preds := make([]*entsql.Predicate, 0, len(fields))
	for _, f := range fields {
		preds = append(preds, entsql.ContainsFold(f, text))
	}
	return s.query(ctx, e, s.selectAll(e).Where(entsql.Or(preds...)).OrderBy("id"))
}

// Save inserts a new record or updates an existing one, maintaining the
// created_at/updated_at timestamps.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	now := s.now()
	rec.Set("updated_at", now)
	if rec.exists {
		return s.update(ctx, rec)
	}
	if rec.Get("created_at") == nil {
		rec.Set("created_at", now)
	}
	return s.insert(ctx, rec)
}

func (s *Store) insert(ctx context.Context, rec *Record) error {
	if rec.Get("id") == nil {
		delete(rec.attrs, "id")
	}
	cols := rec.Columns()
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = rec.attrs[c]
	}
	ins := s.builder().Insert(rec.Entity.Table).Columns(cols...).Values(vals...)

	if s.Dialect() == dialect.Postgres {
		q, args := ins.Returning("id").Query()
		var rows entsql.Rows
		if err := s.conn.Query(ctx, q, args, &rows); err != nil {
			return fmt.Errorf("store: insert %s: %w", rec.Entity.Table, err)
		}
		defer rows.Close()
		id, err := entsql.ScanInt64(rows)
		if err != nil {
			return err
		}
		rec.Set("id", id)
	} else {
		q, args := ins.Query()
		var res entsql.Result
		if err := s.conn.Exec(ctx, q, args, &res); err != nil {
			return fmt.Errorf("store: insert %s: %w", rec.Entity.Table, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		rec.Set("id", id)
	}
	rec.exists = true
	logger.WithFields(map[string]any{"table": rec.Entity.Table, "id": rec.ID()}).Debugf("record inserted")
	return nil
}

func (s *Store) update(ctx context.Context, rec *Record) error {
	upd := s.builder().Update(rec.Entity.Table)
	for _, c := range rec.Columns() {
		if c == "id" {
			continue
		}
		if v := rec.attrs[c]; v == nil {
			upd.SetNull(c)
		} else {
			upd.Set(c, v)
		}
	}
	return s.exec(ctx, upd.Where(entsql.EQ("id", rec.ID())))
}

// UpdateColumns writes the given columns of one row without loading it.
func (s *Store) UpdateColumns(ctx context.Context, e *dsl.Entity, id int64, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	rec := &Record{Entity: e, attrs: values}
	upd := s.builder().Update(e.Table)
	for _, c := range rec.Columns() {
		if v := values[c]; v == nil {
			upd.SetNull(c)
		} else {
			upd.Set(c, v)
		}
	}
	return s.exec(ctx, upd.Where(entsql.EQ("id", id)))
}

// Delete removes the record's row.
func (s *Store) Delete(ctx context.Context, rec *Record) error {
	if err := s.exec(ctx, s.builder().Delete(rec.Entity.Table).Where(entsql.EQ("id", rec.ID()))); err != nil {
		return err
	}
	rec.exists = false
	return nil
}

func (s *Store) exec(ctx context.Context, q entsql.Querier) error {
	query, args := q.Query()
	if err := s.conn.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}
