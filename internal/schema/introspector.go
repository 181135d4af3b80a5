package schema

import (
	"context"
	"database/sql"
	"fmt"

	"contentdesk/internal/logger"

	"golang.org/x/sync/singleflight"
)

// Introspector returns column metadata per table, probing the database on
// first access and serving the cache afterwards.
type Introspector struct {
	prober Prober
	cache  Cache
	group  singleflight.Group
}

type Option func(*Introspector)

// WithCache replaces the default in-process cache.
func WithCache(c Cache) Option {
	return func(i *Introspector) { i.cache = c }
}

// WithProber replaces the dialect probe.
func WithProber(p Prober) Option {
	return func(i *Introspector) { i.prober = p }
}

// New builds an introspector for the given connection and ent dialect name.
func New(db *sql.DB, d string, opts ...Option) (*Introspector, error) {
	i := &Introspector{cache: NewMemoryCache()}
	for _, o := range opts {
		o(i)
	}
	if i.prober == nil {
		p, err := NewProber(db, d)
		if err != nil {
			return nil, err
		}
		i.prober = p
	}
	return i, nil
}

// Columns returns the table's columns in ordinal order.
func (i *Introspector) Columns(ctx context.Context, table string) ([]Column, error) {
	if cols, ok, err := i.cache.Get(ctx, table); err != nil {
		logger.WithError(err).WithField("table", table).Warnf("column cache read failed")
	} else if ok {
		return cols, nil
	}

	v, err, _ := i.group.Do(table, func() (interface{}, error) {
		// загрузку делят все ждущие: отмена первого запроса не должна её обрывать
		ctx := context.WithoutCancel(ctx)
		// второй вызов мог прийти сразу после того, как первый наполнил кэш
		if cols, ok, err := i.cache.Get(ctx, table); err == nil && ok {
			return cols, nil
		}
		cols, err := i.load(ctx, table)
		if err != nil {
			return nil, err
		}
		if err := i.cache.Set(ctx, table, cols); err != nil {
			logger.WithError(err).WithField("table", table).Warnf("column cache write failed")
		}
		return cols, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Column), nil
}

// Lookup returns the table's columns keyed by name.
func (i *Introspector) Lookup(ctx context.Context, table string) (map[string]Column, error) {
	cols, err := i.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Column, len(cols))
	for _, c := range cols {
		out[c.Name] = c
	}
	return out, nil
}

func (i *Introspector) load(ctx context.Context, table string) ([]Column, error) {
	raw, err := i.prober.Probe(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("schema: describe %s: %w", table, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("schema: %w: %s", ErrTableNotFound, table)
	}

	cols := make([]Column, 0, len(raw))
	for pos, r := range raw {
		typ, length, ok := ParseType(r.Type)
		if !ok {
			return nil, &TypeParseError{Table: table, Column: r.Name, Raw: r.Type}
		}
		cols = append(cols, Column{
			Name:     r.Name,
			Position: pos,
			Nullable: r.Nullable,
			Default:  r.Default,
			Type:     typ,
			Length:   length,
			Key:      r.Key,
			Extra:    r.Extra,
		})
	}
	logger.WithField("table", table).Debugf("introspected %d columns", len(cols))
	return cols, nil
}
