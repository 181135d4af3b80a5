package schema

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"entgo.io/ent/dialect"
)

// rawColumn is one row of a describe probe before type parsing.
type rawColumn struct {
	Name     string
	Type     string
	Nullable bool
	Default  *string
	Key      string
	Extra    string
}

// Prober issues the dialect's schema-describe query for a table.
type Prober interface {
	Probe(ctx context.Context, table string) ([]rawColumn, error)
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)?$`)

// NewProber returns the describe probe for the dialect.
func NewProber(db *sql.DB, d string) (Prober, error) {
	switch d {
	case dialect.MySQL:
		return mysqlProber{db: db}, nil
	case dialect.Postgres:
		return postgresProber{db: db}, nil
	case dialect.SQLite:
		return sqliteProber{db: db}, nil
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", d)
	}
}

func checkTable(table string) error {
	if !tableNameRe.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrBadTableName, table)
	}
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

type mysqlProber struct{ db *sql.DB }

func (p mysqlProber) Probe(ctx context.Context, table string) ([]rawColumn, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, "DESCRIBE `"+table+"`")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rawColumn
	for rows.Next() {
		var (
			field, typ, null, key, extra string
			def                          sql.NullString
		)
		if err := rows.Scan(&field, &typ, &null, &key, &def, &extra); err != nil {
			return nil, err
		}
		out = append(out, rawColumn{
			Name:     field,
			Type:     typ,
			Nullable: null == "YES",
			Default:  nullString(def),
			Key:      key,
			Extra:    extra,
		})
	}
	return out, rows.Err()
}

const postgresDescribe = `select column_name,
       case when character_maximum_length is not null
            then udt_name || '(' || character_maximum_length || ')'
            else data_type end,
       is_nullable,
       column_default
  from information_schema.columns
 where table_schema = current_schema() and table_name = $1
 order by ordinal_position`

type postgresProber struct{ db *sql.DB }

func (p postgresProber) Probe(ctx context.Context, table string) ([]rawColumn, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, postgresDescribe, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rawColumn
	for rows.Next() {
		var (
			name, typ, null string
			def             sql.NullString
		)
		if err := rows.Scan(&name, &typ, &null, &def); err != nil {
			return nil, err
		}
		c := rawColumn{Name: name, Type: typ, Nullable: null == "YES", Default: nullString(def)}
		if def.Valid && strings.HasPrefix(def.String, "nextval(") {
			c.Extra = "auto_increment"
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type sqliteProber struct{ db *sql.DB }

func (p sqliteProber) Probe(ctx context.Context, table string) ([]rawColumn, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `PRAGMA table_info("`+table+`")`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rawColumn
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			def              sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &def, &pk); err != nil {
			return nil, err
		}
		c := rawColumn{Name: name, Type: typ, Nullable: notNull == 0 && pk == 0, Default: nullString(def)}
		if pk > 0 {
			c.Key = "PRI"
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
