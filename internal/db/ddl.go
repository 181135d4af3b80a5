package db

import (
	"fmt"
	"strings"

	"contentdesk/internal/dsl"

	"entgo.io/ent/dialect"
)

type column struct {
	name string
	def  string
}

type table struct {
	name    string
	cols    []column
	seen    map[string]struct{}
	uniques [][]string
}

func newTable(name string) *table {
	return &table{name: name, seen: map[string]struct{}{}}
}

func (t *table) add(name, def string) bool {
	key := strings.ToLower(name)
	if _, ok := t.seen[key]; ok {
		return false
	}
	t.seen[key] = struct{}{}
	t.cols = append(t.cols, column{name: name, def: def})
	return true
}

func quote(d, ident string) string {
	if d == dialect.MySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

func idColumn(d string) string {
	switch d {
	case dialect.Postgres:
		return "bigserial primary key"
	case dialect.SQLite:
		return "integer primary key autoincrement"
	default:
		return "bigint not null auto_increment primary key"
	}
}

func mapType(d string, f dsl.Field) (string, error) {
	switch strings.ToLower(f.Type) {
	case "string":
		n := "255"
		if l := strings.TrimSpace(f.Options["length"]); l != "" {
			n = l
		}
		return "varchar(" + n + ")", nil
	case "int":
		return "bigint", nil
	case "float":
		if d == dialect.SQLite {
			return "real", nil
		}
		if d == dialect.MySQL {
			return "double", nil
		}
		return "double precision", nil
	case "bool":
		if d == dialect.MySQL {
			return "tinyint(1)", nil
		}
		return "boolean", nil
	case "text":
		return "text", nil
	case "date":
		return "date", nil
	case "datetime":
		if d == dialect.Postgres {
			return "timestamp", nil
		}
		return "datetime", nil
	default:
		return "", fmt.Errorf("unknown type: %s", f.Type)
	}
}

func timestampType(d string) string {
	if d == dialect.Postgres {
		return "timestamp"
	}
	return "datetime"
}

// GenerateDDL возвращает упорядоченный список create table для всех сущностей каталога,
// включая колонки ключей связей и pivot-таблицы.
func GenerateDDL(cat dsl.Catalog, d string) ([]string, error) {
	tables := map[string]*table{}
	var order []string
	get := func(name string) *table {
		t, ok := tables[name]
		if !ok {
			t = newTable(name)
			tables[name] = t
			order = append(order, name)
		}
		return t
	}

	ents := cat.Sorted()

	// Phase A: собственные колонки сущностей
	for _, e := range ents {
		t := get(e.Table)
		t.add("id", idColumn(d))
		for _, f := range e.Fields {
			if dsl.IsSystemColumn(f.Name) {
				return nil, fmt.Errorf("%s: field %q duplicates a system column", e.FQN(), f.Name)
			}
			typ, err := mapType(d, f)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", e.FQN(), f.Name, err)
			}
			null := "null"
			if _, ok := f.Options["required"]; ok {
				null = "not null"
			}
			def := ""
			if dv, ok := f.Options["default"]; ok && strings.TrimSpace(dv) != "" {
				def = fmt.Sprintf(" default '%s'", strings.ReplaceAll(dv, "'", "''"))
			}
			if !t.add(f.Name, fmt.Sprintf("%s %s%s", typ, null, def)) {
				return nil, fmt.Errorf("%s: duplicate field %q", e.FQN(), f.Name)
			}
			if _, ok := f.Options["unique"]; ok {
				t.uniques = append(t.uniques, []string{f.Name})
			}
		}
		t.uniques = append(t.uniques, e.Constraints.Unique...)
		t.add("created_at", timestampType(d)+" null")
		t.add("updated_at", timestampType(d)+" null")
	}

	// Phase B: ключи связей и pivot-таблицы
	for _, e := range ents {
		for _, r := range e.Relations {
			switch r.Kind {
			case dsl.BelongsTo, dsl.MorphTo:
				t := get(e.Table)
				t.add(r.ForeignKey, "bigint null")
				if r.TypeColumn != "" {
					t.add(r.TypeColumn, "varchar(255) null")
				}
			case dsl.HasOne, dsl.HasMany, dsl.MorphOne, dsl.MorphMany:
				target, ok := cat.Resolve(r.Target())
				if !ok {
					return nil, fmt.Errorf("%s.%s: unknown target %q", e.FQN(), r.Name, r.Target())
				}
				t := get(target.Table)
				t.add(r.ForeignKey, "bigint null")
				if r.TypeColumn != "" {
					t.add(r.TypeColumn, "varchar(255) null")
				}
			case dsl.BelongsToMany, dsl.MorphToMany:
				p := get(r.Pivot)
				p.add(r.ForeignKey, "bigint not null")
				p.add(r.RelatedKey, "bigint not null")
				if r.TypeColumn != "" {
					p.add(r.TypeColumn, "varchar(255) not null")
				}
			}
		}
	}

	out := make([]string, 0, len(order))
	for _, name := range order {
		t := tables[name]
		defs := make([]string, 0, len(t.cols)+len(t.uniques))
		for _, c := range t.cols {
			defs = append(defs, quote(d, c.name)+" "+c.def)
		}
		for _, set := range t.uniques {
			parts := make([]string, 0, len(set))
			for _, p := range set {
				parts = append(parts, quote(d, p))
			}
			defs = append(defs, "unique ("+strings.Join(parts, ", ")+")")
		}
		out = append(out, fmt.Sprintf("create table if not exists %s (\n  %s\n)",
			quote(d, t.name), strings.Join(defs, ",\n  ")))
	}
	return out, nil
}
