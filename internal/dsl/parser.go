package dsl

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-openapi/inflect"
)

var (
	entityRe           = regexp.MustCompile(`^entity\s+(\w+)(?:\s+table=([\w.]+))?\s*:$`)
	fieldRe            = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	bracketRe          = regexp.MustCompile(`^(\w+)\[(.*)\]$`)
	moduleRe           = regexp.MustCompile(`^\s*module\s+([A-Za-z0-9_.-]+)\s*$`)
	reConstraintsStart = regexp.MustCompile(`^\s*constraints\s*:\s*$`)
	reUniqueLine       = regexp.MustCompile(`^\s*unique\s*\(\s*([^)]+)\s*\)\s*$`)
)

// parse: options tokenizer — делит "k=v k2='v 2'" на токены, не рвёт по пробелам внутри кавычек/скобок
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	bracketDepth := 0

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && bracketDepth == 0 {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle && bracketDepth == 0 {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '[':
			if !inSingle && !inDouble {
				bracketDepth++
			}
			buf = append(buf, r)
		case ']':
			if !inSingle && !inDouble && bracketDepth > 0 {
				bracketDepth--
			}
			buf = append(buf, r)
		default:
			if (r == ' ' || r == '\t') && !inSingle && !inDouble && bracketDepth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

func parseOptions(tail string) map[string]string {
	optsRaw := strings.TrimSpace(tail)
	if i := strings.IndexByte(optsRaw, '#'); i >= 0 {
		optsRaw = strings.TrimSpace(optsRaw[:i])
	}
	if strings.HasPrefix(strings.ToLower(optsRaw), "options:") {
		optsRaw = strings.TrimSpace(optsRaw[len("options:"):])
	}
	optsRaw = strings.ReplaceAll(optsRaw, ",", " ")

	opts := map[string]string{}
	for _, tok := range splitOptionTokens(optsRaw) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		// флаг без значения → "true"
		if !strings.Contains(tok, "=") {
			opts[strings.ToLower(tok)] = "true"
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		if len(v) >= 2 {
			if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
				v = v[1 : len(v)-1]
			}
		}
		if k != "" {
			opts[k] = v
		}
	}
	return opts
}

// LoadEntities читает один .dsl файл и возвращает список Entity
func LoadEntities(path string) ([]*Entity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseEntities(file)
}

// ParseEntities разбирает DSL из r.
func ParseEntities(r io.Reader) ([]*Entity, error) {
	var entities []*Entity
	var current *Entity
	currentModule := ""
	inConstraints := false
	lineNo := 0

	closeCurrent := func() error {
		if current == nil {
			return nil
		}
		if err := finalize(current); err != nil {
			return err
		}
		entities = append(entities, current)
		return nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := moduleRe.FindStringSubmatch(line); m != nil {
			currentModule = m[1]
			continue
		}

		if m := entityRe.FindStringSubmatch(line); m != nil {
			if err := closeCurrent(); err != nil {
				return nil, err
			}
			current = &Entity{Name: m[1], Table: m[2], Module: currentModule}
			inConstraints = false
			continue
		}
		if current == nil {
			continue
		}

		if reConstraintsStart.MatchString(line) {
			inConstraints = true
			continue
		}
		if inConstraints {
			if m := reUniqueLine.FindStringSubmatch(line); m != nil {
				var set []string
				for _, p := range strings.Split(m[1], ",") {
					if p = strings.TrimSpace(p); p != "" {
						set = append(set, p)
					}
				}
				if len(set) > 0 {
					current.Constraints.Unique = append(current.Constraints.Unique, set)
				}
				continue
			}
			inConstraints = false
		}

		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: cannot parse %q", lineNo, line)
		}
		name, rawType, tail := m[1], m[2], m[3]

		// склейка типов со скобками, разорванных пробелами: belongs_to_many[Tag, Label]
		if strings.Contains(rawType, "[") && !strings.Contains(rawType, "]") {
			if idx := strings.Index(tail, "]"); idx >= 0 {
				rawType += tail[:idx+1]
				tail = tail[idx+1:]
			}
		}
		opts := parseOptions(tail)

		if bm := bracketRe.FindStringSubmatch(rawType); bm != nil {
			kind, err := ParseRelationKind(bm[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %s.%s: %w", lineNo, current.Name, name, err)
			}
			rel := Relation{
				Name:       name,
				Kind:       kind,
				Targets:    splitTargets(bm[2]),
				ForeignKey: opts["fk"],
				TypeColumn: opts["type_column"],
				Pivot:      opts["pivot"],
				RelatedKey: opts["related_key"],
			}
			if morph := opts["morph"]; morph != "" {
				if rel.ForeignKey == "" {
					rel.ForeignKey = morph + "_id"
				}
				if rel.TypeColumn == "" {
					rel.TypeColumn = morph + "_type"
				}
				if kind == MorphToMany && rel.Pivot == "" {
					rel.Pivot = inflect.Pluralize(morph)
				}
			}
			current.Relations = append(current.Relations, rel)
			continue
		}

		current.Fields = append(current.Fields, Field{
			Name:    name,
			Type:    strings.ToLower(rawType),
			Options: opts,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := closeCurrent(); err != nil {
		return nil, err
	}
	return entities, nil
}

func splitTargets(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.Trim(strings.TrimSpace(p), `"'`); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DefaultTable — имя таблицы по умолчанию: BlogPost -> blog_posts.
func DefaultTable(entity string) string {
	return inflect.Pluralize(inflect.Underscore(entity))
}

// finalize подставляет имена таблиц и ключей по соглашениям.
func finalize(e *Entity) error {
	if e.Table == "" {
		e.Table = DefaultTable(e.Name)
	}
	self := inflect.Underscore(e.Name)

	for i := range e.Relations {
		r := &e.Relations[i]
		target := inflect.Underscore(shortName(r.Target()))

		switch r.Kind {
		case BelongsTo:
			if r.ForeignKey == "" {
				r.ForeignKey = r.Name + "_id"
			}
		case MorphTo:
			if r.ForeignKey == "" {
				r.ForeignKey = r.Name + "_id"
			}
			if r.TypeColumn == "" {
				r.TypeColumn = r.Name + "_type"
			}
		case HasOne, HasMany:
			if r.ForeignKey == "" {
				r.ForeignKey = self + "_id"
			}
		case MorphOne, MorphMany:
			if r.ForeignKey == "" || r.TypeColumn == "" {
				return fmt.Errorf("%s.%s: %s needs morph=<name> or fk/type_column", e.Name, r.Name, r.Kind)
			}
		case BelongsToMany:
			if r.Pivot == "" {
				pair := []string{self, target}
				sort.Strings(pair)
				r.Pivot = pair[0] + "_" + pair[1]
			}
			if r.ForeignKey == "" {
				r.ForeignKey = self + "_id"
			}
			if r.RelatedKey == "" {
				r.RelatedKey = target + "_id"
			}
		case MorphToMany:
			if r.Pivot == "" || r.ForeignKey == "" || r.TypeColumn == "" {
				return fmt.Errorf("%s.%s: morph_to_many needs morph=<name>", e.Name, r.Name)
			}
			if r.RelatedKey == "" {
				r.RelatedKey = target + "_id"
			}
		}

		if r.Kind != MorphTo && len(r.Targets) == 0 {
			return fmt.Errorf("%s.%s: %s needs a target entity", e.Name, r.Name, r.Kind)
		}
	}
	return nil
}

// LoadAllEntities обходит root и собирает все сущности из *.dsl в каталог.
func LoadAllEntities(root string) (Catalog, error) {
	result := make(Catalog)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}

		ents, err := LoadEntities(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := result.Add(ents...); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
