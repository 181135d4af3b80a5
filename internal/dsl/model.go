package dsl

import "strings"

// Entity описывает класс сущности из DSL: таблицу, касты атрибутов и связи.
type Entity struct {
	Module      string
	Name        string
	Table       string
	Fields      []Field
	Relations   []Relation
	Constraints Constraints
}

type Constraints struct {
	Unique [][]string
}

// Field описывает объявленный атрибут. Type — каст (string, int, text, datetime ...).
type Field struct {
	Name    string
	Type    string
	Options map[string]string // hidden, required, default, unique, length
}

// FQN возвращает "module.Name".
func (e *Entity) FQN() string {
	return e.Module + "." + e.Name
}

func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (e *Entity) Relation(name string) (Relation, bool) {
	for _, r := range e.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// Casts возвращает таблицу кастов атрибут -> логический тип.
func (e *Entity) Casts() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Name] = strings.ToLower(f.Type)
	}
	return out
}

// IsHidden — атрибут помечен опцией hidden.
func (e *Entity) IsHidden(name string) bool {
	f, ok := e.Field(name)
	if !ok || f.Options == nil {
		return false
	}
	_, hidden := f.Options["hidden"]
	return hidden
}

// HasAttribute — атрибут объявлен полем, связью или это системная колонка.
func (e *Entity) HasAttribute(name string) bool {
	if IsSystemColumn(name) {
		return true
	}
	if _, ok := e.Field(name); ok {
		return true
	}
	if _, ok := e.Relation(name); ok {
		return true
	}
	return false
}

var systemColumns = []string{"id", "created_at", "updated_at"}

// SystemColumns — колонки, которые есть у каждой таблицы сущности.
func SystemColumns() []string {
	return append([]string(nil), systemColumns...)
}

func IsSystemColumn(name string) bool {
	for _, c := range systemColumns {
		if c == name {
			return true
		}
	}
	return false
}
