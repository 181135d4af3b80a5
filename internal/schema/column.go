// Package schema discovers table columns at runtime and caches them for the
// lifetime of the process. The schema is assumed static: cached entries are
// never invalidated.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Column is the metadata of one table column.
type Column struct {
	Name     string  `json:"name" msgpack:"name"`
	Position int     `json:"position" msgpack:"position"`
	Nullable bool    `json:"nullable" msgpack:"nullable"`
	Default  *string `json:"default,omitempty" msgpack:"default"`
	Type     string  `json:"type" msgpack:"type"`
	Length   int     `json:"length,omitempty" msgpack:"length"`
	Key      string  `json:"key,omitempty" msgpack:"key"`
	Extra    string  `json:"extra,omitempty" msgpack:"extra"`
}

// HasDefault reports whether the column declares a default value (any non-NULL default).
func (c Column) HasDefault() bool {
	return c.Default != nil
}

// Optional: a value may be omitted because the column is nullable or has a default.
func (c Column) Optional() bool {
	return c.Nullable || c.HasDefault()
}

var (
	// ErrTypeMismatch is wrapped by TypeParseError.
	ErrTypeMismatch  = errors.New("column type does not match the expected pattern")
	ErrTableNotFound = errors.New("table not found")
	ErrBadTableName  = errors.New("invalid table name")
)

// TypeParseError is returned when a probed type string cannot be split into
// a (type, length) pair.
type TypeParseError struct {
	Table  string
	Column string
	Raw    string
}

func (e *TypeParseError) Error() string {
	return fmt.Sprintf("schema: %s.%s: cannot parse column type %q", e.Table, e.Column, e.Raw)
}

func (e *TypeParseError) Unwrap() error { return ErrTypeMismatch }

var typePattern = regexp.MustCompile(`([a-zA-Z]+)\(?([0-9]*)\)?`)

// ParseType splits a SQL type string such as "varchar(255)" or "int(11) unsigned"
// into its base type and length. Length is 0 when absent.
func ParseType(raw string) (typ string, length int, ok bool) {
	m := typePattern.FindStringSubmatch(raw)
	if m == nil || m[1] == "" {
		return "", 0, false
	}
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return "", 0, false
		}
		length = n
	}
	return m[1], length, true
}
