package cms

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"contentdesk/internal/store"

	"github.com/go-playground/validator/v10"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ruleTags maps base rules to validator tags.
var ruleTags = map[string]string{
	RuleString:  "cms_string",
	RuleNumeric: "numeric",
	RuleDate:    "cms_date",
	RuleBoolean: "boolean",
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cms_string", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.String
	})
	_ = v.RegisterValidation("cms_integer", func(fl validator.FieldLevel) bool {
		_, ok := integral(fl.Field().Interface())
		return ok
	})
	_ = v.RegisterValidation("cms_date", func(fl validator.FieldLevel) bool {
		switch x := fl.Field().Interface().(type) {
		case time.Time:
			return true
		case string:
			_, ok := parseDate(x)
			return ok
		}
		return false
	})
	return v
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Validate checks a payload against property -> rules. Absent or empty
// values fail "required" and are skipped when "optional".
func (p *Provider) Validate(rules map[string][]string, payload map[string]any) []FieldError {
	props := make([]string, 0, len(rules))
	for k := range rules {
		props = append(props, k)
	}
	sort.Strings(props)

	var errs []FieldError
	for _, prop := range props {
		rs := rules[prop]
		v, present := payload[prop]
		if !present || blank(v) {
			if hasRule(rs, RuleRequired) {
				errs = append(errs, ferr(CodeRequired, prop, "Field '"+prop+"' is required"))
			}
			continue
		}
		for _, r := range rs {
			tag, ok := ruleTags[r]
			if !ok {
				continue
			}
			if err := p.validate.Var(v, tag); err != nil {
				errs = append(errs, ferr(CodeTypeMismatch, prop, fmt.Sprintf("Field '%s' expected %s", prop, r)))
			}
		}
	}
	return errs
}

// integral reports whether v holds a whole number and returns it.
func integral(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return store.ToInt64(v)
}

// checkIntegers: для int-полей "numeric" мало, дробное значение в bigint не пишем.
func (p *Provider) checkIntegers(fields []FieldDescriptor, payload map[string]any, errs []FieldError) []FieldError {
	failed := make(map[string]bool, len(errs))
	for _, fe := range errs {
		failed[fe.Field] = true
	}
	for _, f := range fields {
		v, ok := payload[f.Property]
		if f.Type != "int" || !ok || blank(v) || failed[f.Property] {
			continue
		}
		if err := p.validate.Var(v, "cms_integer"); err != nil {
			errs = append(errs, ferr(CodeTypeMismatch, f.Property, fmt.Sprintf("Field '%s' expected integer", f.Property)))
		}
	}
	return errs
}

// coerce приводит значение из JSON к типу колонки перед записью.
func coerce(logical string, v any) any {
	if blank(v) {
		return nil
	}
	switch logical {
	case "int":
		if n, ok := integral(v); ok {
			return n
		}
	case "float":
		switch x := v.(type) {
		case json.Number:
			if f, err := x.Float64(); err == nil {
				return f
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f
			}
		}
	case "datetime", "date":
		if s, ok := v.(string); ok {
			if t, ok := parseDate(s); ok {
				return t.UTC()
			}
		}
	case "bool":
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				return b
			}
		}
	}
	return v
}
