package cms

import (
	"errors"
	"fmt"
	"strings"

	"contentdesk/internal/registry"
	"contentdesk/internal/store"
)

var (
	ErrTypeNotFound     = registry.ErrTypeNotFound
	ErrRecordNotFound   = store.ErrNotFound
	ErrForbidden        = errors.New("forbidden")
	ErrUnknownFieldType = errors.New("unknown field type")
)

// FieldError — ошибка одного поля формы, как её видит клиент.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок полей
const (
	CodeRequired     = "required"
	CodeTypeMismatch = "type_mismatch"
	CodeRefNotFound  = "ref_not_found"
	CodeRefType      = "ref_type_not_allowed"
)

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// ValidationError carries every field error of a rejected submission.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Code)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, ", "))
}
