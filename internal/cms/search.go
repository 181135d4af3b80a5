package cms

import (
	"context"
	"errors"
	"strings"

	"contentdesk/internal/logger"
	"contentdesk/internal/store"
)

// Search returns the type's records where any search field contains text
// (case-insensitive). A type without search fields yields nothing.
func (p *Provider) Search(ctx context.Context, typ, text string) ([]*store.Record, error) {
	ct, ent, err := p.contentType(typ)
	if err != nil {
		return nil, err
	}
	if len(ct.SearchFields) == 0 {
		return nil, nil
	}
	return p.store.Search(ctx, ent, ct.SearchFields, text)
}

// Lookup searches several types and merges the results, each tagged with its
// concrete class under "_type". Unknown types are skipped; blank text is
// rejected instead of matching every row.
func (p *Provider) Lookup(ctx context.Context, types []string, text string) ([]map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Errors: []FieldError{ferr(CodeRequired, "text", "Field 'text' is required")}}
	}
	out := []map[string]any{}
	for _, typ := range types {
		recs, err := p.Search(ctx, typ, text)
		if errors.Is(err, ErrTypeNotFound) {
			logger.WithField("type", typ).Debugf("lookup: unknown type skipped")
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			out = append(out, tagged(r))
		}
	}
	return out, nil
}
