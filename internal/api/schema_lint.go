package api

import (
	"context"
	"errors"
	"net/http"

	"contentdesk/internal/cms"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
)

type SchemaIssue struct {
	Source  string `json:"source"` // registry | schema
	Message string `json:"message"`
}

// SchemaLint собирает проблемы описаний типов и их расхождения с живой схемой.
func SchemaLint(ctx context.Context, p *cms.Provider) []SchemaIssue {
	issues := []SchemaIssue{}
	add := func(source string, err error) {
		if err == nil {
			return
		}
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				issues = append(issues, SchemaIssue{Source: source, Message: e.Error()})
			}
			return
		}
		issues = append(issues, SchemaIssue{Source: source, Message: err.Error()})
	}
	add("registry", p.Registry().Lint())
	add("schema", p.CheckSchema(ctx))
	return issues
}

// GET /api/cms/lint
func SchemaLintHandler(p *cms.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		issues := SchemaLint(c.Request.Context(), p)
		status := http.StatusOK
		if len(issues) > 0 {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"ok": len(issues) == 0, "issues": issues})
	}
}
