package api

import (
	"errors"
	"net/http"

	"contentdesk/internal/cms"
	"contentdesk/internal/logger"
	"contentdesk/internal/schema"

	"github.com/gin-gonic/gin"
)

// statusForError сопоставляет ошибку контроллера HTTP-статусу.
func statusForError(err error) int {
	var verr *cms.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cms.ErrTypeNotFound), errors.Is(err, cms.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, cms.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает JSON-ом: {errors:[...]} для ошибок полей,
// {error} для остальных. 500 логируются с request id.
func writeError(c *gin.Context, err error) {
	status := statusForError(err)

	var verr *cms.ValidationError
	if errors.As(err, &verr) {
		c.JSON(status, gin.H{"errors": verr.Errors})
		return
	}
	if status != http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	_ = c.Error(err)
	logger.WithError(err).WithField("request_id", requestID(c)).Error("request failed")
	body := gin.H{"error": "internal error", "request_id": requestID(c)}
	var perr *schema.TypeParseError
	switch {
	case errors.As(err, &perr):
		body["error"] = "schema mismatch"
		body["details"] = perr.Error()
	case errors.Is(err, cms.ErrUnknownFieldType):
		body["error"] = "unknown field type"
		body["details"] = err.Error()
	}
	c.JSON(status, body)
}
