package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// StatusClientClosedRequest is the non-standard status for a caller that went away.
const StatusClientClosedRequest = 499

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail    string    `json:"detail"`
	ErrorType string    `json:"error_type"`
	Attempts  int       `json:"attempts,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// statusForError maps an error kind onto an HTTP status.
func statusForError(err error) int {
	switch sqlexplorer.KindOf(err) {
	case sqlexplorer.KindPermanentExecution:
		return http.StatusBadRequest
	case sqlexplorer.KindPoolExhausted, sqlexplorer.KindPoolClosed, sqlexplorer.KindTransientExecution:
		return http.StatusServiceUnavailable
	case sqlexplorer.KindCanceled:
		return StatusClientClosedRequest
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, status int, errorType, detail string) {
	c.JSON(status, ErrorResponse{
		Detail:    detail,
		ErrorType: errorType,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	})
}

func writeQueryError(c *gin.Context, err error) {
	status := statusForError(err)
	kind := sqlexplorer.KindOf(err)
	resp := ErrorResponse{
		Detail:    err.Error(),
		ErrorType: kind.String(),
		Attempts:  sqlexplorer.AttemptsOf(err),
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "5")
	}
	c.JSON(status, resp)
}

func unauthorized(c *gin.Context, err error) {
	c.Header("WWW-Authenticate", "Bearer")
	detail := ErrInvalidToken.Error()
	if errors.Is(err, ErrInvalidLogin) {
		detail = ErrInvalidLogin.Error()
	}
	writeError(c, http.StatusUnauthorized, "Unauthorized", detail)
	c.Abort()
}
