package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moogar0880/problems"

	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

const problemContentType = "application/problem+json"

// writeProblem renders an RFC 7807 body and aborts the request
func writeProblem(c *gin.Context, status int, problemType, detail string) {
	problem := problems.NewStatusProblem(status).
		WithInstance(c.Request.URL.Path).
		WithType(problemType).
		WithDetail(detail)

	body, err := json.Marshal(problem)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Abort()
	c.Data(status, problemContentType, body)
}

func badRequest(c *gin.Context, detail string) {
	writeProblem(c, http.StatusBadRequest, "validation_error", detail)
}

// statusFor maps domain errors onto HTTP statuses. Permission checks come
// before invalid action because ErrPermissionDenied wraps it.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, workflow.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, workflow.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, workflow.ErrInvalidAction):
		return http.StatusBadRequest, "invalid_action"
	case errors.Is(err, workflow.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// handleServiceError writes the problem for a service-layer error
func (h *Handlers) handleServiceError(c *gin.Context, err error) {
	status, problemType := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		writeProblem(c, status, problemType, "internal error")
		return
	}
	writeProblem(c, status, problemType, err.Error())
}
