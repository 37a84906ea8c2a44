package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"socialgraph/internal/social"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// StatusOf maps a domain error to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, social.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, social.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, social.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, social.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a JSON response. Infrastructure failures are reported
// without their cause; the cause is attached to the gin context for the
// access log.
func Error(c *gin.Context, err error) {
	status := StatusOf(err)
	resp := ErrorResponse{Error: http.StatusText(status)}

	switch status {
	case http.StatusInternalServerError:
		_ = c.Error(err)
		resp.Error = "internal error"
	case http.StatusForbidden:
		if reason, ok := social.ReasonOf(err); ok {
			resp.Code = string(reason)
		}
	default:
		resp.Details = err.Error()
	}
	c.JSON(status, resp)
}

// BadRequest reports a malformed body or query.
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Details: err.Error()})
}
