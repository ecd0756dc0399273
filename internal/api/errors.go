package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stash-go/internal/auth"
	"stash-go/internal/stash"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error to its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, stash.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, stash.ErrDuplicateUsername), errors.Is(err, stash.ErrDuplicateFolder), errors.Is(err, stash.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, stash.ErrEmptyName), errors.Is(err, stash.ErrInvalidName), errors.Is(err, stash.ErrDisallowedExtension):
		return http.StatusBadRequest
	case errors.Is(err, stash.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, stash.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, stash.ErrTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Server errors are logged and replaced by a
// generic message; client errors carry the error text.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		requestLogger(c).Error("request failed", "path", c.Request.URL.Path, "error", err)
		msg = "internal server error"
	case http.StatusNotFound:
		msg = stash.ErrNotFound.Error()
	case http.StatusForbidden:
		msg = stash.ErrForbidden.Error()
	case http.StatusUnauthorized:
		msg = stash.ErrInvalidCredentials.Error()
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
