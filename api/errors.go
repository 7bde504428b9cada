package api

import (
	"errors"
	"net/http"

	"github.com/dfryer1193/gistblog/blog/domain"
)

// StatusFor maps a domain error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrMalformedDocument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPostNotFound), errors.Is(err, domain.ErrTermNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateFollow):
		return http.StatusConflict
	case errors.Is(err, domain.ErrWebhookRejected):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUpstream),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrBlobNotFound):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
