package domain

import "errors"

var (
	// ErrNotConfigured means the blob backend has no token or no blob handle to work with.
	ErrNotConfigured = errors.New("blob backend not configured")
	// ErrUnauthorized means the blob backend rejected the credentials.
	ErrUnauthorized = errors.New("blob backend unauthorized")
	// ErrBlobNotFound means the configured blob handle does not exist.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrMalformedDocument is returned when a document cannot be parsed at all.
	ErrMalformedDocument = errors.New("malformed blog document")

	ErrPostNotFound    = errors.New("post not found")
	ErrTermNotFound    = errors.New("category or tag not found")
	ErrValidation      = errors.New("validation failed")
	ErrInvalidURL      = errors.New("invalid URL")
	ErrDuplicateFollow = errors.New("already following")
	ErrWebhookRejected = errors.New("webhook rejected")

	// ErrUpstream wraps failed remote calls such as blob writes or peer requests.
	ErrUpstream = errors.New("upstream request failed")
)
