package domain

import "context"

// BlobBackend reads and replaces one opaque named text blob.
// Write is a full overwrite; writing the same content twice leaves the same blob.
type BlobBackend interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, content string) error
	// Name identifies the backend in logs and metrics.
	Name() string
}
