package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/dfryer1193/gistblog/shared/db"
)

// historyLimit is how many past revisions of each blob are retained.
const historyLimit = 10

// SQLiteBlobBackend implements domain.BlobBackend with a named row in a SQLite database.
// Every write bumps the revision and keeps a bounded history of previous contents.
type SQLiteBlobBackend struct {
	db   *sql.DB
	name string
}

var _ domain.BlobBackend = (*SQLiteBlobBackend)(nil)

// NewBlobRepository creates a backend storing the blob called name.
func NewBlobRepository(db *sql.DB, name string) *SQLiteBlobBackend {
	return &SQLiteBlobBackend{
		db:   db,
		name: name,
	}
}

func (r *SQLiteBlobBackend) Name() string {
	return "sqlite"
}

const readBlobQuery = `SELECT content FROM blobs WHERE name = ?`

func (r *SQLiteBlobBackend) Read(ctx context.Context) (string, error) {
	var content string
	err := r.db.QueryRowContext(ctx, readBlobQuery, r.name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("blob %s: %w", r.name, domain.ErrBlobNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read blob %s: %w", r.name, err)
	}
	return content, nil
}

const (
	currentRevisionQuery = `SELECT COALESCE(MAX(revision), 0) FROM blobs WHERE name = ?`

	upsertBlobQuery = `
		INSERT INTO blobs (name, content, revision, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			content = excluded.content,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`

	insertHistoryQuery = `
		INSERT INTO blob_history (name, revision, content, created_at)
		VALUES (?, ?, ?, ?)
	`

	pruneHistoryQuery = `
		DELETE FROM blob_history
		WHERE name = ? AND revision <= ?
	`
)

// Write replaces the blob content and records the new revision in the history.
func (r *SQLiteBlobBackend) Write(ctx context.Context, content string) error {
	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		var revision int64
		if err := executor.QueryRowContext(txCtx, currentRevisionQuery, r.name).Scan(&revision); err != nil {
			return fmt.Errorf("failed to read blob revision: %w", err)
		}
		revision++
		now := time.Now().UTC()

		if _, err := executor.ExecContext(txCtx, upsertBlobQuery, r.name, content, revision, now); err != nil {
			return fmt.Errorf("failed to write blob %s: %w", r.name, err)
		}

		if _, err := executor.ExecContext(txCtx, insertHistoryQuery, r.name, revision, content, now); err != nil {
			return fmt.Errorf("failed to record blob history: %w", err)
		}

		if _, err := executor.ExecContext(txCtx, pruneHistoryQuery, r.name, revision-historyLimit); err != nil {
			return fmt.Errorf("failed to prune blob history: %w", err)
		}

		return nil
	})
}

// Revision returns the current revision number, 0 when the blob has never been written.
func (r *SQLiteBlobBackend) Revision(ctx context.Context) (int64, error) {
	var revision int64
	if err := r.db.QueryRowContext(ctx, currentRevisionQuery, r.name).Scan(&revision); err != nil {
		return 0, fmt.Errorf("failed to read blob revision: %w", err)
	}
	return revision, nil
}

const readRevisionQuery = `SELECT content FROM blob_history WHERE name = ? AND revision = ?`

// ReadRevision returns the content of an earlier revision still held in the history.
func (r *SQLiteBlobBackend) ReadRevision(ctx context.Context, revision int64) (string, error) {
	var content string
	err := r.db.QueryRowContext(ctx, readRevisionQuery, r.name, revision).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("blob %s revision %d: %w", r.name, revision, domain.ErrBlobNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read blob %s revision %d: %w", r.name, revision, err)
	}
	return content, nil
}
