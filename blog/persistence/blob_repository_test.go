package persistence

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/dfryer1193/gistblog/shared/db/sqlite"
)

func setupTestRepo(t *testing.T) *SQLiteBlobBackend {
	t.Helper()

	database := sqlite.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err := database.Connect(); err != nil {
		t.Fatalf("failed to connect test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return NewBlobRepository(database.DB(), "posts.xml")
}

func TestBlobRepository_ReadMissing(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Read(context.Background())
	if !errors.Is(err, domain.ErrBlobNotFound) {
		t.Errorf("Read() error = %v, want ErrBlobNotFound", err)
	}

	rev, err := repo.Revision(context.Background())
	if err != nil {
		t.Fatalf("Revision() error = %v", err)
	}
	if rev != 0 {
		t.Errorf("Revision() = %d, want 0", rev)
	}
}

func TestBlobRepository_WriteAndRead(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.Write(ctx, "<BLOG_DATA>one</BLOG_DATA>"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := repo.Write(ctx, "<BLOG_DATA>two</BLOG_DATA>"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	content, err := repo.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if content != "<BLOG_DATA>two</BLOG_DATA>" {
		t.Errorf("Read() = %q, want latest content", content)
	}

	rev, err := repo.Revision(ctx)
	if err != nil {
		t.Fatalf("Revision() error = %v", err)
	}
	if rev != 2 {
		t.Errorf("Revision() = %d, want 2", rev)
	}

	first, err := repo.ReadRevision(ctx, 1)
	if err != nil {
		t.Fatalf("ReadRevision(1) error = %v", err)
	}
	if first != "<BLOG_DATA>one</BLOG_DATA>" {
		t.Errorf("ReadRevision(1) = %q", first)
	}
}

func TestBlobRepository_IdenticalWritesAreSafe(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for range 2 {
		if err := repo.Write(ctx, "same"); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	content, err := repo.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if content != "same" {
		t.Errorf("Read() = %q, want %q", content, "same")
	}
}

func TestBlobRepository_HistoryIsBounded(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 1; i <= historyLimit+3; i++ {
		if err := repo.Write(ctx, fmt.Sprintf("rev-%d", i)); err != nil {
			t.Fatalf("Write(%d) error = %v", i, err)
		}
	}

	if _, err := repo.ReadRevision(ctx, 3); !errors.Is(err, domain.ErrBlobNotFound) {
		t.Errorf("ReadRevision(3) error = %v, want pruned", err)
	}

	oldest := int64(4)
	content, err := repo.ReadRevision(ctx, oldest)
	if err != nil {
		t.Fatalf("ReadRevision(%d) error = %v", oldest, err)
	}
	if content != "rev-4" {
		t.Errorf("ReadRevision(%d) = %q, want %q", oldest, content, "rev-4")
	}

	var count int
	if err := repo.db.QueryRow("SELECT COUNT(*) FROM blob_history WHERE name = ?", "posts.xml").Scan(&count); err != nil {
		t.Fatalf("failed to count history: %v", err)
	}
	if count != historyLimit {
		t.Errorf("history rows = %d, want %d", count, historyLimit)
	}
}

func TestBlobRepository_SeparateNames(t *testing.T) {
	repo := setupTestRepo(t)
	other := NewBlobRepository(repo.db, "other.xml")
	ctx := context.Background()

	if err := repo.Write(ctx, "mine"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := other.Read(ctx); !errors.Is(err, domain.ErrBlobNotFound) {
		t.Errorf("other.Read() error = %v, want ErrBlobNotFound", err)
	}
}
