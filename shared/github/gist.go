package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/google/go-github/v75/github"
)

const gistDescription = "Blog Posts Backup"

// GistBackend is an implementation of domain.BlobBackend that keeps the document as a single file
// inside a GitHub gist.
type GistBackend struct {
	client   *github.Client
	token    string
	filename string

	mu     sync.Mutex
	gistID string
}

var _ domain.BlobBackend = (*GistBackend)(nil)

// NewGistBackend creates a new GistBackend. An empty gistID means the first Write creates the gist.
func NewGistBackend(client *github.Client, token, gistID, filename string) *GistBackend {
	return &GistBackend{
		client:   client,
		token:    token,
		filename: filename,
		gistID:   gistID,
	}
}

// NewClient returns a go-github client authenticated with token.
func NewClient(token string) *github.Client {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return client
}

func (g *GistBackend) Name() string {
	return "gist"
}

// GistID returns the handle of the backing gist, which is empty until the first successful Write
// when none was configured.
func (g *GistBackend) GistID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gistID
}

// Read fetches the document file from the gist.
func (g *GistBackend) Read(ctx context.Context) (string, error) {
	gistID := g.GistID()
	if g.token == "" || gistID == "" {
		return "", fmt.Errorf("github: reading gist: %w", domain.ErrNotConfigured)
	}

	op := fmt.Sprintf("getting gist %s", gistID)
	gist, _, err := g.client.Gists.Get(ctx, gistID)
	if err != nil {
		return "", handleGithubError(op, err)
	}

	file, ok := gist.Files[github.GistFilename(g.filename)]
	if !ok {
		return "", fmt.Errorf("github: %s: file %s: %w", op, g.filename, domain.ErrBlobNotFound)
	}

	// The API cuts content off at about 1 MB and reports the full size.
	if file.GetSize() > len(file.GetContent()) {
		return g.readRaw(ctx, file)
	}

	return file.GetContent(), nil
}

// readRaw downloads the full file from its raw_url. Failures are never mapped to
// ErrBlobNotFound, the file is known to exist.
func (g *GistBackend) readRaw(ctx context.Context, file github.GistFile) (string, error) {
	rawURL := file.GetRawURL()
	if rawURL == "" {
		return "", fmt.Errorf("github: file %s is truncated and has no raw url", g.filename)
	}

	req, err := g.client.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("github: building raw request for %s: %w", g.filename, err)
	}

	var buf bytes.Buffer
	if _, err := g.client.Do(ctx, req, &buf); err != nil {
		return "", fmt.Errorf("github: downloading truncated file %s: %w", g.filename, err)
	}

	if buf.Len() != file.GetSize() {
		return "", fmt.Errorf("github: file %s: got %d bytes, want %d", g.filename, buf.Len(), file.GetSize())
	}
	return buf.String(), nil
}

// Write replaces the document file, creating the gist first if no handle is known yet.
func (g *GistBackend) Write(ctx context.Context, content string) error {
	if g.token == "" {
		return fmt.Errorf("github: writing gist: %w", domain.ErrNotConfigured)
	}

	// Held across the request so two first writes cannot create two gists.
	g.mu.Lock()
	defer g.mu.Unlock()

	payload := &github.Gist{
		Description: github.Ptr(gistDescription),
		Files: map[github.GistFilename]github.GistFile{
			github.GistFilename(g.filename): {Content: github.Ptr(content)},
		},
	}

	if g.gistID != "" {
		op := fmt.Sprintf("editing gist %s", g.gistID)
		if _, _, err := g.client.Gists.Edit(ctx, g.gistID, payload); err != nil {
			return handleGithubError(op, err)
		}
		return nil
	}

	payload.Public = github.Ptr(false)
	created, _, err := g.client.Gists.Create(ctx, payload)
	if err != nil {
		return handleGithubError("creating gist", err)
	}
	if created.GetID() == "" {
		return fmt.Errorf("github: creating gist returned no id")
	}
	g.gistID = created.GetID()

	return nil
}

// handleGithubError inspects an error from the go-github client and returns a more informative, structured error.
func handleGithubError(op string, err error) error {
	if err == nil {
		return nil
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		switch errResp.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("github: %s: %w: %s", op, domain.ErrUnauthorized, errResp.Message)
		case http.StatusNotFound:
			return fmt.Errorf("github: %s: %w", op, domain.ErrBlobNotFound)
		}
		return fmt.Errorf("github: %s failed with status %d: %s", op, errResp.Response.StatusCode, errResp.Message)
	}

	return fmt.Errorf("github: %s failed: %w", op, err)
}
