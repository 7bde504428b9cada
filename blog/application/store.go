package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dfryer1193/gistblog/blog/codec"
	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/dfryer1193/gistblog/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// LoadSource tells where the cached document came from.
type LoadSource int

const (
	SourceRemote LoadSource = iota + 1
	SourceDefaults
)

func (s LoadSource) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceDefaults:
		return "defaults"
	default:
		return "unknown"
	}
}

// LoadResult is the outcome of Initialize. Err is set when the store fell back to defaults.
type LoadResult struct {
	Source LoadSource
	Err    error
}

// errNoChange lets a mutation skip the persist step.
var errNoChange = errors.New("no change")

// BlogStore owns the in-memory copy of the blog document and writes every mutation back to the
// blob backend as one full document. The cache is only replaced after a successful write.
type BlogStore struct {
	backend     domain.BlobBackend
	initTimeout time.Duration
	now         func() time.Time

	init       singleflight.Group
	mu         sync.RWMutex
	data       *domain.BlogData
	ready      bool
	loadResult LoadResult
	// reload is set when the defaults stand in for a document that may still exist remotely.
	reload bool

	writeMu   sync.Mutex
	onPublish func(domain.Post)
}

func NewBlogStore(backend domain.BlobBackend, initTimeout time.Duration) *BlogStore {
	return &BlogStore{
		backend:     backend,
		initTimeout: initTimeout,
		now:         time.Now,
	}
}

// OnPublish registers fn to run after a post is saved as published for the first time.
// It must be set before the store is used concurrently.
func (s *BlogStore) OnPublish(fn func(domain.Post)) {
	s.onPublish = fn
}

// Initialize loads the document once per store. Concurrent callers share the same read.
// It never fails: on any error the cache holds the default document and the result says why.
func (s *BlogStore) Initialize(ctx context.Context) LoadResult {
	s.mu.RLock()
	if s.ready {
		result := s.loadResult
		s.mu.RUnlock()
		return result
	}
	s.mu.RUnlock()

	v, _, _ := s.init.Do("init", func() (any, error) {
		return s.load(context.WithoutCancel(ctx)), nil
	})
	return v.(LoadResult)
}

func (s *BlogStore) load(ctx context.Context) LoadResult {
	s.mu.RLock()
	if s.ready {
		result := s.loadResult
		s.mu.RUnlock()
		return result
	}
	s.mu.RUnlock()

	if s.initTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.initTimeout)
		defer cancel()
	}

	result := LoadResult{Source: SourceRemote}
	data, err := s.readRemote(ctx)
	if err != nil {
		log.Warn().Err(err).Str("backend", s.backend.Name()).Msg("Failed to load blog document, using defaults")
		data = domain.DefaultBlogData()
		result = LoadResult{Source: SourceDefaults, Err: err}
	} else {
		log.Info().Int("posts", len(data.Posts)).Str("backend", s.backend.Name()).Msg("Loaded blog document")
	}

	s.mu.Lock()
	s.data = data
	s.ready = true
	s.loadResult = result
	s.reload = err != nil && !canOverwrite(err)
	s.mu.Unlock()

	return result
}

// canOverwrite reports whether a failed load proves there is no remote document to lose.
func canOverwrite(err error) bool {
	return errors.Is(err, domain.ErrNotConfigured) || errors.Is(err, domain.ErrBlobNotFound)
}

// reloadBeforeWrite retries the remote read when the store is running on defaults after a
// transient failure, so that the first write cannot replace a document that was never loaded.
// The caller holds writeMu.
func (s *BlogStore) reloadBeforeWrite(ctx context.Context) error {
	s.mu.RLock()
	reload := s.reload
	s.mu.RUnlock()
	if !reload {
		return nil
	}

	data, err := s.readRemote(ctx)
	if err != nil && !canOverwrite(err) {
		return fmt.Errorf("%w: blog document was never loaded (%v), refusing to overwrite it", domain.ErrUpstream, err)
	}

	s.mu.Lock()
	if err == nil {
		s.data = data
		s.loadResult = LoadResult{Source: SourceRemote}
		log.Info().Int("posts", len(data.Posts)).Str("backend", s.backend.Name()).Msg("Reloaded blog document")
	}
	s.reload = false
	s.mu.Unlock()

	return nil
}

func (s *BlogStore) readRemote(ctx context.Context) (*domain.BlogData, error) {
	text, err := s.backend.Read(ctx)
	metrics.BlobOperations.WithLabelValues(s.backend.Name(), "read", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	data, err := codec.Decode(text)
	if err != nil {
		return nil, err
	}
	if data.Posts == nil {
		data.Posts = []domain.Post{}
	}
	return &data, nil
}

// snapshot returns the current document. Callers must not modify it.
func (s *BlogStore) snapshot(ctx context.Context) *domain.BlogData {
	s.Initialize(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// mutate applies fn to a copy of the document, persists the copy and then swaps it in.
func (s *BlogStore) mutate(ctx context.Context, fn func(d *domain.BlogData) error) error {
	s.Initialize(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.reloadBeforeWrite(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	staged := s.data.Clone()
	s.mu.RUnlock()

	if err := fn(staged); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}

	if err := s.persist(ctx, staged); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = staged
	s.mu.Unlock()

	return nil
}

func (s *BlogStore) persist(ctx context.Context, data *domain.BlogData) error {
	text, err := codec.Encode(*data)
	if err != nil {
		return err
	}

	err = s.backend.Write(ctx, text)
	metrics.BlobOperations.WithLabelValues(s.backend.Name(), "write", metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("%w: failed to persist blog document: %w", domain.ErrUpstream, err)
	}
	return nil
}

// AllPosts returns every local post in document order.
func (s *BlogStore) AllPosts(ctx context.Context) []domain.Post {
	return clonePosts(s.snapshot(ctx).Posts)
}

// PublishedPosts returns published posts, most recently updated first.
func (s *BlogStore) PublishedPosts(ctx context.Context) []domain.Post {
	published := []domain.Post{}
	for _, p := range s.snapshot(ctx).Posts {
		if p.IsPublished() {
			published = append(published, p.Clone())
		}
	}
	domain.SortByUpdatedDesc(published)
	return published
}

func (s *BlogStore) PostByID(ctx context.Context, id string) (domain.Post, error) {
	data := s.snapshot(ctx)
	idx := data.PostIndex(id)
	if idx < 0 {
		return domain.Post{}, fmt.Errorf("post %s: %w", id, domain.ErrPostNotFound)
	}
	return data.Posts[idx].Clone(), nil
}

// PublishedPostBySlug finds a published post by its url slug.
func (s *BlogStore) PublishedPostBySlug(ctx context.Context, slug string) (domain.Post, error) {
	for _, p := range s.snapshot(ctx).Posts {
		if p.IsPublished() && p.URL == slug {
			return p.Clone(), nil
		}
	}
	return domain.Post{}, fmt.Errorf("post %q: %w", slug, domain.ErrPostNotFound)
}

// ExternalPosts returns posts pushed to this blog by followed blogs.
func (s *BlogStore) ExternalPosts(ctx context.Context) []domain.Post {
	return clonePosts(s.snapshot(ctx).ExternalPosts)
}

// BlogInfo returns a copy of the blog metadata.
func (s *BlogStore) BlogInfo(ctx context.Context) domain.BlogInfo {
	return s.snapshot(ctx).BlogInfo.Clone()
}

// Export returns the current document as XML.
func (s *BlogStore) Export(ctx context.Context) (string, error) {
	return codec.Encode(*s.snapshot(ctx))
}

// SavePost inserts or replaces a post by id and persists the document.
// New posts get an id, number and creation time; the url is derived from the title when empty.
func (s *BlogStore) SavePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	post.Title = strings.TrimSpace(domain.NormalizeNewlines(post.Title))
	if post.Title == "" {
		return domain.Post{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	post.Content = domain.NormalizeNewlines(post.Content)
	if post.Status == "" {
		post.Status = domain.StatusDraft
	}
	if !post.Status.Valid() {
		return domain.Post{}, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, post.Status)
	}

	var saved domain.Post
	var wasPublished bool

	err := s.mutate(ctx, func(d *domain.BlogData) error {
		now := s.now().UTC()

		idx := -1
		if post.ID != "" {
			idx = d.PostIndex(post.ID)
		}

		if idx >= 0 {
			existing := d.Posts[idx]
			wasPublished = existing.IsPublished()
			post.Number = existing.Number
			post.CreatedAt = existing.CreatedAt
			if post.URL == "" {
				post.URL = existing.URL
			}
		} else {
			if post.ID == "" {
				post.ID = uuid.NewString()
			}
			post.Number = uniqueNumber(d, post.Number, now)
			if post.CreatedAt.IsZero() {
				post.CreatedAt = now
			}
		}

		if post.URL == "" {
			post.URL = uniqueSlug(d, domain.Slugify(post.Title), post.ID, post.Number)
		}
		post.Link = domain.PostLink(post.URL)
		if post.Author.UserName == "" {
			post.Author = d.BlogInfo.Owner
		}
		post.Categories = normalizeTerms(post.Categories)
		post.Tags = normalizeTerms(post.Tags)
		post.IsExternal = false
		post.Source = ""
		post.UpdatedAt = now

		saved = post.Clone()
		if idx >= 0 {
			d.Posts[idx] = post
		} else {
			d.Posts = append(d.Posts, post)
		}
		return nil
	})
	if err != nil {
		return domain.Post{}, err
	}

	if saved.IsPublished() && !wasPublished && s.onPublish != nil {
		s.onPublish(saved.Clone())
	}

	return saved, nil
}

// uniqueNumber keeps a requested number if it is free, otherwise derives one from the clock.
func uniqueNumber(d *domain.BlogData, requested int64, now time.Time) int64 {
	used := d.PostNumbers()
	if requested != 0 {
		if _, taken := used[requested]; !taken {
			return requested
		}
	}

	n := now.UnixMilli()
	for {
		if _, taken := used[n]; !taken {
			return n
		}
		n++
	}
}

// uniqueSlug appends -2, -3, ... until no other post uses the slug.
func uniqueSlug(d *domain.BlogData, base, id string, number int64) string {
	if base == "" {
		base = "post-" + strconv.FormatInt(number, 10)
	}

	taken := func(slug string) bool {
		return slices.ContainsFunc(d.Posts, func(p domain.Post) bool {
			return p.ID != id && p.URL == slug
		})
	}

	slug := base
	for i := 2; taken(slug); i++ {
		slug = base + "-" + strconv.Itoa(i)
	}
	return slug
}

// DeletePost removes a post by id.
func (s *BlogStore) DeletePost(ctx context.Context, id string) error {
	return s.mutate(ctx, func(d *domain.BlogData) error {
		idx := d.PostIndex(id)
		if idx < 0 {
			return fmt.Errorf("post %s: %w", id, domain.ErrPostNotFound)
		}
		d.Posts = slices.Delete(d.Posts, idx, idx+1)
		return nil
	})
}

// DeletePosts removes every post whose id is in ids and returns how many were removed.
func (s *BlogStore) DeletePosts(ctx context.Context, ids []string) (int, error) {
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}

	var removed int
	err := s.mutate(ctx, func(d *domain.BlogData) error {
		before := len(d.Posts)
		d.Posts = slices.DeleteFunc(d.Posts, func(p domain.Post) bool {
			_, ok := remove[p.ID]
			return ok
		})
		removed = before - len(d.Posts)
		if removed == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// AddPostsFromXML merges the posts of a foreign document. Posts are de-duplicated by number,
// never by id, and their categories and tags are added to the blog's lists.
func (s *BlogStore) AddPostsFromXML(ctx context.Context, text string) (int, error) {
	imported, err := codec.Decode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to import posts: %w", err)
	}

	var added int
	err = s.mutate(ctx, func(d *domain.BlogData) error {
		numbers := d.PostNumbers()
		now := s.now().UTC()

		for _, p := range imported.Posts {
			if _, exists := numbers[p.Number]; exists {
				continue
			}
			numbers[p.Number] = struct{}{}

			if p.ID == "" || d.PostIndex(p.ID) >= 0 {
				p.ID = uuid.NewString()
			}
			if strings.TrimSpace(p.Title) == "" {
				p.Title = "Untitled"
			}
			if p.URL == "" {
				p.URL = uniqueSlug(d, domain.Slugify(p.Title), p.ID, p.Number)
			}
			if p.Link == "" {
				p.Link = domain.PostLink(p.URL)
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			if p.UpdatedAt.IsZero() {
				p.UpdatedAt = now
			}
			p.Categories = normalizeTerms(p.Categories)
			p.Tags = normalizeTerms(p.Tags)

			d.BlogInfo.Categories = unionTerms(d.BlogInfo.Categories, p.Categories)
			d.BlogInfo.Tags = unionTerms(d.BlogInfo.Tags, p.Tags)
			d.Posts = append(d.Posts, p)
			added++
		}

		if added == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info().Int("added", added).Int("received", len(imported.Posts)).Msg("Imported posts")
	return added, nil
}

// BlogInfoUpdate is a partial update; nil fields are left unchanged.
type BlogInfoUpdate struct {
	Domain           *string         `json:"domain,omitempty"`
	Title            *string         `json:"title,omitempty"`
	ShortDescription *string         `json:"shortDescription,omitempty"`
	FullDescription  *string         `json:"fullDescription,omitempty"`
	Owner            *domain.Author  `json:"owner,omitempty"`
	Authors          []domain.Author `json:"authors,omitempty"`
}

// UpdateBlogInfo merges update over freshly re-read metadata, falling back to the cached copy if
// the re-read fails. Changing the owner rewrites the author of every post attributed to the old owner.
func (s *BlogStore) UpdateBlogInfo(ctx context.Context, update BlogInfoUpdate) (domain.BlogInfo, error) {
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return domain.BlogInfo{}, fmt.Errorf("%w: title must not be empty", domain.ErrValidation)
	}
	if update.Owner != nil && strings.TrimSpace(update.Owner.UserName) == "" {
		return domain.BlogInfo{}, fmt.Errorf("%w: owner username must not be empty", domain.ErrValidation)
	}

	var result domain.BlogInfo
	err := s.mutate(ctx, func(d *domain.BlogData) error {
		if fresh, err := s.readRemote(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to re-read blog info, merging over cached copy")
		} else {
			d.BlogInfo = fresh.BlogInfo
		}

		info := &d.BlogInfo
		if update.Domain != nil {
			info.Domain = strings.TrimSpace(*update.Domain)
		}
		if update.Title != nil {
			info.Title = strings.TrimSpace(*update.Title)
		}
		if update.ShortDescription != nil {
			info.ShortDescription = *update.ShortDescription
		}
		if update.FullDescription != nil {
			info.FullDescription = *update.FullDescription
		}
		if update.Authors != nil {
			info.Authors = slices.Clone(update.Authors)
		}
		if update.Owner != nil && *update.Owner != info.Owner {
			previous := info.Owner
			info.Owner = *update.Owner
			for i := range d.Posts {
				if d.Posts[i].Author.UserName == previous.UserName {
					d.Posts[i].Author = info.Owner
				}
			}
		}

		result = info.Clone()
		return nil
	})
	if err != nil {
		return domain.BlogInfo{}, err
	}
	return result, nil
}

// AddExternalPost stores a post pushed by a followed blog unless a local or external post with the
// same id exists.
func (s *BlogStore) AddExternalPost(ctx context.Context, post domain.Post) (bool, error) {
	var added bool
	err := s.mutate(ctx, func(d *domain.BlogData) error {
		if d.PostIndex(post.ID) >= 0 || slices.ContainsFunc(d.ExternalPosts, func(p domain.Post) bool { return p.ID == post.ID }) {
			return errNoChange
		}
		post.Title = domain.NormalizeNewlines(post.Title)
		post.Content = domain.NormalizeNewlines(post.Content)
		post.IsExternal = true
		d.ExternalPosts = append(d.ExternalPosts, post.Clone())
		added = true
		return nil
	})
	return added, err
}

func clonePosts(posts []domain.Post) []domain.Post {
	out := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Clone())
	}
	return out
}
