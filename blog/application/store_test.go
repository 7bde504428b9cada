package application

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dfryer1193/gistblog/blog/codec"
	"github.com/dfryer1193/gistblog/blog/domain"
)

var errWriteFailed = errors.New("write failed")

// fakeBackend is an in-memory BlobBackend that counts calls and can block or fail on demand.
type fakeBackend struct {
	mu       sync.Mutex
	content  string
	exists   bool
	reads    int
	writes   int
	readErr  error
	writeErr error

	started chan struct{}
	release chan struct{}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Read(ctx context.Context) (string, error) {
	b.mu.Lock()
	b.reads++
	started, release := b.started, b.release
	b.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr != nil {
		return "", b.readErr
	}
	if !b.exists {
		return "", domain.ErrBlobNotFound
	}
	return b.content, nil
}

func (b *fakeBackend) Write(ctx context.Context, content string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	b.writes++
	b.content = content
	b.exists = true
	return nil
}

func (b *fakeBackend) readCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

func (b *fakeBackend) writeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

func (b *fakeBackend) setWriteErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

func (b *fakeBackend) setReadErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readErr = err
}

func (b *fakeBackend) document(t *testing.T) domain.BlogData {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	data, err := codec.Decode(b.content)
	if err != nil {
		t.Fatalf("stored document does not decode: %v", err)
	}
	return data
}

// testClock advances by a minute every time it is read.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

// newTestStore returns a store over a fake backend holding doc. An empty doc means no blob exists.
func newTestStore(t *testing.T, doc string) (*BlogStore, *fakeBackend) {
	t.Helper()

	backend := &fakeBackend{content: doc, exists: doc != ""}
	store := NewBlogStore(backend, time.Second)
	store.now = (&testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}).Now
	return store, backend
}

func encodeDocument(t *testing.T, data domain.BlogData) string {
	t.Helper()
	text, err := codec.Encode(data)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return text
}

func TestInitialize_SingleFlight(t *testing.T) {
	backend := &fakeBackend{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
	store := NewBlogStore(backend, time.Second)

	var wg sync.WaitGroup
	results := make(chan LoadResult, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Initialize(context.Background())
		}()
	}

	<-backend.started
	close(backend.release)
	wg.Wait()
	close(results)

	for result := range results {
		if result.Source != SourceDefaults {
			t.Errorf("Source = %v, want defaults", result.Source)
		}
	}
	if got := backend.readCount(); got != 1 {
		t.Errorf("reads = %d, want 1", got)
	}

	store.Initialize(context.Background())
	if got := backend.readCount(); got != 1 {
		t.Errorf("reads after second Initialize = %d, want 1", got)
	}
}

func TestInitialize_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		wantErr error
	}{
		{
			name:    "missing blob",
			backend: &fakeBackend{},
			wantErr: domain.ErrBlobNotFound,
		},
		{
			name:    "unauthorized",
			backend: &fakeBackend{readErr: domain.ErrUnauthorized},
			wantErr: domain.ErrUnauthorized,
		},
		{
			name:    "malformed document",
			backend: &fakeBackend{content: "not xml", exists: true},
			wantErr: domain.ErrMalformedDocument,
		},
		{
			name:    "timeout",
			backend: &fakeBackend{release: make(chan struct{})},
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewBlogStore(tt.backend, 20*time.Millisecond)

			result := store.Initialize(context.Background())
			if result.Source != SourceDefaults {
				t.Errorf("Source = %v, want defaults", result.Source)
			}
			if !errors.Is(result.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", result.Err, tt.wantErr)
			}
			if got := store.BlogInfo(context.Background()).Title; got != "My Blog" {
				t.Errorf("Title = %q, want default", got)
			}
			if posts := store.PublishedPosts(context.Background()); posts == nil || len(posts) != 0 {
				t.Errorf("PublishedPosts() = %v, want empty non-nil slice", posts)
			}
		})
	}
}

func TestInitialize_Remote(t *testing.T) {
	doc := domain.DefaultBlogData()
	doc.BlogInfo.Title = "Remote Blog"
	store, _ := newTestStore(t, encodeDocument(t, *doc))

	result := store.Initialize(context.Background())
	if result.Source != SourceRemote || result.Err != nil {
		t.Fatalf("Initialize() = %+v, want remote without error", result)
	}
	if got := store.BlogInfo(context.Background()).Title; got != "Remote Blog" {
		t.Errorf("Title = %q, want %q", got, "Remote Blog")
	}
}

func TestMutate_AfterTransientLoadFailure(t *testing.T) {
	doc := domain.DefaultBlogData()
	doc.Posts = []domain.Post{{ID: "keep", Number: 1, Title: "Keep me", Status: domain.StatusPublished, URL: "keep-me"}}
	store, backend := newTestStore(t, encodeDocument(t, *doc))
	ctx := context.Background()

	backend.setReadErr(context.DeadlineExceeded)
	if result := store.Initialize(ctx); result.Source != SourceDefaults {
		t.Fatalf("Source = %v, want defaults", result.Source)
	}

	_, err := store.SavePost(ctx, domain.Post{Title: "New"})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("SavePost() error = %v, want ErrUpstream", err)
	}
	if backend.writeCount() != 0 {
		t.Fatalf("writes = %d, want 0 while the document is unloaded", backend.writeCount())
	}

	backend.setReadErr(nil)
	if _, err := store.SavePost(ctx, domain.Post{Title: "New"}); err != nil {
		t.Fatalf("SavePost() after recovery error = %v", err)
	}

	var titles []string
	for _, p := range backend.document(t).Posts {
		titles = append(titles, p.Title)
	}
	if len(titles) != 2 || titles[0] != "Keep me" || titles[1] != "New" {
		t.Errorf("remote posts = %v, want [Keep me New]", titles)
	}
	if got := len(store.AllPosts(ctx)); got != 2 {
		t.Errorf("cached posts = %d, want 2", got)
	}
}

func TestMutate_MissingBlobIsWritable(t *testing.T) {
	store, backend := newTestStore(t, "")
	ctx := context.Background()

	if result := store.Initialize(ctx); !errors.Is(result.Err, domain.ErrBlobNotFound) {
		t.Fatalf("Err = %v, want ErrBlobNotFound", result.Err)
	}
	if _, err := store.SavePost(ctx, domain.Post{Title: "First"}); err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}
	if backend.writeCount() != 1 {
		t.Errorf("writes = %d, want 1", backend.writeCount())
	}
}

func TestSavePost_New(t *testing.T) {
	store, backend := newTestStore(t, "")
	ctx := context.Background()

	post, err := store.SavePost(ctx, domain.Post{
		Title:      "Hi",
		Content:    "<p>hello</p>",
		Status:     domain.StatusPublished,
		Categories: []string{"Tech", "tech", " "},
	})
	if err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}

	if post.ID == "" {
		t.Error("ID is empty")
	}
	if post.URL != "hi" || post.Link != "/post/hi" {
		t.Errorf("URL, Link = %q, %q, want hi, /post/hi", post.URL, post.Link)
	}
	if post.Number != post.CreatedAt.UnixMilli() {
		t.Errorf("Number = %d, want creation time in millis %d", post.Number, post.CreatedAt.UnixMilli())
	}
	if post.Author.UserName != "admin" {
		t.Errorf("Author = %+v, want the blog owner", post.Author)
	}
	if len(post.Categories) != 1 || post.Categories[0] != "tech" {
		t.Errorf("Categories = %v, want [tech]", post.Categories)
	}

	published := store.PublishedPosts(ctx)
	if len(published) != 1 || published[0].ID != post.ID {
		t.Fatalf("PublishedPosts() = %+v, want the new post", published)
	}

	stored := backend.document(t)
	if len(stored.Posts) != 1 || stored.Posts[0].Title != "Hi" {
		t.Errorf("stored posts = %+v, want the new post", stored.Posts)
	}
}

func TestSavePost_Validation(t *testing.T) {
	tests := []struct {
		name string
		post domain.Post
	}{
		{"empty title", domain.Post{Title: "   "}},
		{"unknown status", domain.Post{Title: "x", Status: "archived"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, backend := newTestStore(t, "")
			_, err := store.SavePost(context.Background(), tt.post)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("SavePost() error = %v, want ErrValidation", err)
			}
			if backend.writeCount() != 0 {
				t.Errorf("writes = %d, want 0", backend.writeCount())
			}
		})
	}
}

func TestSavePost_DefaultsToDraft(t *testing.T) {
	store, _ := newTestStore(t, "")

	post, err := store.SavePost(context.Background(), domain.Post{Title: "Quiet"})
	if err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}
	if post.Status != domain.StatusDraft {
		t.Errorf("Status = %q, want draft", post.Status)
	}
	if got := store.PublishedPosts(context.Background()); len(got) != 0 {
		t.Errorf("PublishedPosts() = %v, want none", got)
	}
}

func TestSavePost_EditKeepsIdentity(t *testing.T) {
	store, _ := newTestStore(t, "")
	ctx := context.Background()

	original, err := store.SavePost(ctx, domain.Post{Title: "First Title"})
	if err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}

	edited, err := store.SavePost(ctx, domain.Post{ID: original.ID, Title: "Second Title", Number: 42})
	if err != nil {
		t.Fatalf("SavePost() edit error = %v", err)
	}

	if edited.Number != original.Number {
		t.Errorf("Number = %d, want %d", edited.Number, original.Number)
	}
	if !edited.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", edited.CreatedAt, original.CreatedAt)
	}
	if edited.URL != "first-title" {
		t.Errorf("URL = %q, want the original slug", edited.URL)
	}
	if !edited.UpdatedAt.After(original.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want after %v", edited.UpdatedAt, original.UpdatedAt)
	}
	if got := store.AllPosts(ctx); len(got) != 1 {
		t.Errorf("AllPosts() has %d posts, want 1", len(got))
	}
}

func TestSavePost_UniqueSlugs(t *testing.T) {
	store, _ := newTestStore(t, "")
	ctx := context.Background()

	want := []string{"same-title", "same-title-2", "same-title-3"}
	for _, slug := range want {
		post, err := store.SavePost(ctx, domain.Post{Title: "Same Title"})
		if err != nil {
			t.Fatalf("SavePost() error = %v", err)
		}
		if post.URL != slug {
			t.Errorf("URL = %q, want %q", post.URL, slug)
		}
	}

	post, err := store.SavePost(ctx, domain.Post{Title: "!!!"})
	if err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}
	if want := "post-" + strconv.FormatInt(post.Number, 10); post.URL != want {
		t.Errorf("URL = %q, want %q", post.URL, want)
	}
}

func TestSavePost_WriteFailureKeepsCache(t *testing.T) {
	store, backend := newTestStore(t, "")
	ctx := context.Background()

	backend.setWriteErr(errWriteFailed)
	if _, err := store.SavePost(ctx, domain.Post{Title: "Lost"}); !errors.Is(err, errWriteFailed) {
		t.Fatalf("SavePost() error = %v, want %v", err, errWriteFailed)
	}
	if got := store.AllPosts(ctx); len(got) != 0 {
		t.Fatalf("AllPosts() = %+v, want cache unchanged", got)
	}

	backend.setWriteErr(nil)
	if _, err := store.SavePost(ctx, domain.Post{Title: "Kept"}); err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}
	if got := store.AllPosts(ctx); len(got) != 1 || got[0].Title != "Kept" {
		t.Errorf("AllPosts() = %+v, want only the kept post", got)
	}
}

func TestPublishedPosts_NewestUpdateFirst(t *testing.T) {
	store, _ := newTestStore(t, "")
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		p, err := store.SavePost(ctx, domain.Post{Title: title, Status: domain.StatusPublished})
		if err != nil {
			t.Fatalf("SavePost() error = %v", err)
		}
		ids = append(ids, p.ID)
	}
	if _, err := store.SavePost(ctx, domain.Post{Title: "draft"}); err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}
	// touching the first post moves it to the front
	if _, err := store.SavePost(ctx, domain.Post{ID: ids[0], Title: "one", Status: domain.StatusPublished}); err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}

	got := store.PublishedPosts(ctx)
	want := []string{ids[0], ids[2], ids[1]}
	if len(got) != len(want) {
		t.Fatalf("PublishedPosts() returned %d posts, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("PublishedPosts()[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestPublishedPostBySlug(t *testing.T) {
	store, _ := newTestStore(t, "")
	ctx := context.Background()

	if _, err := store.SavePost(ctx, domain.Post{Title: "Live", Status: domain.StatusPublished}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SavePost(ctx, domain.Post{Title: "Hidden"}); err != nil {
		t.Fatal(err)
	}

	if p, err := store.PublishedPostBySlug(ctx, "live"); err != nil || p.Title != "Live" {
		t.Errorf("PublishedPostBySlug(live) = %+v, %v", p, err)
	}
	if _, err := store.PublishedPostBySlug(ctx, "hidden"); !errors.Is(err, domain.ErrPostNotFound) {
		t.Errorf("PublishedPostBySlug(hidden) error = %v, want ErrPostNotFound", err)
	}
}

func TestOnPublish(t *testing.T) {
	store, _ := newTestStore(t, "")
	ctx := context.Background()

	var published []string
	store.OnPublish(func(p domain.Post) { published = append(published, p.Title) })

	draft, err := store.SavePost(ctx, domain.Post{Title: "Later"})
	if err != nil {
		t.Fatal(err)
	}
	if len(published) != 0 {
		t.Fatalf("drafts must not publish, got %v", published)
	}

	draft.Status = domain.StatusPublished
	if _, err := store.SavePost(ctx, draft); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SavePost(ctx, draft); err != nil {
		t.Fatal(err)
	}

	if len(published) != 1 || published[0] != "Later" {
		t.Errorf("published = %v, want one notification", published)
	}
}

func TestDeletePosts(t *testing.T) {
	store, backend := newTestStore(t, "")
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		p, err := store.SavePost(ctx, domain.Post{Title: title})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}

	removed, err := store.DeletePosts(ctx, []string{ids[0], ids[2], "missing"})
	if err != nil {
		t.Fatalf("DeletePosts() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	writes := backend.writeCount()
	removed, err = store.DeletePosts(ctx, []string{"missing"})
	if err != nil || removed != 0 {
		t.Errorf("DeletePosts(missing) = %d, %v, want 0, nil", removed, err)
	}
	if backend.writeCount() != writes {
		t.Error("DeletePosts with nothing to remove must not write")
	}

	if err := store.DeletePost(ctx, "missing"); !errors.Is(err, domain.ErrPostNotFound) {
		t.Errorf("DeletePost(missing) error = %v, want ErrPostNotFound", err)
	}
	if err := store.DeletePost(ctx, ids[1]); err != nil {
		t.Errorf("DeletePost() error = %v", err)
	}
	if got := store.AllPosts(ctx); len(got) != 0 {
		t.Errorf("AllPosts() = %+v, want empty", got)
	}
}

func TestAddPostsFromXML(t *testing.T) {
	store, backend := newTestStore(t, "")
	ctx := context.Background()

	foreign := domain.DefaultBlogData()
	foreign.Posts = []domain.Post{
		{ID: "x1", Number: 1, Title: "Imported One", Status: domain.StatusPublished, Categories: []string{"Travel"}, Tags: []string{"photos"}},
		{ID: "x2", Number: 2, Title: "Imported Two", Status: domain.StatusDraft},
		{ID: "x3", Number: 2, Title: "Same Number", Status: domain.StatusDraft},
	}
	text := encodeDocument(t, *foreign)

	added, err := store.AddPostsFromXML(ctx, text)
	if err != nil {
		t.Fatalf("AddPostsFromXML() error = %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}

	info := store.BlogInfo(ctx)
	if len(info.Categories) != 1 || info.Categories[0] != "travel" {
		t.Errorf("Categories = %v, want [travel]", info.Categories)
	}
	if len(info.Tags) != 1 || info.Tags[0] != "photos" {
		t.Errorf("Tags = %v, want [photos]", info.Tags)
	}

	writes := backend.writeCount()
	added, err = store.AddPostsFromXML(ctx, text)
	if err != nil || added != 0 {
		t.Errorf("re-import = %d, %v, want 0, nil", added, err)
	}
	if backend.writeCount() != writes {
		t.Error("re-import must not write")
	}

	if _, err := store.AddPostsFromXML(ctx, "<nope"); !errors.Is(err, domain.ErrMalformedDocument) {
		t.Errorf("malformed import error = %v, want ErrMalformedDocument", err)
	}
}

func TestAddPostsFromXML_ReassignsCollidingIDs(t *testing.T) {
	store, _ := newTestStore(t, "")
	ctx := context.Background()

	local, err := store.SavePost(ctx, domain.Post{Title: "Local"})
	if err != nil {
		t.Fatal(err)
	}

	foreign := domain.DefaultBlogData()
	foreign.Posts = []domain.Post{{ID: local.ID, Number: 7, Title: "Foreign"}}
	if _, err := store.AddPostsFromXML(ctx, encodeDocument(t, *foreign)); err != nil {
		t.Fatal(err)
	}

	posts := store.AllPosts(ctx)
	if len(posts) != 2 {
		t.Fatalf("AllPosts() has %d posts, want 2", len(posts))
	}
	if posts[0].ID == posts[1].ID {
		t.Errorf("imported post kept colliding id %s", posts[1].ID)
	}
}

func TestUpdateBlogInfo(t *testing.T) {
	store, backend := newTestStore(t, "")
	ctx := context.Background()

	mine, err := store.SavePost(ctx, domain.Post{Title: "Mine"})
	if err != nil {
		t.Fatal(err)
	}
	guest := domain.Author{UserName: "guest", FirstName: "G", LastName: "Uest"}
	theirs, err := store.SavePost(ctx, domain.Post{Title: "Theirs", Author: guest})
	if err != nil {
		t.Fatal(err)
	}

	title := "  New Title "
	owner := domain.Author{UserName: "ada", FirstName: "Ada", LastName: "Lovelace"}
	info, err := store.UpdateBlogInfo(ctx, BlogInfoUpdate{
		Title:   &title,
		Owner:   &owner,
		Authors: []domain.Author{owner, guest},
	})
	if err != nil {
		t.Fatalf("UpdateBlogInfo() error = %v", err)
	}

	if info.Title != "New Title" {
		t.Errorf("Title = %q, want %q", info.Title, "New Title")
	}
	if info.Owner != owner {
		t.Errorf("Owner = %+v, want %+v", info.Owner, owner)
	}
	if info.ShortDescription != domain.DefaultBlogInfo().ShortDescription {
		t.Errorf("ShortDescription changed to %q", info.ShortDescription)
	}

	got, _ := store.PostByID(ctx, mine.ID)
	if got.Author != owner {
		t.Errorf("owner post author = %+v, want %+v", got.Author, owner)
	}
	got, _ = store.PostByID(ctx, theirs.ID)
	if got.Author != guest {
		t.Errorf("guest post author = %+v, want unchanged", got.Author)
	}

	if stored := backend.document(t); stored.BlogInfo.Owner != owner {
		t.Errorf("stored owner = %+v, want %+v", stored.BlogInfo.Owner, owner)
	}
}

func TestUpdateBlogInfo_Validation(t *testing.T) {
	store, _ := newTestStore(t, "")
	empty := " "

	tests := []struct {
		name   string
		update BlogInfoUpdate
	}{
		{"blank title", BlogInfoUpdate{Title: &empty}},
		{"blank owner", BlogInfoUpdate{Owner: &domain.Author{FirstName: "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.UpdateBlogInfo(context.Background(), tt.update); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("UpdateBlogInfo() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestAddExternalPost(t *testing.T) {
	store, _ := newTestStore(t, "")
	ctx := context.Background()

	post := domain.Post{ID: "remote-1", Title: "Remote", Status: domain.StatusPublished}
	added, err := store.AddExternalPost(ctx, post)
	if err != nil || !added {
		t.Fatalf("AddExternalPost() = %v, %v, want true, nil", added, err)
	}
	added, err = store.AddExternalPost(ctx, post)
	if err != nil || added {
		t.Errorf("duplicate AddExternalPost() = %v, %v, want false, nil", added, err)
	}

	external := store.ExternalPosts(ctx)
	if len(external) != 1 || !external[0].IsExternal {
		t.Errorf("ExternalPosts() = %+v, want one external post", external)
	}
	if got := store.AllPosts(ctx); len(got) != 0 {
		t.Errorf("external posts leaked into local posts: %+v", got)
	}
}

func TestAddExternalPost_LocalIDIsPresent(t *testing.T) {
	store, backend := newTestStore(t, "")
	ctx := context.Background()

	local, err := store.SavePost(ctx, domain.Post{Title: "Mine", Status: domain.StatusPublished})
	if err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}
	writes := backend.writeCount()

	added, err := store.AddExternalPost(ctx, domain.Post{ID: local.ID, Title: "Echo", Status: domain.StatusPublished})
	if err != nil || added {
		t.Errorf("AddExternalPost() = %v, %v, want false, nil", added, err)
	}
	if got := store.ExternalPosts(ctx); len(got) != 0 {
		t.Errorf("ExternalPosts() = %+v, want none", got)
	}
	if backend.writeCount() != writes {
		t.Error("ignored external post must not write")
	}
}

func TestContentLineEndingsRoundTrip(t *testing.T) {
	store, backend := newTestStore(t, "")
	ctx := context.Background()

	saved, err := store.SavePost(ctx, domain.Post{Title: "CRLF", Content: "<p>a</p>\r\n<p>b</p>\r<p>c</p>"})
	if err != nil {
		t.Fatalf("SavePost() error = %v", err)
	}
	if _, err := store.AddExternalPost(ctx, domain.Post{ID: "ext", Title: "Ext", Content: "<p>x</p>\r\n<p>y</p>"}); err != nil {
		t.Fatalf("AddExternalPost() error = %v", err)
	}

	want := "<p>a</p>\n<p>b</p>\n<p>c</p>"
	if saved.Content != want {
		t.Errorf("saved Content = %q, want %q", saved.Content, want)
	}

	stored := backend.document(t)
	if got := stored.Posts[0].Content; got != saved.Content {
		t.Errorf("stored Content = %q, want %q", got, saved.Content)
	}
	cached := store.ExternalPosts(ctx)
	if len(stored.ExternalPosts) != 1 || stored.ExternalPosts[0].Content != cached[0].Content {
		t.Errorf("stored external content = %+v, cached = %q", stored.ExternalPosts, cached[0].Content)
	}
	if cached[0].Content != "<p>x</p>\n<p>y</p>" {
		t.Errorf("external Content = %q", cached[0].Content)
	}
}

func TestExport(t *testing.T) {
	store, _ := newTestStore(t, "")
	ctx := context.Background()

	if _, err := store.SavePost(ctx, domain.Post{Title: "Exported"}); err != nil {
		t.Fatal(err)
	}

	text, err := store.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	data, err := codec.Decode(text)
	if err != nil {
		t.Fatalf("Decode(Export()) error = %v", err)
	}
	if len(data.Posts) != 1 || data.Posts[0].Title != "Exported" {
		t.Errorf("exported posts = %+v", data.Posts)
	}
}
