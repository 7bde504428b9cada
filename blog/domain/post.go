package domain

import (
	"slices"
	"strings"
	"time"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
)

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// Author is the denormalized username/first/last triple stored on posts and on the blog owner.
type Author struct {
	UserName  string `json:"userName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Post represents a blog post.
// ID is the local identity; Number is the de-duplication key used when merging foreign documents.
// Posts received from other blogs carry IsExternal and the Source hostname.
type Post struct {
	ID         string     `json:"id"`
	Number     int64      `json:"number"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Author     Author     `json:"author"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Status     PostStatus `json:"status"`
	Categories []string   `json:"categories"`
	Tags       []string   `json:"tags"`
	URL        string     `json:"url"`
	Link       string     `json:"link"`
	IsExternal bool       `json:"isExternal,omitempty"`
	Source     string     `json:"source,omitempty"`
}

// IsPublished reports whether the post is visible on the public site.
func (p Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// Clone returns a deep copy of the post.
func (p Post) Clone() Post {
	p.Categories = slices.Clone(p.Categories)
	p.Tags = slices.Clone(p.Tags)
	return p
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeNewlines converts CRLF and lone CR line endings to LF, the form content takes after
// a pass through the XML document.
func NormalizeNewlines(s string) string {
	return newlines.Replace(s)
}

// PostLink returns the public path of a post with the given url slug.
func PostLink(slug string) string {
	return "/post/" + slug
}

// SortByUpdatedDesc orders posts most-recently-updated first.
func SortByUpdatedDesc(posts []Post) {
	slices.SortStableFunc(posts, func(a, b Post) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
}

// SortByCreatedDesc orders posts newest first.
func SortByCreatedDesc(posts []Post) {
	slices.SortStableFunc(posts, func(a, b Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func clonePosts(posts []Post) []Post {
	if posts == nil {
		return nil
	}
	out := make([]Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}
