package domain

import (
	"slices"
	"strings"
)

// Subscription links a blog URL to a webhook endpoint and the shared secret that authenticates
// deliveries between the two.
type Subscription struct {
	TargetURL  string `json:"targetUrl"`
	WebhookURL string `json:"webhookUrl"`
	Secret     string `json:"-"`
}

// BlogInfo is the singleton blog metadata embedded in the document next to the posts.
//
// RSSFeeds are pull-followed feed URLs. FollowedBlogs are peers this blog subscribed to (outbound,
// their secrets authenticate incoming webhooks). Subscribers are peers subscribed to this blog
// (inbound, notified on publish).
type BlogInfo struct {
	Domain           string         `json:"domain"`
	Title            string         `json:"title"`
	ShortDescription string         `json:"shortDescription"`
	FullDescription  string         `json:"fullDescription"`
	Owner            Author         `json:"owner"`
	Authors          []Author       `json:"authors"`
	Categories       []string       `json:"categories"`
	Tags             []string       `json:"tags"`
	RSSFeeds         []string       `json:"rssFeeds"`
	FollowedBlogs    []Subscription `json:"followedBlogs"`
	Subscribers      []Subscription `json:"-"`
}

// Clone returns a deep copy of the blog info.
func (b BlogInfo) Clone() BlogInfo {
	b.Authors = slices.Clone(b.Authors)
	b.Categories = slices.Clone(b.Categories)
	b.Tags = slices.Clone(b.Tags)
	b.RSSFeeds = slices.Clone(b.RSSFeeds)
	b.FollowedBlogs = slices.Clone(b.FollowedBlogs)
	b.Subscribers = slices.Clone(b.Subscribers)
	return b
}

// FollowedBlog returns the outbound subscription for blogURL, if any.
func (b BlogInfo) FollowedBlog(blogURL string) (Subscription, bool) {
	return findSubscription(b.FollowedBlogs, blogURL)
}

// Subscriber returns the inbound subscription registered by blogURL, if any.
func (b BlogInfo) Subscriber(blogURL string) (Subscription, bool) {
	return findSubscription(b.Subscribers, blogURL)
}

func findSubscription(subs []Subscription, blogURL string) (Subscription, bool) {
	key := NormalizeBlogURL(blogURL)
	for _, s := range subs {
		if NormalizeBlogURL(s.TargetURL) == key {
			return s, true
		}
	}
	return Subscription{}, false
}

// NormalizeBlogURL trims whitespace and trailing slashes so that "https://a.io/" and
// "https://a.io" compare equal.
func NormalizeBlogURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// BlogData is the document root and the unit of serialization and remote persistence.
// ExternalPosts holds posts pushed by followed blogs.
type BlogData struct {
	BlogInfo      BlogInfo `json:"blogInfo"`
	Posts         []Post   `json:"posts"`
	ExternalPosts []Post   `json:"externalPosts,omitempty"`
}

// Clone returns a deep copy of the document.
func (d *BlogData) Clone() *BlogData {
	return &BlogData{
		BlogInfo:      d.BlogInfo.Clone(),
		Posts:         clonePosts(d.Posts),
		ExternalPosts: clonePosts(d.ExternalPosts),
	}
}

// PostIndex returns the index of the post with id, or -1.
func (d *BlogData) PostIndex(id string) int {
	return slices.IndexFunc(d.Posts, func(p Post) bool { return p.ID == id })
}

// PostNumbers returns the set of de-duplication numbers currently in use.
func (d *BlogData) PostNumbers() map[int64]struct{} {
	numbers := make(map[int64]struct{}, len(d.Posts))
	for _, p := range d.Posts {
		numbers[p.Number] = struct{}{}
	}
	return numbers
}
