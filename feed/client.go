// Package feed pulls posts from RSS/Atom feeds and from other blogs' post APIs.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/dfryer1193/gistblog/internal/metrics"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
)

const (
	userAgent      = "gistblog/1.0"
	maxBodyBytes   = 5 << 20
	verifyTimeout  = 3 * time.Second
	externalAuthor = "external-author"
	untitledPost   = "Untitled Post"
	peerPostsPath  = "/api/posts"
	defaultTimeout = 5 * time.Second
)

// Client fetches remote feeds and peer blogs. Every request is bounded by the client timeout.
type Client struct {
	http    *http.Client
	parser  *gofeed.Parser
	policy  *bluemonday.Policy
	timeout time.Duration
	now     func() time.Time
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		parser:  gofeed.NewParser(),
		policy:  bluemonday.UGCPolicy(),
		timeout: timeout,
		now:     time.Now,
	}
}

// HTTPClient exposes the underlying client for other outbound calls to peers.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Sanitize strips unsafe markup from HTML received from another site.
func (c *Client) Sanitize(html string) string {
	return c.policy.Sanitize(html)
}

func (c *Client) get(ctx context.Context, target, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, target)
	}
	return resp, nil
}

// FetchFeed downloads and parses an RSS or Atom feed.
func (c *Client) FetchFeed(ctx context.Context, feedURL string) ([]domain.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	posts, err := c.fetchFeed(ctx, feedURL)
	metrics.FeedFetches.WithLabelValues("rss", metrics.Result(err)).Inc()
	return posts, err
}

func (c *Client) fetchFeed(ctx context.Context, feedURL string) ([]domain.Post, error) {
	resp, err := c.get(ctx, feedURL, "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	parsed, err := c.parser.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}

	source := hostname(feedURL)
	now := c.now().UTC()
	posts := make([]domain.Post, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		posts = append(posts, c.itemToPost(item, source, now))
	}
	return posts, nil
}

// itemToPost maps an RSS item or Atom entry. Every field is optional.
func (c *Client) itemToPost(item *gofeed.Item, source string, now time.Time) domain.Post {
	created := now
	if item.PublishedParsed != nil {
		created = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		created = item.UpdatedParsed.UTC()
	}
	updated := created
	if item.UpdatedParsed != nil {
		updated = item.UpdatedParsed.UTC()
	}

	id := strings.TrimSpace(item.GUID)
	if id == "" {
		id = strings.TrimSpace(item.Link)
	}
	if id == "" {
		id = uuid.NewString()
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = untitledPost
	}

	content := item.Content
	if strings.TrimSpace(content) == "" {
		content = item.Description
	}

	author := externalAuthor
	if len(item.Authors) > 0 && item.Authors[0] != nil && item.Authors[0].Name != "" {
		author = item.Authors[0].Name
	}

	categories := make([]string, 0, len(item.Categories))
	for _, cat := range item.Categories {
		if cat = strings.TrimSpace(cat); cat != "" {
			categories = append(categories, cat)
		}
	}

	link := strings.TrimSpace(item.Link)
	var path string
	if u, err := url.Parse(link); err == nil {
		path = u.Path
	}

	return domain.Post{
		ID:         id,
		Number:     created.UnixMilli(),
		Title:      title,
		Content:    c.Sanitize(content),
		Author:     domain.Author{UserName: author},
		CreatedAt:  created,
		UpdatedAt:  updated,
		Status:     domain.StatusPublished,
		Categories: categories,
		Tags:       []string{},
		URL:        path,
		Link:       link,
		IsExternal: true,
		Source:     source,
	}
}

// FetchBlogPosts reads another blog's published posts from its post API. Failures, including the
// timeout, are logged and yield an empty result.
func (c *Client) FetchBlogPosts(ctx context.Context, blogURL string) []domain.Post {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	posts, err := c.fetchBlogPosts(ctx, blogURL)
	metrics.FeedFetches.WithLabelValues("blog", metrics.Result(err)).Inc()
	if err != nil {
		log.Warn().Err(err).Str("blog", blogURL).Msg("Failed to fetch blog posts")
		return []domain.Post{}
	}
	return posts
}

func (c *Client) fetchBlogPosts(ctx context.Context, blogURL string) ([]domain.Post, error) {
	base := domain.NormalizeBlogURL(blogURL)
	resp, err := c.get(ctx, base+peerPostsPath, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var posts []domain.Post
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts from %s: %w", base, err)
	}

	source := hostname(base)
	for i := range posts {
		posts[i] = c.ExternalPost(posts[i], base, source)
	}
	return posts, nil
}

// ExternalPost prepares a post received from another blog for local storage: content is
// sanitized, relative links are resolved against base and the source host is recorded.
func (c *Client) ExternalPost(p domain.Post, base, source string) domain.Post {
	p.Content = c.Sanitize(p.Content)
	p.Link = absoluteLink(base, p.Link, p.URL)
	if h := hostname(p.Link); h != "" {
		p.Source = h
	} else if source != "" {
		p.Source = source
	} else {
		p.Source = hostname(base)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.StatusPublished
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.IsExternal = true
	return p
}

// VerifyBlog probes a peer's post API with HEAD and reports whether it answered 2xx.
func (c *Client) VerifyBlog(ctx context.Context, blogURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, domain.NormalizeBlogURL(blogURL)+peerPostsPath, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("blog", blogURL).Msg("Blog verification failed")
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return ""
	}
	return u.Hostname()
}

// absoluteLink resolves link (or the /post/ path for slug) against base when it is not absolute.
func absoluteLink(base, link, slug string) string {
	if link == "" && slug != "" {
		link = domain.PostLink(slug)
	}
	if link == "" {
		return base
	}

	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if u.IsAbs() {
		return link
	}

	b, err := url.Parse(base + "/")
	if err != nil {
		return link
	}
	return b.ResolveReference(u).String()
}
