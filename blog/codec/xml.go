// Package codec maps the blog document to and from its XML serialization.
package codec

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/google/uuid"
)

type xmlDocument struct {
	XMLName       xml.Name    `xml:"BLOG_DATA"`
	Info          xmlBlogInfo `xml:"BLOG_INFO"`
	Posts         xmlPosts    `xml:"POSTS"`
	ExternalPosts *xmlPosts   `xml:"EXTERNAL_POSTS,omitempty"`
}

type xmlBlogInfo struct {
	Domain           string            `xml:"DOMAIN"`
	Title            string            `xml:"TITLE"`
	ShortDescription string            `xml:"SHORT_DESCRIPTION"`
	FullDescription  string            `xml:"FULL_DESCRIPTION"`
	Owner            xmlUser           `xml:"OWNER>USER"`
	Authors          []xmlUser         `xml:"AUTHORS>USER,omitempty"`
	Categories       []xmlName         `xml:"CATEGORIES>CATEGORY,omitempty"`
	Tags             []xmlName         `xml:"TAGS>TAG,omitempty"`
	RSSFeeds         []string          `xml:"RSS_FEEDS>URL,omitempty"`
	FollowedBlogs    []xmlSubscription `xml:"FOLLOWED_BLOGS>BLOG,omitempty"`
	Subscribers      []xmlSubscription `xml:"SUBSCRIBERS>BLOG,omitempty"`
}

type xmlUser struct {
	UserName  string `xml:"USER_NAME"`
	FirstName string `xml:"FIRST_NAME"`
	LastName  string `xml:"LAST_NAME"`
}

type xmlName struct {
	Name string `xml:"NAME"`
}

type xmlSubscription struct {
	TargetURL  string `xml:"TARGET_URL"`
	WebhookURL string `xml:"WEBHOOK_URL"`
	Secret     string `xml:"SECRET"`
}

type xmlPosts struct {
	Items []xmlPost `xml:"POST"`
}

type xmlPost struct {
	ID           string    `xml:"ID"`
	Number       int64     `xml:"NUMBER"`
	Title        string    `xml:"TITLE"`
	Content      xmlCDATA  `xml:"CONTENT"`
	Author       xmlUser   `xml:"AUTHOR"`
	CreatedDate  string    `xml:"CREATED_DATE"`
	ModifiedDate string    `xml:"LAST_MODIFIED_DATE"`
	Status       string    `xml:"STATUS"`
	URL          string    `xml:"URL"`
	Link         string    `xml:"LINK"`
	Source       string    `xml:"SOURCE,omitempty"`
	Categories   []xmlName `xml:"CATEGORIES>CATEGORY"`
	Tags         []xmlName `xml:"TAGS>TAG"`
}

type xmlCDATA struct {
	Text string `xml:",cdata"`
}

// Encode serializes the document. Free text is escaped; post content is written as CDATA so
// trusted HTML survives untouched.
func Encode(data domain.BlogData) (string, error) {
	doc := xmlDocument{
		Info:  encodeBlogInfo(data.BlogInfo),
		Posts: xmlPosts{Items: encodePosts(data.Posts)},
	}
	if len(data.ExternalPosts) > 0 {
		doc.ExternalPosts = &xmlPosts{Items: encodePosts(data.ExternalPosts)}
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode blog document: %w", err)
	}

	return xml.Header + string(out) + "\n", nil
}

func encodeBlogInfo(info domain.BlogInfo) xmlBlogInfo {
	out := xmlBlogInfo{
		Domain:           info.Domain,
		Title:            info.Title,
		ShortDescription: info.ShortDescription,
		FullDescription:  info.FullDescription,
		Owner:            encodeUser(info.Owner),
		Categories:       encodeNames(info.Categories),
		Tags:             encodeNames(info.Tags),
		RSSFeeds:         info.RSSFeeds,
		FollowedBlogs:    encodeSubscriptions(info.FollowedBlogs),
		Subscribers:      encodeSubscriptions(info.Subscribers),
	}
	for _, a := range info.Authors {
		out.Authors = append(out.Authors, encodeUser(a))
	}
	return out
}

func encodeUser(a domain.Author) xmlUser {
	return xmlUser{UserName: a.UserName, FirstName: a.FirstName, LastName: a.LastName}
}

func encodeNames(names []string) []xmlName {
	out := make([]xmlName, 0, len(names))
	for _, n := range names {
		out = append(out, xmlName{Name: n})
	}
	return out
}

func encodeSubscriptions(subs []domain.Subscription) []xmlSubscription {
	out := make([]xmlSubscription, 0, len(subs))
	for _, s := range subs {
		out = append(out, xmlSubscription{TargetURL: s.TargetURL, WebhookURL: s.WebhookURL, Secret: s.Secret})
	}
	return out
}

func encodePosts(posts []domain.Post) []xmlPost {
	out := make([]xmlPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, xmlPost{
			ID:           p.ID,
			Number:       p.Number,
			Title:        p.Title,
			Content:      xmlCDATA{Text: p.Content},
			Author:       encodeUser(p.Author),
			CreatedDate:  formatTime(p.CreatedAt),
			ModifiedDate: formatTime(p.UpdatedAt),
			Status:       string(p.Status),
			URL:          p.URL,
			Link:         p.Link,
			Source:       p.Source,
			Categories:   encodeNames(p.Categories),
			Tags:         encodeNames(p.Tags),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Decode parses a blog document. Missing or empty fields fall back to their defaults; only a
// document that cannot be parsed at all, or has no BLOG_DATA root, is reported as
// domain.ErrMalformedDocument.
func Decode(text string) (domain.BlogData, error) {
	doc, err := xmlquery.Parse(strings.NewReader(text))
	if err != nil {
		return domain.BlogData{}, fmt.Errorf("%w: %v", domain.ErrMalformedDocument, err)
	}

	root := xmlquery.FindOne(doc, "/BLOG_DATA")
	if root == nil {
		return domain.BlogData{}, fmt.Errorf("%w: missing BLOG_DATA root", domain.ErrMalformedDocument)
	}

	info := decodeBlogInfo(xmlquery.FindOne(root, "BLOG_INFO"))
	now := time.Now().UTC()

	data := domain.BlogData{
		BlogInfo: info,
		Posts:    decodePosts(xmlquery.Find(root, "POSTS/POST"), info.Owner, now),
	}
	if external := xmlquery.Find(root, "EXTERNAL_POSTS/POST"); len(external) > 0 {
		data.ExternalPosts = decodePosts(external, info.Owner, now)
		for i := range data.ExternalPosts {
			data.ExternalPosts[i].IsExternal = true
		}
	}

	return data, nil
}

func decodeBlogInfo(node *xmlquery.Node) domain.BlogInfo {
	defaults := domain.DefaultBlogInfo()
	if node == nil {
		return defaults
	}

	info := domain.BlogInfo{
		Domain:           textOr(node, "DOMAIN", defaults.Domain),
		Title:            textOr(node, "TITLE", defaults.Title),
		ShortDescription: textOr(node, "SHORT_DESCRIPTION", defaults.ShortDescription),
		FullDescription:  textOr(node, "FULL_DESCRIPTION", defaults.FullDescription),
		Owner:            decodeUser(xmlquery.FindOne(node, "OWNER/USER"), defaults.Owner),
		Authors:          []domain.Author{},
		Categories:       names(node, "CATEGORIES/CATEGORY/NAME"),
		Tags:             names(node, "TAGS/TAG/NAME"),
		RSSFeeds:         names(node, "RSS_FEEDS/URL"),
		FollowedBlogs:    decodeSubscriptions(xmlquery.Find(node, "FOLLOWED_BLOGS/BLOG")),
		Subscribers:      decodeSubscriptions(xmlquery.Find(node, "SUBSCRIBERS/BLOG")),
	}
	for _, u := range xmlquery.Find(node, "AUTHORS/USER") {
		info.Authors = append(info.Authors, decodeUser(u, domain.Author{}))
	}

	return info
}

// decodeUser reads a user triple. The fallback replaces the whole triple, and only when the
// element or its USER_NAME is missing; empty first and last names are kept as empty.
func decodeUser(node *xmlquery.Node, fallback domain.Author) domain.Author {
	userName := text(node, "USER_NAME")
	if userName == "" {
		return fallback
	}
	return domain.Author{
		UserName:  userName,
		FirstName: text(node, "FIRST_NAME"),
		LastName:  text(node, "LAST_NAME"),
	}
}

func decodeSubscriptions(nodes []*xmlquery.Node) []domain.Subscription {
	subs := make([]domain.Subscription, 0, len(nodes))
	for _, n := range nodes {
		target := text(n, "TARGET_URL")
		if target == "" {
			continue
		}
		subs = append(subs, domain.Subscription{
			TargetURL:  target,
			WebhookURL: text(n, "WEBHOOK_URL"),
			Secret:     text(n, "SECRET"),
		})
	}
	return subs
}

func decodePosts(nodes []*xmlquery.Node, owner domain.Author, now time.Time) []domain.Post {
	posts := make([]domain.Post, 0, len(nodes))
	for _, n := range nodes {
		numberText := text(n, "NUMBER")
		number, err := strconv.ParseInt(numberText, 10, 64)
		if err != nil {
			number = 0
		}

		id := text(n, "ID")
		if id == "" {
			id = numberText
		}
		if id == "" {
			id = uuid.NewString()
		}

		status := domain.PostStatus(text(n, "STATUS"))
		if !status.Valid() {
			status = domain.StatusPublished
		}

		var content string
		if c := xmlquery.FindOne(n, "CONTENT"); c != nil {
			content = c.InnerText()
		}

		posts = append(posts, domain.Post{
			ID:         id,
			Number:     number,
			Title:      text(n, "TITLE"),
			Content:    content,
			Author:     decodeUser(xmlquery.FindOne(n, "AUTHOR"), owner),
			CreatedAt:  parseTime(text(n, "CREATED_DATE"), now),
			UpdatedAt:  parseTime(text(n, "LAST_MODIFIED_DATE"), now),
			Status:     status,
			Categories: names(n, "CATEGORIES/CATEGORY/NAME"),
			Tags:       names(n, "TAGS/TAG/NAME"),
			URL:        text(n, "URL"),
			Link:       text(n, "LINK"),
			Source:     text(n, "SOURCE"),
		})
	}
	return posts
}

func parseTime(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return fallback
	}
	return t
}

// text returns the trimmed inner text of the first node matching expr below node.
func text(node *xmlquery.Node, expr string) string {
	if node == nil {
		return ""
	}
	found := xmlquery.FindOne(node, expr)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.InnerText())
}

func textOr(node *xmlquery.Node, expr, fallback string) string {
	if v := text(node, expr); v != "" {
		return v
	}
	return fallback
}

func names(node *xmlquery.Node, expr string) []string {
	out := []string{}
	for _, n := range xmlquery.Find(node, expr) {
		if v := strings.TrimSpace(n.InnerText()); v != "" {
			out = append(out, v)
		}
	}
	return out
}
