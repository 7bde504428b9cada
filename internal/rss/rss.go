// Package rss renders the blog's published posts as an RSS 2.0 feed.
package rss

import (
	"encoding/xml"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/microcosm-cc/bluemonday"
)

const (
	atomNamespace     = "http://www.w3.org/2005/Atom"
	dcNamespace       = "http://purl.org/dc/elements/1.1/"
	descriptionLength = 200
	ContentType       = "application/rss+xml; charset=utf-8"
	FeedPath          = "/rss.xml"
)

// RSS is the root element of an RSS feed.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	AtomNS  string   `xml:"xmlns:atom,attr"`
	DCNS    string   `xml:"xmlns:dc,attr"`
	Channel Channel  `xml:"channel"`
}

type Channel struct {
	Title         string   `xml:"title"`
	Link          string   `xml:"link"`
	Description   string   `xml:"description"`
	Language      string   `xml:"language,omitempty"`
	LastBuildDate string   `xml:"lastBuildDate,omitempty"`
	SelfLink      AtomLink `xml:"atom:link"`
	Items         []Item   `xml:"item"`
}

// AtomLink is the rel="self" link feed validators expect.
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type Item struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Creator     string   `xml:"dc:creator,omitempty"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        GUID     `xml:"guid"`
	Categories  []string `xml:"category"`
}

type GUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// Generator builds feeds for a blog served at baseURL.
type Generator struct {
	baseURL string
	policy  *bluemonday.Policy
}

func NewGenerator(baseURL string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		policy:  bluemonday.StrictPolicy(),
	}
}

// Build turns published posts into a feed, in the order given.
func (g *Generator) Build(info domain.BlogInfo, posts []domain.Post, now time.Time) RSS {
	feed := RSS{
		Version: "2.0",
		AtomNS:  atomNamespace,
		DCNS:    dcNamespace,
		Channel: Channel{
			Title:         info.Title,
			Link:          g.baseURL,
			Description:   info.ShortDescription,
			Language:      "en-us",
			LastBuildDate: now.Format(time.RFC1123Z),
			SelfLink: AtomLink{
				Href: g.baseURL + FeedPath,
				Rel:  "self",
				Type: "application/rss+xml",
			},
			Items: []Item{},
		},
	}

	for _, p := range posts {
		if !p.IsPublished() {
			continue
		}

		link := g.postURL(p)
		item := Item{
			Title:       p.Title,
			Link:        link,
			Description: g.Description(p.Content),
			GUID:        GUID{Value: link, IsPermaLink: true},
			Categories:  p.Categories,
		}
		// <author> must hold an email address; a display name goes in dc:creator.
		if name := strings.TrimSpace(p.Author.FirstName + " " + p.Author.LastName); name != "" {
			item.Creator = name
		}
		if !p.CreatedAt.IsZero() {
			item.PubDate = p.CreatedAt.Format(time.RFC1123Z)
		}
		feed.Channel.Items = append(feed.Channel.Items, item)
	}

	return feed
}

// Render builds the feed and marshals it with an XML declaration.
func (g *Generator) Render(info domain.BlogInfo, posts []domain.Post, now time.Time) ([]byte, error) {
	out, err := xml.MarshalIndent(g.Build(info, posts, now), "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// Description strips markup from content and cuts it to 200 characters plus "...".
func (g *Generator) Description(content string) string {
	text := html.UnescapeString(g.policy.Sanitize(content))
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) <= descriptionLength {
		return text
	}
	return string([]rune(text)[:descriptionLength]) + "..."
}

func (g *Generator) postURL(p domain.Post) string {
	link := p.Link
	if link == "" {
		link = domain.PostLink(p.URL)
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return g.baseURL + link
}
