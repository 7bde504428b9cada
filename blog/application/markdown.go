package application

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const (
	maxSnippetLength = 200
	untitledPost     = "Untitled Post"
)

// RenderedMarkdown is a Markdown document converted for storage as a post.
type RenderedMarkdown struct {
	Title   string
	Snippet string
	HTML    string
}

// MarkdownRenderer converts Markdown source to post HTML.
type MarkdownRenderer interface {
	Render(markdown []byte) (*RenderedMarkdown, error)
}

// postLinkTransformer rewrites relative links: images point at the blog's /images/ directory and
// links to other Markdown or HTML documents point at the post with the matching slug.
type postLinkTransformer struct {
	baseURL string
}

func (t *postLinkTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := n.(type) {
		case *ast.Image:
			if dest := string(v.Destination); isRelativeLink(dest) {
				v.Destination = []byte(t.baseURL + "/images/" + path.Base(dest))
			}
		case *ast.Link:
			if dest := string(v.Destination); isRelativeLink(dest) && isDocument(dest) {
				v.Destination = []byte(t.baseURL + t.postPath(dest))
			}
		}

		return ast.WalkContinue, nil
	})
}

// postPath maps "../drafts/My Post.md#intro" to "/post/my-post#intro".
func (t *postLinkTransformer) postPath(dest string) string {
	target, fragment, _ := strings.Cut(dest, "#")
	name := path.Base(target)
	name = strings.TrimSuffix(name, path.Ext(name))
	p := domain.PostLink(domain.Slugify(name))
	if fragment != "" {
		p += "#" + fragment
	}
	return p
}

func isRelativeLink(dest string) bool {
	switch {
	case dest == "", strings.HasPrefix(dest, "#"), strings.HasPrefix(dest, "//"):
		return false
	case strings.HasPrefix(dest, "/"), strings.HasPrefix(dest, "./"), strings.HasPrefix(dest, "../"):
		return true
	}
	return !strings.Contains(dest, ":")
}

func isDocument(dest string) bool {
	target, _, _ := strings.Cut(dest, "#")
	switch strings.ToLower(path.Ext(target)) {
	case ".md", ".markdown", ".html":
		return true
	}
	return false
}

type goldmarkRenderer struct {
	md goldmark.Markdown
}

// NewMarkdownRenderer builds a GFM renderer that resolves relative links against baseURL.
func NewMarkdownRenderer(baseURL string) MarkdownRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			extension.Typographer,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(
				util.Prioritized(&postLinkTransformer{baseURL: strings.TrimRight(baseURL, "/")}, 100),
			),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
			html.WithUnsafe(),
		),
	)

	return &goldmarkRenderer{md: md}
}

// Render converts markdown. A leading "# Title" line becomes the title and is left out of the HTML.
func (r *goldmarkRenderer) Render(markdown []byte) (*RenderedMarkdown, error) {
	title, body := splitTitle(markdown)

	var buf bytes.Buffer
	if err := r.md.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}

	return &RenderedMarkdown{
		Title:   title,
		Snippet: extractSnippet(body),
		HTML:    buf.String(),
	}, nil
}

func splitTitle(markdown []byte) (string, []byte) {
	first, rest, _ := bytes.Cut(markdown, []byte("\n"))
	title, found := strings.CutPrefix(strings.TrimSpace(string(first)), "# ")
	if !found || strings.TrimSpace(title) == "" {
		return untitledPost, markdown
	}
	return strings.TrimSpace(title), rest
}

// extractSnippet returns the first plain paragraph, cut at a word boundary.
func extractSnippet(markdown []byte) string {
	var paragraph []string

	for _, line := range strings.Split(string(markdown), "\n") {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") || startsBlock(trimmed) {
			if len(paragraph) > 0 {
				break
			}
			continue
		}

		paragraph = append(paragraph, trimmed)
	}

	snippet := strings.Join(paragraph, " ")
	if len(snippet) <= maxSnippetLength {
		return snippet
	}

	snippet = snippet[:maxSnippetLength]
	if lastSpace := strings.LastIndexAny(snippet, " \t"); lastSpace > 0 {
		snippet = snippet[:lastSpace]
	}
	return snippet + "..."
}

func startsBlock(line string) bool {
	for _, prefix := range []string{"```", "---", "***", "- ", "* ", "+ ", "|", "> "} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// MarkdownPost is a post authored in Markdown.
type MarkdownPost struct {
	ID         string
	Markdown   string
	Status     domain.PostStatus
	Categories []string
	Tags       []string
}

// SaveMarkdownPost renders in.Markdown and saves the result. The rendered title and HTML replace
// the post's title and content; everything else follows SavePost.
func (s *BlogStore) SaveMarkdownPost(ctx context.Context, renderer MarkdownRenderer, in MarkdownPost) (domain.Post, error) {
	if strings.TrimSpace(in.Markdown) == "" {
		return domain.Post{}, fmt.Errorf("%w: markdown is required", domain.ErrValidation)
	}

	rendered, err := renderer.Render([]byte(in.Markdown))
	if err != nil {
		return domain.Post{}, err
	}

	return s.SavePost(ctx, domain.Post{
		ID:         in.ID,
		Title:      rendered.Title,
		Content:    rendered.HTML,
		Status:     in.Status,
		Categories: in.Categories,
		Tags:       in.Tags,
	})
}
