package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dfryer1193/gistblog/blog/domain"
)

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		title    string
		body     string
	}{
		{
			name:     "Valid title",
			markdown: "# My Blog Post\nSome content",
			title:    "My Blog Post",
			body:     "Some content",
		},
		{
			name:     "Title with extra spaces",
			markdown: "#   Title with spaces   \nContent",
			title:    "Title with spaces",
			body:     "Content",
		},
		{
			name:     "No title",
			markdown: "Some content without title",
			title:    "Untitled Post",
			body:     "Some content without title",
		},
		{
			name:     "Empty markdown",
			markdown: "",
			title:    "Untitled Post",
			body:     "",
		},
		{
			name:     "Just newlines",
			markdown: "\n\n",
			title:    "Untitled Post",
			body:     "\n\n",
		},
		{
			name:     "Hash without space",
			markdown: "#NoSpace\nContent",
			title:    "Untitled Post",
			body:     "#NoSpace\nContent",
		},
		{
			name:     "Second level heading is not a title",
			markdown: "## Section\nContent",
			title:    "Untitled Post",
			body:     "## Section\nContent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := splitTitle([]byte(tt.markdown))
			if title != tt.title {
				t.Errorf("splitTitle() title = %q, want %q", title, tt.title)
			}
			if string(body) != tt.body {
				t.Errorf("splitTitle() body = %q, want %q", body, tt.body)
			}
		})
	}
}

func TestExtractSnippet(t *testing.T) {
	long := strings.Repeat("word ", 60)

	tests := []struct {
		name     string
		markdown string
		expected string
	}{
		{
			name:     "First paragraph",
			markdown: "This is the first paragraph\n\nMore content",
			expected: "This is the first paragraph",
		},
		{
			name:     "Multi-line first paragraph",
			markdown: "First line of paragraph.\nSecond line of paragraph.\n\nSecond paragraph",
			expected: "First line of paragraph. Second line of paragraph.",
		},
		{
			name:     "Skip leading blank lines and headings",
			markdown: "\n\n## Intro\n\nActual content here",
			expected: "Actual content here",
		},
		{
			name:     "Skip code fences and lists",
			markdown: "```\n- item\n\nReal paragraph",
			expected: "Real paragraph",
		},
		{
			name:     "Long paragraph is cut at a word",
			markdown: long,
			expected: strings.TrimSpace(long[:maxSnippetLength]) + "...",
		},
		{
			name:     "No paragraph",
			markdown: "## Only a heading",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractSnippet([]byte(tt.markdown))
			if result != tt.expected {
				t.Errorf("extractSnippet() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestIsRelativeLink(t *testing.T) {
	tests := []struct {
		link     string
		expected bool
	}{
		{"", false},
		{"#section", false},
		{"//cdn.example.com/a.png", false},
		{"https://example.com/post", false},
		{"mailto:someone@example.com", false},
		{"/absolute/path.md", true},
		{"./sibling.md", true},
		{"../parent/post.md", true},
		{"plain.md", true},
		{"images/cat.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			if got := isRelativeLink(tt.link); got != tt.expected {
				t.Errorf("isRelativeLink(%q) = %v, want %v", tt.link, got, tt.expected)
			}
		})
	}
}

func TestIsDocument(t *testing.T) {
	tests := []struct {
		link     string
		expected bool
	}{
		{"post.md", true},
		{"../drafts/Post.MD#intro", true},
		{"page.html", true},
		{"notes.markdown", true},
		{"/tags/go", false},
		{"images/cat.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			if got := isDocument(tt.link); got != tt.expected {
				t.Errorf("isDocument(%q) = %v, want %v", tt.link, got, tt.expected)
			}
		})
	}
}

func TestMarkdownRenderer_Render(t *testing.T) {
	renderer := NewMarkdownRenderer("https://blog.example.com/")

	tests := []struct {
		name        string
		markdown    string
		title       string
		contains    []string
		notContains []string
	}{
		{
			name:        "Title is removed from body",
			markdown:    "# Hello\n\nBody text",
			title:       "Hello",
			contains:    []string{"<p>Body text</p>"},
			notContains: []string{"<h1"},
		},
		{
			name:     "Relative post link",
			markdown: "# T\n\nSee [the other one](../drafts/My-Post.md#intro).",
			title:    "T",
			contains: []string{`href="https://blog.example.com/post/my-post#intro"`},
		},
		{
			name:     "Relative image",
			markdown: "# T\n\n![cat](pics/cat.png)",
			title:    "T",
			contains: []string{`src="https://blog.example.com/images/cat.png"`},
		},
		{
			name:     "Relative non-document link untouched",
			markdown: "# T\n\n[tags](/tags/go)",
			title:    "T",
			contains: []string{`href="/tags/go"`},
		},
		{
			name:     "Absolute link untouched",
			markdown: "# T\n\n[site](https://other.example.com/x)",
			title:    "T",
			contains: []string{`href="https://other.example.com/x"`},
		},
		{
			name:     "Fragment link untouched",
			markdown: "# T\n\n[jump](#later)",
			title:    "T",
			contains: []string{`href="#later"`},
		},
		{
			name:     "Headings get ids",
			markdown: "# T\n\n## Getting Started\n\ntext",
			title:    "T",
			contains: []string{`<h2 id="getting-started">Getting Started</h2>`},
		},
		{
			name:     "GFM table",
			markdown: "# T\n\n| a | b |\n|---|---|\n| 1 | 2 |\n",
			title:    "T",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:     "Strikethrough",
			markdown: "# T\n\n~~gone~~",
			title:    "T",
			contains: []string{"<del>gone</del>"},
		},
		{
			name:     "Hard wraps",
			markdown: "# T\n\nline one\nline two",
			title:    "T",
			contains: []string{"line one<br />"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := renderer.Render([]byte(tt.markdown))
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if result.Title != tt.title {
				t.Errorf("Title = %q, want %q", result.Title, tt.title)
			}
			for _, want := range tt.contains {
				if !strings.Contains(result.HTML, want) {
					t.Errorf("HTML missing %q:\n%s", want, result.HTML)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(result.HTML, unwanted) {
					t.Errorf("HTML unexpectedly contains %q:\n%s", unwanted, result.HTML)
				}
			}
		})
	}
}

func TestSaveMarkdownPost(t *testing.T) {
	store, backend := newTestStore(t, "")
	renderer := NewMarkdownRenderer("https://blog.example.com")
	ctx := context.Background()

	post, err := store.SaveMarkdownPost(ctx, renderer, MarkdownPost{
		Markdown: "# Markdown Post\n\nHello **there**",
		Status:   domain.StatusPublished,
		Tags:     []string{"Go Lang"},
	})
	if err != nil {
		t.Fatalf("SaveMarkdownPost() error = %v", err)
	}

	if post.Title != "Markdown Post" {
		t.Errorf("Title = %q, want %q", post.Title, "Markdown Post")
	}
	if post.URL != "markdown-post" {
		t.Errorf("URL = %q, want %q", post.URL, "markdown-post")
	}
	if !strings.Contains(post.Content, "<strong>there</strong>") {
		t.Errorf("Content = %q, want rendered HTML", post.Content)
	}
	if len(post.Tags) != 1 || post.Tags[0] != "go-lang" {
		t.Errorf("Tags = %v, want [go-lang]", post.Tags)
	}
	if backend.writeCount() != 1 {
		t.Errorf("writes = %d, want 1", backend.writeCount())
	}

	_, err = store.SaveMarkdownPost(ctx, renderer, MarkdownPost{Markdown: "   "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty markdown error = %v, want ErrValidation", err)
	}
}
