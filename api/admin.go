package api

import "github.com/dfryer1193/gistblog/blog/domain"

// PostRequest creates or replaces a post. An empty ID creates a new post.
type PostRequest struct {
	ID         string            `json:"id"`
	Number     int64             `json:"number"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Author     domain.Author     `json:"author"`
	Status     domain.PostStatus `json:"status"`
	Categories []string          `json:"categories"`
	Tags       []string          `json:"tags"`
	URL        string            `json:"url"`
}

func (r PostRequest) Post() domain.Post {
	return domain.Post{
		ID:         r.ID,
		Number:     r.Number,
		Title:      r.Title,
		Content:    r.Content,
		Author:     r.Author,
		Status:     r.Status,
		Categories: r.Categories,
		Tags:       r.Tags,
		URL:        r.URL,
	}
}

type MarkdownPostRequest struct {
	ID         string            `json:"id"`
	Markdown   string            `json:"markdown" binding:"required"`
	Status     domain.PostStatus `json:"status"`
	Categories []string          `json:"categories"`
	Tags       []string          `json:"tags"`
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

type ImportResponse struct {
	Added int `json:"added"`
}

type TermRequest struct {
	Name string `json:"name" binding:"required"`
}

type TermResponse struct {
	Name string `json:"name"`
}

type URLRequest struct {
	URL string `json:"url" binding:"required"`
}

type VerifyResponse struct {
	URL   string `json:"url"`
	Alive bool   `json:"alive"`
}

type FollowedBlog struct {
	TargetURL  string `json:"targetUrl"`
	WebhookURL string `json:"webhookUrl"`
}

// DeliveryResult reports one webhook delivery.
type DeliveryResult struct {
	WebhookURL string `json:"webhookUrl"`
	Error      string `json:"error,omitempty"`
}

type DeliveryReport struct {
	Delivered int              `json:"delivered"`
	Failed    int              `json:"failed"`
	Results   []DeliveryResult `json:"results"`
}

type AggregateResponse struct {
	Posts       []domain.Post `json:"posts"`
	RefreshedAt string        `json:"refreshedAt,omitempty"`
}

type RevisionResponse struct {
	Revision int64 `json:"revision"`
}
