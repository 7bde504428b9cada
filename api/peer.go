package api

import "github.com/dfryer1193/gistblog/blog/domain"

// EventPostPublished is the only webhook event peers send.
const EventPostPublished = "post_published"

// Headers used between peers.
const (
	HeaderWebhookSecret = "X-Webhook-Secret"
	HeaderOrigin        = "Origin"
)

type SubscribeRequest struct {
	WebhookURL string `json:"webhookUrl"`
	Secret     string `json:"secret"`
}

type WebhookEnvelope struct {
	Event string      `json:"event"`
	Data  domain.Post `json:"data"`
}

// SuccessResponse is the body of every peer API reply.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
