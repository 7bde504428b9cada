package application

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dfryer1193/gistblog/api"
	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/dfryer1193/gistblog/feed"
	"github.com/dfryer1193/gistblog/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	secretBytes    = 32
	maxReplyBytes  = 1 << 20
	webhookPath    = "/api/webhook"
	subscribePath  = "/api/subscribe"
	defaultTimeout = 10 * time.Second
)

// SubscriptionService runs the push side of following: subscribing to peers, accepting their
// subscriptions, notifying subscribers on publish and accepting their webhooks.
type SubscriptionService struct {
	store     *BlogStore
	feeds     *feed.Client
	http      *http.Client
	publicURL string
	timeout   time.Duration

	// Service lifecycle context - cancelled when Close() is called
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSubscriptionService creates the service. publicURL is this blog's absolute base URL and
// timeout bounds each outbound peer request.
func NewSubscriptionService(store *BlogStore, feeds *feed.Client, publicURL string, timeout time.Duration) *SubscriptionService {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SubscriptionService{
		store:     store,
		feeds:     feeds,
		http:      feeds.HTTPClient(),
		publicURL: domain.NormalizeBlogURL(publicURL),
		timeout:   timeout,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Close cancels in-flight notifications and waits for them to finish.
func (s *SubscriptionService) Close() error {
	s.cancel()
	s.wg.Wait()

	return nil
}

// WebhookURL is where peers deliver posts to this blog.
func (s *SubscriptionService) WebhookURL() string {
	return s.publicURL + webhookPath
}

// Subscribe asks the peer at blogURL to push new posts here, then records the peer as followed.
// Nothing is recorded unless the peer accepts.
func (s *SubscriptionService) Subscribe(ctx context.Context, blogURL string) (domain.Subscription, error) {
	var followed []string
	for _, b := range s.store.BlogInfo(ctx).FollowedBlogs {
		followed = append(followed, b.TargetURL)
	}

	candidate, err := feed.ValidateFollowURL(blogURL, followed)
	if err != nil {
		return domain.Subscription{}, err
	}

	secret, err := newSecret()
	if err != nil {
		return domain.Subscription{}, err
	}

	sub := domain.Subscription{
		TargetURL:  domain.NormalizeBlogURL(candidate),
		WebhookURL: s.WebhookURL(),
		Secret:     secret,
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := api.SubscribeRequest{WebhookURL: sub.WebhookURL, Secret: sub.Secret}
	if err := s.post(ctx, sub.TargetURL+subscribePath, req, ""); err != nil {
		return domain.Subscription{}, fmt.Errorf("%w: subscribe to %s: %w", domain.ErrUpstream, sub.TargetURL, err)
	}

	if err := s.store.AddFollowedBlog(context.WithoutCancel(ctx), sub); err != nil {
		return domain.Subscription{}, err
	}

	log.Info().Str("blog", sub.TargetURL).Msg("Subscribed to blog")
	return sub, nil
}

// UnfollowBlog forgets a followed peer. Webhooks it sends afterwards are rejected.
func (s *SubscriptionService) UnfollowBlog(ctx context.Context, blogURL string) (bool, error) {
	return s.store.RemoveFollowedBlog(ctx, blogURL)
}

func (s *SubscriptionService) FollowedBlogs(ctx context.Context) []domain.Subscription {
	blogs := s.store.BlogInfo(ctx).FollowedBlogs
	if blogs == nil {
		return []domain.Subscription{}
	}
	return blogs
}

// HandleSubscribe records a peer's subscription to this blog. Subscribing again is not an error
// and replaces the stored webhook URL and secret.
func (s *SubscriptionService) HandleSubscribe(ctx context.Context, targetURL string, req api.SubscribeRequest) error {
	target, err := feed.ValidateFollowURL(targetURL, nil)
	if err != nil {
		return fmt.Errorf("subscriber origin: %w", err)
	}
	webhookURL, err := feed.ValidateFollowURL(req.WebhookURL, nil)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	if strings.TrimSpace(req.Secret) == "" {
		return fmt.Errorf("%w: secret is required", domain.ErrValidation)
	}

	added, err := s.store.AddSubscriber(ctx, domain.Subscription{
		TargetURL:  domain.NormalizeBlogURL(target),
		WebhookURL: webhookURL,
		Secret:     req.Secret,
	})
	if err != nil {
		return err
	}

	log.Info().Str("subscriber", target).Bool("new", added).Msg("Handled subscription")
	return nil
}

// NotifyAsync notifies subscribers in the background under the service lifecycle.
func (s *SubscriptionService) NotifyAsync(post domain.Post) {
	s.wg.Go(func() {
		report := s.NotifySubscribers(s.ctx, post)
		if report.Failed > 0 {
			log.Warn().Str("post", post.ID).Int("failed", report.Failed).Int("delivered", report.Delivered).Msg("Some webhook deliveries failed")
		}
	})
}

// NotifySubscribers sends post to every subscriber concurrently. Each delivery has its own
// timeout and its failure does not affect the others.
func (s *SubscriptionService) NotifySubscribers(ctx context.Context, post domain.Post) api.DeliveryReport {
	subs := s.store.Subscribers(ctx)
	report := api.DeliveryReport{Results: make([]api.DeliveryResult, len(subs))}
	if len(subs) == 0 {
		return report
	}

	envelope := api.WebhookEnvelope{Event: api.EventPostPublished, Data: post}

	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Go(func() {
			dctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			err := s.post(dctx, sub.WebhookURL, envelope, sub.Secret)
			metrics.WebhookDeliveries.WithLabelValues(metrics.Result(err)).Inc()

			result := api.DeliveryResult{WebhookURL: sub.WebhookURL}
			if err != nil {
				log.Warn().Err(err).Str("subscriber", sub.TargetURL).Msg("Webhook delivery failed")
				result.Error = err.Error()
			}
			report.Results[i] = result
		})
	}
	wg.Wait()

	for _, r := range report.Results {
		if r.Error == "" {
			report.Delivered++
		} else {
			report.Failed++
		}
	}
	return report
}

// HandleWebhook accepts a push from a followed blog. The source must be followed and secret must
// match the one agreed on subscription, otherwise ErrWebhookRejected is returned and nothing
// changes. It reports whether a new post was stored.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, sourceURL, secret string, envelope api.WebhookEnvelope) (bool, error) {
	sub, ok := s.store.BlogInfo(ctx).FollowedBlog(sourceURL)
	if !ok || sub.Secret == "" || subtle.ConstantTimeCompare([]byte(sub.Secret), []byte(secret)) != 1 {
		metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
		return false, fmt.Errorf("%w: unknown source or bad secret from %q", domain.ErrWebhookRejected, sourceURL)
	}

	if envelope.Event != api.EventPostPublished {
		metrics.WebhooksReceived.WithLabelValues("ignored").Inc()
		log.Debug().Str("event", envelope.Event).Str("source", sub.TargetURL).Msg("Ignoring webhook event")
		return false, nil
	}

	post := s.feeds.ExternalPost(envelope.Data, sub.TargetURL, "")
	added, err := s.store.AddExternalPost(ctx, post)
	switch {
	case err != nil:
		metrics.WebhooksReceived.WithLabelValues("error").Inc()
		return false, err
	case added:
		metrics.WebhooksReceived.WithLabelValues("accepted").Inc()
		log.Info().Str("post", post.ID).Str("source", post.Source).Msg("Received post from followed blog")
	default:
		metrics.WebhooksReceived.WithLabelValues("duplicate").Inc()
	}
	return added, nil
}

// post sends payload as JSON and expects a 2xx {"success": true} reply.
func (s *SubscriptionService) post(ctx context.Context, target string, payload any, secret string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.HeaderOrigin, s.publicURL)
	if secret != "" {
		req.Header.Set(api.HeaderWebhookSecret, secret)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reply api.SuccessResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&reply)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if reply.Error != "" {
			return fmt.Errorf("%s answered %d: %s", target, resp.StatusCode, reply.Error)
		}
		return fmt.Errorf("%s answered %d", target, resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("unreadable reply from %s: %w", target, decodeErr)
	}
	if !reply.Success {
		return fmt.Errorf("%s declined the request", target)
	}
	return nil
}

func newSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
