package application

import (
	"context"
	"fmt"
	"slices"

	"github.com/dfryer1193/gistblog/blog/domain"
)

// AddRSSFeed records a pull-followed feed URL.
func (s *BlogStore) AddRSSFeed(ctx context.Context, feedURL string) error {
	return s.mutate(ctx, func(d *domain.BlogData) error {
		if containsURL(d.BlogInfo.RSSFeeds, feedURL) {
			return fmt.Errorf("feed %s: %w", feedURL, domain.ErrDuplicateFollow)
		}
		d.BlogInfo.RSSFeeds = append(d.BlogInfo.RSSFeeds, feedURL)
		return nil
	})
}

// RemoveRSSFeed forgets a pull-followed feed. Removing an unknown feed is a no-op.
func (s *BlogStore) RemoveRSSFeed(ctx context.Context, feedURL string) error {
	key := domain.NormalizeBlogURL(feedURL)
	return s.mutate(ctx, func(d *domain.BlogData) error {
		before := len(d.BlogInfo.RSSFeeds)
		d.BlogInfo.RSSFeeds = slices.DeleteFunc(d.BlogInfo.RSSFeeds, func(u string) bool {
			return domain.NormalizeBlogURL(u) == key
		})
		if len(d.BlogInfo.RSSFeeds) == before {
			return errNoChange
		}
		return nil
	})
}

// AddFollowedBlog records an outbound subscription once the peer has accepted it.
func (s *BlogStore) AddFollowedBlog(ctx context.Context, sub domain.Subscription) error {
	return s.mutate(ctx, func(d *domain.BlogData) error {
		if _, ok := d.BlogInfo.FollowedBlog(sub.TargetURL); ok {
			return fmt.Errorf("blog %s: %w", sub.TargetURL, domain.ErrDuplicateFollow)
		}
		d.BlogInfo.FollowedBlogs = append(d.BlogInfo.FollowedBlogs, sub)
		return nil
	})
}

// RemoveFollowedBlog drops an outbound subscription and reports whether one existed.
func (s *BlogStore) RemoveFollowedBlog(ctx context.Context, blogURL string) (bool, error) {
	key := domain.NormalizeBlogURL(blogURL)
	var removed bool
	err := s.mutate(ctx, func(d *domain.BlogData) error {
		before := len(d.BlogInfo.FollowedBlogs)
		d.BlogInfo.FollowedBlogs = slices.DeleteFunc(d.BlogInfo.FollowedBlogs, func(sub domain.Subscription) bool {
			return domain.NormalizeBlogURL(sub.TargetURL) == key
		})
		if len(d.BlogInfo.FollowedBlogs) == before {
			return errNoChange
		}
		removed = true
		return nil
	})
	return removed, err
}

// AddSubscriber records an inbound subscription and reports whether it is new. A repeat
// subscription from the same blog replaces the webhook URL and secret of its single record,
// since the peer only holds the secret it sent last.
func (s *BlogStore) AddSubscriber(ctx context.Context, sub domain.Subscription) (bool, error) {
	key := domain.NormalizeBlogURL(sub.TargetURL)
	var added bool
	err := s.mutate(ctx, func(d *domain.BlogData) error {
		idx := slices.IndexFunc(d.BlogInfo.Subscribers, func(existing domain.Subscription) bool {
			return domain.NormalizeBlogURL(existing.TargetURL) == key
		})
		if idx < 0 {
			d.BlogInfo.Subscribers = append(d.BlogInfo.Subscribers, sub)
			added = true
			return nil
		}

		existing := &d.BlogInfo.Subscribers[idx]
		if existing.WebhookURL == sub.WebhookURL && existing.Secret == sub.Secret {
			return errNoChange
		}
		existing.WebhookURL = sub.WebhookURL
		existing.Secret = sub.Secret
		return nil
	})
	return added, err
}

// Subscribers returns the inbound subscriptions, secrets included.
func (s *BlogStore) Subscribers(ctx context.Context) []domain.Subscription {
	return slices.Clone(s.snapshot(ctx).BlogInfo.Subscribers)
}

func containsURL(urls []string, target string) bool {
	key := domain.NormalizeBlogURL(target)
	return slices.ContainsFunc(urls, func(u string) bool {
		return domain.NormalizeBlogURL(u) == key
	})
}
