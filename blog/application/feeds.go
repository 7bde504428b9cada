package application

import (
	"context"
	"fmt"
	"time"

	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/dfryer1193/gistblog/feed"
	"github.com/rs/zerolog/log"
)

// FeedService manages pull-followed feeds and the aggregated feed of everything this blog follows.
type FeedService struct {
	store     *BlogStore
	client    *feed.Client
	refresher *feed.Refresher
}

// NewFeedService wires the aggregated feed to a refresher running on schedule.
// Each refresh is bounded by refreshTimeout.
func NewFeedService(store *BlogStore, client *feed.Client, schedule string, refreshTimeout time.Duration) (*FeedService, error) {
	s := &FeedService{
		store:  store,
		client: client,
	}

	refresher, err := feed.NewRefresher(schedule, refreshTimeout, s.aggregate)
	if err != nil {
		return nil, err
	}
	s.refresher = refresher

	return s, nil
}

func (s *FeedService) Start() {
	s.refresher.Start()
}

func (s *FeedService) Close(ctx context.Context) {
	s.refresher.Stop(ctx)
}

// FollowFeed validates feedURL, checks it parses as RSS or Atom and then records it.
// Invalid and duplicate URLs are rejected without any network call.
func (s *FeedService) FollowFeed(ctx context.Context, feedURL string) (string, error) {
	candidate, err := feed.ValidateFollowURL(feedURL, s.store.BlogInfo(ctx).RSSFeeds)
	if err != nil {
		return "", err
	}

	posts, err := s.client.FetchFeed(ctx, candidate)
	if err != nil {
		return "", fmt.Errorf("%w: failed to verify feed %s: %w", domain.ErrUpstream, candidate, err)
	}

	if err := s.store.AddRSSFeed(ctx, candidate); err != nil {
		return "", err
	}

	log.Info().Str("feed", candidate).Int("items", len(posts)).Msg("Following feed")
	return candidate, nil
}

func (s *FeedService) UnfollowFeed(ctx context.Context, feedURL string) error {
	return s.store.RemoveRSSFeed(ctx, feedURL)
}

func (s *FeedService) FollowedFeeds(ctx context.Context) []string {
	feeds := s.store.BlogInfo(ctx).RSSFeeds
	if feeds == nil {
		return []string{}
	}
	return feeds
}

// VerifyBlog reports whether blogURL answers on its post API.
func (s *FeedService) VerifyBlog(ctx context.Context, blogURL string) (bool, error) {
	candidate, err := feed.ValidateFollowURL(blogURL, nil)
	if err != nil {
		return false, err
	}
	return s.client.VerifyBlog(ctx, candidate), nil
}

// Aggregated returns the cached aggregated feed, building it on first use.
func (s *FeedService) Aggregated(ctx context.Context) ([]domain.Post, time.Time) {
	posts := s.refresher.Posts(ctx)
	return posts, s.refresher.RefreshedAt()
}

// Refresh rebuilds the aggregated feed now.
func (s *FeedService) Refresh(ctx context.Context) ([]domain.Post, time.Time) {
	posts := s.refresher.Refresh(ctx)
	return posts, s.refresher.RefreshedAt()
}

func (s *FeedService) aggregate(ctx context.Context) []domain.Post {
	info := s.store.BlogInfo(ctx)

	sources := feed.Sources{Feeds: info.RSSFeeds}
	for _, b := range info.FollowedBlogs {
		sources.Blogs = append(sources.Blogs, b.TargetURL)
	}

	return s.client.Aggregate(ctx, sources, s.store.ExternalPosts(ctx))
}
