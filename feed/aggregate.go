package feed

import (
	"context"

	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const fetchConcurrency = 4

// Sources lists what to pull: RSS/Atom feed URLs and peer blog base URLs.
type Sources struct {
	Feeds []string
	Blogs []string
}

// Aggregate pulls every source concurrently, merges the result with pushed posts, drops
// duplicate ids and orders the feed newest first. A failing source contributes nothing.
func (c *Client) Aggregate(ctx context.Context, sources Sources, pushed []domain.Post) []domain.Post {
	results := make([][]domain.Post, len(sources.Feeds)+len(sources.Blogs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for i, feedURL := range sources.Feeds {
		g.Go(func() error {
			posts, err := c.FetchFeed(gctx, feedURL)
			if err != nil {
				log.Warn().Err(err).Str("feed", feedURL).Msg("Skipping feed")
				return nil
			}
			results[i] = posts
			return nil
		})
	}
	for i, blogURL := range sources.Blogs {
		g.Go(func() error {
			results[len(sources.Feeds)+i] = c.FetchBlogPosts(gctx, blogURL)
			return nil
		})
	}
	_ = g.Wait()

	all := make([][]domain.Post, 0, len(results)+1)
	all = append(all, results...)
	all = append(all, pushed)
	return Merge(all...)
}

// Merge unions post lists, keeping the first post seen for each id, sorted by creation time
// descending.
func Merge(lists ...[]domain.Post) []domain.Post {
	seen := make(map[string]struct{})
	merged := []domain.Post{}
	for _, list := range lists {
		for _, p := range list {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			merged = append(merged, p)
		}
	}
	domain.SortByCreatedDesc(merged)
	return merged
}
