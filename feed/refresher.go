package feed

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// LoadFunc produces a fresh aggregated feed.
type LoadFunc func(ctx context.Context) []domain.Post

// Refresher caches the aggregated feed and rebuilds it on a cron schedule.
type Refresher struct {
	cron    *cron.Cron
	load    LoadFunc
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	posts       []domain.Post
	refreshedAt time.Time
}

// NewRefresher validates schedule (standard cron expression or descriptor such as "@every 15m").
func NewRefresher(schedule string, timeout time.Duration, load LoadFunc) (*Refresher, error) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Refresher{
		cron:    cron.New(),
		load:    load,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := r.cron.AddFunc(schedule, func() {
		r.Refresh(r.ctx)
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid feed refresh schedule %q: %w", schedule, err)
	}

	return r, nil
}

func (r *Refresher) Start() {
	r.cron.Start()
	log.Info().Int("jobs", len(r.cron.Entries())).Msg("Feed refresher started")
}

// Stop halts the schedule and waits for a running refresh, up to ctx.
func (r *Refresher) Stop(ctx context.Context) {
	r.cancel()
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Refresh rebuilds the cache now and returns the new feed.
func (r *Refresher) Refresh(ctx context.Context) []domain.Post {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	posts := r.load(ctx)

	r.mu.Lock()
	r.posts = posts
	r.refreshedAt = time.Now()
	r.mu.Unlock()

	log.Debug().Int("posts", len(posts)).Msg("Refreshed aggregated feed")
	return slices.Clone(posts)
}

// Posts returns the cached feed, building it first if it has never been built.
func (r *Refresher) Posts(ctx context.Context) []domain.Post {
	r.mu.RLock()
	if !r.refreshedAt.IsZero() {
		posts := slices.Clone(r.posts)
		r.mu.RUnlock()
		return posts
	}
	r.mu.RUnlock()

	return r.Refresh(ctx)
}

// RefreshedAt reports when the cache was last rebuilt; zero if never.
func (r *Refresher) RefreshedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt
}
