package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dfryer1193/gistblog/blog/application"
	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/dfryer1193/gistblog/blog/persistence"
	"github.com/dfryer1193/gistblog/feed"
	"github.com/dfryer1193/gistblog/internal/config"
	"github.com/dfryer1193/gistblog/internal/logging"
	"github.com/dfryer1193/gistblog/internal/metrics"
	"github.com/dfryer1193/gistblog/internal/middleware"
	"github.com/dfryer1193/gistblog/internal/rest"
	"github.com/dfryer1193/gistblog/internal/rss"
	"github.com/dfryer1193/gistblog/shared/db/sqlite"
	gh "github.com/dfryer1193/gistblog/shared/github"
	peerhttp "github.com/dfryer1193/gistblog/webhook/http"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	shutdownTimeout = 10 * time.Second
	blobName        = "blog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	backend, revisions, closeBackend, err := openBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.BlobBackend).Msg("Failed to open blob backend")
	}
	defer closeBackend()

	store := application.NewBlogStore(backend, cfg.InitTimeout)
	if result := store.Initialize(context.Background()); result.Err != nil {
		log.Warn().Err(result.Err).Stringer("source", result.Source).Msg("Serving default blog document")
	}

	feedClient := feed.NewClient(cfg.FeedTimeout)

	feeds, err := application.NewFeedService(store, feedClient, cfg.FeedRefreshSchedule, 4*cfg.FeedTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create feed service")
	}

	subscriptions := application.NewSubscriptionService(store, feedClient, cfg.PublicURL, cfg.WebhookTimeout)
	defer func() {
		if err := subscriptions.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to gracefully close subscription service")
		}
	}()
	store.OnPublish(subscriptions.NotifyAsync)

	if !cfg.AdminEnabled() {
		log.Warn().Msg("ADMIN_TOKEN is not set, admin routes are disabled")
	}

	router := gin.New()
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.CustomRecovery(middleware.HandlePanics()))

	rest.NewAPI(rest.Deps{
		Store:         store,
		Feeds:         feeds,
		Subscriptions: subscriptions,
		Markdown:      application.NewMarkdownRenderer(cfg.PublicURL),
		RSS:           rss.NewGenerator(cfg.PublicURL),
		Revisions:     revisions,
		AdminToken:    cfg.AdminToken,
	}).Register(router)

	peers := peerhttp.NewRouter(peerhttp.NewPeerHandler(store, subscriptions), cfg.PeerRateLimit, cfg.PeerRateBurst)
	router.Any("/api/*path", gin.WrapH(peers))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	feeds.Start()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("public_url", cfg.PublicURL).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server")
	}
	feeds.Close(ctx)

	log.Info().Msg("Server stopped")
}

// openBackend builds the configured blob backend. revisions is nil unless the backend keeps history.
func openBackend(cfg *config.Config) (domain.BlobBackend, rest.RevisionReader, func(), error) {
	switch cfg.BlobBackend {
	case config.BackendSQLite:
		database := sqlite.NewSQLiteDB(cfg.SQLitePath)
		if err := database.Connect(); err != nil {
			return nil, nil, nil, err
		}
		repo := persistence.NewBlobRepository(database.DB(), blobName)
		return repo, repo, closeLogged(database, "sqlite database"), nil

	case config.BackendGist:
		if cfg.GithubToken == "" {
			log.Warn().Msg("GITHUB_TOKEN is not set, running on defaults without persistence")
		}
		backend := gh.NewGistBackend(gh.NewClient(cfg.GithubToken), cfg.GithubToken, cfg.GistID, cfg.GistFilename)
		return backend, nil, func() {
			if cfg.GistID == "" && backend.GistID() != "" {
				log.Info().Str("gist_id", backend.GistID()).Msg("Created a new gist, set GIST_ID to keep using it")
			}
		}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

func closeLogged(c io.Closer, what string) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Msgf("Failed to close %s", what)
		}
	}
}
