// Package rest is the JSON API over the blog store: public reads and the admin surface.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/dfryer1193/gistblog/api"
	"github.com/dfryer1193/gistblog/blog/application"
	"github.com/dfryer1193/gistblog/internal/middleware"
	"github.com/dfryer1193/gistblog/internal/rss"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RevisionReader exposes earlier document revisions. Only the sqlite backend keeps them.
type RevisionReader interface {
	Revision(ctx context.Context) (int64, error)
	ReadRevision(ctx context.Context, revision int64) (string, error)
}

// Deps are the services the API serves. Revisions may be nil.
type Deps struct {
	Store         *application.BlogStore
	Feeds         *application.FeedService
	Subscriptions *application.SubscriptionService
	Markdown      application.MarkdownRenderer
	RSS           *rss.Generator
	Revisions     RevisionReader
	AdminToken    string
}

type API struct {
	Deps
	now func() time.Time
}

func NewAPI(deps Deps) *API {
	return &API{Deps: deps, now: time.Now}
}

// Register mounts the public routes and the admin routes under /admin/v1.
func (a *API) Register(router gin.IRouter) {
	postsV1 := router.Group("posts/v1")
	{
		postsV1.GET("/", a.GetPosts)
		postsV1.GET("/:postId", a.GetPost)
		postsV1.GET("/slug/:slug", a.GetPostBySlug)
	}

	router.GET("blog/v1/info", a.GetBlogInfo)

	taxonomyV1 := router.Group("taxonomy/v1")
	{
		taxonomyV1.GET("/categories", a.GetCategories)
		taxonomyV1.GET("/tags", a.GetTags)
	}

	router.GET(rss.FeedPath, a.GetRSS)

	admin := router.Group("admin/v1", middleware.RequireAdmin(a.AdminToken))
	{
		admin.GET("/posts", a.ListAllPosts)
		admin.POST("/posts", a.SavePost)
		admin.POST("/posts/markdown", a.SaveMarkdownPost)
		admin.POST("/posts/bulk-delete", a.BulkDeletePosts)
		admin.POST("/posts/import", a.ImportPosts)
		admin.DELETE("/posts/:postId", a.DeletePost)
		admin.POST("/posts/:postId/notify", a.NotifySubscribers)

		admin.GET("/export", a.Export)
		admin.GET("/export/revisions", a.CurrentRevision)
		admin.GET("/export/revisions/:revision", a.ExportRevision)
		admin.PATCH("/blog-info", a.UpdateBlogInfo)

		admin.POST("/categories", a.AddCategory)
		admin.PUT("/categories/:name", a.RenameCategory)
		admin.DELETE("/categories/:name", a.DeleteCategory)
		admin.POST("/tags", a.AddTag)
		admin.PUT("/tags/:name", a.RenameTag)
		admin.DELETE("/tags/:name", a.DeleteTag)

		admin.GET("/feeds", a.ListFeeds)
		admin.POST("/feeds", a.FollowFeed)
		admin.DELETE("/feeds", a.UnfollowFeed)
		admin.GET("/feeds/aggregate", a.AggregatedFeed)
		admin.POST("/feeds/refresh", a.RefreshFeed)

		admin.GET("/blogs", a.ListFollowedBlogs)
		admin.POST("/blogs", a.SubscribeBlog)
		admin.DELETE("/blogs", a.UnfollowBlog)
		admin.POST("/blogs/verify", a.VerifyBlog)
	}
}

// abortWithError answers with the status mapped from err and records it for the request log.
func abortWithError(c *gin.Context, err error) {
	status := api.StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
