package rest

import (
	"net/http"
	"time"

	"github.com/dfryer1193/gistblog/api"
	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/gin-gonic/gin"
)

func (a *API) ListFeeds(c *gin.Context) {
	c.JSON(http.StatusOK, a.Feeds.FollowedFeeds(c.Request.Context()))
}

func (a *API) FollowFeed(c *gin.Context) {
	var req api.URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	feedURL, err := a.Feeds.FollowFeed(c.Request.Context(), req.URL)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.URLRequest{URL: feedURL})
}

// UnfollowFeed takes the feed in the "url" query parameter.
func (a *API) UnfollowFeed(c *gin.Context) {
	feedURL := c.Query("url")
	if feedURL == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	if err := a.Feeds.UnfollowFeed(c.Request.Context(), feedURL); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) AggregatedFeed(c *gin.Context) {
	posts, refreshedAt := a.Feeds.Aggregated(c.Request.Context())
	c.JSON(http.StatusOK, aggregateResponse(posts, refreshedAt))
}

func (a *API) RefreshFeed(c *gin.Context) {
	posts, refreshedAt := a.Feeds.Refresh(c.Request.Context())
	c.JSON(http.StatusOK, aggregateResponse(posts, refreshedAt))
}

func aggregateResponse(posts []domain.Post, refreshedAt time.Time) api.AggregateResponse {
	resp := api.AggregateResponse{Posts: posts}
	if !refreshedAt.IsZero() {
		resp.RefreshedAt = refreshedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (a *API) ListFollowedBlogs(c *gin.Context) {
	blogs := a.Subscriptions.FollowedBlogs(c.Request.Context())
	out := make([]api.FollowedBlog, 0, len(blogs))
	for _, b := range blogs {
		out = append(out, api.FollowedBlog{TargetURL: b.TargetURL, WebhookURL: b.WebhookURL})
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) SubscribeBlog(c *gin.Context) {
	var req api.URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sub, err := a.Subscriptions.Subscribe(c.Request.Context(), req.URL)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.FollowedBlog{TargetURL: sub.TargetURL, WebhookURL: sub.WebhookURL})
}

func (a *API) UnfollowBlog(c *gin.Context) {
	blogURL := c.Query("url")
	if blogURL == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	removed, err := a.Subscriptions.UnfollowBlog(c.Request.Context(), blogURL)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !removed {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "blog is not followed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) VerifyBlog(c *gin.Context) {
	var req api.URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	alive, err := a.Feeds.VerifyBlog(c.Request.Context(), req.URL)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.VerifyResponse{URL: req.URL, Alive: alive})
}
