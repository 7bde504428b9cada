package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dfryer1193/gistblog/api"
	"github.com/dfryer1193/gistblog/blog/application"
	"github.com/dfryer1193/gistblog/blog/domain"
	"github.com/gin-gonic/gin"
)

const maxImportBytes = 10 << 20

func (a *API) GetPosts(c *gin.Context) {
	c.JSON(http.StatusOK, a.Store.PublishedPosts(c.Request.Context()))
}

// GetPost serves a published post by id. Drafts are not found.
func (a *API) GetPost(c *gin.Context) {
	postID := c.Param("postId")

	post, err := a.Store.PostByID(c.Request.Context(), postID)
	if err == nil && !post.IsPublished() {
		err = fmt.Errorf("post %s: %w", postID, domain.ErrPostNotFound)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (a *API) GetPostBySlug(c *gin.Context) {
	post, err := a.Store.PublishedPostBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (a *API) ListAllPosts(c *gin.Context) {
	c.JSON(http.StatusOK, a.Store.AllPosts(c.Request.Context()))
}

func (a *API) SavePost(c *gin.Context) {
	var req api.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	post, err := a.Store.SavePost(c.Request.Context(), req.Post())
	if err != nil {
		abortWithError(c, err)
		return
	}

	status := http.StatusOK
	if req.ID == "" {
		status = http.StatusCreated
	}
	c.JSON(status, post)
}

func (a *API) SaveMarkdownPost(c *gin.Context) {
	var req api.MarkdownPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	post, err := a.Store.SaveMarkdownPost(c.Request.Context(), a.Markdown, application.MarkdownPost{
		ID:         req.ID,
		Markdown:   req.Markdown,
		Status:     req.Status,
		Categories: req.Categories,
		Tags:       req.Tags,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	status := http.StatusOK
	if req.ID == "" {
		status = http.StatusCreated
	}
	c.JSON(status, post)
}

func (a *API) DeletePost(c *gin.Context) {
	if err := a.Store.DeletePost(c.Request.Context(), c.Param("postId")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) BulkDeletePosts(c *gin.Context) {
	var req api.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	deleted, err := a.Store.DeletePosts(c.Request.Context(), req.IDs)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.BulkDeleteResponse{Deleted: deleted})
}

// ImportPosts merges the posts of an XML document sent as the request body.
func (a *API) ImportPosts(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		badRequest(c, err)
		return
	}

	added, err := a.Store.AddPostsFromXML(c.Request.Context(), string(body))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ImportResponse{Added: added})
}

// NotifySubscribers re-sends a published post to every subscriber and reports each delivery.
func (a *API) NotifySubscribers(c *gin.Context) {
	ctx := c.Request.Context()

	post, err := a.Store.PostByID(ctx, c.Param("postId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !post.IsPublished() {
		abortWithError(c, fmt.Errorf("%w: only published posts can be sent", domain.ErrValidation))
		return
	}

	c.JSON(http.StatusOK, a.Subscriptions.NotifySubscribers(ctx, post))
}

func (a *API) Export(c *gin.Context) {
	text, err := a.Store.Export(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="blog.xml"`)
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(text))
}

func (a *API) CurrentRevision(c *gin.Context) {
	if a.Revisions == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "backend keeps no revisions"})
		return
	}

	revision, err := a.Revisions.Revision(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.RevisionResponse{Revision: revision})
}

// ExportRevision serves an earlier stored revision when the backend keeps history.
func (a *API) ExportRevision(c *gin.Context) {
	if a.Revisions == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "backend keeps no revisions"})
		return
	}

	revision, err := strconv.ParseInt(c.Param("revision"), 10, 64)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid revision: %w", err))
		return
	}

	text, err := a.Revisions.ReadRevision(c.Request.Context(), revision)
	if errors.Is(err, domain.ErrBlobNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="blog-r%d.xml"`, revision))
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(text))
}
