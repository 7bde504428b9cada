package rest

import (
	"context"
	"net/http"

	"github.com/dfryer1193/gistblog/api"
	"github.com/dfryer1193/gistblog/blog/application"
	"github.com/dfryer1193/gistblog/internal/rss"
	"github.com/gin-gonic/gin"
)

func (a *API) GetBlogInfo(c *gin.Context) {
	c.JSON(http.StatusOK, a.Store.BlogInfo(c.Request.Context()))
}

func (a *API) UpdateBlogInfo(c *gin.Context) {
	var update application.BlogInfoUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, err)
		return
	}

	info, err := a.Store.UpdateBlogInfo(c.Request.Context(), update)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (a *API) GetRSS(c *gin.Context) {
	ctx := c.Request.Context()

	out, err := a.RSS.Render(a.Store.BlogInfo(ctx), a.Store.PublishedPosts(ctx), a.now())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, rss.ContentType, out)
}

func (a *API) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, a.Store.Categories(c.Request.Context()))
}

func (a *API) GetTags(c *gin.Context) {
	c.JSON(http.StatusOK, a.Store.Tags(c.Request.Context()))
}

func (a *API) AddCategory(c *gin.Context) {
	a.addTerm(c, a.Store.AddCategory)
}

func (a *API) RenameCategory(c *gin.Context) {
	a.renameTerm(c, a.Store.RenameCategory)
}

func (a *API) DeleteCategory(c *gin.Context) {
	if err := a.Store.DeleteCategory(c.Request.Context(), c.Param("name")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) AddTag(c *gin.Context) {
	a.addTerm(c, a.Store.AddTag)
}

func (a *API) RenameTag(c *gin.Context) {
	a.renameTerm(c, a.Store.RenameTag)
}

func (a *API) DeleteTag(c *gin.Context) {
	if err := a.Store.DeleteTag(c.Request.Context(), c.Param("name")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) addTerm(c *gin.Context, add func(ctx context.Context, name string) (string, error)) {
	var req api.TermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	name, err := add(c.Request.Context(), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.TermResponse{Name: name})
}

func (a *API) renameTerm(c *gin.Context, rename func(ctx context.Context, from, to string) (string, error)) {
	var req api.TermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	name, err := rename(c.Request.Context(), c.Param("name"), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.TermResponse{Name: name})
}
