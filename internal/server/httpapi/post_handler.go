package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createPostRequest struct {
	Author  string `json:"author" binding:"required,notblank"`
	Content string `json:"content" binding:"required,notblank"`
}

type updatePostRequest struct {
	Content string `json:"content" binding:"required,notblank"`
	// Zero skips the version check.
	Version int64 `json:"version" binding:"min=0"`
}

// validID reports whether id can be a record key. Malformed ids never match
// a row, so they are answered without touching the database.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	post, err := h.posts.Create(c.Request.Context(), UserIDFromContext(c), req.Author, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) UpdatePost(c *gin.Context) {
	id := c.Param("id")
	if !validID(id) {
		h.writeError(c, common.ErrorNotFound)
		return
	}
	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	post, err := h.posts.Update(c.Request.Context(), UserIDFromContext(c), id, req.Content, req.Version)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) DeletePost(c *gin.Context) {
	id := c.Param("id")
	if !validID(id) {
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.posts.Delete(c.Request.Context(), UserIDFromContext(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
