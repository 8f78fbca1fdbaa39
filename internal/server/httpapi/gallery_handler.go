package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/gin-gonic/gin"
)

// beginGalleryRequest has no author: the server takes it from the account.
type beginGalleryRequest struct {
	Title       string `json:"title" binding:"required,notblank"`
	Description string `json:"description"`
}

type uploadRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

type attachRequest struct {
	ObjectName string `json:"object_name" binding:"required"`
}

func (h *Handler) ListGallery(c *gin.Context) {
	items, err := h.gallery.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) BeginGallery(c *gin.Context) {
	var req beginGalleryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	g, err := h.gallery.Begin(c.Request.Context(), UserIDFromContext(c), req.Title, req.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *Handler) RequestUpload(c *gin.Context) {
	id := c.Param("id")
	if !validID(id) {
		h.writeError(c, common.ErrorNotFound)
		return
	}
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ticket, err := h.gallery.RequestUpload(c.Request.Context(), UserIDFromContext(c), id, req.FileName, req.ContentType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *Handler) AttachImage(c *gin.Context) {
	id := c.Param("id")
	if !validID(id) {
		h.writeError(c, common.ErrorNotFound)
		return
	}
	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	g, err := h.gallery.Attach(c.Request.Context(), UserIDFromContext(c), id, req.ObjectName)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) FinalizeGallery(c *gin.Context) {
	id := c.Param("id")
	if !validID(id) {
		h.writeError(c, common.ErrorNotFound)
		return
	}
	g, err := h.gallery.Finalize(c.Request.Context(), UserIDFromContext(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) DeleteGallery(c *gin.Context) {
	id := c.Param("id")
	if !validID(id) {
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.gallery.Delete(c.Request.Context(), UserIDFromContext(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
