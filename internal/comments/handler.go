package comments

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"socialgraph/internal/server"
	"socialgraph/internal/social"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler { return &Handler{svc: svc} }

func commentID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		server.Error(c, fmt.Errorf("%w: comment id %q", social.ErrInvalidArgument, id))
		return "", false
	}
	return id, true
}

// POST /comments
func (h *Handler) Create(c *gin.Context) {
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BadRequest(c, err)
		return
	}

	comment, err := h.svc.Create(c.Request.Context(), server.CurrentUser(c), req)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// PATCH /comments/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := commentID(c)
	if !ok {
		return
	}
	var req UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BadRequest(c, err)
		return
	}

	comment, err := h.svc.Update(c.Request.Context(), server.CurrentUser(c), id, req.Body)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// DELETE /comments/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := commentID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), server.CurrentUser(c), id); err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// GET /posts/:post_id/comments
func (h *Handler) List(c *gin.Context) {
	postID := c.Param("post_id")
	comments, err := h.svc.ListByPost(c.Request.Context(), server.CurrentUser(c), postID)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, CommentsResponse{PostID: postID, Comments: comments})
}
