package likes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"socialgraph/internal/server"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler { return &Handler{svc: svc} }

// POST /likes  {post_id}
func (h *Handler) Like(c *gin.Context) {
	var req LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BadRequest(c, err)
		return
	}
	like, created, err := h.svc.Like(c.Request.Context(), server.CurrentUser(c), req.PostID)
	if err != nil {
		server.Error(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, like)
}

// DELETE /likes/:post_id
func (h *Handler) Unlike(c *gin.Context) {
	if err := h.svc.Unlike(c.Request.Context(), server.CurrentUser(c), c.Param("post_id")); err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// GET /posts/:post_id/likes/count
func (h *Handler) Count(c *gin.Context) {
	postID := c.Param("post_id")
	cnt, err := h.svc.Count(c.Request.Context(), server.CurrentUser(c), postID)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{PostID: postID, Count: cnt})
}

// GET /posts/:post_id/likes/me
func (h *Handler) IsLiked(c *gin.Context) {
	postID := c.Param("post_id")
	ok, err := h.svc.IsLiked(c.Request.Context(), server.CurrentUser(c), postID)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, LikedResponse{PostID: postID, Liked: ok})
}
