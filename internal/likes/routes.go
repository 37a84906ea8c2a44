package likes

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the likes API on r, which must carry
// server.RequireUser.
func RegisterRoutes(r gin.IRouter, h *Handler) {
	r.POST("/likes", h.Like)
	r.DELETE("/likes/:post_id", h.Unlike)
	r.GET("/posts/:post_id/likes/count", h.Count)
	r.GET("/posts/:post_id/likes/me", h.IsLiked)
}
