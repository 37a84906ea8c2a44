package comments

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the comments API on r, which must carry
// server.RequireUser.
func RegisterRoutes(r gin.IRouter, h *Handler) {
	r.POST("/comments", h.Create)
	r.PATCH("/comments/:id", h.Update)
	r.DELETE("/comments/:id", h.Delete)
	r.GET("/posts/:post_id/comments", h.List)
}
