package notification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"socialgraph/internal/server"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			server.BadRequest(c, err)
			return
		}
		limit = n
	}

	resp, err := h.svc.List(c.Request.Context(), server.CurrentUser(c), limit)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) MarkSeen(c *gin.Context) {
	if err := h.svc.MarkSeen(c.Request.Context(), server.CurrentUser(c), c.Param("id")); err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// RegisterRoutes mounts the inbox on r, which must carry server.RequireUser.
func RegisterRoutes(r gin.IRouter, h *Handler) {
	g := r.Group("/notifications")
	g.GET("", h.List)
	g.POST("/:id/seen", h.MarkSeen)
}
