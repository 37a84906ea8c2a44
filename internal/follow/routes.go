package follow

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the relationship API on r. Every route requires an
// authenticated user; r is expected to carry server.RequireUser.
func RegisterRoutes(r gin.IRouter, h *Handler) {
	// Outgoing and incoming requests
	requests := r.Group("/follow/requests")
	{
		requests.POST("", h.SendRequest)
		requests.GET("", h.ListRequests)
		requests.DELETE("/:username", h.CancelRequest)
		requests.POST("/:username/accept", h.decide(ActionAccept))
		requests.POST("/:username/decline", h.decide(ActionDecline))
	}

	// Accepted edges
	r.DELETE("/follow/following/:username", h.Unfollow)
	r.DELETE("/follow/followers/:username", h.RemoveFollower)
	r.PUT("/follow/followers/:username/close-friend", h.SetCloseFriend)

	blocks := r.Group("/blocks")
	{
		blocks.GET("", h.ListBlocked)
		blocks.POST("", h.Block)
		blocks.DELETE("/:username", h.Unblock)
	}

	users := r.Group("/users/:username")
	{
		users.GET("/relationship", h.Relationship)
		users.GET("/followers", h.ListFollowers)
		users.GET("/following", h.ListFollowing)
		users.GET("/counts", h.Counts)
	}
}
