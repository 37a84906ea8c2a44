package follow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"socialgraph/internal/events"
	"socialgraph/internal/relation"
	"socialgraph/internal/server"
)

// EventPublisher enqueues action events after a successful mutation.
type EventPublisher interface {
	Publish(ctx context.Context, e events.ActionEvent) error
}

type Handler struct {
	svc    Service
	guard  *relation.Guard
	events EventPublisher
	logger *slog.Logger
}

func NewHandler(svc Service, guard *relation.Guard, publisher EventPublisher, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, guard: guard, events: publisher, logger: logger}
}

// publish is fire-and-forget: the edge change already happened and is not
// rolled back when the queue is unavailable.
func (h *Handler) publish(c *gin.Context, e events.ActionEvent) {
	if err := h.events.Publish(c.Request.Context(), e); err != nil {
		h.logger.Warn("Action event dropped after successful follow mutation",
			"actionType", e.ActionType,
			"edge_id", e.TargetEntityID,
			"error", err)
	}
}

func (h *Handler) SendRequest(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BadRequest(c, err)
		return
	}

	edge, err := h.svc.SendRequest(c.Request.Context(), server.CurrentUser(c), req.Username)
	if err != nil {
		server.Error(c, err)
		return
	}

	h.publish(c, events.FollowRequested(edge))
	c.JSON(http.StatusCreated, edge)
}

func (h *Handler) CancelRequest(c *gin.Context) {
	if err := h.svc.CancelRequest(c.Request.Context(), server.CurrentUser(c), c.Param("username")); err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (h *Handler) decide(action Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		edge, err := h.svc.Decide(c.Request.Context(), c.Param("username"), server.CurrentUser(c), action)
		if err != nil {
			server.Error(c, err)
			return
		}

		h.publish(c, events.FollowDecided(edge))
		c.JSON(http.StatusOK, edge)
	}
}

func (h *Handler) ListRequests(c *gin.Context) {
	username := server.CurrentUser(c)
	edges, err := h.svc.ListRequests(c.Request.Context(), username)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, EdgesResponse{Username: username, Edges: edges})
}

func (h *Handler) Unfollow(c *gin.Context) {
	if err := h.svc.Unfollow(c.Request.Context(), server.CurrentUser(c), c.Param("username")); err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (h *Handler) RemoveFollower(c *gin.Context) {
	if err := h.svc.RemoveFollower(c.Request.Context(), server.CurrentUser(c), c.Param("username")); err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// SetCloseFriend is called by the followed user about one of their followers.
func (h *Handler) SetCloseFriend(c *gin.Context) {
	var req CloseFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BadRequest(c, err)
		return
	}

	edge, err := h.svc.SetCloseFriend(c.Request.Context(), c.Param("username"), server.CurrentUser(c), *req.CloseFriend)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

func (h *Handler) Block(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BadRequest(c, err)
		return
	}

	edge, err := h.svc.Block(c.Request.Context(), server.CurrentUser(c), req.Username)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, edge)
}

func (h *Handler) Unblock(c *gin.Context) {
	if err := h.svc.Unblock(c.Request.Context(), server.CurrentUser(c), c.Param("username")); err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (h *Handler) ListBlocked(c *gin.Context) {
	blocks, err := h.svc.ListBlocked(c.Request.Context(), server.CurrentUser(c))
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, BlocksResponse{Blocks: blocks})
}

func (h *Handler) Relationship(c *gin.Context) {
	target := c.Param("username")
	view, err := h.svc.Relationship(c.Request.Context(), server.CurrentUser(c), target)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, newRelationshipResponse(target, view))
}

// authorizeProfile applies the profile visibility rules to user-scoped
// lists. A block is reported as not-found so it is not revealed.
func (h *Handler) authorizeProfile(c *gin.Context, owner string) bool {
	viewer := server.CurrentUser(c)
	if viewer == owner {
		return true
	}
	d, err := h.guard.CanViewProfile(c.Request.Context(), viewer, owner)
	if err != nil {
		server.Error(c, err)
		return false
	}
	if !d.Allowed {
		server.Error(c, fmt.Errorf("account %q: %w", owner, d.MaskedErr()))
		return false
	}
	return true
}

func (h *Handler) ListFollowers(c *gin.Context) {
	owner := c.Param("username")
	if !h.authorizeProfile(c, owner) {
		return
	}
	followers, err := h.svc.ListFollowers(c.Request.Context(), owner)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, FollowersResponse{Username: owner, Followers: followers})
}

func (h *Handler) ListFollowing(c *gin.Context) {
	owner := c.Param("username")
	if !h.authorizeProfile(c, owner) {
		return
	}
	edges, err := h.svc.ListFollowing(c.Request.Context(), owner)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, EdgesResponse{Username: owner, Edges: edges})
}

// Counts follows the same visibility rule as the edge lists.
func (h *Handler) Counts(c *gin.Context) {
	owner := c.Param("username")
	if !h.authorizeProfile(c, owner) {
		return
	}
	counts, err := h.svc.Counts(c.Request.Context(), owner)
	if err != nil {
		server.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
