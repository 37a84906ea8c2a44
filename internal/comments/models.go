package comments

import "socialgraph/internal/social"

type CreateCommentRequest struct {
	PostID string `json:"post_id" binding:"required"`
	Body   string `json:"body" binding:"required,max=2200"`
}

type UpdateCommentRequest struct {
	Body string `json:"body" binding:"required,max=2200"`
}

type CommentsResponse struct {
	PostID   string           `json:"post_id"`
	Comments []social.Comment `json:"comments"`
}
