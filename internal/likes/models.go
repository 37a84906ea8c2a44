package likes

type LikeRequest struct {
	PostID string `json:"post_id" binding:"required"`
}

type CountResponse struct {
	PostID string `json:"post_id"`
	Count  int64  `json:"count"`
}

type LikedResponse struct {
	PostID string `json:"post_id"`
	Liked  bool   `json:"liked"`
}
