package notification

import "socialgraph/internal/social"

type InboxResponse struct {
	Username string             `json:"username"`
	Unseen   int64              `json:"unseen"`
	Items    []social.InboxItem `json:"items"`
}
