package activity

import domain "github.com/example/collab-task-board/domain/activity"

// RecentActivityRequest asks for the newest feed entries.
type RecentActivityRequest struct {
	Limit int `json:"limit,omitempty"`
}

// RecentActivityResponse is the resolved activity feed.
type RecentActivityResponse struct {
	Items []domain.FeedItem `json:"items"`
}
