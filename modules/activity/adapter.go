package activity

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/collab-task-board/domain/activity"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ActivityPort defines the activity feed operations available to other modules.
type ActivityPort interface {
	Recent(ctx context.Context, limit int) ([]domain.FeedItem, error)
}

type activityAdapter struct {
	container mono.ServiceContainer
}

// NewActivityAdapter creates a new adapter for activity services.
func NewActivityAdapter(container mono.ServiceContainer) ActivityPort {
	if container == nil {
		panic("activity adapter requires non-nil ServiceContainer")
	}
	return &activityAdapter{container: container}
}

// Recent fetches the feed via the recent-activity service.
func (a *activityAdapter) Recent(ctx context.Context, limit int) ([]domain.FeedItem, error) {
	req := RecentActivityRequest{Limit: limit}
	var resp RecentActivityResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"recent-activity",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("recent-activity service call failed: %w", err)
	}
	if resp.Items == nil {
		return []domain.FeedItem{}, nil
	}
	return resp.Items, nil
}
