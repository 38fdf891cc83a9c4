package activity

import (
	"context"
	"log"
	"time"

	domain "github.com/example/collab-task-board/domain/activity"
	"github.com/google/uuid"
)

const (
	// DefaultFeedLimit is the number of entries returned when no limit is given.
	DefaultFeedLimit = 20
	// MaxFeedLimit caps a single feed query.
	MaxFeedLimit = 100
)

// Resolver maps user and task ids to display names.
type Resolver interface {
	ResolveReferences(ctx context.Context, userIDs, taskIDs []string) (map[string]string, map[string]string, error)
}

// Service records task activity and renders the feed.
type Service struct {
	repo         *Repository
	resolver     Resolver
	defaultLimit int
}

// NewService creates a new Service. A non-positive defaultLimit uses DefaultFeedLimit.
func NewService(repo *Repository, resolver Resolver, defaultLimit int) *Service {
	if defaultLimit <= 0 || defaultLimit > MaxFeedLimit {
		defaultLimit = DefaultFeedLimit
	}
	return &Service{
		repo:         repo,
		resolver:     resolver,
		defaultLimit: defaultLimit,
	}
}

// Record appends an entry for an action on a task.
func (s *Service) Record(ctx context.Context, userID, taskID, action string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.repo.Append(ctx, &domain.LogEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		TaskID:    taskID,
		Action:    action,
		Timestamp: at,
	})
}

// Recent returns the newest entries with their references resolved.
// Entries whose user or task no longer exists render with placeholders.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.FeedItem, error) {
	limit = s.clamp(limit)

	entries, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	names, titles := s.resolve(ctx, entries)

	items := make([]domain.FeedItem, 0, len(entries))
	for _, e := range entries {
		userName, ok := names[e.UserID]
		if !ok {
			userName = domain.UnknownUser
		}
		taskTitle, ok := titles[e.TaskID]
		if !ok {
			taskTitle = domain.UnknownTask
		}
		items = append(items, domain.FeedItem{
			ID:        e.ID,
			User:      domain.UserRef{ID: e.UserID, Name: userName},
			Task:      domain.TaskRef{ID: e.TaskID, Title: taskTitle},
			Action:    e.Action,
			Timestamp: e.Timestamp,
		})
	}
	return items, nil
}

func (s *Service) clamp(limit int) int {
	switch {
	case limit <= 0:
		return s.defaultLimit
	case limit > MaxFeedLimit:
		return MaxFeedLimit
	}
	return limit
}

func (s *Service) resolve(ctx context.Context, entries []domain.LogEntry) (map[string]string, map[string]string) {
	if len(entries) == 0 || s.resolver == nil {
		return nil, nil
	}

	userIDs := make([]string, 0, len(entries))
	taskIDs := make([]string, 0, len(entries))
	seenUsers := make(map[string]bool, len(entries))
	seenTasks := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !seenUsers[e.UserID] {
			seenUsers[e.UserID] = true
			userIDs = append(userIDs, e.UserID)
		}
		if !seenTasks[e.TaskID] {
			seenTasks[e.TaskID] = true
			taskIDs = append(taskIDs, e.TaskID)
		}
	}

	names, titles, err := s.resolver.ResolveReferences(ctx, userIDs, taskIDs)
	if err != nil {
		log.Printf("[activity] Warning: failed to resolve feed references: %v", err)
		return nil, nil
	}
	return names, titles
}
