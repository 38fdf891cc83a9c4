package board

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/collab-task-board/domain/activity"
	"github.com/example/collab-task-board/domain/task"
	"github.com/example/collab-task-board/domain/user"
	"github.com/example/collab-task-board/events"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	tasksCacheKey      = "tasks"
	tasksGenerationKey = "tasks:generation"
	maxUpdateAttempts  = 3
)

// ActivityPublisher receives a record of every committed task mutation.
type ActivityPublisher interface {
	PublishActivity(event events.TaskActivityEvent) error
}

// ListCache is a cache-aside store for the task list snapshot.
//
// Snapshots are keyed by a generation counter that every committed mutation
// increments, so a load that raced a mutation can only fill a key no reader
// will ask for again.
type ListCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// CreateInput holds the caller supplied fields of a new task.
type CreateInput struct {
	ActorID     string
	Title       string
	Description string
	Priority    task.Priority
}

// UpdateInput is a partial update guarded by the fingerprint the caller last saw.
type UpdateInput struct {
	TaskID   string
	ActorID  string
	Patch    task.Patch
	Expected task.Fingerprint
	Force    bool
}

// Service implements task mutations, smart assignment and user lookups.
type Service struct {
	repo     *Repository
	activity ActivityPublisher
	cache    ListCache
	sfGroup  singleflight.Group // coalesces concurrent task list loads
	timeout  time.Duration
	now      func() time.Time
}

// NewService creates a new Service. A non-positive timeout disables the
// per-operation store deadline.
func NewService(repo *Repository, activity ActivityPublisher, timeout time.Duration) *Service {
	return &Service{
		repo:     repo,
		activity: activity,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetCache enables caching of the task list.
func (s *Service) SetCache(cache ListCache) {
	s.cache = cache
}

// CreateTask creates a task in the Todo column owned by the actor.
func (s *Service) CreateTask(ctx context.Context, in CreateInput) (*task.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, task.Invalid("title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, task.Invalid("description is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = task.PriorityMedium
	}
	if !priority.Valid() {
		return nil, task.Invalid("priority must be one of Low, Medium, High")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	t := &task.Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: in.Description,
		Priority:    priority,
		Status:      task.StatusTodo,
		CreatedBy:   in.ActorID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateTask(ctx, t); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, t.ID, in.ActorID, activity.ActionCreated)
	return t, nil
}

// ListTasks returns every task with its assignee. The boolean reports a cache hit.
func (s *Service) ListTasks(ctx context.Context) ([]task.Task, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := tasksCacheKey
	cacheable := false
	if s.cache != nil {
		generation, err := s.cache.Counter(ctx, tasksGenerationKey)
		if err != nil {
			log.Printf("[board] Cache error for task list generation: %v", err)
		} else {
			key = snapshotKey(generation)
			cacheable = true
		}
	}

	if cacheable {
		var cached []task.Task
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Printf("[board] Cache error for task list: %v", err)
		}
		if found {
			return cached, true, nil
		}
	}

	val, err, _ := s.sfGroup.Do(key, func() (any, error) {
		return s.loadTasks(ctx)
	})
	if err != nil {
		return nil, false, err
	}
	tasks, _ := val.([]task.Task)

	if cacheable {
		if err := s.cache.Set(ctx, key, tasks); err != nil {
			log.Printf("[board] Warning: failed to cache task list: %v", err)
		}
	}
	return tasks, false, nil
}

// loadTasks reads the task list for every caller coalesced behind one load,
// so it is bounded by the store timeout rather than by the first caller.
func (s *Service) loadTasks(ctx context.Context) ([]task.Task, error) {
	ctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	return s.repo.ListTasks(ctx)
}

func snapshotKey(generation int64) string {
	return fmt.Sprintf("%s:%d", tasksCacheKey, generation)
}

// GetTask returns a single task with its assignee.
func (s *Service) GetTask(ctx context.Context, id string) (*task.Task, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.FindTask(ctx, id)
}

// UpdateTask merges the patch into the task.
//
// When the caller's fingerprint is stale and Force is false the update fails
// with a *task.ConflictError carrying the stored task. The write itself is a
// compare-and-swap on the version the check was made against; losing the
// swap re-runs the check against the fresh row.
func (s *Service) UpdateTask(ctx context.Context, in UpdateInput) (*task.Task, error) {
	if err := in.Patch.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := s.repo.FindTask(ctx, in.TaskID)
		if err != nil {
			return nil, err
		}
		if !in.Force && in.Expected.Stale(current) {
			return nil, &task.ConflictError{Current: *current, Patch: in.Patch}
		}

		ok, err := s.repo.UpdateTaskIfVersion(ctx, in.TaskID, current.Version, in.Patch.Columns(), s.now())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		updated, err := s.repo.FindTask(ctx, in.TaskID)
		if err != nil {
			return nil, err
		}
		s.afterMutation(ctx, updated.ID, in.ActorID, activity.ActionUpdated)
		return updated, nil
	}

	log.Printf("[board] Update of task %s lost %d consecutive version races", in.TaskID, maxUpdateAttempts)
	return nil, task.ErrUpdateContention
}

// DeleteTask removes a task. Only its creator may delete it.
func (s *Service) DeleteTask(ctx context.Context, actorID, taskID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.repo.DeleteTaskByCreator(ctx, taskID, actorID); err != nil {
		return err
	}
	s.afterMutation(ctx, taskID, actorID, activity.ActionDeleted)
	return nil
}

// SmartAssign assigns the task to the user with the fewest Todo and
// In Progress tasks, ties going to the lowest user id.
func (s *Service) SmartAssign(ctx context.Context, actorID, taskID string) (*task.Task, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	assigned, err := s.repo.AssignLeastLoaded(ctx, taskID, s.now())
	if err != nil {
		return nil, err
	}

	name := activity.UnknownUser
	if assigned.Assignee != nil {
		name = assigned.Assignee.Name
	}
	s.afterMutation(ctx, assigned.ID, actorID, activity.SmartAssigned(name))
	return assigned, nil
}

// RegisterUser stores a new board member.
func (s *Service) RegisterUser(ctx context.Context, name, email, passwordHash string) (*user.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	u := &user.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// FindUserByEmail looks a user up by email, including credential material.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// FindUserByID looks a user up by id.
func (s *Service) FindUserByID(ctx context.Context, id string) (*user.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.FindUserByID(ctx, id)
}

// Workloads lists every user with their active task count.
func (s *Service) Workloads(ctx context.Context) ([]user.Workload, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.Workloads(ctx)
}

// ResolveReferences maps user ids to names and task ids to titles.
// Ids that no longer exist are absent from the result.
func (s *Service) ResolveReferences(ctx context.Context, userIDs, taskIDs []string) (map[string]string, map[string]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	users, err := s.repo.UsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.repo.TasksByIDs(ctx, taskIDs)
	if err != nil {
		return nil, nil, err
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	titles := make(map[string]string, len(tasks))
	for _, t := range tasks {
		titles[t.ID] = t.Title
	}
	return names, titles, nil
}

// afterMutation invalidates the list cache and publishes the activity record.
// Neither step can fail the mutation that already committed.
func (s *Service) afterMutation(ctx context.Context, taskID, actorID, action string) {
	if s.cache != nil {
		s.invalidateList(ctx)
	}

	if s.activity == nil {
		return
	}
	event := events.TaskActivityEvent{
		TaskID:     taskID,
		UserID:     actorID,
		Action:     action,
		OccurredAt: s.now(),
	}
	if err := s.activity.PublishActivity(event); err != nil {
		log.Printf("[board] Warning: failed to publish activity %q for task %s: %v", action, taskID, err)
	}
}

// invalidateList moves readers to a fresh snapshot generation and drops the
// previous snapshot.
func (s *Service) invalidateList(ctx context.Context) {
	generation, err := s.cache.Incr(ctx, tasksGenerationKey)
	if err != nil {
		log.Printf("[board] Warning: failed to invalidate task list cache: %v", err)
		return
	}
	if err := s.cache.Delete(ctx, snapshotKey(generation-1)); err != nil {
		log.Printf("[board] Warning: failed to drop stale task list snapshot: %v", err)
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// isExpected reports whether err is a domain outcome rather than a failure.
func isExpected(err error) bool {
	return task.ErrorCode(err) != "" ||
		errors.Is(err, user.ErrUserNotFound) ||
		errors.Is(err, user.ErrUserExists)
}

// internalError hides store details from callers while keeping them in the log.
func internalError(op string, err error) error {
	log.Printf("[board] %s failed: %v", op, err)
	return fmt.Errorf("%s failed", op)
}
