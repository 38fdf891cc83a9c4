package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/collab-task-board/domain/task"
	"github.com/example/collab-task-board/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// BoardPort defines the board operations available to other modules.
type BoardPort interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (*task.Task, error)
	ListTasks(ctx context.Context) ([]task.Task, error)
	UpdateTask(ctx context.Context, req UpdateTaskRequest) (*task.Task, error)
	DeleteTask(ctx context.Context, actorID, taskID string) error
	SmartAssign(ctx context.Context, actorID, taskID string) (*task.Task, error)

	CreateUser(ctx context.Context, name, email, passwordHash string) (*user.User, error)
	FindUserByEmail(ctx context.Context, email string) (*user.User, error)
	GetUser(ctx context.Context, userID string) (*user.User, error)
	Workloads(ctx context.Context) ([]user.Workload, error)
	ResolveReferences(ctx context.Context, userIDs, taskIDs []string) (map[string]string, map[string]string, error)
}

// boardAdapter wraps ServiceContainer for type-safe cross-module communication.
type boardAdapter struct {
	container mono.ServiceContainer
}

// NewBoardAdapter creates a new adapter for board services.
// container is the ServiceContainer from the board module received via SetDependencyServiceContainer.
func NewBoardAdapter(container mono.ServiceContainer) BoardPort {
	if container == nil {
		panic("board adapter requires non-nil ServiceContainer")
	}
	return &boardAdapter{container: container}
}

// call invokes a board service, wrapping transport failures with its name.
func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s service call failed: %w", service, err)
	}
	return nil
}

// CreateTask creates a task via the create-task service.
func (a *boardAdapter) CreateTask(ctx context.Context, req CreateTaskRequest) (*task.Task, error) {
	var resp TaskResponse
	if err := call(ctx, a.container, "create-task", &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Failure.Err(); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

// ListTasks lists every task via the list-tasks service.
func (a *boardAdapter) ListTasks(ctx context.Context) ([]task.Task, error) {
	req := ListTasksRequest{}
	var resp ListTasksResponse
	if err := call(ctx, a.container, "list-tasks", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Tasks == nil {
		return []task.Task{}, nil
	}
	return resp.Tasks, nil
}

// UpdateTask applies a guarded update via the update-task service.
// A stale fingerprint is returned as *task.ConflictError.
func (a *boardAdapter) UpdateTask(ctx context.Context, req UpdateTaskRequest) (*task.Task, error) {
	var resp UpdateTaskResponse
	if err := call(ctx, a.container, "update-task", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Conflict != nil {
		return nil, &task.ConflictError{Current: resp.Conflict.Current, Patch: resp.Conflict.Patch}
	}
	if err := resp.Failure.Err(); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

// DeleteTask deletes a task via the delete-task service.
func (a *boardAdapter) DeleteTask(ctx context.Context, actorID, taskID string) error {
	req := DeleteTaskRequest{TaskID: taskID, ActorID: actorID}
	var resp DeleteTaskResponse
	if err := call(ctx, a.container, "delete-task", &req, &resp); err != nil {
		return err
	}
	return resp.Failure.Err()
}

// SmartAssign assigns a task via the smart-assign service.
func (a *boardAdapter) SmartAssign(ctx context.Context, actorID, taskID string) (*task.Task, error) {
	req := SmartAssignRequest{TaskID: taskID, ActorID: actorID}
	var resp TaskResponse
	if err := call(ctx, a.container, "smart-assign", &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Failure.Err(); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

// CreateUser stores a user via the create-user service.
func (a *boardAdapter) CreateUser(ctx context.Context, name, email, passwordHash string) (*user.User, error) {
	req := CreateUserRequest{Name: name, Email: email, PasswordHash: passwordHash}
	return a.userCall(ctx, "create-user", &req)
}

// FindUserByEmail looks a user up via the find-user-by-email service.
func (a *boardAdapter) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	req := FindUserByEmailRequest{Email: email}
	return a.userCall(ctx, "find-user-by-email", &req)
}

// GetUser looks a user up via the get-user service.
func (a *boardAdapter) GetUser(ctx context.Context, userID string) (*user.User, error) {
	req := GetUserRequest{UserID: userID}
	return a.userCall(ctx, "get-user", &req)
}

func (a *boardAdapter) userCall(ctx context.Context, service string, req any) (*user.User, error) {
	var resp UserResponse
	if err := call(ctx, a.container, service, req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Failure.Err(); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, user.ErrUserNotFound
	}
	return resp.User, nil
}

// Workloads lists user workloads via the list-workloads service.
func (a *boardAdapter) Workloads(ctx context.Context) ([]user.Workload, error) {
	req := ListWorkloadsRequest{}
	var resp ListWorkloadsResponse
	if err := call(ctx, a.container, "list-workloads", &req, &resp); err != nil {
		return nil, err
	}
	return resp.Workloads, nil
}

// ResolveReferences resolves user names and task titles via the resolve-references service.
func (a *boardAdapter) ResolveReferences(ctx context.Context, userIDs, taskIDs []string) (map[string]string, map[string]string, error) {
	req := ResolveReferencesRequest{UserIDs: userIDs, TaskIDs: taskIDs}
	var resp ResolveReferencesResponse
	if err := call(ctx, a.container, "resolve-references", &req, &resp); err != nil {
		return nil, nil, err
	}
	return resp.UserNames, resp.TaskTitles, nil
}

// Err rebuilds the domain error described by f, or nil when f is empty.
func (f Failure) Err() error {
	switch f.ErrorCode {
	case "":
		return nil
	case CodeUserNotFound:
		return user.ErrUserNotFound
	case CodeUserExists:
		return user.ErrUserExists
	}
	return task.ErrorFromCode(f.ErrorCode, f.Message)
}

// failureFor converts an expected domain error into a Failure.
func failureFor(err error) Failure {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		return Failure{ErrorCode: CodeUserNotFound, Message: err.Error()}
	case errors.Is(err, user.ErrUserExists):
		return Failure{ErrorCode: CodeUserExists, Message: err.Error()}
	}
	return Failure{ErrorCode: task.ErrorCode(err), Message: err.Error()}
}
