package board

import (
	"github.com/example/collab-task-board/domain/task"
	"github.com/example/collab-task-board/domain/user"
)

// Failure carries an expected domain outcome back to the caller.
// Code is one of the task.Code* constants or a user code below.
type Failure struct {
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// User error codes.
const (
	CodeUserNotFound = "user_not_found"
	CodeUserExists   = "user_exists"
)

// CreateTaskRequest is the request for creating a task.
type CreateTaskRequest struct {
	ActorID     string        `json:"actor_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Priority    task.Priority `json:"priority,omitempty"`
}

// TaskResponse carries a single task or a failure.
type TaskResponse struct {
	Failure
	Task *task.Task `json:"task,omitempty"`
}

// ListTasksRequest is the request for listing tasks.
type ListTasksRequest struct{}

// ListTasksResponse is the response for listing tasks.
type ListTasksResponse struct {
	Tasks  []task.Task `json:"tasks"`
	Cached bool        `json:"cached"`
}

// UpdateTaskRequest is the request for a guarded partial update.
type UpdateTaskRequest struct {
	TaskID   string           `json:"task_id"`
	ActorID  string           `json:"actor_id"`
	Patch    task.Patch       `json:"patch"`
	Expected task.Fingerprint `json:"expected"`
	Force    bool             `json:"force,omitempty"`
}

// UpdateTaskResponse carries the updated task, or the stored task and the
// rejected patch when the update conflicted.
type UpdateTaskResponse struct {
	Failure
	Task     *task.Task       `json:"task,omitempty"`
	Conflict *ConflictPayload `json:"conflict,omitempty"`
}

// ConflictPayload describes a rejected update.
type ConflictPayload struct {
	Current task.Task  `json:"current"`
	Patch   task.Patch `json:"patch"`
}

// DeleteTaskRequest is the request for deleting a task.
type DeleteTaskRequest struct {
	TaskID  string `json:"task_id"`
	ActorID string `json:"actor_id"`
}

// DeleteTaskResponse is the response for deleting a task.
type DeleteTaskResponse struct {
	Failure
	Deleted bool `json:"deleted"`
}

// SmartAssignRequest is the request for smart assignment.
type SmartAssignRequest struct {
	TaskID  string `json:"task_id"`
	ActorID string `json:"actor_id"`
}

// CreateUserRequest is the request for storing a new user.
type CreateUserRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

// FindUserByEmailRequest looks a user up by email.
type FindUserByEmailRequest struct {
	Email string `json:"email"`
}

// GetUserRequest looks a user up by id.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// UserResponse carries a single user or a failure.
type UserResponse struct {
	Failure
	User *user.User `json:"user,omitempty"`
}

// ListWorkloadsRequest is the request for listing user workloads.
type ListWorkloadsRequest struct{}

// ListWorkloadsResponse is the response for listing user workloads.
type ListWorkloadsResponse struct {
	Workloads []user.Workload `json:"workloads"`
}

// ResolveReferencesRequest asks for display names of users and tasks.
type ResolveReferencesRequest struct {
	UserIDs []string `json:"user_ids"`
	TaskIDs []string `json:"task_ids"`
}

// ResolveReferencesResponse maps ids to names and titles. Missing ids were not found.
type ResolveReferencesResponse struct {
	UserNames  map[string]string `json:"user_names"`
	TaskTitles map[string]string `json:"task_titles"`
}
