package api

import (
	"time"

	domain "github.com/example/collab-task-board/domain/activity"
	"github.com/example/collab-task-board/domain/task"
	"github.com/example/collab-task-board/domain/user"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageResponse is a bare acknowledgement or rejection.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// MemberResponse is the public view of a user.
type MemberResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TaskResponse is a task as rendered on the board.
type TaskResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    task.Priority   `json:"priority"`
	Status      task.Status     `json:"status"`
	AssignedTo  *MemberResponse `json:"assignedTo"`
	CreatedBy   string          `json:"createdBy"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Priority    task.Priority `json:"priority"`
}

// UpdateTaskRequest is the body of PUT /api/tasks/:id. Either fingerprint
// may be sent; version wins when both are present.
type UpdateTaskRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Priority    *task.Priority `json:"priority"`
	Status      *task.Status   `json:"status"`
	UpdatedAt   *time.Time     `json:"updatedAt"`
	Version     *int64         `json:"version"`
	Force       bool           `json:"force"`
}

// ConflictResponse is returned with 409 when an update was based on a stale task.
type ConflictResponse struct {
	Message    string       `json:"message"`
	ServerTask TaskResponse `json:"serverTask"`
	UserTask   task.Patch   `json:"userTask"`
}

// DeleteTaskResponse acknowledges a deletion.
type DeleteTaskResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LoginResponse carries a token pair and the member it was issued to.
type LoginResponse struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
	ExpiresIn    int64          `json:"expiresIn"`
	TokenType    string         `json:"tokenType"`
	User         MemberResponse `json:"user"`
}

// WorkloadResponse is a member with their count of open assigned tasks.
type WorkloadResponse struct {
	MemberResponse
	ActiveTasks int64 `json:"activeTasks"`
}

// InboundSignal is a frame sent by a realtime client after it changed the board.
type InboundSignal struct {
	Event  string `json:"event"`
	TaskID string `json:"taskId,omitempty"`
}

func (r UpdateTaskRequest) patch() task.Patch {
	return task.Patch{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      r.Status,
	}
}

func (r UpdateTaskRequest) fingerprint() task.Fingerprint {
	return task.Fingerprint{Version: r.Version, UpdatedAt: r.UpdatedAt}
}

func toTaskResponse(t task.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		CreatedBy:   t.CreatedBy,
		Version:     t.Version,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Assignee != nil {
		member := toMember(*t.Assignee)
		resp.AssignedTo = &member
	} else if t.AssignedTo != nil {
		resp.AssignedTo = &MemberResponse{ID: *t.AssignedTo}
	}
	return resp
}

func toTaskResponses(tasks []task.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	return out
}

func toMember(u user.User) MemberResponse {
	return MemberResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

func feedOrEmpty(items []domain.FeedItem) []domain.FeedItem {
	if items == nil {
		return []domain.FeedItem{}
	}
	return items
}
