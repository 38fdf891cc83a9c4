package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/example/collab-task-board/domain/activity"
	"github.com/example/collab-task-board/domain/task"
	"github.com/example/collab-task-board/domain/user"
	"github.com/example/collab-task-board/modules/auth"
	"github.com/example/collab-task-board/modules/board"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBoardPort implements board.BoardPort for testing
type mockBoardPort struct {
	createTaskFunc  func(ctx context.Context, req board.CreateTaskRequest) (*task.Task, error)
	listTasksFunc   func(ctx context.Context) ([]task.Task, error)
	updateTaskFunc  func(ctx context.Context, req board.UpdateTaskRequest) (*task.Task, error)
	deleteTaskFunc  func(ctx context.Context, actorID, taskID string) error
	smartAssignFunc func(ctx context.Context, actorID, taskID string) (*task.Task, error)
	getUserFunc     func(ctx context.Context, userID string) (*user.User, error)
	workloadsFunc   func(ctx context.Context) ([]user.Workload, error)
}

func (m *mockBoardPort) CreateTask(ctx context.Context, req board.CreateTaskRequest) (*task.Task, error) {
	if m.createTaskFunc != nil {
		return m.createTaskFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBoardPort) ListTasks(ctx context.Context) ([]task.Task, error) {
	if m.listTasksFunc != nil {
		return m.listTasksFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBoardPort) UpdateTask(ctx context.Context, req board.UpdateTaskRequest) (*task.Task, error) {
	if m.updateTaskFunc != nil {
		return m.updateTaskFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBoardPort) DeleteTask(ctx context.Context, actorID, taskID string) error {
	if m.deleteTaskFunc != nil {
		return m.deleteTaskFunc(ctx, actorID, taskID)
	}
	return errors.New("not implemented")
}

func (m *mockBoardPort) SmartAssign(ctx context.Context, actorID, taskID string) (*task.Task, error) {
	if m.smartAssignFunc != nil {
		return m.smartAssignFunc(ctx, actorID, taskID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBoardPort) CreateUser(context.Context, string, string, string) (*user.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBoardPort) FindUserByEmail(context.Context, string) (*user.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBoardPort) GetUser(ctx context.Context, userID string) (*user.User, error) {
	if m.getUserFunc != nil {
		return m.getUserFunc(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBoardPort) Workloads(ctx context.Context) ([]user.Workload, error) {
	if m.workloadsFunc != nil {
		return m.workloadsFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBoardPort) ResolveReferences(context.Context, []string, []string) (map[string]string, map[string]string, error) {
	return nil, nil, errors.New("not implemented")
}

// mockActivityPort implements activity.ActivityPort for testing
type mockActivityPort struct {
	recentFunc func(ctx context.Context, limit int) ([]domain.FeedItem, error)
}

func (m *mockActivityPort) Recent(ctx context.Context, limit int) ([]domain.FeedItem, error) {
	if m.recentFunc != nil {
		return m.recentFunc(ctx, limit)
	}
	return nil, errors.New("not implemented")
}

const testActor = "user-1"

func signedIn() *mockAuthPort {
	return &mockAuthPort{
		validateTokenFunc: func(ctx context.Context, token string) (*user.Session, error) {
			if token != "valid-token" {
				return nil, auth.ErrInvalidToken
			}
			return &user.Session{UserID: testActor, Email: "ada@example.com", Name: "Ada"}, nil
		},
	}
}

func newTestApp(authPort *mockAuthPort, boardPort *mockBoardPort, activityPort *mockActivityPort) *fiber.App {
	m := NewModule(0, "*", 20)
	m.authAdapter = authPort
	m.boardAdapter = boardPort
	m.activityAdapter = activityPort
	return m.newApp()
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer valid-token")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func sampleTask() task.Task {
	now := time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.UTC)
	assignee := "user-2"
	return task.Task{
		ID:          "task-1",
		Title:       "Write docs",
		Description: "Cover the API",
		Priority:    task.PriorityHigh,
		Status:      task.StatusInProgress,
		AssignedTo:  &assignee,
		Assignee:    &user.User{ID: assignee, Name: "Grace", Email: "grace@example.com", PasswordHash: "secret"},
		CreatedBy:   testActor,
		Version:     3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestListTasks_RendersAssignee(t *testing.T) {
	unassigned := sampleTask()
	unassigned.ID = "task-2"
	unassigned.AssignedTo = nil
	unassigned.Assignee = nil

	app := newTestApp(signedIn(), &mockBoardPort{
		listTasksFunc: func(ctx context.Context) ([]task.Task, error) {
			return []task.Task{sampleTask(), unassigned}, nil
		},
	}, &mockActivityPort{})

	resp, body := doJSON(t, app, "GET", "/api/tasks", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 2)

	assignee, ok := got[0]["assignedTo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Grace", assignee["name"])
	assert.Equal(t, "grace@example.com", assignee["email"])
	assert.NotContains(t, string(body), "secret")
	assert.Nil(t, got[1]["assignedTo"])
	assert.Equal(t, "In Progress", got[0]["status"])
}

func TestTaskRoutes_RequireAuth(t *testing.T) {
	app := newTestApp(signedIn(), &mockBoardPort{}, &mockActivityPort{})

	for _, path := range []string{"/api/tasks", "/api/logs", "/api/users"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestCreateTask(t *testing.T) {
	tests := []struct {
		name           string
		createErr      error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "created",
			expectedStatus: fiber.StatusCreated,
			expectedBody:   `"title":"Write docs"`,
		},
		{
			name:           "duplicate title",
			createErr:      task.ErrDuplicateTitle,
			expectedStatus: fiber.StatusBadRequest,
			expectedBody:   `"message":"Task title must be unique"`,
		},
		{
			name:           "validation error",
			createErr:      task.Invalid("title is required"),
			expectedStatus: fiber.StatusBadRequest,
			expectedBody:   `title is required`,
		},
		{
			name:           "internal error is not leaked",
			createErr:      errors.New("disk on fire"),
			expectedStatus: fiber.StatusInternalServerError,
			expectedBody:   `"error":"internal_error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen board.CreateTaskRequest
			app := newTestApp(signedIn(), &mockBoardPort{
				createTaskFunc: func(ctx context.Context, req board.CreateTaskRequest) (*task.Task, error) {
					seen = req
					if tt.createErr != nil {
						return nil, tt.createErr
					}
					created := sampleTask()
					return &created, nil
				},
			}, &mockActivityPort{})

			resp, body := doJSON(t, app, "POST", "/api/tasks", CreateTaskRequest{
				Title:       "Write docs",
				Description: "Cover the API",
			})

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Contains(t, string(body), tt.expectedBody)
			assert.NotContains(t, string(body), "disk on fire")
			assert.Equal(t, testActor, seen.ActorID)
		})
	}
}

func TestUpdateTask_PassesFingerprint(t *testing.T) {
	var seen board.UpdateTaskRequest
	app := newTestApp(signedIn(), &mockBoardPort{
		updateTaskFunc: func(ctx context.Context, req board.UpdateTaskRequest) (*task.Task, error) {
			seen = req
			updated := sampleTask()
			updated.Version = 4
			return &updated, nil
		},
	}, &mockActivityPort{})

	stamp := time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.UTC)
	resp, body := doJSON(t, app, "PUT", "/api/tasks/task-1", map[string]any{
		"status":    "Done",
		"updatedAt": stamp.Format(time.RFC3339Nano),
		"force":     true,
	})

	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "task-1", seen.TaskID)
	assert.Equal(t, testActor, seen.ActorID)
	assert.True(t, seen.Force)
	require.NotNil(t, seen.Patch.Status)
	assert.Equal(t, task.StatusDone, *seen.Patch.Status)
	assert.Nil(t, seen.Patch.Title)
	require.NotNil(t, seen.Expected.UpdatedAt)
	assert.True(t, stamp.Equal(*seen.Expected.UpdatedAt))
	assert.Nil(t, seen.Expected.Version)
}

func TestUpdateTask_Errors(t *testing.T) {
	title := "Rename"
	conflict := &task.ConflictError{Current: sampleTask(), Patch: task.Patch{Title: &title}}

	tests := []struct {
		name           string
		updateErr      error
		expectedStatus int
		expectedBody   []string
	}{
		{
			name:           "conflict carries both sides",
			updateErr:      conflict,
			expectedStatus: fiber.StatusConflict,
			expectedBody:   []string{`"message":"Conflict detected"`, `"serverTask":{"id":"task-1"`, `"userTask":{"title":"Rename"}`},
		},
		{
			name:           "missing task",
			updateErr:      task.ErrTaskNotFound,
			expectedStatus: fiber.StatusNotFound,
			expectedBody:   []string{`"Task not found"`},
		},
		{
			name:           "contention",
			updateErr:      task.ErrUpdateContention,
			expectedStatus: fiber.StatusConflict,
			expectedBody:   []string{`"error":"contention"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(signedIn(), &mockBoardPort{
				updateTaskFunc: func(ctx context.Context, req board.UpdateTaskRequest) (*task.Task, error) {
					return nil, tt.updateErr
				},
			}, &mockActivityPort{})

			resp, body := doJSON(t, app, "PUT", "/api/tasks/task-1", map[string]any{"title": "Rename", "version": 2})
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			for _, want := range tt.expectedBody {
				assert.Contains(t, string(body), want)
			}
		})
	}
}

func TestDeleteTask(t *testing.T) {
	tests := []struct {
		name           string
		deleteErr      error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "deleted by creator",
			expectedStatus: fiber.StatusOK,
			expectedBody:   `{"message":"Task deleted","id":"task-1"}`,
		},
		{
			name:           "not the creator",
			deleteErr:      task.ErrNotCreator,
			expectedStatus: fiber.StatusForbidden,
			expectedBody:   `{"message":"Not authorized to delete this task"}`,
		},
		{
			name:           "missing task",
			deleteErr:      task.ErrTaskNotFound,
			expectedStatus: fiber.StatusNotFound,
			expectedBody:   `"Task not found"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(signedIn(), &mockBoardPort{
				deleteTaskFunc: func(ctx context.Context, actorID, taskID string) error {
					if actorID != testActor || taskID != "task-1" {
						return errors.New("unexpected arguments")
					}
					return tt.deleteErr
				},
			}, &mockActivityPort{})

			resp, body := doJSON(t, app, "DELETE", "/api/tasks/task-1", nil)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Contains(t, string(body), tt.expectedBody)
		})
	}
}

func TestSmartAssign(t *testing.T) {
	t.Run("assigned", func(t *testing.T) {
		app := newTestApp(signedIn(), &mockBoardPort{
			smartAssignFunc: func(ctx context.Context, actorID, taskID string) (*task.Task, error) {
				assigned := sampleTask()
				return &assigned, nil
			},
		}, &mockActivityPort{})

		resp, body := doJSON(t, app, "PUT", "/api/tasks/task-1/smart-assign", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), `"name":"Grace"`)
	})

	t.Run("no users", func(t *testing.T) {
		app := newTestApp(signedIn(), &mockBoardPort{
			smartAssignFunc: func(ctx context.Context, actorID, taskID string) (*task.Task, error) {
				return nil, task.ErrNoEligibleAssignee
			},
		}, &mockActivityPort{})

		resp, body := doJSON(t, app, "PUT", "/api/tasks/task-1/smart-assign", nil)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, string(body), `"error":"no_eligible_assignee"`)
	})
}

func TestRecentLogs(t *testing.T) {
	var gotLimit int
	app := newTestApp(signedIn(), &mockBoardPort{}, &mockActivityPort{
		recentFunc: func(ctx context.Context, limit int) ([]domain.FeedItem, error) {
			gotLimit = limit
			return []domain.FeedItem{{
				ID:     "log-1",
				User:   domain.UserRef{ID: testActor, Name: "Ada"},
				Task:   domain.TaskRef{ID: "task-1", Title: domain.UnknownTask},
				Action: domain.ActionDeleted,
			}}, nil
		},
	})

	resp, body := doJSON(t, app, "GET", "/api/logs?limit=5", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, gotLimit)
	assert.Contains(t, string(body), `"userId":{"id":"user-1","name":"Ada"}`)
	assert.Contains(t, string(body), `"taskId":{"id":"task-1","title":"a task"}`)

	_, _ = doJSON(t, app, "GET", "/api/logs", nil)
	assert.Equal(t, 20, gotLimit)
}

func TestLogin(t *testing.T) {
	authPort := signedIn()
	authPort.loginFunc = func(ctx context.Context, email, password string) (*auth.Login, error) {
		if password != "correct-horse" {
			return nil, auth.ErrInvalidCredentials
		}
		return &auth.Login{
			Tokens:  &user.TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 900, TokenType: "Bearer"},
			Session: user.Session{UserID: testActor, Email: email, Name: "Ada"},
		}, nil
	}
	app := newTestApp(authPort, &mockBoardPort{}, &mockActivityPort{})

	resp, body := doJSON(t, app, "POST", "/api/users/login", LoginRequest{Email: "ada@example.com", Password: "correct-horse"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got LoginResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "access", got.Token)
	assert.Equal(t, "refresh", got.RefreshToken)
	assert.Equal(t, MemberResponse{ID: testActor, Name: "Ada", Email: "ada@example.com"}, got.User)

	resp, _ = doJSON(t, app, "POST", "/api/users/login", LoginRequest{Email: "ada@example.com", Password: "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name           string
		registerErr    error
		expectedStatus int
	}{
		{name: "created", expectedStatus: fiber.StatusCreated},
		{name: "duplicate email", registerErr: user.ErrUserExists, expectedStatus: fiber.StatusConflict},
		{name: "weak password", registerErr: &auth.InputError{Message: "password too short"}, expectedStatus: fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authPort := signedIn()
			authPort.registerFunc = func(ctx context.Context, name, email, password string) (*auth.Member, error) {
				if tt.registerErr != nil {
					return nil, tt.registerErr
				}
				return &auth.Member{ID: "user-9", Name: name, Email: email}, nil
			}
			app := newTestApp(authPort, &mockBoardPort{}, &mockActivityPort{})

			resp, _ := doJSON(t, app, "POST", "/api/users/register", RegisterRequest{
				Name: "Ada", Email: "ada@example.com", Password: "correct-horse",
			})
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestListUsers_IncludesLoad(t *testing.T) {
	app := newTestApp(signedIn(), &mockBoardPort{
		workloadsFunc: func(ctx context.Context) ([]user.Workload, error) {
			return []user.Workload{
				{User: user.User{ID: "user-1", Name: "Ada", Email: "ada@example.com"}, ActiveTasks: 2},
				{User: user.User{ID: "user-2", Name: "Grace", Email: "grace@example.com"}, ActiveTasks: 0},
			}, nil
		},
	}, &mockActivityPort{})

	resp, body := doJSON(t, app, "GET", "/api/users", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got []WorkloadResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ActiveTasks)
	assert.Equal(t, "Grace", got[1].Name)
}
