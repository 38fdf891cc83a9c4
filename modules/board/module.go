package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/collab-task-board/domain/task"
	"github.com/example/collab-task-board/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/gorm"
)

// BoardModule owns tasks and users and serves every task mutation.
type BoardModule struct {
	db       *gorm.DB
	service  *Service
	cache    ListCache
	eventBus mono.EventBus
	dbPath   string
	debug    bool
	timeout  time.Duration
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*BoardModule)(nil)
	_ mono.ServiceProviderModule = (*BoardModule)(nil)
	_ mono.EventBusAwareModule   = (*BoardModule)(nil)
	_ mono.EventEmitterModule    = (*BoardModule)(nil)
	_ mono.HealthCheckableModule = (*BoardModule)(nil)
)

// NewModule creates a new BoardModule backed by the SQLite file at dbPath.
func NewModule(dbPath string, debug bool, timeout time.Duration) *BoardModule {
	return &BoardModule{
		dbPath:  dbPath,
		debug:   debug,
		timeout: timeout,
	}
}

// Name returns the module name.
func (m *BoardModule) Name() string {
	return "board"
}

// SetCache enables caching of the task list. It must be called before Start.
func (m *BoardModule) SetCache(cache ListCache) {
	m.cache = cache
}

// SetEventBus is called by the framework to inject the event bus.
func (m *BoardModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module publishes.
func (m *BoardModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TaskActivityV1.ToBase(),
	}
}

// PublishActivity publishes a task activity record on the event bus.
func (m *BoardModule) PublishActivity(event events.TaskActivityEvent) error {
	if m.eventBus == nil {
		return fmt.Errorf("event bus not set")
	}
	return events.TaskActivityV1.Publish(m.eventBus, event, nil)
}

// Start opens the database and builds the service.
func (m *BoardModule) Start(_ context.Context) error {
	db, err := OpenDatabase(m.dbPath, m.debug)
	if err != nil {
		return err
	}
	m.db = db

	m.service = NewService(NewRepository(db), m, m.timeout)
	if m.cache != nil {
		m.service.SetCache(m.cache)
	}

	if m.eventBus == nil {
		log.Println("[board] Warning: eventBus not set, activity will not be recorded")
	}
	log.Printf("[board] Module started (database: %s, cache: %t)", m.dbPath, m.cache != nil)
	return nil
}

// Stop closes the database.
func (m *BoardModule) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[board] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *BoardModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.dbPath,
			"cache":    m.cache != nil,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *BoardModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "create-task", json.Unmarshal, json.Marshal, m.createTask,
	); err != nil {
		return fmt.Errorf("failed to register create-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-tasks", json.Unmarshal, json.Marshal, m.listTasks,
	); err != nil {
		return fmt.Errorf("failed to register list-tasks service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update-task", json.Unmarshal, json.Marshal, m.updateTask,
	); err != nil {
		return fmt.Errorf("failed to register update-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "delete-task", json.Unmarshal, json.Marshal, m.deleteTask,
	); err != nil {
		return fmt.Errorf("failed to register delete-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "smart-assign", json.Unmarshal, json.Marshal, m.smartAssign,
	); err != nil {
		return fmt.Errorf("failed to register smart-assign service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "create-user", json.Unmarshal, json.Marshal, m.createUser,
	); err != nil {
		return fmt.Errorf("failed to register create-user service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "find-user-by-email", json.Unmarshal, json.Marshal, m.findUserByEmail,
	); err != nil {
		return fmt.Errorf("failed to register find-user-by-email service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-user", json.Unmarshal, json.Marshal, m.getUser,
	); err != nil {
		return fmt.Errorf("failed to register get-user service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-workloads", json.Unmarshal, json.Marshal, m.listWorkloads,
	); err != nil {
		return fmt.Errorf("failed to register list-workloads service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "resolve-references", json.Unmarshal, json.Marshal, m.resolveReferences,
	); err != nil {
		return fmt.Errorf("failed to register resolve-references service: %w", err)
	}

	log.Printf("[board] Registered services: create-task, list-tasks, update-task, delete-task, smart-assign, " +
		"create-user, find-user-by-email, get-user, list-workloads, resolve-references")
	return nil
}

func (m *BoardModule) createTask(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.service.CreateTask(ctx, CreateInput{
		ActorID:     req.ActorID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		if isExpected(err) {
			return TaskResponse{Failure: failureFor(err)}, nil
		}
		return TaskResponse{}, internalError("create-task", err)
	}
	return TaskResponse{Task: t}, nil
}

func (m *BoardModule) listTasks(ctx context.Context, _ ListTasksRequest, _ *mono.Msg) (ListTasksResponse, error) {
	tasks, cached, err := m.service.ListTasks(ctx)
	if err != nil {
		return ListTasksResponse{}, internalError("list-tasks", err)
	}
	return ListTasksResponse{Tasks: tasks, Cached: cached}, nil
}

func (m *BoardModule) updateTask(ctx context.Context, req UpdateTaskRequest, _ *mono.Msg) (UpdateTaskResponse, error) {
	t, err := m.service.UpdateTask(ctx, UpdateInput{
		TaskID:   req.TaskID,
		ActorID:  req.ActorID,
		Patch:    req.Patch,
		Expected: req.Expected,
		Force:    req.Force,
	})
	if err != nil {
		var conflict *task.ConflictError
		if errors.As(err, &conflict) {
			return UpdateTaskResponse{
				Failure:  failureFor(err),
				Conflict: &ConflictPayload{Current: conflict.Current, Patch: conflict.Patch},
			}, nil
		}
		if isExpected(err) {
			return UpdateTaskResponse{Failure: failureFor(err)}, nil
		}
		return UpdateTaskResponse{}, internalError("update-task", err)
	}
	return UpdateTaskResponse{Task: t}, nil
}

func (m *BoardModule) deleteTask(ctx context.Context, req DeleteTaskRequest, _ *mono.Msg) (DeleteTaskResponse, error) {
	if err := m.service.DeleteTask(ctx, req.ActorID, req.TaskID); err != nil {
		if isExpected(err) {
			return DeleteTaskResponse{Failure: failureFor(err)}, nil
		}
		return DeleteTaskResponse{}, internalError("delete-task", err)
	}
	return DeleteTaskResponse{Deleted: true}, nil
}

func (m *BoardModule) smartAssign(ctx context.Context, req SmartAssignRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.service.SmartAssign(ctx, req.ActorID, req.TaskID)
	if err != nil {
		if isExpected(err) {
			return TaskResponse{Failure: failureFor(err)}, nil
		}
		return TaskResponse{}, internalError("smart-assign", err)
	}
	return TaskResponse{Task: t}, nil
}

func (m *BoardModule) createUser(ctx context.Context, req CreateUserRequest, _ *mono.Msg) (UserResponse, error) {
	u, err := m.service.RegisterUser(ctx, req.Name, req.Email, req.PasswordHash)
	if err != nil {
		if isExpected(err) {
			return UserResponse{Failure: failureFor(err)}, nil
		}
		return UserResponse{}, internalError("create-user", err)
	}
	return UserResponse{User: u}, nil
}

func (m *BoardModule) findUserByEmail(ctx context.Context, req FindUserByEmailRequest, _ *mono.Msg) (UserResponse, error) {
	u, err := m.service.FindUserByEmail(ctx, req.Email)
	if err != nil {
		if isExpected(err) {
			return UserResponse{Failure: failureFor(err)}, nil
		}
		return UserResponse{}, internalError("find-user-by-email", err)
	}
	return UserResponse{User: u}, nil
}

func (m *BoardModule) getUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (UserResponse, error) {
	u, err := m.service.FindUserByID(ctx, req.UserID)
	if err != nil {
		if isExpected(err) {
			return UserResponse{Failure: failureFor(err)}, nil
		}
		return UserResponse{}, internalError("get-user", err)
	}
	u.PasswordHash = ""
	return UserResponse{User: u}, nil
}

func (m *BoardModule) listWorkloads(ctx context.Context, _ ListWorkloadsRequest, _ *mono.Msg) (ListWorkloadsResponse, error) {
	workloads, err := m.service.Workloads(ctx)
	if err != nil {
		return ListWorkloadsResponse{}, internalError("list-workloads", err)
	}
	for i := range workloads {
		workloads[i].User.PasswordHash = ""
	}
	return ListWorkloadsResponse{Workloads: workloads}, nil
}

func (m *BoardModule) resolveReferences(ctx context.Context, req ResolveReferencesRequest, _ *mono.Msg) (ResolveReferencesResponse, error) {
	names, titles, err := m.service.ResolveReferences(ctx, req.UserIDs, req.TaskIDs)
	if err != nil {
		return ResolveReferencesResponse{}, internalError("resolve-references", err)
	}
	return ResolveReferencesResponse{UserNames: names, TaskTitles: titles}, nil
}
