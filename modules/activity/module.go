package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/collab-task-board/events"
	"github.com/example/collab-task-board/modules/board"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/gorm"
)

// ActivityModule records task activity and serves the activity feed.
type ActivityModule struct {
	db        *gorm.DB
	service   *Service
	boardPort board.BoardPort
	dbPath    string
	debug     bool
	feedLimit int
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*ActivityModule)(nil)
	_ mono.ServiceProviderModule = (*ActivityModule)(nil)
	_ mono.DependentModule       = (*ActivityModule)(nil)
	_ mono.EventConsumerModule   = (*ActivityModule)(nil)
	_ mono.HealthCheckableModule = (*ActivityModule)(nil)
)

// NewModule creates a new ActivityModule backed by the SQLite file at dbPath.
func NewModule(dbPath string, debug bool, feedLimit int) *ActivityModule {
	return &ActivityModule{
		dbPath:    dbPath,
		debug:     debug,
		feedLimit: feedLimit,
	}
}

// Name returns the module name.
func (m *ActivityModule) Name() string {
	return "activity"
}

// Dependencies returns the modules this module depends on.
func (m *ActivityModule) Dependencies() []string {
	return []string{"board"}
}

// SetDependencyServiceContainer receives the board module's service container.
func (m *ActivityModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "board" {
		m.boardPort = board.NewBoardAdapter(container)
	}
}

// RegisterEventConsumers subscribes to task activity.
func (m *ActivityModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskActivityV1, m.handleTaskActivity, m); err != nil {
		return fmt.Errorf("failed to register TaskActivity consumer: %w", err)
	}
	log.Printf("[activity] Registered event consumers: TaskActivity")
	return nil
}

// RegisterServices registers request-reply services in the service container.
func (m *ActivityModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "recent-activity", json.Unmarshal, json.Marshal, m.recentActivity,
	); err != nil {
		return fmt.Errorf("failed to register recent-activity service: %w", err)
	}
	log.Printf("[activity] Registered services: recent-activity")
	return nil
}

// Start opens the database and builds the service.
func (m *ActivityModule) Start(_ context.Context) error {
	if m.boardPort == nil {
		return fmt.Errorf("boardPort dependency not set")
	}
	db, err := OpenDatabase(m.dbPath, m.debug)
	if err != nil {
		return err
	}
	m.db = db
	m.service = NewService(NewRepository(db), m.boardPort, m.feedLimit)

	log.Printf("[activity] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop closes the database.
func (m *ActivityModule) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[activity] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *ActivityModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get database connection: %v", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"database": m.dbPath},
	}
}

// handleTaskActivity appends a log entry. Failures are logged and swallowed
// so a broken log store never surfaces to the mutation that triggered it.
func (m *ActivityModule) handleTaskActivity(ctx context.Context, event events.TaskActivityEvent, _ *mono.Msg) error {
	if m.service == nil {
		log.Printf("[activity] Log creation failed: module not started (task %s)", event.TaskID)
		return nil
	}
	if err := m.service.Record(ctx, event.UserID, event.TaskID, event.Action, event.OccurredAt); err != nil {
		log.Printf("[activity] Log creation failed: %v", err)
	}
	return nil
}

func (m *ActivityModule) recentActivity(ctx context.Context, req RecentActivityRequest, _ *mono.Msg) (RecentActivityResponse, error) {
	items, err := m.service.Recent(ctx, req.Limit)
	if err != nil {
		log.Printf("[activity] recent-activity failed: %v", err)
		return RecentActivityResponse{}, fmt.Errorf("recent-activity failed")
	}
	return RecentActivityResponse{Items: items}, nil
}
