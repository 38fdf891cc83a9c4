package broadcast

import (
	"context"
	"fmt"
	"log"

	"github.com/example/collab-task-board/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// BroadcastModule relays board change signals to connected realtime clients.
type BroadcastModule struct {
	hub       *Hub
	cancelHub context.CancelFunc
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*BroadcastModule)(nil)
	_ mono.EventConsumerModule   = (*BroadcastModule)(nil)
	_ mono.HealthCheckableModule = (*BroadcastModule)(nil)
)

// NewModule creates a new BroadcastModule.
func NewModule() *BroadcastModule {
	return &BroadcastModule{
		hub: NewHub(),
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start runs the hub.
func (m *BroadcastModule) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	log.Println("[broadcast] Module started - realtime hub running")
	return nil
}

// Stop closes every connection and waits for the hub to exit.
func (m *BroadcastModule) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	log.Printf("[broadcast] Module stopped - %d clients were connected", clientCount)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers subscribes to board change signals.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.BoardChangedV1, m.handleBoardChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register BoardChanged consumer: %w", err)
	}
	log.Println("[broadcast] Registered event consumers: BoardChanged")
	return nil
}

func (m *BroadcastModule) handleBoardChanged(_ context.Context, event events.BoardChangedEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] %s from client %s, refreshing peers", event.Signal, event.OriginClientID)
	m.hub.Broadcast(event.OriginClientID, Notification{
		Event:  EventRefreshTasks,
		TaskID: event.TaskID,
	})
	return nil
}

// GetHub returns the hub for the realtime endpoint.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}
