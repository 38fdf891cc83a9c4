package api

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/example/collab-task-board/events"
	"github.com/example/collab-task-board/modules/broadcast"
	"github.com/gofiber/contrib/websocket"
)

// handleWebSocket handles realtime connections at /ws.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	client, err := broadcast.NewClient(c)
	if err != nil {
		log.Printf("[api] Failed to create realtime client: %v", err)
		_ = c.Close()
		return
	}

	m.hub.Register(client)
	defer func() {
		m.hub.Unregister(client)
		log.Printf("[api] WebSocket client disconnected: %s", client.ID)
	}()

	log.Printf("[api] WebSocket client connected: %s", client.ID)

	if err := client.Send(broadcast.Notification{
		Event:    broadcast.EventConnected,
		ClientID: client.ID,
	}); err != nil {
		log.Printf("[api] Failed to send welcome to %s: %v", client.ID, err)
		return
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] Read error from %s: %v", client.ID, err)
			}
			return
		}

		signal, ok := parseSignal(data)
		if !ok {
			log.Printf("[api] Ignoring unknown frame from %s", client.ID)
			continue
		}
		m.announceChange(client.ID, signal)
	}
}

// announceChange tells every other client that the board changed. It goes
// through the event bus and falls back to the hub when publishing fails.
func (m *APIModule) announceChange(originID string, signal InboundSignal) {
	event := events.BoardChangedEvent{
		OriginClientID: originID,
		TaskID:         signal.TaskID,
		Signal:         signal.Event,
		Timestamp:      time.Now(),
	}

	if m.eventBus != nil {
		err := events.BoardChangedV1.Publish(m.eventBus, event, nil)
		if err == nil {
			return
		}
		log.Printf("[api] Warning: failed to publish BoardChanged event: %v", err)
	}

	m.hub.Broadcast(originID, broadcast.Notification{
		Event:  broadcast.EventRefreshTasks,
		TaskID: signal.TaskID,
	})
}

// parseSignal accepts a JSON frame {"event":..., "taskId":...} or a bare
// event name.
func parseSignal(data []byte) (InboundSignal, bool) {
	var signal InboundSignal
	if err := json.Unmarshal(data, &signal); err != nil {
		signal = InboundSignal{Event: strings.TrimSpace(string(data))}
	}

	switch signal.Event {
	case broadcast.SignalNewTask, broadcast.SignalUpdateTask:
		return signal, true
	}
	return InboundSignal{}, false
}
