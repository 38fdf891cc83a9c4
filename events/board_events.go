package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// TaskActivityEvent is emitted by the board module after a task mutation commits.
type TaskActivityEvent struct {
	TaskID     string    `json:"task_id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TaskActivityV1 is the typed event definition for task activity.
// Subject: events.board.v1.task-activity
var TaskActivityV1 = helper.EventDefinition[TaskActivityEvent](
	"board", "TaskActivity", "v1",
)

// BoardChangedEvent is emitted when a connected client reports that it
// changed the board. OriginClientID is the realtime connection that sent the
// signal and must not receive the resulting refresh.
type BoardChangedEvent struct {
	OriginClientID string    `json:"origin_client_id"`
	TaskID         string    `json:"task_id,omitempty"`
	Signal         string    `json:"signal"`
	Timestamp      time.Time `json:"timestamp"`
}

// BoardChangedV1 is the typed event definition for board change signals.
// Subject: events.realtime.v1.board-changed
var BoardChangedV1 = helper.EventDefinition[BoardChangedEvent](
	"realtime", "BoardChanged", "v1",
)
