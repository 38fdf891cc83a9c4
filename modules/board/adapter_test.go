package board

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/collab-task-board/domain/task"
	"github.com/go-monolith/mono"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// consumerModule depends on board and keeps the container it is handed.
type consumerModule struct {
	container mono.ServiceContainer
}

func (m *consumerModule) Name() string { return "board-consumer" }
func (m *consumerModule) Dependencies() []string { return []string{"board"} }
func (m *consumerModule) Start(_ context.Context) error { return nil }
func (m *consumerModule) Stop(_ context.Context) error { return nil }
func (m *consumerModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "board" {
		m.container = container
	}
}

// startBoardApp runs the board module inside a mono application and returns
// an adapter wired to its service container.
func startBoardApp(t *testing.T) BoardPort {
	t.Helper()

	app, err := mono.NewMonoApplication(
		mono.WithLogLevel(mono.LogLevelError), // Suppress logs in tests
	)
	require.NoError(t, err)

	consumer := &consumerModule{}
	require.NoError(t, app.Register(NewModule(filepath.Join(t.TempDir(), "board.db"), false, 5*time.Second)))
	require.NoError(t, app.Register(consumer))

	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() {
		_ = app.Stop(context.Background())
	})

	require.NotNil(t, consumer.container)
	return NewBoardAdapter(consumer.container)
}

func TestBoardAdapter_RoundTrip(t *testing.T) {
	port := startBoardApp(t)
	ctx := context.Background()

	created, err := port.CreateTask(ctx, CreateTaskRequest{ActorID: "u1", Title: "Wire", Description: "d"})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "Wire", created.Title)
	assert.Equal(t, int64(1), created.Version)

	_, err = port.CreateTask(ctx, CreateTaskRequest{ActorID: "u1", Title: "Wire", Description: "d"})
	assert.ErrorIs(t, err, task.ErrDuplicateTitle)

	status := task.StatusDone
	_, err = port.UpdateTask(ctx, UpdateTaskRequest{
		TaskID:   created.ID,
		ActorID:  "u2",
		Patch:    task.Patch{Status: &status},
		Expected: task.Fingerprint{Version: int64Ptr(0)},
	})
	var conflict *task.ConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, created.ID, conflict.Current.ID)
	assert.Equal(t, task.StatusDone, *conflict.Patch.Status)

	tasks, err := port.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)

	err = port.DeleteTask(ctx, "u2", created.ID)
	assert.ErrorIs(t, err, task.ErrNotCreator)

	require.NoError(t, port.DeleteTask(ctx, "u1", created.ID))
	tasks, err = port.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
