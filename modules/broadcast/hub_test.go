package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/collab-task-board/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	frames  chan []byte
	mu      sync.Mutex
	closed  bool
	failing bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16)}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("broken pipe")
	}
	c.frames <- data
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error {
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) next(t *testing.T) Notification {
	t.Helper()
	select {
	case data := <-c.frames:
		var n Notification
		require.NoError(t, json.Unmarshal(data, &n))
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return Notification{}
	}
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})
	return hub
}

func newTestClient(t *testing.T, hub *Hub) (*Client, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	client, err := NewClient(conn)
	require.NoError(t, err)
	hub.Register(client)
	return client, conn
}

func TestHub_BroadcastSkipsOrigin(t *testing.T) {
	hub := runHub(t)
	a, connA := newTestClient(t, hub)
	b, connB := newTestClient(t, hub)
	_, connC := newTestClient(t, hub)

	hub.Broadcast(a.ID, Notification{Event: EventRefreshTasks, TaskID: "t1"})

	got := connB.next(t)
	assert.Equal(t, EventRefreshTasks, got.Event)
	assert.Equal(t, "t1", got.TaskID)
	assert.Equal(t, EventRefreshTasks, connC.next(t).Event)

	// The hub handles messages in order, so once A sees B's signal the
	// first broadcast has been fully delivered.
	hub.Broadcast(b.ID, Notification{Event: EventRefreshTasks, TaskID: "t2"})
	assert.Equal(t, "t2", connA.next(t).TaskID)
	assert.Empty(t, connA.frames, "origin must not receive its own refresh")
}

func TestHub_UnregisteredClientGetsNothing(t *testing.T) {
	hub := runHub(t)
	a, connA := newTestClient(t, hub)
	_, connB := newTestClient(t, hub)

	hub.Unregister(a)
	hub.Broadcast("", Notification{Event: EventRefreshTasks})

	assert.Equal(t, EventRefreshTasks, connB.next(t).Event)
	assert.Empty(t, connA.frames)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_FailingClientDoesNotBlockOthers(t *testing.T) {
	hub := runHub(t)
	_, broken := newTestClient(t, hub)
	broken.mu.Lock()
	broken.failing = true
	broken.mu.Unlock()
	_, healthy := newTestClient(t, hub)

	hub.Broadcast("", Notification{Event: EventRefreshTasks})
	assert.Equal(t, EventRefreshTasks, healthy.next(t).Event)
}

// stalledConn never completes a write until it is closed.
type stalledConn struct {
	deadlines chan time.Time
	closed    chan struct{}
	closeOnce sync.Once
}

func newStalledConn() *stalledConn {
	return &stalledConn{deadlines: make(chan time.Time, 1), closed: make(chan struct{})}
}

func (c *stalledConn) WriteMessage(int, []byte) error {
	<-c.closed
	return errors.New("use of closed connection")
}

func (c *stalledConn) SetWriteDeadline(t time.Time) error {
	select {
	case c.deadlines <- t:
	default:
	}
	return nil
}

func (c *stalledConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func TestHub_StalledClientIsDroppedWithoutBlockingPeers(t *testing.T) {
	hub := runHub(t)

	stalled := newStalledConn()
	slow, err := NewClient(stalled)
	require.NoError(t, err)
	hub.Register(slow)
	_, healthy := newTestClient(t, hub)

	// The first frame parks the writer inside a write.
	hub.Broadcast("", Notification{Event: EventRefreshTasks})
	assert.Equal(t, EventRefreshTasks, healthy.next(t).Event)
	select {
	case d := <-stalled.deadlines:
		assert.WithinDuration(t, time.Now().Add(writeWait), d, 2*time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("write deadline was not set")
	}

	// Fill the queue and overflow it by one.
	rounds := sendQueueSize + 1
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < rounds; i++ {
			hub.Broadcast("", Notification{Event: EventRefreshTasks})
		}
	}()

	for i := 0; i < rounds; i++ {
		assert.Equal(t, EventRefreshTasks, healthy.next(t).Event)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked behind a stalled client")
	}

	select {
	case <-stalled.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("stalled client was not dropped")
	}
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// The hub loop is still responsive.
	_, late := newTestClient(t, hub)
	hub.Broadcast("", Notification{Event: EventRefreshTasks})
	assert.Equal(t, EventRefreshTasks, late.next(t).Event)
}

func TestHub_StopClosesClientsAndUnblocksCallers(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client, conn := newTestClient(t, hub)
	cancel()
	hub.Wait()

	assert.True(t, conn.isClosed())

	done := make(chan struct{})
	go func() {
		hub.Unregister(client)
		hub.Broadcast("", Notification{Event: EventRefreshTasks})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("calls after shutdown must not block")
	}
}

func TestNewClient_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		c, err := NewClient(newFakeConn())
		require.NoError(t, err)
		assert.Len(t, c.ID, 21)
		assert.False(t, seen[c.ID])
		seen[c.ID] = true
	}
}

func TestBroadcastModule_RelaysBoardChanges(t *testing.T) {
	m := NewModule()
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	origin, originConn := newTestClient(t, m.GetHub())
	_, peerConn := newTestClient(t, m.GetHub())

	err := m.handleBoardChanged(context.Background(), events.BoardChangedEvent{
		OriginClientID: origin.ID,
		TaskID:         "t9",
		Signal:         SignalUpdateTask,
	}, nil)
	require.NoError(t, err)

	got := peerConn.next(t)
	assert.Equal(t, EventRefreshTasks, got.Event)
	assert.Equal(t, "t9", got.TaskID)
	assert.Empty(t, originConn.frames)
}
