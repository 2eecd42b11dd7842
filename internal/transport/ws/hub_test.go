package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coherence/internal/logging"
	"coherence/internal/model"
)

func receive(t *testing.T, conn *Connection) (*model.ProcessingStatus, bool) {
	t.Helper()
	select {
	case data, ok := <-conn.Send:
		if !ok {
			return nil, false
		}
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		require.Equal(t, MsgStatus, msg.Type)
		var st model.ProcessingStatus
		require.NoError(t, json.Unmarshal(msg.Payload, &st))
		return &st, true
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil, false
	}
}

func TestHub_PublishesToVideoSubscribersOnly(t *testing.T) {
	hub := NewHub(logging.Discard())
	defer hub.Close()

	a := NewConnection("v1")
	b := NewConnection("v2")
	hub.Register(a)
	hub.Register(b)
	require.Eventually(t, func() bool { return hub.Subscribers("v1") == 1 && hub.Subscribers("v2") == 1 },
		time.Second, 5*time.Millisecond)

	hub.PublishStatus(&model.ProcessingStatus{VideoID: "v1", Status: model.StatusProcessing, Progress: 40, Stage: "Analyzing body language..."})

	st, ok := receive(t, a)
	require.True(t, ok)
	assert.Equal(t, 40, st.Progress)
	assert.Empty(t, b.Send)
}

func TestHub_TerminalStatusClosesSubscribers(t *testing.T) {
	hub := NewHub(logging.Discard())
	defer hub.Close()

	conn := NewConnection("v1")
	hub.Register(conn)
	require.Eventually(t, func() bool { return hub.Subscribers("v1") == 1 }, time.Second, 5*time.Millisecond)

	hub.PublishStatus(&model.ProcessingStatus{VideoID: "v1", Status: model.StatusComplete, Progress: 100})

	st, ok := receive(t, conn)
	require.True(t, ok)
	assert.Equal(t, model.StatusComplete, st.Status)

	_, ok = receive(t, conn)
	assert.False(t, ok)
	assert.Zero(t, hub.Subscribers("v1"))

	// Unregistering after removal is harmless
	hub.Unregister(conn)
}

func TestHub_CloseClosesConnections(t *testing.T) {
	hub := NewHub(logging.Discard())
	conn := NewConnection("v1")
	hub.Register(conn)

	hub.Close()
	hub.Close()

	_, ok := receive(t, conn)
	assert.False(t, ok)

	// Publishing after close does not block
	hub.PublishStatus(&model.ProcessingStatus{VideoID: "v1"})
}

func TestHub_DeliverTerminalDropsConnection(t *testing.T) {
	hub := NewHub(logging.Discard())
	defer hub.Close()

	conn := NewConnection("v1")
	hub.Register(conn)
	hub.Deliver(conn, &model.ProcessingStatus{VideoID: "v1", Status: model.StatusError, Stage: "Processing failed"})

	st, ok := receive(t, conn)
	require.True(t, ok)
	assert.Equal(t, model.StatusError, st.Status)
	_, ok = receive(t, conn)
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers("v1"))

	// Delivering to a dropped connection is a no-op.
	hub.Deliver(conn, &model.ProcessingStatus{VideoID: "v1", Status: model.StatusProcessing})
}
