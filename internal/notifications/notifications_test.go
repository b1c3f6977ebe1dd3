package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.outbox:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	h := NewHub()
	a, err := h.Register(1, nil)
	require.NoError(t, err)
	b, err := h.Register(1, nil)
	require.NoError(t, err)
	other, err := h.Register(2, nil)
	require.NoError(t, err)

	assert.True(t, h.IsOnline(1))
	assert.Equal(t, 3, h.ConnectionCount())

	assert.Equal(t, 2, h.Deliver(1, []byte("hello")))
	assert.Equal(t, "hello", string(receive(t, a)))
	assert.Equal(t, "hello", string(receive(t, b)))
	assert.Empty(t, other.outbox)
	assert.Zero(t, h.Deliver(99, []byte("nobody")))
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	h := NewHub()
	c, err := h.Register(1, nil)
	require.NoError(t, err)

	h.UnregisterClient(c)
	h.UnregisterClient(c)

	assert.False(t, h.IsOnline(1))
	assert.Zero(t, h.ConnectionCount())
	_, open := <-c.outbox
	assert.False(t, open)
}

func TestHub_PerUserLimit(t *testing.T) {
	h := NewHub()
	for range maxConnsPerUser {
		_, err := h.Register(7, nil)
		require.NoError(t, err)
	}
	_, err := h.Register(7, nil)
	assert.ErrorIs(t, err, ErrUserFull)

	_, err = h.Register(8, nil)
	assert.NoError(t, err)
}

func TestHub_Shutdown(t *testing.T) {
	h := NewHub()
	c, err := h.Register(1, nil)
	require.NoError(t, err)

	require.NoError(t, h.Shutdown(context.Background()))
	require.NoError(t, h.Shutdown(context.Background()))

	_, open := <-c.outbox
	assert.False(t, open)
	assert.Zero(t, h.ConnectionCount())

	_, err = h.Register(1, nil)
	assert.ErrorIs(t, err, ErrHubClosed)

	// late unregister from a read loop is harmless
	h.UnregisterClient(c)
}

func TestClient_DeliverDropsWhenFull(t *testing.T) {
	h := NewHub()
	c, err := h.Register(1, nil)
	require.NoError(t, err)

	for range outboxSize {
		require.True(t, c.deliver([]byte("x")))
	}
	assert.False(t, c.deliver([]byte("overflow")))

	h.UnregisterClient(c)
	assert.False(t, c.deliver([]byte("closed")), "delivery to a closed client is refused")
}

func TestParseUserChannel(t *testing.T) {
	id, ok := ParseUserChannel(UserChannel(42))
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	for _, ch := range []string{"notifications:user:", "notifications:user:abc", "chat:conv:1", "notifications:user:0"} {
		_, ok := ParseUserChannel(ch)
		assert.False(t, ok, ch)
	}
}

func TestNotifier_LocalDeliveryWithoutRedis(t *testing.T) {
	h := NewHub()
	n := NewNotifier(nil)
	require.NoError(t, h.StartWiring(context.Background(), n))

	c, err := h.Register(3, nil)
	require.NoError(t, err)

	require.NoError(t, n.PublishEvent(context.Background(), []uint{3, 4}, Event{Type: EventMessage, Payload: map[string]any{"text": "hi"}}))

	var ev struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(receive(t, c), &ev))
	assert.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, "hi", ev.Payload["text"])
}

func TestNotifier_NoSinkIsNoop(t *testing.T) {
	assert.NoError(t, NewNotifier(nil).PublishUser(context.Background(), 1, []byte("dropped")))
}

func TestNotifier_RedisFanOut(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// two hubs stand in for two API instances sharing Redis
	h1, h2 := NewHub(), NewHub()
	require.NoError(t, h1.StartWiring(ctx, NewNotifier(rdb)))
	require.NoError(t, h2.StartWiring(ctx, NewNotifier(rdb)))

	c1, err := h1.Register(5, nil)
	require.NoError(t, err)
	c2, err := h2.Register(5, nil)
	require.NoError(t, err)

	require.NoError(t, NewNotifier(rdb).PublishUser(ctx, 5, []byte(`{"type":"message"}`)))

	assert.JSONEq(t, `{"type":"message"}`, string(receive(t, c1)))
	assert.JSONEq(t, `{"type":"message"}`, string(receive(t, c2)))
}
