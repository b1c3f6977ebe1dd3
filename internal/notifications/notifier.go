// Package notifications provides real-time delivery of user events over websockets.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"vibefeed/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix  = "notifications:user:"
	userChannelPattern = userChannelPrefix + "*"

	// EventMessage is pushed to every participant when a message is sent.
	EventMessage = "message"
)

// Event is the JSON frame written to websocket clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Notifier publishes user events into Redis channels so every API instance
// can deliver them. Without Redis it hands events straight to a local sink.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local func(userID uint, frame []byte)
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel extracts the user id from a channel name.
func ParseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (n *Notifier) setLocal(fn func(userID uint, frame []byte)) {
	n.mu.Lock()
	n.local = fn
	n.mu.Unlock()
}

// PublishUser sends a raw frame to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, frame []byte) error {
	if n.rdb == nil {
		n.mu.RLock()
		local := n.local
		n.mu.RUnlock()
		if local != nil {
			local(userID, frame)
		}
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), frame).Err()
}

// PublishEvent encodes ev once and publishes it to each user.
func (n *Notifier) PublishEvent(ctx context.Context, userIDs []uint, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	for _, id := range userIDs {
		if err := n.PublishUser(ctx, id, data); err != nil {
			return fmt.Errorf("publish to user %d: %w", id, err)
		}
	}
	return nil
}

// StartPatternSubscriber subscribes to every user channel and calls onMessage
// for each incoming message until ctx is done.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPattern)
	// Wait for the subscription so nothing published afterwards is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", userChannelPattern, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
