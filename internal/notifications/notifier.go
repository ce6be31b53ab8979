// Package notifications relays real-time chat between websocket clients,
// across instances through Redis pub/sub when Redis is configured.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/redis/go-redis/v9"

	"blogsphere/internal/observability"
)

// ChatChannel is the Redis channel every instance relays chat through.
const ChatChannel = "chat:global"

// Notifier publishes to and subscribes on Redis channels. A Notifier
// without a client is a no-op.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether the notifier is backed by Redis.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishChat publishes a chat payload to every instance.
func (n *Notifier) PublishChat(ctx context.Context, payload string) error {
	if !n.Enabled() {
		return nil
	}
	if err := n.rdb.Publish(ctx, ChatChannel, payload).Err(); err != nil {
		observability.RedisErrors.WithLabelValues("publish").Inc()
		return fmt.Errorf("publish chat: %w", err)
	}
	return nil
}

// StartChatSubscriber subscribes to the chat channel and calls onMessage for
// each payload until ctx is done. It returns once the subscription is live.
func (n *Notifier) StartChatSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, ChatChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		observability.RedisErrors.WithLabelValues("subscribe").Inc()
		return fmt.Errorf("subscribe %s: %w", ChatChannel, err)
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
							observability.Logger.Error("panic in chat subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
