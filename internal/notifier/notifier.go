// Package notifier fans contest state transitions out to connected clients
// through a Redis channel keyed by room code. The socket service subscribes
// to these channels and forwards events over websockets; the core never
// depends on delivery confirmation.
package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/codeclash/backend/internal/domain"
)

// ChannelPrefix namespaces the per-room pub/sub channels.
const ChannelPrefix = "contest:room:"

const publishTimeout = 2 * time.Second

// envelope is the wire format published on the room channel.
type envelope struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// RedisNotifier publishes events best-effort: a publish failure is logged
// and dropped, never propagated to the state transition that produced it.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisNotifier creates a notifier backed by the given Redis client.
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		logger: logger,
	}
}

// Publish sends the event to the room channel. At most once per transition;
// errors are swallowed after logging.
func (n *RedisNotifier) Publish(ctx context.Context, event domain.Event) {
	payload, err := json.Marshal(envelope{
		Event:     event.Kind(),
		Data:      event,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		n.logger.Error("Failed to encode realtime event",
			zap.String("event", event.Kind()),
			zap.Error(err),
		)
		return
	}

	// Detach from the request context so a canceled request cannot abort
	// the fan-out of an already-committed transition.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := n.client.Publish(pubCtx, ChannelPrefix+event.RoomCode(), payload).Err(); err != nil {
		n.logger.Warn("Failed to publish realtime event",
			zap.String("event", event.Kind()),
			zap.String("room_code", event.RoomCode()),
			zap.Error(err),
		)
	}
}

// Noop discards all events. Used in tests and judge-less local runs.
type Noop struct{}

// Publish implements domain.Notifier.
func (Noop) Publish(context.Context, domain.Event) {}
