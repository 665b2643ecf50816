package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/motorline/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const notificationChannel = "motorline:notifications"

// RedisNotifier publishes customer notifications to a Redis channel consumed
// by the messaging workers. Delivery is fire-and-forget; a publish failure is
// reported to the caller who logs and moves on.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisNotifier creates a new RedisNotifier
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		logger: logger,
	}
}

type notificationMessage struct {
	Recipient string            `json:"recipient"`
	Kind      string            `json:"kind"`
	Payload   map[string]string `json:"payload,omitempty"`
	SentAt    time.Time         `json:"sent_at"`
}

// Notify implements shared.Notifier
func (n *RedisNotifier) Notify(ctx context.Context, recipient string, kind shared.NotificationKind, payload map[string]string) error {
	msg, err := json.Marshal(notificationMessage{
		Recipient: recipient,
		Kind:      string(kind),
		Payload:   payload,
		SentAt:    time.Now(),
	})
	if err != nil {
		return err
	}

	if err := n.client.Publish(ctx, notificationChannel, msg).Err(); err != nil {
		return err
	}

	n.logger.Debug("notification published",
		zap.String("kind", string(kind)),
		zap.String("recipient", recipient),
	)
	return nil
}
