// Package redis keeps in-app notification inboxes in Redis lists.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/rentflow/pkg/protocol"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	InboxKeyPrefix     = "notifications:"
	DefaultInboxLength = 100
)

// StoredNotification is the JSON document pushed onto an inbox list.
type StoredNotification struct {
	ID string `json:"id"`
	protocol.Notification

	CreatedAt time.Time `json:"created_at"`
}

// NotificationSink implements protocol.NotificationSink. Each target has one
// list, newest first, trimmed to the configured length.
type NotificationSink struct {
	client      redis.UniversalClient
	logger      *slog.Logger
	inboxLength int64
	now         func() time.Time
	newID       func() string
}

type Option func(*NotificationSink)

// WithInboxLength caps every inbox at length notifications.
func WithInboxLength(length int64) Option {
	return func(s *NotificationSink) {
		if length > 0 {
			s.inboxLength = length
		}
	}
}

func NewNotificationSink(client redis.UniversalClient, logger *slog.Logger, options ...Option) *NotificationSink {
	sink := &NotificationSink{
		client:      client,
		logger:      logger.With("module", "redis_notifications"),
		inboxLength: DefaultInboxLength,
		now:         time.Now,
		newID:       uuid.NewString,
	}

	for _, option := range options {
		option(sink)
	}

	return sink
}

// NewClient connects to the Redis server described by redisURL.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// InboxKey returns the list holding target's notifications.
func InboxKey(target string) string {
	return InboxKeyPrefix + target
}

func (s *NotificationSink) CreateNotification(ctx context.Context, notification protocol.Notification) (string, error) {
	stored := StoredNotification{
		ID:           s.newID(),
		Notification: notification,
		CreatedAt:    s.now().UTC(),
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode notification: %w", err)
	}

	key := InboxKey(notification.Target)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, s.inboxLength-1)

		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to push notification", "target", notification.Target, "error", err)

		return "", fmt.Errorf("failed to push notification: %w", err)
	}

	return stored.ID, nil
}

// Inbox returns up to limit notifications of target, newest first.
func (s *NotificationSink) Inbox(ctx context.Context, target string, limit int64) ([]StoredNotification, error) {
	if limit <= 0 {
		limit = s.inboxLength
	}

	values, err := s.client.LRange(ctx, InboxKey(target), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	notifications := make([]StoredNotification, 0, len(values))

	for _, value := range values {
		var stored StoredNotification

		err := json.Unmarshal([]byte(value), &stored)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping malformed notification", "target", target, "error", err)

			continue
		}

		notifications = append(notifications, stored)
	}

	return notifications, nil
}
