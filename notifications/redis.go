package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quest-progression-system/logger"
	"quest-progression-system/models"
	"quest-progression-system/services"

	goredis "github.com/redis/go-redis/v9"
)

var _ services.Notifier = (*RedisPublisher)(nil)

// envelope is the wire format on the redis channel.
type envelope struct {
	UserID string         `json:"user_id"`
	Events []models.Event `json:"events"`
}

// RedisPublisher broadcasts events to every service instance over redis
// pub/sub. Each instance runs a forwarder that feeds its local Hub, so an SSE
// client sees events no matter which instance handled the write.
type RedisPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisPublisher(addr, channel string, log *logger.Logger) (*RedisPublisher, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = "progression-events"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisPublisher{
		log:     log.With("service", "RedisPublisher"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (r *RedisPublisher) Notify(ctx context.Context, userID string, events []models.Event) error {
	raw, err := json.Marshal(envelope{UserID: userID, Events: events})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// StartForwarder subscribes to the channel and hands every message to
// onEvents until ctx is cancelled.
func (r *RedisPublisher) StartForwarder(ctx context.Context, onEvents func(userID string, events []models.Event)) error {
	if onEvents == nil {
		return fmt.Errorf("onEvents callback required")
	}

	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					r.log.Warn("bad redis event payload", "error", err)
					continue
				}
				onEvents(env.UserID, env.Events)
			}
		}
	}()

	r.log.Info("redis forwarder started", "channel", r.channel)
	return nil
}

func (r *RedisPublisher) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
