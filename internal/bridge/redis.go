package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/genricoloni/ytmpresence/internal/domain"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig addresses the pub/sub server
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Handler consumes a validated inbound message
type Handler func(ctx context.Context, msg domain.Message)

// NewRedisClient connects and pings, retrying with a doubling backoff
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redislib.Client, error) {
	client := redislib.NewClient(&redislib.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	attempts := 5
	backoff := 200 * time.Millisecond

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			return client, nil
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("redis ping failed after %d attempts: %w", attempts, err)
}

// RedisChannel publishes envelopes on a pub/sub channel
type RedisChannel struct {
	logger  *zap.Logger
	client  redislib.UniversalClient
	channel string
}

// NewRedisChannel creates a publisher on channel
func NewRedisChannel(logger *zap.Logger, client redislib.UniversalClient, channel string) *RedisChannel {
	return &RedisChannel{logger: logger, client: client, channel: channel}
}

// Send publishes msg. Having no subscriber is not an error.
func (c *RedisChannel) Send(ctx context.Context, msg domain.Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	receivers, err := c.client.Publish(ctx, c.channel, data).Result()
	if err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	if receivers == 0 {
		c.logger.Debug("No relay subscribed", zap.String("channel", c.channel))
	}
	return nil
}

// RedisSubscriber feeds messages published on a channel to a handler
type RedisSubscriber struct {
	logger  *zap.Logger
	client  redislib.UniversalClient
	channel string
}

// NewRedisSubscriber creates a subscriber on channel
func NewRedisSubscriber(logger *zap.Logger, client redislib.UniversalClient, channel string) *RedisSubscriber {
	return &RedisSubscriber{logger: logger, client: client, channel: channel}
}

// Run subscribes and dispatches until ctx is cancelled. Invalid envelopes are
// logged and skipped.
func (s *RedisSubscriber) Run(ctx context.Context, handle Handler) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// Wait for the subscription confirmation so publish-before-ready is visible
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe failed: %w", err)
	}

	s.logger.Info("Subscribed to bridge channel", zap.String("channel", s.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Bridge subscriber stopped")
			return nil
		case m, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			msg, err := Decode([]byte(m.Payload))
			if err != nil {
				s.logger.Warn("Dropping invalid bridge message", zap.Error(err))
				continue
			}
			handle(ctx, msg)
		}
	}
}
