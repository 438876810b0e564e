package broadcast

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher publishes signals over Redis pub/sub.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher binds a publisher to a channel; an empty channel uses
// DefaultChannel.
func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger.Named("broadcast")}
}

// Channel returns the pub/sub channel name.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

func (p *RedisPublisher) Publish(ctx context.Context, signal Signal) error {
	payload, err := EncodeSignal(signal)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// Listen delivers signals from the channel to handle until ctx is done.
// Undecodable messages are skipped.
func (p *RedisPublisher) Listen(ctx context.Context, handle func(Signal)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			signal, err := DecodeSignal([]byte(msg.Payload))
			if err != nil {
				p.logger.Warn("skipping signal", zap.Error(err))
				continue
			}
			handle(signal)
		}
	}
}
