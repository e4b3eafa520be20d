package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel shared by all instances.
const DefaultChannel = "zenith:changes"

// RedisBus relays notifications between server instances over Redis
// pub/sub. Local subscribers are notified synchronously on Publish; remote
// instances receive the topic through the channel.
type RedisBus struct {
	*LocalBus
	client  *redis.Client
	pubsub  *redis.PubSub
	channel string
	origin  string
	logger  *slog.Logger
	done    chan struct{}
}

// NewRedisBus subscribes to channel and starts relaying. It returns once
// the subscription is confirmed by the server.
func NewRedisBus(ctx context.Context, client *redis.Client, channel string, logger *slog.Logger) (*RedisBus, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	ps := client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	b := &RedisBus{
		LocalBus: NewLocalBus(),
		client:   client,
		pubsub:   ps,
		channel:  channel,
		origin:   uuid.NewString(),
		logger:   logger,
		done:     make(chan struct{}),
	}
	go b.relay(ps.Channel())
	return b, nil
}

func (b *RedisBus) Publish(ctx context.Context, topic string) error {
	b.LocalBus.Publish(ctx, topic)

	data, err := json.Marshal(envelope{Origin: b.origin, Topic: topic})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBus) relay(ch <-chan *redis.Message) {
	defer close(b.done)
	for msg := range ch {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			b.logger.Warn("drop malformed change message", "error", err)
			continue
		}
		if env.Origin == b.origin {
			continue
		}
		b.LocalBus.Publish(context.Background(), env.Topic)
	}
}

func (b *RedisBus) Close() error {
	err := b.pubsub.Close()
	<-b.done
	return err
}
