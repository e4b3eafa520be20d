package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject shared by all instances.
const DefaultSubject = "zenith.changes"

// NATSBus is the NATS counterpart of RedisBus.
type NATSBus struct {
	*LocalBus
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	origin  string
	logger  *slog.Logger
}

func NewNATSBus(conn *nats.Conn, subject string, logger *slog.Logger) (*NATSBus, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	b := &NATSBus{
		LocalBus: NewLocalBus(),
		conn:     conn,
		subject:  subject,
		origin:   uuid.NewString(),
		logger:   logger,
	}
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		b.handle(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	b.sub = sub
	return b, nil
}

func (b *NATSBus) Publish(ctx context.Context, topic string) error {
	b.LocalBus.Publish(ctx, topic)

	data, err := json.Marshal(envelope{Origin: b.origin, Topic: topic})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (b *NATSBus) handle(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.logger.Warn("drop malformed change message", "error", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.LocalBus.Publish(context.Background(), env.Topic)
}

func (b *NATSBus) Close() error {
	if b.sub == nil {
		return nil
	}
	return b.sub.Unsubscribe()
}
