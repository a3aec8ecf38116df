package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lox/blackjack/internal/table"
)

// RedisBridge shares table events between server instances over a Redis
// pub/sub channel. Events published locally go out on the channel; events
// from other instances are handed to the local publisher. Each instance
// already delivers its own events locally, so it skips its own echoes.
type RedisBridge struct {
	client  *redis.Client
	channel string
	origin  string
	local   table.Publisher
	logger  *log.Logger
}

type bridgeEnvelope struct {
	Origin string      `json:"origin"`
	Event  table.Event `json:"event"`
}

// NewRedisBridge relays on the "<prefix>:events" channel.
func NewRedisBridge(client *redis.Client, prefix string, local table.Publisher, logger *log.Logger) *RedisBridge {
	if prefix == "" {
		prefix = "blackjack"
	}
	return &RedisBridge{
		client:  client,
		channel: prefix + ":events",
		origin:  uuid.NewString(),
		local:   local,
		logger:  logger.WithPrefix("bridge"),
	}
}

// Channel returns the pub/sub channel name.
func (b *RedisBridge) Channel() string {
	return b.channel
}

// Publish sends ev to the other instances.
func (b *RedisBridge) Publish(ctx context.Context, ev table.Event) error {
	payload, err := json.Marshal(bridgeEnvelope{Origin: b.origin, Event: ev})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", b.channel, err)
	}
	return nil
}

// Run relays remote events until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("Relaying events", "channel", b.channel, "origin", b.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.relay(ctx, []byte(msg.Payload))
		}
	}
}

// relay hands a remote event to the local publisher.
func (b *RedisBridge) relay(ctx context.Context, payload []byte) {
	var env bridgeEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Warn("Dropping malformed event", "error", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	if err := b.local.Publish(ctx, env.Event); err != nil {
		b.logger.Warn("Failed to deliver remote event", "game", env.Event.GameID, "error", err)
	}
}
