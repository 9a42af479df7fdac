package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/immxrtalbeast/chat_gateway/internal/domain"
	"github.com/immxrtalbeast/chat_gateway/lib/logger/sl"
	"github.com/redis/go-redis/v9"
)

const defaultChannelPrefix = "chat:room:"

// RedisBus shares room events between gateway instances through Redis pub/sub.
// Every instance, the publisher included, delivers what it receives to its local members,
// so all members see one room's events in the order Redis relays them.
type RedisBus struct {
	client *redis.Client
	local  *LocalBus
	prefix string
	log    *slog.Logger
}

func NewRedisBus(client *redis.Client, local *LocalBus, prefix string, log *slog.Logger) *RedisBus {
	if log == nil {
		log = slog.Default()
	}
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &RedisBus{client: client, local: local, prefix: prefix, log: log}
}

func (b *RedisBus) Channel(room string) string {
	return b.prefix + room
}

func (b *RedisBus) Publish(ctx context.Context, event domain.Event) error {
	payload, err := encodeEnvelope(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.Channel(event.Room), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run subscribes to every room channel and delivers incoming events until ctx is done.
func (b *RedisBus) Run(ctx context.Context) error {
	const op = "service.redisbus.run"
	log := b.log.With(slog.String("op", op))

	sub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	log.Info("subscribed to room channels", slog.String("pattern", b.prefix+"*"))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				log.Warn("skipping malformed bus event", slog.String("channel", msg.Channel), sl.Err(err))
				continue
			}
			if event.Room == "" {
				event.Room = strings.TrimPrefix(msg.Channel, b.prefix)
			}
			b.local.Deliver(event)
		}
	}
}

func encodeEnvelope(event domain.Event) ([]byte, error) {
	return json.Marshal(event)
}

func decodeEnvelope(payload []byte) (domain.Event, error) {
	var event domain.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.Event{}, err
	}
	if len(event.Data) == 0 {
		return domain.Event{}, fmt.Errorf("event has no data")
	}
	return event, nil
}
