package service

import (
	"context"
	"log/slog"

	"github.com/immxrtalbeast/chat_gateway/internal/domain"
)

// Bus fans an event out to every member of its room.
type Bus interface {
	Publish(ctx context.Context, event domain.Event) error
}

// LocalBus delivers events to members registered on this instance.
type LocalBus struct {
	registry *Registry
	log      *slog.Logger
}

func NewLocalBus(registry *Registry, log *slog.Logger) *LocalBus {
	if log == nil {
		log = slog.Default()
	}
	return &LocalBus{registry: registry, log: log}
}

func (b *LocalBus) Publish(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.Deliver(event)
	return nil
}

// Deliver hands the event to each member's outbound queue and returns how many accepted it.
// Members that left after the snapshot or cannot keep up are skipped.
func (b *LocalBus) Deliver(event domain.Event) int {
	delivered := 0
	for m := range b.registry.Members(event.Room) {
		if event.ExcludeSessionID != "" && m.ID() == event.ExcludeSessionID {
			continue
		}
		if m.Deliver(event.Data) {
			delivered++
			continue
		}
		b.log.Debug("dropping broadcast event",
			slog.String("room", event.Room),
			slog.String("session_id", m.ID()),
			slog.String("type", string(event.Type)),
		)
	}
	return delivered
}
