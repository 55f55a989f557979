package redis

import (
	"context"
	"time"

	"callcenter-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.EventDeduper = (*EventDedup)(nil)

// EventDedup remembers processed webhook event ids in redis. Entries expire
// after ttl; the gateway stops redelivering long before that, and the
// conditional-update transitions keep late duplicates harmless anyway.
type EventDedup struct {
	cli *Client
	ttl time.Duration
}

func NewEventDedup(cli *Client, ttl time.Duration) *EventDedup {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &EventDedup{cli: cli, ttl: ttl}
}

func key(eventID string) string { return "webhook:event:" + eventID }

func (d *EventDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return d.cli.Exists(ctx, key(eventID))
}

func (d *EventDedup) MarkProcessed(ctx context.Context, eventID string) error {
	return d.cli.Set(ctx, key(eventID), "1", d.ttl)
}
