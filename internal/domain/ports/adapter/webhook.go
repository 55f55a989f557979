package adapter

import (
	"context"
	"time"
)

// WebhookVerifier confirms a webhook delivery genuinely originates from the
// gateway. Verification is a hard precondition of dispatch: the reconciler
// rejects anything that does not verify.
type WebhookVerifier interface {
	// Verify returns true if the signature headers match the body.
	Verify(ctx context.Context, headers map[string]string, body []byte) (bool, error)
}

// EventDeduper remembers webhook event ids that were fully processed so
// redelivered events can be skipped before dispatch. Events are marked only
// after a handler succeeds; a failed event stays unmarked and is re-handled
// on redelivery. Dedup is an optimization on top of the conditional-update
// transitions, not a correctness requirement.
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// Locker serializes best-effort critical sections across processes, e.g.
// concurrent capture requests for the same order.
type Locker interface {
	// TryLock acquires key for ttl and returns an unlock token.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
