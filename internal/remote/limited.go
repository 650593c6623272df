package remote

import (
	"context"

	"github.com/moodtune/moodtune-sync/internal/ratelimit"
)

// Limited throttles a Backend with one token bucket per collection. Waiting
// for a token honours ctx; a cancelled wait is reported as transient.
type Limited struct {
	next    Backend
	limiter *ratelimit.KeyedRateLimiter
}

var _ Backend = (*Limited)(nil)

// NewLimited wraps next so each collection sees at most rps writes per second.
func NewLimited(next Backend, rps float64, burst int) *Limited {
	return &Limited{next: next, limiter: ratelimit.New(rps, burst)}
}

func (l *Limited) wait(ctx context.Context, op, collection string) error {
	if err := l.limiter.Wait(ctx, collection); err != nil {
		return Transient(op, err)
	}
	return nil
}

// Get is not throttled.
func (l *Limited) Get(ctx context.Context, collection, id string) (*Document, error) {
	return l.next.Get(ctx, collection, id)
}

func (l *Limited) Set(ctx context.Context, collection, id string, fields map[string]any, opts SetOptions) error {
	if err := l.wait(ctx, "set", collection); err != nil {
		return err
	}
	return l.next.Set(ctx, collection, id, fields, opts)
}

// BatchCommit takes one token from each distinct collection in ops.
func (l *Limited) BatchCommit(ctx context.Context, ops []SetOp) error {
	seen := make(map[string]bool, len(ops))
	for _, op := range ops {
		if seen[op.Collection] {
			continue
		}
		seen[op.Collection] = true
		if err := l.wait(ctx, "batch", op.Collection); err != nil {
			return err
		}
	}
	return l.next.BatchCommit(ctx, ops)
}

// Close stops the limiter's cleanup goroutine.
func (l *Limited) Close() error {
	l.limiter.Stop()
	return nil
}
