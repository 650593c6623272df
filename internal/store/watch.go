package store

import (
	"context"
	"slices"

	"github.com/moodtune/moodtune-sync/internal/events"
)

// Watch runs query once and again after every committed change to any of
// tables, sending each full result set on the returned channel. Bursts of
// changes are coalesced into one re-query. A re-query that fails is skipped;
// the next change tries again. When the bus drops events for a slow reader
// the table of a dropped change is unknown, so Watch re-queries anyway.
//
// The channel is closed when ctx is done or the bus closes.
func Watch[T any](ctx context.Context, bus *events.Bus, query func(context.Context) (T, error), tables ...string) (<-chan T, error) {
	sub := bus.Subscribe(events.EventTableChanged)

	initial, err := query(ctx)
	if err != nil {
		bus.Unsubscribe(sub)
		return nil, err
	}

	out := make(chan T, 1)
	out <- initial

	go func() {
		defer close(out)
		defer bus.Unsubscribe(sub)

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Missed:
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if !slices.Contains(tables, ev.Table) {
					continue
				}
			}
			if !drain(sub.C) {
				return
			}

			next, err := query(ctx)
			if err != nil {
				continue
			}
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// drain empties pending events. It reports false if the channel closed.
func drain(c <-chan events.Event) bool {
	for {
		select {
		case _, ok := <-c:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}
