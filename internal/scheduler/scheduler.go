// Package scheduler runs workers in the background with a small policy
// vocabulary: periodic work with a flex window, one-shot work, unique
// names with keep-existing semantics, a network constraint, exponential
// backoff on Retry and cancel-all.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/moodtune/moodtune-sync/internal/connectivity"
	"github.com/moodtune/moodtune-sync/internal/events"
	"github.com/moodtune/moodtune-sync/internal/worker"
)

// Default backoff bounds for Retry results.
const (
	DefaultMinBackoff = 30 * time.Second
	DefaultMaxBackoff = 5 * time.Hour
)

// Constraints gate when a run may start.
type Constraints struct {
	// RequireNetwork holds a run until the monitor reports connected.
	RequireNetwork bool
}

// PeriodicRequest describes recurring work. Each period the run starts at
// a random point inside the last Flex of the Interval.
type PeriodicRequest struct {
	Name        string
	Worker      worker.Worker
	Interval    time.Duration
	Flex        time.Duration
	Constraints Constraints
}

// OneShotRequest describes work that runs once, retried until it stops
// asking for a retry.
type OneShotRequest struct {
	Name        string
	Worker      worker.Worker
	Delay       time.Duration
	Constraints Constraints
}

// Options tune a Scheduler.
type Options struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

type job struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns every background run. The zero value is not usable; use New.
type Scheduler struct {
	monitor connectivity.Monitor
	bus     *events.Bus
	logger  *slog.Logger
	opts    Options
	// jitter returns a duration in [0, limit).
	jitter func(limit time.Duration) time.Duration

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool
}

// New creates a scheduler. bus may be nil.
func New(monitor connectivity.Monitor, opts Options, bus *events.Bus, logger *slog.Logger) *Scheduler {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = DefaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	return &Scheduler{
		monitor: monitor,
		bus:     bus,
		logger:  logger,
		opts:    opts,
		jitter: func(limit time.Duration) time.Duration {
			if limit <= 0 {
				return 0
			}
			return time.Duration(rand.Int64N(int64(limit)))
		},
		jobs: make(map[string]*job),
	}
}

// EnqueuePeriodic registers recurring work. If work with the same name is
// already registered it is kept and the request is ignored; the return
// value reports whether the request was accepted.
func (s *Scheduler) EnqueuePeriodic(req PeriodicRequest) bool {
	req.Flex = max(0, min(req.Flex, req.Interval))
	return s.start(req.Name, func(ctx context.Context) {
		for {
			wait := req.Interval - req.Flex + s.jitter(req.Flex)
			if !sleep(ctx, wait) {
				return
			}
			if !s.runUntilSettled(ctx, req.Name, req.Worker, req.Constraints) {
				return
			}
		}
	})
}

// EnqueueOneShot registers work that runs once. While work of the same
// name is pending or running the request is ignored.
func (s *Scheduler) EnqueueOneShot(req OneShotRequest) bool {
	return s.start(req.Name, func(ctx context.Context) {
		if !sleep(ctx, req.Delay) {
			return
		}
		s.runUntilSettled(ctx, req.Name, req.Worker, req.Constraints)
	})
}

func (s *Scheduler) start(name string, body func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, exists := s.jobs[name]; exists {
		s.logger.Debug("work already scheduled, keeping existing", slog.String("work", name))
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{name: name, cancel: cancel, done: make(chan struct{})}
	s.jobs[name] = j

	go func() {
		defer close(j.done)
		defer s.forget(j)
		body(ctx)
	}()
	return true
}

// forget drops j from the registry unless it was already replaced.
func (s *Scheduler) forget(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[j.name] == j {
		delete(s.jobs, j.name)
	}
}

// runUntilSettled runs w until it returns Success or Failure, backing off
// exponentially between Retry results. It returns false if ctx ended.
func (s *Scheduler) runUntilSettled(ctx context.Context, name string, w worker.Worker, c Constraints) bool {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.opts.MinBackoff
	exp.MaxInterval = s.opts.MaxBackoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	for attempt := 1; ; attempt++ {
		if c.RequireNetwork && !s.awaitNetwork(ctx) {
			return false
		}

		start := time.Now()
		result := w.Run(ctx)
		elapsed := time.Since(start)
		if ctx.Err() != nil {
			return false
		}
		if s.bus != nil {
			s.bus.Publish(events.NewWorkerFinishedEvent(name, result.String(), elapsed))
		}
		if result != worker.Retry {
			return true
		}

		wait := exp.NextBackOff()
		s.logger.Debug("work asked for retry",
			slog.String("work", name),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
		)
		if !sleep(ctx, wait) {
			return false
		}
	}
}

// awaitNetwork blocks until the monitor reports connected.
func (s *Scheduler) awaitNetwork(ctx context.Context) bool {
	if s.monitor == nil || s.monitor.IsConnected() {
		return true
	}
	ch, cancel := s.monitor.Subscribe()
	defer cancel()
	// The state may have flipped before the subscription existed.
	if s.monitor.IsConnected() {
		return true
	}
	for {
		select {
		case <-ctx.Done():
			return false
		case connected, ok := <-ch:
			if !ok {
				return false
			}
			if connected {
				return true
			}
		}
	}
}

// IsScheduled reports whether work named name is pending or running.
func (s *Scheduler) IsScheduled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// Scheduled lists the registered work names, sorted.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Cancel stops the named work and waits for it to exit.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if ok {
		delete(s.jobs, name)
	}
	s.mu.Unlock()
	if ok {
		j.cancel()
		<-j.done
	}
}

// CancelAll stops every pending and running work, waits for the runs to
// exit and forgets all registrations. New work may be enqueued afterwards.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = make(map[string]*job)
	s.mu.Unlock()

	for _, j := range jobs {
		j.cancel()
	}
	for _, j := range jobs {
		<-j.done
	}
	if len(jobs) > 0 {
		s.logger.Info("all scheduled work cancelled", slog.Int("count", len(jobs)))
	}
}

// Close cancels everything and rejects later requests.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.CancelAll()
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
