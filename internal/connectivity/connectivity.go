// Package connectivity tracks whether the remote backend is reachable.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Monitor reports network state. Subscribers get the new state on every
// transition; cancel unsubscribes and closes the channel.
type Monitor interface {
	IsConnected() bool
	Subscribe() (<-chan bool, func())
}

// Prober checks that the remote answers. httpremote.Client implements it.
type Prober interface {
	Health(ctx context.Context) error
}

// state is the subscription fan-out shared by the monitors.
type state struct {
	mu        sync.Mutex
	connected bool
	nextID    int
	subs      map[int]chan bool
}

func newState(connected bool) *state {
	return &state{connected: connected, subs: make(map[int]chan bool)}
}

func (s *state) get() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// set stores v and reports whether it changed. Subscribers that are not
// keeping up miss the transition; IsConnected stays authoritative.
func (s *state) set(v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected == v {
		return false
	}
	s.connected = v
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
		}
	}
	return true
}

func (s *state) subscribe() (<-chan bool, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan bool, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Static is a Monitor whose state is set by hand.
type Static struct {
	st *state
}

// NewStatic creates a monitor starting in the given state.
func NewStatic(connected bool) *Static {
	return &Static{st: newState(connected)}
}

// IsConnected implements Monitor.
func (s *Static) IsConnected() bool { return s.st.get() }

// Subscribe implements Monitor.
func (s *Static) Subscribe() (<-chan bool, func()) { return s.st.subscribe() }

// Set changes the state and notifies subscribers on a transition.
func (s *Static) Set(connected bool) { s.st.set(connected) }

// ProbeMonitor counts the network as connected only while the remote
// answers its health check. It starts disconnected.
type ProbeMonitor struct {
	st       *state
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewProbeMonitor creates a monitor probing every interval.
func NewProbeMonitor(prober Prober, interval time.Duration, logger *slog.Logger) *ProbeMonitor {
	timeout := interval / 2
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &ProbeMonitor{
		st:       newState(false),
		prober:   prober,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// IsConnected implements Monitor.
func (m *ProbeMonitor) IsConnected() bool { return m.st.get() }

// Subscribe implements Monitor.
func (m *ProbeMonitor) Subscribe() (<-chan bool, func()) { return m.st.subscribe() }

// Start probes once immediately and then on every tick until ctx is done.
func (m *ProbeMonitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Probe(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Probe(ctx)
			}
		}
	}()
}

// Wait blocks until the probe loop has exited.
func (m *ProbeMonitor) Wait() {
	m.wg.Wait()
}

// Probe runs one health check and updates the state.
func (m *ProbeMonitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.prober.Health(probeCtx)
	connected := err == nil
	if m.st.set(connected) {
		if connected {
			m.logger.Info("remote reachable")
		} else {
			m.logger.Warn("remote unreachable", slog.String("error", err.Error()))
		}
	}
	return connected
}
