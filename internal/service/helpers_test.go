package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/store/sqlite"
	"github.com/moodtune/moodtune-sync/internal/validation"
	"github.com/moodtune/moodtune-sync/internal/worker"
)

var testNow = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSyncer struct {
	mu            sync.Mutex
	profile       int
	interests     int
	emotionsNow   int
	cancelled     int
	emotionResult worker.Result
}

func (f *fakeSyncer) ScheduleProfileReconciliation() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile++
	return true
}

func (f *fakeSyncer) ScheduleInterestsSync() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interests++
	return true
}

func (f *fakeSyncer) SyncEmotionsNow(context.Context) worker.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emotionsNow++
	return f.emotionResult
}

func (f *fakeSyncer) CancelAllWork() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled++
}

type recordingNotifier struct {
	mu      sync.Mutex
	unlocks []string
}

func (n *recordingNotifier) SyncCompleted(context.Context, string, string, int) {}

func (n *recordingNotifier) AchievementUnlocked(_ context.Context, _, achievementID string) {
	n.mu.Lock()
	n.unlocks = append(n.unlocks, achievementID)
	n.mu.Unlock()
}

func (n *recordingNotifier) unlocked() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.unlocks...)
}

type testEnv struct {
	store        *sqlite.Store
	clock        *testClock
	syncer       *fakeSyncer
	notifier     *recordingNotifier
	logger       *slog.Logger
	outbox       *OutboxService
	achievements *AchievementService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"), nil, logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	e := &testEnv{
		store:    st,
		clock:    &testClock{t: testNow},
		syncer:   &fakeSyncer{},
		notifier: &recordingNotifier{},
		logger:   logger,
	}
	e.outbox = NewOutboxService(st, validation.New(), logger, e.clock.Now)
	e.achievements = NewAchievementService(st, e.notifier, logger, e.clock.Now)
	return e
}
