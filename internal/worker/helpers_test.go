package worker

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/auth"
	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/id"
	"github.com/moodtune/moodtune-sync/internal/remote"
	"github.com/moodtune/moodtune-sync/internal/remote/docstore"
	"github.com/moodtune/moodtune-sync/internal/store/sqlite"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// flakyRemote fails calls with queued errors. With applyFirst set the
// write is committed before the error is returned, as when the
// acknowledgement is lost on the way back.
type flakyRemote struct {
	remote.Backend

	mu         sync.Mutex
	errs       []error
	applyFirst bool
	batches    int
	sets       int
}

func (f *flakyRemote) failNext(errs ...error) {
	f.mu.Lock()
	f.errs = append(f.errs, errs...)
	f.mu.Unlock()
}

func (f *flakyRemote) pop() (apply bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) == 0 {
		return false, nil
	}
	err = f.errs[0]
	f.errs = f.errs[1:]
	return f.applyFirst, err
}

func (f *flakyRemote) Set(ctx context.Context, collection, id string, fields map[string]any, opts remote.SetOptions) error {
	f.mu.Lock()
	f.sets++
	f.mu.Unlock()
	apply, err := f.pop()
	if err != nil && !apply {
		return err
	}
	if serr := f.Backend.Set(ctx, collection, id, fields, opts); serr != nil {
		return serr
	}
	return err
}

func (f *flakyRemote) BatchCommit(ctx context.Context, ops []remote.SetOp) error {
	f.mu.Lock()
	f.batches++
	f.mu.Unlock()
	apply, err := f.pop()
	if err != nil && !apply {
		return err
	}
	if cerr := f.Backend.BatchCommit(ctx, ops); cerr != nil {
		return cerr
	}
	return err
}

func (f *flakyRemote) calls() (batches, sets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches, f.sets
}

type syncNotice struct {
	userID string
	kind   string
	n      int
}

type recordingNotifier struct {
	mu      sync.Mutex
	syncs   []syncNotice
	unlocks []string
}

func (n *recordingNotifier) SyncCompleted(_ context.Context, userID, kind string, count int) {
	n.mu.Lock()
	n.syncs = append(n.syncs, syncNotice{userID, kind, count})
	n.mu.Unlock()
}

func (n *recordingNotifier) AchievementUnlocked(_ context.Context, _, achievementID string) {
	n.mu.Lock()
	n.unlocks = append(n.unlocks, achievementID)
	n.mu.Unlock()
}

type testEnv struct {
	store    *sqlite.Store
	docs     *docstore.Store
	remote   *flakyRemote
	users    *auth.StaticProvider
	notifier *recordingNotifier
	deps     Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "sync.db"), nil, logger)
	require.NoError(t, err)
	docs, err := docstore.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		st.Close()
		docs.Close()
	})

	e := &testEnv{
		store:    st,
		docs:     docs,
		remote:   &flakyRemote{Backend: docs},
		users:    auth.NewStaticProvider("user-1"),
		notifier: &recordingNotifier{},
	}
	e.deps = Deps{
		Store:    st,
		Remote:   e.remote,
		Users:    e.users,
		Notifier: e.notifier,
		Logger:   logger,
		Now:      func() time.Time { return testNow },
	}
	return e
}

func (e *testEnv) enqueue(t *testing.T, userID string, p domain.Payload, at time.Time) *domain.OutboxOperation {
	t.Helper()
	data, err := domain.EncodePayload(p)
	require.NoError(t, err)
	op := &domain.OutboxOperation{
		Type:           p.OperationType(),
		UserID:         userID,
		IdempotencyKey: id.IdempotencyKey(),
		Payload:        data,
		CreatedAt:      at,
	}
	require.NoError(t, e.store.Enqueue(context.Background(), op))
	return op
}

func (e *testEnv) insertEmotionLog(t *testing.T, userID string, at time.Time) *domain.EmotionLog {
	t.Helper()
	l := &domain.EmotionLog{
		UserID:    userID,
		ClientID:  id.ClientID(),
		Timestamp: at,
		Emotions: []domain.EmotionEntry{
			{EmotionID: "joy", Name: "Joy", Source: domain.CaptureManual},
		},
	}
	require.NoError(t, e.store.InsertEmotionLog(context.Background(), l))
	return l
}

func (e *testEnv) count(t *testing.T, collection string) int {
	t.Helper()
	n, err := e.docs.Count(context.Background(), collection)
	require.NoError(t, err)
	return n
}

func quickAction(userID, action string) domain.QuickActionPayload {
	return domain.QuickActionPayload{UserID: userID, Action: action, OccurredAt: testNow.UnixMilli()}
}
