package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/remote"
)

func saveLocalInterests(t *testing.T, e *testEnv, interests []string, modifiedMs int64, needsSync bool) {
	t.Helper()
	require.NoError(t, e.store.SaveInterests(context.Background(), &domain.UserInterests{
		UserID:       "user-1",
		Interests:    interests,
		Version:      1,
		LastModified: time.UnixMilli(modifiedMs).UTC(),
		NeedsSync:    needsSync,
	}))
}

func TestInterestsWorker_RemoteNewerWins(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	saveLocalInterests(t, e, []string{"jazz"}, 100, true)
	require.NoError(t, e.docs.Set(ctx, CollectionInterests, "user-1", map[string]any{
		"interests":       []string{"rock"},
		"serverTimestamp": int64(200),
	}, remote.SetOptions{}))

	assert.Equal(t, Success, NewInterestsWorker(e.deps).Run(ctx))

	got, err := e.store.GetInterests(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"rock"}, got.Interests)
	assert.False(t, got.NeedsSync)

	resolution, err := e.store.LastResolution(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, ResolutionRemote, resolution)
	_, sets := e.remote.calls()
	assert.Zero(t, sets)
}

func TestInterestsWorker_LocalNewerIsPushed(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	saveLocalInterests(t, e, []string{"jazz"}, 300, true)
	require.NoError(t, e.docs.Set(ctx, CollectionInterests, "user-1", map[string]any{
		"interests":    []string{"rock"},
		"lastModified": int64(200),
	}, remote.SetOptions{}))

	assert.Equal(t, Success, NewInterestsWorker(e.deps).Run(ctx))

	doc, err := e.docs.Get(ctx, CollectionInterests, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"jazz"}, doc.Strings("interests"))
	ms, ok := doc.Int64("lastModified")
	require.True(t, ok)
	assert.Equal(t, int64(300), ms)

	got, err := e.store.GetInterests(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"jazz"}, got.Interests)
	assert.False(t, got.NeedsSync)
}

func TestInterestsWorker_TieKeepsLocalAndIsRecorded(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	saveLocalInterests(t, e, []string{"jazz"}, 200, true)
	require.NoError(t, e.docs.Set(ctx, CollectionInterests, "user-1", map[string]any{
		"interests":    []string{"rock"},
		"lastModified": int64(200),
	}, remote.SetOptions{}))

	assert.Equal(t, Success, NewInterestsWorker(e.deps).Run(ctx))

	doc, err := e.docs.Get(ctx, CollectionInterests, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"jazz"}, doc.Strings("interests"))

	resolution, err := e.store.LastResolution(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, ResolutionTieLocal, resolution)
}

func TestInterestsWorker_NoRemoteCopyPushesLocal(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	saveLocalInterests(t, e, []string{"lofi"}, 100, true)

	assert.Equal(t, Success, NewInterestsWorker(e.deps).Run(ctx))

	doc, err := e.docs.Get(ctx, CollectionInterests, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"lofi"}, doc.Strings("interests"))
}

func TestInterestsWorker_NothingToSync(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	w := NewInterestsWorker(e.deps)

	assert.Equal(t, Success, w.Run(ctx))

	saveLocalInterests(t, e, []string{"jazz"}, 100, false)
	assert.Equal(t, Success, w.Run(ctx))
	_, sets := e.remote.calls()
	assert.Zero(t, sets)
}

func TestInterestsWorker_Preconditions(t *testing.T) {
	e := newTestEnv(t)
	e.users.Set("")
	assert.Equal(t, Failure, NewInterestsWorker(e.deps).Run(context.Background()))
}

func TestInterestsWorker_TransientPushRetries(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	saveLocalInterests(t, e, []string{"jazz"}, 100, true)
	e.remote.failNext(remote.Transient("set", errors.New("unavailable")))

	assert.Equal(t, Retry, NewInterestsWorker(e.deps).Run(ctx))

	got, err := e.store.GetInterests(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, got.NeedsSync)
}

func TestResolutionIsPureInTimestamps(t *testing.T) {
	local := domain.UserInterests{UserID: "u", Interests: []string{"a"}, LastModified: time.UnixMilli(100)}
	for _, remoteMs := range []int64{50, 100, 150} {
		theirs := &domain.RemoteInterests{Interests: []string{"b"}, LastModified: time.UnixMilli(remoteMs)}
		first := domain.ResolveInterests(local, theirs, testNow)
		second := domain.ResolveInterests(local, theirs, testNow.Add(time.Hour))
		assert.Equal(t, first.Winner, second.Winner)
		assert.Equal(t, remoteMs > 100, first.Winner == domain.RemoteWins)
	}
}

// An interests edit also leaves an outbox row. Whichever worker runs first,
// a newer remote set must win and must not be reported as a tie.
func TestInterestsWorker_OutboxRowNeverOverridesRemote(t *testing.T) {
	for _, tc := range []struct {
		name  string
		order []string
	}{
		{"outbox first", []string{NameOutbox, NameInterests}},
		{"interests first", []string{NameInterests, NameOutbox}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)
			ctx := context.Background()
			saveLocalInterests(t, e, []string{"jazz"}, 100, true)
			row := e.enqueue(t, "user-1", domain.InterestsUpsertPayload{
				UserID: "user-1", Interests: []string{"jazz"}, Version: 1, LastModified: 100,
			}, testNow)
			require.NoError(t, e.docs.Set(ctx, CollectionInterests, "user-1", map[string]any{
				"interests":    []string{"rock"},
				"lastModified": int64(200),
			}, remote.SetOptions{}))

			workers := map[string]Worker{
				NameOutbox:    NewOutboxWorker(e.deps),
				NameInterests: NewInterestsWorker(e.deps),
			}
			for _, name := range tc.order {
				assert.Equal(t, Success, workers[name].Run(ctx), name)
			}

			doc, err := e.docs.Get(ctx, CollectionInterests, "user-1")
			require.NoError(t, err)
			assert.Equal(t, []string{"rock"}, doc.Strings("interests"))
			ms, ok := doc.Int64("lastModified")
			require.True(t, ok)
			assert.Equal(t, int64(200), ms)

			got, err := e.store.GetInterests(ctx, "user-1")
			require.NoError(t, err)
			assert.Equal(t, []string{"rock"}, got.Interests)
			assert.False(t, got.NeedsSync)

			resolution, err := e.store.LastResolution(ctx, "user-1")
			require.NoError(t, err)
			assert.Equal(t, ResolutionRemote, resolution)

			pending, err := e.store.PendingOutbox(ctx, 0)
			require.NoError(t, err)
			for _, p := range pending {
				assert.NotEqual(t, row.ID, p.ID, "interests row left pending")
			}
			batches, sets := e.remote.calls()
			assert.Zero(t, batches)
			assert.Zero(t, sets)
		})
	}
}
