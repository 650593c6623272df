package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/store"
)

func TestInterests_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetInterests(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	ui := &domain.UserInterests{UserID: "u1"}
	ui.Edit([]string{"lofi", "jazz"}, baseTime)
	require.NoError(t, s.SaveInterests(ctx, ui))

	got, err := s.GetInterests(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"lofi", "jazz"}, got.Interests)
	assert.Equal(t, 1, got.Version)
	assert.True(t, got.NeedsSync)
	assert.Nil(t, got.ServerTimestamp)
	assert.True(t, baseTime.Equal(got.LastModified))
}

func TestApplyResolution_WritesAtExpectedVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ui := &domain.UserInterests{UserID: "u1"}
	ui.Edit([]string{"lofi"}, baseTime)
	require.NoError(t, s.SaveInterests(ctx, ui))

	res := domain.ResolveInterests(*ui, &domain.RemoteInterests{
		Interests:    []string{"metal"},
		LastModified: baseTime.Add(time.Minute),
	}, baseTime.Add(2*time.Minute))
	require.Equal(t, domain.RemoteWins, res.Winner)

	applied, err := s.ApplyResolution(ctx, ui.Version, &res.Result, string(res.Winner))
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := s.GetInterests(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"metal"}, got.Interests)
	assert.False(t, got.NeedsSync)
	assert.Equal(t, 2, got.Version)
	require.NotNil(t, got.ServerTimestamp)
	assert.True(t, baseTime.Add(time.Minute).Equal(*got.ServerTimestamp))

	resolution, err := s.LastResolution(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "remote", resolution)
}

func TestApplyResolution_SkipsWhenEditedMeanwhile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ui := &domain.UserInterests{UserID: "u1"}
	ui.Edit([]string{"lofi"}, baseTime)
	require.NoError(t, s.SaveInterests(ctx, ui))
	snapshot := *ui

	ui.Edit([]string{"lofi", "ambient"}, baseTime.Add(time.Second))
	require.NoError(t, s.SaveInterests(ctx, ui))

	res := domain.ResolveInterests(snapshot, nil, baseTime.Add(time.Minute))
	applied, err := s.ApplyResolution(ctx, snapshot.Version, &res.Result, string(res.Winner))
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.GetInterests(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.NeedsSync)
	assert.Equal(t, []string{"lofi", "ambient"}, got.Interests)
}
