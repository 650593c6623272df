package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserInterests_Edit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ui := UserInterests{UserID: "u1", Version: 2}

	input := []string{"jazz", "lofi"}
	ui.Edit(input, now)
	input[0] = "mutated"

	assert.Equal(t, []string{"jazz", "lofi"}, ui.Interests)
	assert.Equal(t, 3, ui.Version)
	assert.Equal(t, now, ui.LastModified)
	assert.True(t, ui.NeedsSync)
}

func TestResolveInterests(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	localTS := now.Add(-time.Hour)

	local := UserInterests{
		UserID:       "u1",
		Interests:    []string{"jazz"},
		Version:      4,
		LastModified: localTS,
		NeedsSync:    true,
	}

	t.Run("remote strictly newer wins", func(t *testing.T) {
		remoteTS := localTS.Add(time.Second)
		res := ResolveInterests(local, &RemoteInterests{Interests: []string{"rock", "metal"}, LastModified: remoteTS}, now)

		assert.Equal(t, RemoteWins, res.Winner)
		assert.False(t, res.Tie)
		assert.Equal(t, []string{"rock", "metal"}, res.Result.Interests)
		require.NotNil(t, res.Result.ServerTimestamp)
		assert.Equal(t, remoteTS, *res.Result.ServerTimestamp)
		assert.False(t, res.Result.NeedsSync)
		assert.Equal(t, 5, res.Result.Version)
	})

	t.Run("local newer wins", func(t *testing.T) {
		res := ResolveInterests(local, &RemoteInterests{Interests: []string{"rock"}, LastModified: localTS.Add(-time.Minute)}, now)

		assert.Equal(t, LocalWins, res.Winner)
		assert.False(t, res.Tie)
		assert.Equal(t, []string{"jazz"}, res.Result.Interests)
		require.NotNil(t, res.Result.ServerTimestamp)
		assert.Equal(t, now, *res.Result.ServerTimestamp)
		assert.False(t, res.Result.NeedsSync)
		assert.Equal(t, 4, res.Result.Version)
	})

	t.Run("equal timestamps keep local and flag the tie", func(t *testing.T) {
		res := ResolveInterests(local, &RemoteInterests{Interests: []string{"rock"}, LastModified: localTS}, now)

		assert.Equal(t, LocalWins, res.Winner)
		assert.True(t, res.Tie)
		assert.Equal(t, []string{"jazz"}, res.Result.Interests)
	})

	t.Run("missing remote keeps local", func(t *testing.T) {
		res := ResolveInterests(local, nil, now)

		assert.Equal(t, LocalWins, res.Winner)
		assert.False(t, res.Tie)
		assert.False(t, res.Result.NeedsSync)
	})

	t.Run("result does not alias the input", func(t *testing.T) {
		res := ResolveInterests(local, nil, now)
		res.Result.Interests[0] = "changed"
		assert.Equal(t, "jazz", local.Interests[0])
	})
}

func TestResolveInterests_DependsOnlyOnTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	base := now.Add(-time.Hour)

	offsets := []time.Duration{-time.Hour, -time.Millisecond, 0, time.Millisecond, time.Hour}
	for _, off := range offsets {
		remoteTS := base.Add(off)
		want := LocalWins
		if remoteTS.After(base) {
			want = RemoteWins
		}

		a := ResolveInterests(
			UserInterests{Interests: []string{"a"}, Version: 1, LastModified: base},
			&RemoteInterests{Interests: []string{"b"}, LastModified: remoteTS}, now)
		b := ResolveInterests(
			UserInterests{Interests: []string{"x", "y", "z"}, Version: 99, LastModified: base, NeedsSync: true},
			&RemoteInterests{Interests: nil, LastModified: remoteTS}, now)

		assert.Equal(t, want, a.Winner, "offset %s", off)
		assert.Equal(t, want, b.Winner, "offset %s", off)
	}
}
