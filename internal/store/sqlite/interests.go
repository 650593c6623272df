package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/store"
)

const interestsColumns = `user_id, interests, version, last_modified, server_timestamp, needs_sync`

func scanInterests(scanner rowScanner) (*domain.UserInterests, error) {
	var (
		ui           domain.UserInterests
		interests    string
		lastModified string
		serverTS     sql.NullString
		needsSync    int
	)
	err := scanner.Scan(&ui.UserID, &interests, &ui.Version, &lastModified, &serverTS, &needsSync)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(interests), &ui.Interests); err != nil {
		return nil, err
	}
	if ui.LastModified, err = parseTime(lastModified); err != nil {
		return nil, err
	}
	if ui.ServerTimestamp, err = parseNullableTime(serverTS); err != nil {
		return nil, err
	}
	ui.NeedsSync = needsSync != 0
	return &ui, nil
}

func saveInterests(ctx context.Context, q querier, ui *domain.UserInterests) error {
	interests := ui.Interests
	if interests == nil {
		interests = []string{}
	}
	data, err := json.Marshal(interests)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO user_interests (user_id, interests, version, last_modified, server_timestamp, needs_sync)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			interests = excluded.interests,
			version = excluded.version,
			last_modified = excluded.last_modified,
			server_timestamp = excluded.server_timestamp,
			needs_sync = excluded.needs_sync`,
		ui.UserID, string(data), ui.Version, formatTime(ui.LastModified),
		nullTimeString(ui.ServerTimestamp), boolToInt(ui.NeedsSync))
	return err
}

// GetInterests returns store.ErrNotFound if the user never saved interests.
func (s *Store) GetInterests(ctx context.Context, userID string) (*domain.UserInterests, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+interestsColumns+` FROM user_interests WHERE user_id = ?`, userID)
	ui, err := scanInterests(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return ui, err
}

// SaveInterests replaces the user's interest row.
func (s *Store) SaveInterests(ctx context.Context, ui *domain.UserInterests) error {
	if err := saveInterests(ctx, s.db, ui); err != nil {
		return store.LocalWrite(err, "save interests")
	}
	s.changed(store.TableInterests)
	return nil
}

func (t *txStore) SaveInterests(ctx context.Context, ui *domain.UserInterests) error {
	if err := saveInterests(ctx, t.q, ui); err != nil {
		return store.LocalWrite(err, "save interests")
	}
	t.touch(store.TableInterests)
	return nil
}

// ApplyResolution writes result only while the row is still at
// expectedVersion, so an edit made during the remote round trip is never
// overwritten and keeps needs_sync set.
func (s *Store) ApplyResolution(ctx context.Context, expectedVersion int, result *domain.UserInterests, resolution string) (bool, error) {
	data, err := json.Marshal(result.Interests)
	if err != nil {
		return false, store.LocalWrite(err, "apply interests resolution")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_interests SET
			interests = ?,
			version = ?,
			server_timestamp = ?,
			needs_sync = ?,
			last_resolution = ?
		WHERE user_id = ? AND version = ?`,
		string(data), result.Version, nullTimeString(result.ServerTimestamp),
		boolToInt(result.NeedsSync), nullString(resolution), result.UserID, expectedVersion)
	if err != nil {
		return false, store.LocalWrite(err, "apply interests resolution")
	}
	if rowsAffected(res) == 0 {
		return false, nil
	}
	s.changed(store.TableInterests)
	return true, nil
}

// LastResolution reports how the last conflict for userID was settled.
func (s *Store) LastResolution(ctx context.Context, userID string) (string, error) {
	var resolution sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT last_resolution FROM user_interests WHERE user_id = ?`, userID).Scan(&resolution)
	if err == sql.ErrNoRows {
		return "", store.ErrNotFound
	}
	return resolution.String, err
}
