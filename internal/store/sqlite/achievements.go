package sqlite

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/store"
)

const achievementColumns = `user_id, achievement_id, unlocked_at, sync_status`

func scanAchievement(scanner rowScanner) (*domain.Achievement, error) {
	var (
		a          domain.Achievement
		unlockedAt string
		status     string
	)
	if err := scanner.Scan(&a.UserID, &a.AchievementID, &unlockedAt, &status); err != nil {
		return nil, err
	}
	var err error
	if a.UnlockedAt, err = parseTime(unlockedAt); err != nil {
		return nil, err
	}
	a.SyncStatus = domain.SyncStatus(status)
	return &a, nil
}

func insertAchievement(ctx context.Context, q querier, a *domain.Achievement) error {
	if a.SyncStatus == "" {
		a.SyncStatus = domain.SyncStatusPending
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO achievements (user_id, achievement_id, unlocked_at, sync_status)
		VALUES (?, ?, ?, ?)`,
		a.UserID, a.AchievementID, formatTime(a.UnlockedAt), string(a.SyncStatus))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetAchievement returns store.ErrNotFound if the pair was never unlocked.
func (s *Store) GetAchievement(ctx context.Context, userID, achievementID string) (*domain.Achievement, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+achievementColumns+` FROM achievements WHERE user_id = ? AND achievement_id = ?`,
		userID, achievementID)
	a, err := scanAchievement(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return a, err
}

// InsertAchievement returns store.ErrAlreadyExists on a repeat unlock.
func (s *Store) InsertAchievement(ctx context.Context, a *domain.Achievement) error {
	if err := insertAchievement(ctx, s.db, a); err != nil {
		return store.LocalWrite(err, "insert achievement")
	}
	s.changed(store.TableAchievements)
	return nil
}

func (t *txStore) InsertAchievement(ctx context.Context, a *domain.Achievement) error {
	if err := insertAchievement(ctx, t.q, a); err != nil {
		return store.LocalWrite(err, "insert achievement")
	}
	t.touch(store.TableAchievements)
	return nil
}

// ListAchievements returns every achievement of userID in unlock order.
func (s *Store) ListAchievements(ctx context.Context, userID string) ([]*domain.Achievement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+achievementColumns+` FROM achievements WHERE user_id = ? ORDER BY unlocked_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanAchievement)
}

// PendingAchievements returns achievements of userID not yet pushed.
func (s *Store) PendingAchievements(ctx context.Context, userID string) ([]*domain.Achievement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+achievementColumns+` FROM achievements
		WHERE user_id = ? AND sync_status != ?
		ORDER BY unlocked_at ASC`, userID, string(domain.SyncStatusSynced))
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanAchievement)
}

// MarkAchievementsSynced flags the listed achievements of userID as synced.
func (s *Store) MarkAchievementsSynced(ctx context.Context, userID string, achievementIDs []string) error {
	if len(achievementIDs) == 0 {
		return nil
	}
	query, args, err := psq.Update(store.TableAchievements).
		Set("sync_status", string(domain.SyncStatusSynced)).
		Where(sq.Eq{"user_id": userID, "achievement_id": achievementIDs}).
		ToSql()
	if err != nil {
		return store.LocalWrite(err, "mark achievements synced")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return store.LocalWrite(err, "mark achievements synced")
	}
	s.changed(store.TableAchievements)
	return nil
}
