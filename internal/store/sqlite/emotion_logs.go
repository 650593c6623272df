package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/store"
)

const emotionLogColumns = `id, user_id, client_id, timestamp, emotions, synced, attempts, last_error, created_at`

func scanEmotionLog(scanner rowScanner) (*domain.EmotionLog, error) {
	var (
		e         domain.EmotionLog
		ts        string
		emotions  string
		synced    int
		lastError sql.NullString
		createdAt string
	)
	err := scanner.Scan(&e.ID, &e.UserID, &e.ClientID, &ts, &emotions, &synced, &e.Attempts, &lastError, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(emotions), &e.Emotions); err != nil {
		return nil, err
	}
	if e.Timestamp, err = parseTime(ts); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	e.Synced = synced != 0
	e.LastError = lastError.String
	return &e, nil
}

func insertEmotionLog(ctx context.Context, q querier, e *domain.EmotionLog, now time.Time) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	data, err := json.Marshal(e.Emotions)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO emotion_logs (user_id, client_id, timestamp, emotions, synced, attempts, created_at)
		VALUES (?, ?, ?, ?, 0, 0, ?)`,
		e.UserID, e.ClientID, formatTime(e.Timestamp), string(data), formatTime(e.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

// InsertEmotionLog stores a new unsynced log and sets e.ID.
func (s *Store) InsertEmotionLog(ctx context.Context, e *domain.EmotionLog) error {
	if err := insertEmotionLog(ctx, s.db, e, s.now()); err != nil {
		return store.LocalWrite(err, "insert emotion log")
	}
	s.changed(store.TableEmotionLogs)
	return nil
}

func (t *txStore) InsertEmotionLog(ctx context.Context, e *domain.EmotionLog) error {
	if err := insertEmotionLog(ctx, t.q, e, t.now()); err != nil {
		return store.LocalWrite(err, "insert emotion log")
	}
	t.touch(store.TableEmotionLogs)
	return nil
}

// UnsyncedEmotionLogs returns unsynced logs of userID below the attempt
// ceiling, oldest first.
func (s *Store) UnsyncedEmotionLogs(ctx context.Context, userID string, limit int) ([]*domain.EmotionLog, error) {
	if limit <= 0 {
		limit = domain.DefaultBatchSize
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+emotionLogColumns+` FROM emotion_logs
		WHERE user_id = ? AND synced = 0 AND attempts < ?
		ORDER BY timestamp ASC, id ASC
		LIMIT ?`, userID, domain.MaxSyncAttempts, limit)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanEmotionLog)
}

// MarkEmotionLogsSynced flips every id in one transaction.
func (s *Store) MarkEmotionLogsSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(q querier) error {
		_, err := updateByIDs(ctx, q, store.TableEmotionLogs, map[string]any{"synced": 1, "last_error": nil}, ids)
		return err
	})
	if err != nil {
		return store.LocalWrite(err, "mark emotion logs synced")
	}
	s.changed(store.TableEmotionLogs)
	return nil
}

// RecordEmotionLogFailure increments attempts and stores msg.
func (s *Store) RecordEmotionLogFailure(ctx context.Context, id int64, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE emotion_logs SET attempts = attempts + 1, last_error = ? WHERE id = ? AND synced = 0`, msg, id)
	if err != nil {
		return store.LocalWrite(err, "record emotion log failure")
	}
	if rowsAffected(res) == 0 {
		return store.ErrNotFound
	}
	s.changed(store.TableEmotionLogs)
	return nil
}

// NoteEmotionLogError stores msg without charging an attempt.
func (s *Store) NoteEmotionLogError(ctx context.Context, id int64, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE emotion_logs SET last_error = ? WHERE id = ? AND synced = 0`, msg, id)
	if err != nil {
		return store.LocalWrite(err, "note emotion log error")
	}
	if rowsAffected(res) == 0 {
		return store.ErrNotFound
	}
	s.changed(store.TableEmotionLogs)
	return nil
}

// DeleteOldSyncedEmotionLogs removes synced logs whose timestamp is before cutoff.
func (s *Store) DeleteOldSyncedEmotionLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM emotion_logs WHERE synced = 1 AND timestamp < ?`, formatTime(cutoff))
	if err != nil {
		return 0, store.LocalWrite(err, "delete old emotion logs")
	}
	n := rowsAffected(res)
	if n > 0 {
		s.changed(store.TableEmotionLogs)
	}
	return n, nil
}

// CountEmotionLogs counts every log of userID.
func (s *Store) CountEmotionLogs(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM emotion_logs WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// CountUnsyncedEmotionLogs counts logs of userID still waiting for sync.
func (s *Store) CountUnsyncedEmotionLogs(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM emotion_logs WHERE user_id = ? AND synced = 0`, userID).Scan(&n)
	return n, err
}

// CountPoisonedEmotionLogs counts unsynced logs of userID at the attempt
// ceiling. They are no longer fetched for sync.
func (s *Store) CountPoisonedEmotionLogs(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM emotion_logs WHERE user_id = ? AND synced = 0 AND attempts >= ?`,
		userID, domain.MaxSyncAttempts).Scan(&n)
	return n, err
}
