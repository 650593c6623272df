package sqlite

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/store"
)

const telemetryColumns = `id, email, login_type, success, timestamp, error_message, synced, attempts`

func scanTelemetry(scanner rowScanner) (*domain.LoginTelemetry, error) {
	var (
		t         domain.LoginTelemetry
		loginType string
		success   int
		ts        string
		errMsg    sql.NullString
		synced    int
	)
	err := scanner.Scan(&t.ID, &t.Email, &loginType, &success, &ts, &errMsg, &synced, &t.Attempts)
	if err != nil {
		return nil, err
	}
	t.LoginType = domain.LoginType(loginType)
	t.Success = success != 0
	t.ErrorMessage = errMsg.String
	t.Synced = synced != 0
	if t.Timestamp, err = parseTime(ts); err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertLoginTelemetry records one login attempt and sets t.ID.
func (s *Store) InsertLoginTelemetry(ctx context.Context, t *domain.LoginTelemetry) error {
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO login_telemetry (email, login_type, success, timestamp, error_message, synced, attempts)
		VALUES (?, ?, ?, ?, ?, 0, 0)`,
		t.Email, string(t.LoginType), boolToInt(t.Success), formatTime(t.Timestamp), nullString(t.ErrorMessage))
	if err != nil {
		return store.LocalWrite(err, "insert login telemetry")
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return store.LocalWrite(err, "insert login telemetry")
	}
	s.changed(store.TableLoginTelemetry)
	return nil
}

// PendingTelemetry returns unsynced rows below the attempt ceiling, oldest first.
func (s *Store) PendingTelemetry(ctx context.Context, limit int) ([]*domain.LoginTelemetry, error) {
	if limit <= 0 {
		limit = domain.DefaultBatchSize
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+telemetryColumns+` FROM login_telemetry
		WHERE synced = 0 AND attempts < ?
		ORDER BY timestamp ASC, id ASC
		LIMIT ?`, domain.MaxSyncAttempts, limit)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanTelemetry)
}

// MarkTelemetrySynced flips every id in one transaction.
func (s *Store) MarkTelemetrySynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(q querier) error {
		_, err := updateByIDs(ctx, q, store.TableLoginTelemetry, map[string]any{"synced": 1}, ids)
		return err
	})
	if err != nil {
		return store.LocalWrite(err, "mark telemetry synced")
	}
	s.changed(store.TableLoginTelemetry)
	return nil
}

// RecordTelemetryFailure increments attempts on every id of a failed batch.
// error_message belongs to the login itself and is left alone.
func (s *Store) RecordTelemetryFailure(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(q querier) error {
		_, err := updateByIDs(ctx, q, store.TableLoginTelemetry,
			map[string]any{"attempts": sq.Expr("attempts + 1")}, ids)
		return err
	})
	if err != nil {
		return store.LocalWrite(err, "record telemetry failure")
	}
	s.changed(store.TableLoginTelemetry)
	return nil
}

// ListLoginsSince returns login attempts of email at or after since.
func (s *Store) ListLoginsSince(ctx context.Context, email string, since time.Time) ([]*domain.LoginTelemetry, error) {
	query, args, err := psq.Select(telemetryColumns).
		From(store.TableLoginTelemetry).
		Where(sq.Expr("LOWER(email) = ?", domain.NormalizeEmail(email))).
		Where(sq.GtOrEq{"timestamp": formatTime(since)}).
		OrderBy("timestamp ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanTelemetry)
}

// DeleteSyncedTelemetryBefore removes synced rows older than cutoff.
func (s *Store) DeleteSyncedTelemetryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM login_telemetry WHERE synced = 1 AND timestamp < ?`, formatTime(cutoff))
	if err != nil {
		return 0, store.LocalWrite(err, "delete synced telemetry")
	}
	n := rowsAffected(res)
	if n > 0 {
		s.changed(store.TableLoginTelemetry)
	}
	return n, nil
}
