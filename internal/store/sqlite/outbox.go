package sqlite

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/store"
)

const outboxColumns = `id, op_type, user_id, idempotency_key, payload, created_at, synced, attempts, last_error`

func scanOutbox(scanner rowScanner) (*domain.OutboxOperation, error) {
	var (
		op        domain.OutboxOperation
		opType    string
		createdAt string
		synced    int
		lastError sql.NullString
	)
	err := scanner.Scan(&op.ID, &opType, &op.UserID, &op.IdempotencyKey, &op.Payload,
		&createdAt, &synced, &op.Attempts, &lastError)
	if err != nil {
		return nil, err
	}
	op.Type = domain.OperationType(opType)
	op.Synced = synced != 0
	op.LastError = lastError.String
	if op.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &op, nil
}

func enqueue(ctx context.Context, q querier, op *domain.OutboxOperation, now time.Time) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO outbox (op_type, user_id, idempotency_key, payload, created_at, synced, attempts)
		VALUES (?, ?, ?, ?, ?, 0, 0)`,
		string(op.Type), op.UserID, op.IdempotencyKey, op.Payload, formatTime(op.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	op.ID, err = res.LastInsertId()
	op.Synced = false
	op.Attempts = 0
	return err
}

// Enqueue appends op as unsynced with zero attempts and sets op.ID.
func (s *Store) Enqueue(ctx context.Context, op *domain.OutboxOperation) error {
	if err := enqueue(ctx, s.db, op, s.now()); err != nil {
		return store.LocalWrite(err, "enqueue outbox operation")
	}
	s.changed(store.TableOutbox)
	return nil
}

func (t *txStore) Enqueue(ctx context.Context, op *domain.OutboxOperation) error {
	if err := enqueue(ctx, t.q, op, t.now()); err != nil {
		return store.LocalWrite(err, "enqueue outbox operation")
	}
	t.touch(store.TableOutbox)
	return nil
}

// PendingOutbox returns unsynced rows below the attempt ceiling, oldest first.
func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]*domain.OutboxOperation, error) {
	if limit <= 0 {
		limit = domain.DefaultBatchSize
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+outboxColumns+` FROM outbox
		WHERE synced = 0 AND attempts < ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, domain.MaxSyncAttempts, limit)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanOutbox)
}

// PoisonedOutbox returns unsynced rows that reached the attempt ceiling.
func (s *Store) PoisonedOutbox(ctx context.Context, limit int) ([]*domain.OutboxOperation, error) {
	if limit <= 0 {
		limit = domain.DefaultBatchSize
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+outboxColumns+` FROM outbox
		WHERE synced = 0 AND attempts >= ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, domain.MaxSyncAttempts, limit)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanOutbox)
}

// MarkOutboxSynced flips every id in one transaction. Ids that are already
// synced or missing are ignored.
func (s *Store) MarkOutboxSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(q querier) error {
		_, err := updateByIDs(ctx, q, store.TableOutbox, map[string]any{"synced": 1, "last_error": nil}, ids)
		return err
	})
	if err != nil {
		return store.LocalWrite(err, "mark outbox synced")
	}
	s.changed(store.TableOutbox)
	return nil
}

// RecordOutboxFailure increments attempts and stores msg as last_error.
func (s *Store) RecordOutboxFailure(ctx context.Context, id int64, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE id = ? AND synced = 0`, msg, id)
	if err != nil {
		return store.LocalWrite(err, "record outbox failure")
	}
	if rowsAffected(res) == 0 {
		return store.ErrNotFound
	}
	s.changed(store.TableOutbox)
	return nil
}

// NoteOutboxError stores msg as last_error on the unsynced ids and leaves
// attempts alone.
func (s *Store) NoteOutboxError(ctx context.Context, ids []int64, msg string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psq.Update(store.TableOutbox).
		Set("last_error", msg).
		Where(sq.Eq{"id": ids, "synced": 0}).
		ToSql()
	if err != nil {
		return store.LocalWrite(err, "note outbox error")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return store.LocalWrite(err, "note outbox error")
	}
	s.changed(store.TableOutbox)
	return nil
}

// ResetOutboxAttempts makes poisoned rows eligible again.
func (s *Store) ResetOutboxAttempts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(q querier) error {
		_, err := updateByIDs(ctx, q, store.TableOutbox, map[string]any{"attempts": 0}, ids)
		return err
	})
	if err != nil {
		return store.LocalWrite(err, "reset outbox attempts")
	}
	s.changed(store.TableOutbox)
	return nil
}

// DeleteSyncedOutboxBefore removes synced rows created before cutoff.
func (s *Store) DeleteSyncedOutboxBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE synced = 1 AND created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, store.LocalWrite(err, "delete synced outbox rows")
	}
	n := rowsAffected(res)
	if n > 0 {
		s.changed(store.TableOutbox)
	}
	return n, nil
}

// CountPendingOutbox counts unsynced rows below the attempt ceiling.
func (s *Store) CountPendingOutbox(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE synced = 0 AND attempts < ?`, domain.MaxSyncAttempts).Scan(&n)
	return n, err
}

// PendingOutboxByType groups CountPendingOutbox by operation type.
func (s *Store) PendingOutboxByType(ctx context.Context) (map[domain.OperationType]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op_type, COUNT(*) FROM outbox
		WHERE synced = 0 AND attempts < ?
		GROUP BY op_type`, domain.MaxSyncAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.OperationType]int)
	for rows.Next() {
		var (
			opType string
			n      int
		)
		if err := rows.Scan(&opType, &n); err != nil {
			return nil, err
		}
		counts[domain.OperationType(opType)] = n
	}
	return counts, rows.Err()
}

// ListOutboxSince returns every row of userID created at or after since,
// synced or not, oldest first.
func (s *Store) ListOutboxSince(ctx context.Context, userID string, since time.Time) ([]*domain.OutboxOperation, error) {
	query, args, err := psq.Select(outboxColumns).
		From(store.TableOutbox).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.GtOrEq{"created_at": formatTime(since)}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanOutbox)
}
