package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/store"
)

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, email, display_name, sync_status, local_id, version, created_at, updated_at`

// ownedTables are rewritten by ReplaceUserID. The outbox is immutable and
// keeps the id it was enqueued with.
var ownedTables = []string{
	store.TableInterests,
	store.TableEmotionLogs,
	store.TableSessionActivity,
	store.TableDailySummaries,
	store.TableLibrarySections,
	store.TableAIRecommendations,
	store.TableWeather,
	store.TableSearchHistory,
	store.TableAchievements,
}

func scanUser(scanner rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		status    string
		localID   sql.NullString
		createdAt string
		updatedAt string
	)
	err := scanner.Scan(&u.ID, &u.Email, &u.DisplayName, &status, &localID, &u.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	u.SyncStatus = domain.SyncStatus(status)
	u.LocalID = localID.String
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func upsertUser(ctx context.Context, q querier, u *domain.User) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, email, email_lower, display_name, sync_status, local_id, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			email_lower = excluded.email_lower,
			display_name = excluded.display_name,
			sync_status = excluded.sync_status,
			local_id = excluded.local_id,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		u.ID,
		u.Email,
		domain.NormalizeEmail(u.Email),
		u.DisplayName,
		string(u.SyncStatus),
		nullString(u.LocalID),
		u.Version,
		formatTime(u.CreatedAt),
		formatTime(u.UpdatedAt),
	)
	return err
}

// UpsertUser inserts or replaces the user row.
func (s *Store) UpsertUser(ctx context.Context, u *domain.User) error {
	if err := upsertUser(ctx, s.db, u); err != nil {
		return store.LocalWrite(err, "upsert user")
	}
	s.changed(store.TableUsers)
	return nil
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` LIMIT 1`, arg)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return u, err
}

// GetUser returns store.ErrNotFound if no user has id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByEmail matches case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, "email_lower = ?", domain.NormalizeEmail(email))
}

// GetUserByLocalID finds a reconciled user by the local id it was created with.
func (s *Store) GetUserByLocalID(ctx context.Context, localID string) (*domain.User, error) {
	return s.getUser(ctx, "local_id = ?", localID)
}

// ListLocalUsers returns users that have never been reconciled with the remote.
func (s *Store) ListLocalUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id LIKE ? ORDER BY created_at ASC`,
		domain.LocalUserIDPrefix+"-%")
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanUser)
}

// ReplaceUserID moves the row oldID to user.ID and rewrites ownership of
// every user-scoped table in one transaction.
func (s *Store) ReplaceUserID(ctx context.Context, oldID string, u *domain.User) error {
	err := s.withTx(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, oldID)
		if err != nil {
			return err
		}
		if rowsAffected(res) == 0 {
			return store.ErrNotFound
		}
		if err := upsertUser(ctx, q, u); err != nil {
			return err
		}
		if oldID == u.ID {
			return nil
		}
		for _, table := range ownedTables {
			if _, err := q.ExecContext(ctx,
				`UPDATE OR REPLACE `+table+` SET user_id = ? WHERE user_id = ?`, u.ID, oldID); err != nil {
				return fmt.Errorf("reassign %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return store.LocalWrite(err, "replace user id")
	}
	s.changed(append([]string{store.TableUsers}, ownedTables...)...)
	return nil
}

// DeleteUser removes the user row. Owned rows are left for retention cleanup.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return store.LocalWrite(err, "delete user")
	}
	if rowsAffected(res) == 0 {
		return store.ErrNotFound
	}
	s.changed(store.TableUsers)
	return nil
}

func (t *txStore) UpsertUser(ctx context.Context, u *domain.User) error {
	if err := upsertUser(ctx, t.q, u); err != nil {
		return store.LocalWrite(err, "upsert user")
	}
	t.touch(store.TableUsers)
	return nil
}
