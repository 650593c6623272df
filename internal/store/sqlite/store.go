// Package sqlite implements store.Store on a single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"

	"github.com/moodtune/moodtune-sync/internal/errors"
	"github.com/moodtune/moodtune-sync/internal/events"
	"github.com/moodtune/moodtune-sync/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
}

// allTables lists every table owned by the store, children first.
var allTables = []string{
	store.TableAchievements,
	store.TableSearchHistory,
	store.TableWeather,
	store.TableAIRecommendations,
	store.TableLibrarySections,
	store.TableDailySummaries,
	store.TableSessionActivity,
	store.TableLoginTelemetry,
	store.TableEmotionLogs,
	store.TableInterests,
	store.TableOutbox,
	store.TableUsers,
}

// psq builds statements with SQLite's ? placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// querier is the subset of *sql.DB and *sql.Tx the row helpers need, so
// every write is implemented once and usable inside InTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides SQLite-backed persistence for the sync engine.
type Store struct {
	db     *sql.DB
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time

	lastAccess atomic.Int64
}

var _ store.Store = (*Store)(nil)

// Open creates or opens the database at path, configures the connection
// pool and applies pending migrations.
func Open(path string, bus *events.Bus, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return New(db, bus, logger), nil
}

// New wraps an already migrated database.
func New(db *sql.DB, bus *events.Bus, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, bus: bus, logger: logger, now: time.Now}
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("goose new provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

// InTx runs fn in one transaction. Change events for every touched table
// are published after commit.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.LocalWrite(err, "begin transaction")
	}
	defer sqlTx.Rollback()

	t := &txStore{q: sqlTx, now: s.now}
	if err := fn(t); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return store.LocalWrite(err, "commit transaction")
	}
	s.changed(t.touched...)
	return nil
}

// withTx runs fn inside a transaction on the raw handle.
func (s *Store) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetForDevelopment deletes every row of every table. It refuses to run
// outside the development environment.
func (s *Store) ResetForDevelopment(ctx context.Context, environment string) error {
	if environment != "development" {
		return errors.Precondition("reset is only allowed in development")
	}
	err := s.withTx(ctx, func(q querier) error {
		for _, table := range allTables {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return store.LocalWrite(err, "reset database")
	}
	s.logger.Warn("local database reset", slog.Int("tables", len(allTables)))
	s.changed(allTables...)
	return nil
}

func (s *Store) changed(tables ...string) {
	if s.bus == nil {
		return
	}
	for _, table := range tables {
		s.bus.Publish(events.NewTableChangedEvent(table))
	}
}

// txStore is the store.Tx handed to InTx callbacks.
type txStore struct {
	q       querier
	now     func() time.Time
	touched []string
}

func (t *txStore) touch(table string) {
	if !slices.Contains(t.touched, table) {
		t.touched = append(t.touched, table)
	}
}

// timeLayout is fixed width so stored values sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime formats a time.Time for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored time string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// parseNullableTime parses an optional time string.
func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullTimeString returns a sql.NullString from a *time.Time.
func nullTimeString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// nullString returns a sql.NullString, NULL for the empty string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// boolToInt converts a bool to an int for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// millis and fromMillis convert cache timestamps.
func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// updateByIDs runs one UPDATE ... WHERE id IN (ids) built with squirrel.
func updateByIDs(ctx context.Context, q querier, table string, set map[string]any, ids []int64) (int64, error) {
	query, args, err := psq.Update(table).SetMap(set).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s update: %w", table, err)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface{ Scan(dest ...any) error }

// scanAll drains rows through scan.
func scanAll[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// rowsAffected is RowsAffected with the error folded away for deletes.
func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
