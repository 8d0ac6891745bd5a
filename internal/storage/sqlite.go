package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "cheerbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) UpsertSubscriber(ctx context.Context, sub Subscriber) error {
	if sub.LastActiveAt.IsZero() {
		sub.LastActiveAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers(id, first_name, username, last_active_at)
		 VALUES(?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   first_name     = excluded.first_name,
		   username       = excluded.username,
		   last_active_at = excluded.last_active_at`,
		sub.ID, sub.FirstName, nullStr(sub.Username), sub.LastActiveAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert subscriber %d: %w", sub.ID, err)
	}
	return nil
}

func (s *sqliteStore) RemoveSubscriber(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove subscriber %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) GetSubscriber(ctx context.Context, id int64) (Subscriber, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, username, last_active_at FROM subscribers WHERE id = ?`, id)
	sub, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscriber{}, ErrNotFound
	}
	if err != nil {
		return Subscriber{}, fmt.Errorf("get subscriber %d: %w", id, err)
	}
	return sub, nil
}

func (s *sqliteStore) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	return s.querySubscribers(ctx,
		`SELECT id, first_name, username, last_active_at FROM subscribers ORDER BY id`)
}

func (s *sqliteStore) RecentSubscribers(ctx context.Context, limit int) ([]Subscriber, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.querySubscribers(ctx,
		`SELECT id, first_name, username, last_active_at FROM subscribers
		 ORDER BY last_active_at DESC LIMIT ?`, limit)
}

func (s *sqliteStore) querySubscribers(ctx context.Context, q string, args ...any) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CountSubscribers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return n, nil
}

func (s *sqliteStore) LogDispatch(ctx context.Context, r DispatchRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatch_log(at, kind, attempted, delivered, failed, took_ms)
		 VALUES(?,?,?,?,?,?)`,
		r.At.UnixMilli(), r.Kind, r.Attempted, r.Delivered, r.Failed, r.TookMS,
	)
	if err != nil {
		return fmt.Errorf("log dispatch: %w", err)
	}
	return nil
}

func (s *sqliteStore) RecentDispatches(ctx context.Context, limit int) ([]DispatchRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, kind, attempted, delivered, failed, took_ms FROM dispatch_log
		 ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatch log: %w", err)
	}
	defer rows.Close()

	var out []DispatchRecord
	for rows.Next() {
		var r DispatchRecord
		var at int64
		if err := rows.Scan(&at, &r.Kind, &r.Attempted, &r.Delivered, &r.Failed, &r.TookMS); err != nil {
			return nil, err
		}
		r.At = time.UnixMilli(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (Subscriber, error) {
	var sub Subscriber
	var username sql.NullString
	var at int64
	if err := row.Scan(&sub.ID, &sub.FirstName, &username, &at); err != nil {
		return Subscriber{}, err
	}
	sub.Username = username.String
	sub.LastActiveAt = time.UnixMilli(at)
	return sub, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
