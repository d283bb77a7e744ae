// Package sqlitestore is the embedded Store driver. It keeps users and events
// in a single sqlite file and stores timestamps as unix milliseconds.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/stellarlinkco/daypost/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			tg_id INTEGER PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			is_bot INTEGER NOT NULL DEFAULT 0,
			username TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tg_id INTEGER NOT NULL,
			text TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_owner_created ON events(tg_id, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) UpsertUser(ctx context.Context, u store.User) (store.User, error) {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (tg_id, first_name, last_name, is_bot, username, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tg_id) DO NOTHING
	`, u.TgID, u.FirstName, u.LastName, boolToInt(u.IsBot), u.Username, createdAt.UnixMilli())
	if err != nil {
		return store.User{}, store.Unavailable("upsert user", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT tg_id, first_name, last_name, is_bot, username, created_at
		FROM users WHERE tg_id = ?
	`, u.TgID)
	out, err := scanUser(row)
	if err != nil {
		return store.User{}, store.Unavailable("load user", err)
	}
	return out, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]store.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tg_id, first_name, last_name, is_bot, username, created_at
		FROM users ORDER BY tg_id ASC
	`)
	if err != nil {
		return nil, store.Unavailable("list users", err)
	}
	defer rows.Close()

	users := make([]store.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, store.Unavailable("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("iterate users", err)
	}
	return users, nil
}

func (s *Store) InsertEvent(ctx context.Context, e store.Event) (store.Event, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (tg_id, text, created_at) VALUES (?, ?, ?)
	`, e.TgID, e.Text, e.CreatedAt.UnixMilli())
	if err != nil {
		return store.Event{}, store.Unavailable("insert event", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return store.Event{}, store.Unavailable("insert event id", err)
	}
	e.ID = strconv.FormatInt(id, 10)
	return e, nil
}

func (s *Store) FindEvents(ctx context.Context, f store.EventFilter) ([]store.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tg_id, text, created_at
		FROM events
		WHERE tg_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY id ASC
	`, f.TgID, f.From.UnixMilli(), f.To.UnixMilli())
	if err != nil {
		return nil, store.Unavailable("find events", err)
	}
	defer rows.Close()

	events := make([]store.Event, 0)
	for rows.Next() {
		var (
			id        int64
			e         store.Event
			createdAt int64
		)
		if err := rows.Scan(&id, &e.TgID, &e.Text, &createdAt); err != nil {
			return nil, store.Unavailable("scan event", err)
		}
		e.ID = strconv.FormatInt(id, 10)
		e.CreatedAt = time.UnixMilli(createdAt)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("iterate events", err)
	}
	return events, nil
}

func (s *Store) CountEvents(ctx context.Context, f store.EventFilter) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE tg_id = ? AND created_at >= ? AND created_at <= ?
	`, f.TgID, f.From.UnixMilli(), f.To.UnixMilli())
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, store.Unavailable("count events", err)
	}
	return n, nil
}

func (s *Store) DeleteEvents(ctx context.Context, f store.EventFilter) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM events
		WHERE tg_id = ? AND created_at >= ? AND created_at <= ?
	`, f.TgID, f.From.UnixMilli(), f.To.UnixMilli())
	if err != nil {
		return 0, store.Unavailable("delete events", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.Unavailable("delete events count", err)
	}
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return store.Unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (store.User, error) {
	var (
		u         store.User
		isBot     int
		createdAt int64
	)
	if err := r.Scan(&u.TgID, &u.FirstName, &u.LastName, &isBot, &u.Username, &createdAt); err != nil {
		return store.User{}, err
	}
	u.IsBot = isBot == 1
	u.CreatedAt = time.UnixMilli(createdAt)
	return u, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
