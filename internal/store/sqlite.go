package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/tonechat/internal/domain"
	"github.com/ashureev/tonechat/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS chat_states (
		owner_id TEXT PRIMARY KEY,
		topics_json TEXT NOT NULL,
		transcripts_json TEXT NOT NULL,
		tone_json TEXT NOT NULL DEFAULT '',
		active_topic TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS magic_links (
		token TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_magic_links_expires ON magic_links(expires_at);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		session_id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		email TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_auth_sessions_expires ON auth_sessions(expires_at);
	CREATE INDEX IF NOT EXISTS idx_auth_sessions_owner ON auth_sessions(owner_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// LoadState retrieves the owner's chat state.
func (s *SQLiteStore) LoadState(ctx context.Context, ownerID string) (*domain.SessionState, error) {
	query := `
		SELECT topics_json, transcripts_json, tone_json, active_topic
		FROM chat_states WHERE owner_id = ?`

	var rec stateRecord
	err := s.db.QueryRowContext(ctx, query, ownerID).Scan(
		&rec.TopicsJSON, &rec.TranscriptsJSON, &rec.ToneJSON, &rec.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat state: %w", err)
	}

	return decodeState(ownerID, rec), nil
}

// SaveState writes the owner's chat state as a single row upsert.
func (s *SQLiteStore) SaveState(ctx context.Context, ownerID string, state *domain.SessionState) error {
	rec, err := encodeState(state)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO chat_states (owner_id, topics_json, transcripts_json, tone_json, active_topic, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(owner_id) DO UPDATE SET
		topics_json = excluded.topics_json,
		transcripts_json = excluded.transcripts_json,
		tone_json = excluded.tone_json,
		active_topic = excluded.active_topic,
		updated_at = excluded.updated_at`

	err = shared.RetryOnConflict(ctx, s.retry, "save_state", func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			ownerID, rec.TopicsJSON, rec.TranscriptsJSON, rec.ToneJSON, rec.Active,
			time.Now().Unix(),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("upsert chat state: %w", err)
	}
	return nil
}

// CreateMagicLink stores a new sign-in token.
func (s *SQLiteStore) CreateMagicLink(ctx context.Context, link *domain.MagicLink) error {
	query := `INSERT INTO magic_links (token, email, expires_at, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		link.Token, link.Email, link.ExpiresAt.Unix(), link.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert magic link: %w", err)
	}
	return nil
}

// ConsumeMagicLink deletes the token and returns it if it was still valid.
func (s *SQLiteStore) ConsumeMagicLink(ctx context.Context, token string, now time.Time) (*domain.MagicLink, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin consume magic link: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to rollback magic link consume", "error", rbErr)
		}
	}()

	var link domain.MagicLink
	var expiresAt, createdAt int64
	err = tx.QueryRowContext(ctx,
		`SELECT token, email, expires_at, created_at FROM magic_links WHERE token = ?`, token,
	).Scan(&link.Token, &link.Email, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan magic link: %w", err)
	}
	link.ExpiresAt = time.Unix(expiresAt, 0)
	link.CreatedAt = time.Unix(createdAt, 0)

	if _, err := tx.ExecContext(ctx, `DELETE FROM magic_links WHERE token = ?`, token); err != nil {
		return nil, fmt.Errorf("delete magic link: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit consume magic link: %w", err)
	}

	if link.Expired(now) {
		return nil, ErrNotFound
	}
	return &link, nil
}

// CreateAuthSession stores an authenticated session.
func (s *SQLiteStore) CreateAuthSession(ctx context.Context, session *domain.AuthSession) error {
	query := `
	INSERT INTO auth_sessions (session_id, owner_id, email, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.OwnerID, session.Email,
		session.ExpiresAt.Unix(), session.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert auth session: %w", err)
	}
	return nil
}

// GetAuthSession retrieves a session by ID.
func (s *SQLiteStore) GetAuthSession(ctx context.Context, id string) (*domain.AuthSession, error) {
	query := `
		SELECT session_id, owner_id, email, expires_at, created_at
		FROM auth_sessions WHERE session_id = ?`

	var session domain.AuthSession
	var expiresAt, createdAt int64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.OwnerID, &session.Email, &expiresAt, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan auth session: %w", err)
	}

	session.ExpiresAt = time.Unix(expiresAt, 0)
	session.CreatedAt = time.Unix(createdAt, 0)
	return &session, nil
}

// DeleteAuthSession removes a session.
func (s *SQLiteStore) DeleteAuthSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete auth session: %w", err)
	}
	return nil
}

// CountAuthSessions returns how many unexpired sessions the owner holds.
func (s *SQLiteStore) CountAuthSessions(ctx context.Context, ownerID string, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM auth_sessions WHERE owner_id = ? AND expires_at > ?`,
		ownerID, now.Unix(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count auth sessions: %w", err)
	}
	return n, nil
}

// CleanupExpired removes expired magic links and auth sessions.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Unix()

	linkRes, err := s.db.ExecContext(ctx, `DELETE FROM magic_links WHERE expires_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup magic links: %w", err)
	}
	links, err := linkRes.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("magic link rows affected: %w", err)
	}

	sessRes, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup auth sessions: %w", err)
	}
	sessions, err := sessRes.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("auth session rows affected: %w", err)
	}

	return links + sessions, nil
}

var _ Repository = (*SQLiteStore)(nil)
