// Package sqlstore persists resourcez sessions in a SQL table, for processes
// whose session ids are assigned and shared server side.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq" // PostgreSQL driver for Open.
	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"

	"github.com/zoobzio/resourcez"
)

const (
	defaultTable   = "resource_sessions"
	defaultTimeout = 2 * time.Second
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Config configures the SQL session store.
type Config struct {
	// Table holds one row per session name. Defaults to resource_sessions.
	Table string

	// MaxAge bounds how long a saved session stays loadable. Zero keeps
	// sessions until deleted.
	MaxAge time.Duration

	// Timeout bounds each statement issued through the resourcez.Store
	// methods. Defaults to two seconds.
	Timeout time.Duration
}

// Store implements resourcez.Store on a SQL database.
type Store struct {
	db      *sql.DB
	clock   clockz.Clock
	logger  zerolog.Logger
	table   string
	maxAge  time.Duration
	timeout time.Duration
}

// New creates a store over db.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Store{
		db:      db,
		clock:   clockz.RealClock,
		logger:  zerolog.Nop(),
		table:   cfg.Table,
		maxAge:  cfg.MaxAge,
		timeout: cfg.Timeout,
	}
}

// Open connects to PostgreSQL at dsn and returns a store over it.
func Open(dsn string, cfg Config) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return New(db, cfg), nil
}

// WithClock sets the clock used for expiry.
func (s *Store) WithClock(clock clockz.Clock) *Store {
	s.clock = clock
	return s
}

// WithLogger sets the logger used to report failures swallowed by the
// resourcez.Store methods.
func (s *Store) WithLogger(logger zerolog.Logger) *Store {
	s.logger = logger
	return s
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the session table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name       TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			expires_at TIMESTAMPTZ NULL
		)
	`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating session table: %w", err)
	}
	return nil
}

// SaveContext upserts the session for name.
func (s *Store) SaveContext(ctx context.Context, name string, sess resourcez.Session) error {
	var expiresAt sql.NullTime
	if s.maxAge > 0 {
		expiresAt = sql.NullTime{Time: s.clock.Now().Add(s.maxAge), Valid: true}
	}

	query, args, err := psq.Insert(s.table).
		Columns("name", "session_id", "expires_at").
		Values(name, sess.ID(), expiresAt).
		Suffix("ON CONFLICT (name) DO UPDATE SET session_id = EXCLUDED.session_id, expires_at = EXCLUDED.expires_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building save query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// LoadContext returns the session for name. A missing or expired row yields
// false with a nil error.
func (s *Store) LoadContext(ctx context.Context, name string) (resourcez.Session, bool, error) {
	query, args, err := psq.Select("session_id", "expires_at").
		From(s.table).
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return resourcez.Session{}, false, fmt.Errorf("building load query: %w", err)
	}

	var (
		id        string
		expiresAt sql.NullTime
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&id, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return resourcez.Session{}, false, nil
	}
	if err != nil {
		return resourcez.Session{}, false, fmt.Errorf("loading session: %w", err)
	}
	if expiresAt.Valid && !s.clock.Now().Before(expiresAt.Time) {
		return resourcez.Session{}, false, nil
	}
	if id == "" {
		return resourcez.Session{}, false, nil
	}
	return resourcez.RestoreSession(id), true, nil
}

// DeleteContext removes the session for name.
func (s *Store) DeleteContext(ctx context.Context, name string) error {
	query, args, err := psq.Delete(s.table).
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Cleanup removes expired rows and returns how many were deleted.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	query, args, err := psq.Delete(s.table).
		Where(sq.LtOrEq{"expires_at": s.clock.Now()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building cleanup query: %w", err)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleaning up sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleaned sessions: %w", err)
	}
	return n, nil
}

// Save implements resourcez.Store. Failures are logged.
func (s *Store) Save(name string, sess resourcez.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.SaveContext(ctx, name, sess); err != nil {
		s.logger.Warn().Err(err).Str("session", name).Msg("session not persisted")
	}
}

// Load implements resourcez.Store. Failures are logged and reported as absent.
func (s *Store) Load(name string) (resourcez.Session, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	sess, ok, err := s.LoadContext(ctx, name)
	if err != nil {
		s.logger.Warn().Err(err).Str("session", name).Msg("session not loaded")
		return resourcez.Session{}, false
	}
	return sess, ok
}

// Delete implements resourcez.Store. Failures are logged.
func (s *Store) Delete(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.DeleteContext(ctx, name); err != nil {
		s.logger.Warn().Err(err).Str("session", name).Msg("session not deleted")
	}
}

// Verify interface compliance.
var _ resourcez.Store = (*Store)(nil)
