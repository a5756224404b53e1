// Package store persists transient view state: each browser's wizard and board
// snapshots, operator auth sessions and a few settings. It runs on sqlite or postgres.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Driver selects the database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// DefaultSessionTTL is how long view and auth sessions live without a TTL option.
const DefaultSessionTTL = 24 * time.Hour

type Store struct {
	db     *sql.DB
	driver Driver
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the lifetime of view and auth sessions.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// New opens a sqlite store at dbPath. ":memory:" gives a private in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if dbPath == ":memory:" {
		dsn = dbPath
	}
	return Open(context.Background(), DriverSQLite, dsn, opts...)
}

// Open opens a store with the given driver and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string, opts ...Option) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "sheetgrader.db"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/sheetgrader?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// An in-memory database exists per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, driver: driver, ttl: DefaultSessionTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// TTL returns the session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Timestamps are unix seconds so both drivers store them the same way.
const schema = `
CREATE TABLE IF NOT EXISTS view_sessions (
	id TEXT PRIMARY KEY,
	wizard_json TEXT NOT NULL DEFAULT '',
	board_json TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL,
	expires_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	operator TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	expires_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_view_sessions_expires ON view_sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_auth_sessions_expires ON auth_sessions(expires_at);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CleanupExpired removes expired view and auth sessions and returns how many rows went.
func (s *Store) CleanupExpired() (int64, error) {
	now := s.now().Unix()
	var total int64
	for _, q := range []string{
		`DELETE FROM view_sessions WHERE expires_at < $1`,
		`DELETE FROM auth_sessions WHERE expires_at < $1`,
	} {
		res, err := s.db.Exec(q, now)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
