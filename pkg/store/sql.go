package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Mindburn-Labs/turnkernel/pkg/thread"
)

// Dialect selects placeholder syntax.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore persists thread state in a relational table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	clock   func() time.Time
	logger  *slog.Logger
}

// OpenSQL opens a database for d. The driver name matches the dialect.
func OpenSQL(d Dialect, dsn string) (*sql.DB, error) {
	switch d {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("store: unknown dialect %q", d)
	}
	db, err := sql.Open(string(d), dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", d, err)
	}
	if d == DialectSQLite {
		// A single connection keeps ":memory:" databases shared and serializes writes.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// NewSQLStore wraps db. Call Migrate before first use.
func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: d,
		clock:   time.Now,
		logger:  slog.Default().With("component", "thread_store", "backend", string(d)),
	}
}

// WithClock overrides the clock for deterministic testing.
func (s *SQLStore) WithClock(clock func() time.Time) *SQLStore {
	s.clock = clock
	return s
}

// Migrate creates the thread_states table if needed.
func (s *SQLStore) Migrate(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS thread_states (
        thread_id TEXT PRIMARY KEY,
        state TEXT NOT NULL,
        updated_at TIMESTAMP NOT NULL
    )`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, threadID string) (thread.State, error) {
	if err := checkID(threadID); err != nil {
		return thread.State{}, err
	}
	var raw string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT state FROM thread_states WHERE thread_id = ?`), threadID).Scan(&raw)
	if err == sql.ErrNoRows {
		return thread.State{}, nil
	}
	if err != nil {
		return thread.State{}, fmt.Errorf("store: load %s: %w", threadID, err)
	}
	st, err := decode([]byte(raw))
	if err != nil {
		s.logger.ErrorContext(ctx, "stored thread state rejected", "thread_id", threadID, "error", err)
		return thread.State{}, err
	}
	return st, nil
}

func (s *SQLStore) Save(ctx context.Context, threadID string, st thread.State) error {
	if err := checkID(threadID); err != nil {
		return err
	}
	if st.Empty() {
		return s.Delete(ctx, threadID)
	}
	b, err := encode(st)
	if err != nil {
		return err
	}
	query := s.rebind(`INSERT INTO thread_states (thread_id, state, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (thread_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, threadID, string(b), s.clock().UTC()); err != nil {
		return fmt.Errorf("store: save %s: %w", threadID, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, threadID string) error {
	if err := checkID(threadID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM thread_states WHERE thread_id = ?`), threadID); err != nil {
		return fmt.Errorf("store: delete %s: %w", threadID, err)
	}
	return nil
}

// rebind rewrites ? placeholders as $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
