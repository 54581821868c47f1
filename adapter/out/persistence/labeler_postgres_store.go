package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"labeler_server/core/domain"
	"labeler_server/core/port/out"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresStore keeps the model state as one JSONB row, with a label summary
// column for inspection from SQL. Saves run in a single transaction.
type PostgresStore struct {
	db      *sqlx.DB
	table   string
	stateID string
	codec   *Codec
}

var (
	_ out.ModelStore    = (*PostgresStore)(nil)
	_ out.HealthChecker = (*PostgresStore)(nil)
)

// NewPostgresStore creates a store writing row stateID of table.
func NewPostgresStore(db *sqlx.DB, table, stateID string, codec *Codec) (*PostgresStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{db: db, table: table, stateID: stateID, codec: codec}, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

// modelStateRow represents the database row for the model state.
type modelStateRow struct {
	ID           string         `db:"id"`
	Version      int            `db:"version"`
	State        []byte         `db:"state"`
	Labels       pq.StringArray `db:"labels"`
	ExampleCount int            `db:"example_count"`
	IsTrained    bool           `db:"is_trained"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// EnsureSchema creates the state table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id            TEXT PRIMARY KEY,
			version       INT NOT NULL,
			state         JSONB NOT NULL,
			labels        TEXT[] NOT NULL DEFAULT '{}',
			example_count INT NOT NULL DEFAULT 0,
			is_trained    BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*domain.ModelState, error) {
	query := fmt.Sprintf(`SELECT id, version, state, labels, example_count, is_trained, updated_at FROM %s WHERE id = $1`, s.table)

	var row modelStateRow
	if err := s.db.GetContext(ctx, &row, query, s.stateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("select model state: %w", err)
	}
	return s.codec.Decode(row.State)
}

func (s *PostgresStore) Save(ctx context.Context, state *domain.ModelState) error {
	data, err := s.codec.Encode(state)
	if err != nil {
		return err
	}

	row := modelStateRow{
		ID:           s.stateID,
		Version:      domain.ModelStateVersion,
		State:        data,
		Labels:       pq.StringArray(state.Corpus.DistinctLabels()),
		ExampleCount: state.Corpus.Len(),
		IsTrained:    state.IsTrained,
		UpdatedAt:    state.UpdatedAt,
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, version, state, labels, example_count, is_trained, updated_at)
		VALUES (:id, :version, :state, :labels, :example_count, :is_trained, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			version = EXCLUDED.version,
			state = EXCLUDED.state,
			labels = EXCLUDED.labels,
			example_count = EXCLUDED.example_count,
			is_trained = EXCLUDED.is_trained,
			updated_at = EXCLUDED.updated_at`, s.table)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("upsert model state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
