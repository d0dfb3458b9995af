package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/Vodeneev/linecalc/internal/engine"
	"github.com/Vodeneev/linecalc/internal/pkg/config"
)

// Ensure PostgresLineStore implements LineStore
var _ LineStore = (*PostgresLineStore)(nil)

// PostgresLineStore keeps every reported line per match so the opening line
// and the movement since can be recovered.
type PostgresLineStore struct {
	db *sql.DB
}

// NewPostgresLineStore opens the database and creates the schema if needed.
func NewPostgresLineStore(cfg config.PostgresConfig) (*PostgresLineStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := NewPostgresLineStoreWithDB(db)
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL line store initialized successfully")
	return s, nil
}

// NewPostgresLineStoreWithDB wraps an open database without touching the schema.
func NewPostgresLineStoreWithDB(db *sql.DB) *PostgresLineStore {
	return &PostgresLineStore{db: db}
}

func (s *PostgresLineStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS line_snapshots (
		id BIGSERIAL PRIMARY KEY,
		match_key VARCHAR(500) NOT NULL,
		home_team VARCHAR(250) NOT NULL,
		away_team VARCHAR(250) NOT NULL,
		start_time TIMESTAMP NOT NULL,
		spread DOUBLE PRECISION NOT NULL,
		total DOUBLE PRECISION NOT NULL,
		home_form JSONB,
		away_form JSONB,
		source VARCHAR(100) NOT NULL DEFAULT '',
		recorded_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	ALTER TABLE line_snapshots ADD COLUMN IF NOT EXISTS home_form JSONB;
	ALTER TABLE line_snapshots ADD COLUMN IF NOT EXISTS away_form JSONB;

	CREATE INDEX IF NOT EXISTS idx_line_snapshots_match_recorded ON line_snapshots(match_key, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_line_snapshots_start_time ON line_snapshots(start_time);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// AppendLine inserts one snapshot. Rows are never updated, the history is append-only.
func (s *PostgresLineStore) AppendLine(ctx context.Context, snap LineSnapshot) error {
	homeForm, err := formToJSON(snap.HomeForm)
	if err != nil {
		return err
	}
	awayForm, err := formToJSON(snap.AwayForm)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO line_snapshots (
		match_key, home_team, away_team, start_time,
		spread, total, home_form, away_form, source, recorded_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		snap.MatchKey, snap.HomeTeam, snap.AwayTeam, snap.StartTime.UTC(),
		snap.Spread, snap.Total, homeForm, awayForm, snap.Source, snap.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append line snapshot: %w", err)
	}
	return nil
}

const selectSnapshot = `
	SELECT match_key, home_team, away_team, start_time, spread, total, home_form, away_form, source, recorded_at
	FROM line_snapshots
	WHERE match_key = $1
	`

// OpeningLine returns the earliest snapshot of the match.
func (s *PostgresLineStore) OpeningLine(ctx context.Context, matchKey string) (LineSnapshot, error) {
	return s.one(ctx, selectSnapshot+`ORDER BY recorded_at ASC, id ASC LIMIT 1`, matchKey)
}

// LatestLine returns the most recent snapshot of the match.
func (s *PostgresLineStore) LatestLine(ctx context.Context, matchKey string) (LineSnapshot, error) {
	return s.one(ctx, selectSnapshot+`ORDER BY recorded_at DESC, id DESC LIMIT 1`, matchKey)
}

func (s *PostgresLineStore) one(ctx context.Context, query, matchKey string) (LineSnapshot, error) {
	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, query, matchKey))
	if errors.Is(err, sql.ErrNoRows) {
		return LineSnapshot{}, ErrNotFound
	}
	if err != nil {
		return LineSnapshot{}, fmt.Errorf("failed to get line snapshot: %w", err)
	}
	return snap, nil
}

// LineHistory returns the most recent points, oldest first. A limit <= 0 returns all of them.
func (s *PostgresLineStore) LineHistory(ctx context.Context, matchKey string, limit int) ([]LineSnapshot, error) {
	query := selectSnapshot + `ORDER BY recorded_at DESC, id DESC`
	args := []any{matchKey}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query line history: %w", err)
	}
	defer rows.Close()

	var out []LineSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read line history: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CleanStartedMatches deletes snapshots of matches that have already started.
// A zero start time is stored as 0001-01-01 and means the start is unknown.
func (s *PostgresLineStore) CleanStartedMatches(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM line_snapshots WHERE start_time < $1 AND start_time > '0001-01-01 00:00:00'`
	res, err := s.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean line_snapshots: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		slog.Info("Cleaned line_snapshots for started matches", "rows_deleted", rows)
	}
	return rows, nil
}

// Close closes the database connection.
func (s *PostgresLineStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (LineSnapshot, error) {
	var snap LineSnapshot
	var homeForm, awayForm []byte
	err := row.Scan(
		&snap.MatchKey, &snap.HomeTeam, &snap.AwayTeam, &snap.StartTime,
		&snap.Spread, &snap.Total, &homeForm, &awayForm, &snap.Source, &snap.RecordedAt,
	)
	if err != nil {
		return snap, err
	}
	if snap.HomeForm, err = formFromJSON(homeForm); err != nil {
		return snap, err
	}
	snap.AwayForm, err = formFromJSON(awayForm)
	return snap, err
}

// formToJSON encodes a form for a JSONB column, nil for no form.
func formToJSON(f *engine.TeamForm) (any, error) {
	if f == nil {
		return nil, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal team form: %w", err)
	}
	return string(data), nil
}

func formFromJSON(data []byte) (*engine.TeamForm, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var f engine.TeamForm
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal team form: %w", err)
	}
	return &f, nil
}
