package outcomestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fablecast/fablecast/internal/story"
)

// Schema is the SQL DDL for the generation_outcomes table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS generation_outcomes (
    request_id     TEXT PRIMARY KEY,
    success        BOOLEAN NOT NULL,
    text_content   TEXT NOT NULL DEFAULT '',
    text_model     TEXT NOT NULL DEFAULT '',
    text_usage     JSONB NOT NULL DEFAULT '{}',
    text_attempts  JSONB NOT NULL DEFAULT '[]',
    audio_provider TEXT NOT NULL DEFAULT '',
    audio_metadata JSONB NOT NULL DEFAULT '{}',
    audio_url      TEXT NOT NULL DEFAULT '',
    attempts       JSONB NOT NULL DEFAULT '[]',
    error_message  TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_generation_outcomes_created ON generation_outcomes(created_at DESC);
`

// defaultListLimit bounds List queries when the caller passes 0.
const defaultListLimit = 50

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
// It serialises the provenance sub-fields (usage, attempts, metadata) as JSONB.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// generation_outcomes table and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("outcomestore: migrate: %w", err)
	}
	return nil
}

// Save persists the record, replacing any existing row with the same
// request ID.
func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	if rec.Outcome.RequestID == "" {
		return errors.New("outcomestore: record has no request id")
	}

	usageJSON, err := json.Marshal(emptyMap(rec.Outcome.TextUsage))
	if err != nil {
		return fmt.Errorf("outcomestore: marshal text_usage: %w", err)
	}
	textAttJSON, err := json.Marshal(emptyAttempts(rec.Outcome.TextAttempts))
	if err != nil {
		return fmt.Errorf("outcomestore: marshal text_attempts: %w", err)
	}
	audioMetaJSON, err := json.Marshal(emptyMap(rec.Outcome.AudioMetadata))
	if err != nil {
		return fmt.Errorf("outcomestore: marshal audio_metadata: %w", err)
	}
	attemptsJSON, err := json.Marshal(emptyAttempts(rec.Outcome.Attempts))
	if err != nil {
		return fmt.Errorf("outcomestore: marshal attempts: %w", err)
	}

	const query = `
		INSERT INTO generation_outcomes (
			request_id, success, text_content, text_model, text_usage,
			text_attempts, audio_provider, audio_metadata, audio_url,
			attempts, error_message
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (request_id) DO UPDATE SET
			success = EXCLUDED.success,
			text_content = EXCLUDED.text_content,
			text_model = EXCLUDED.text_model,
			text_usage = EXCLUDED.text_usage,
			text_attempts = EXCLUDED.text_attempts,
			audio_provider = EXCLUDED.audio_provider,
			audio_metadata = EXCLUDED.audio_metadata,
			audio_url = EXCLUDED.audio_url,
			attempts = EXCLUDED.attempts,
			error_message = EXCLUDED.error_message
		RETURNING created_at`

	err = s.db.QueryRow(ctx, query,
		rec.Outcome.RequestID, rec.Outcome.Success, rec.Outcome.TextContent,
		rec.Outcome.TextModel, usageJSON, textAttJSON,
		rec.Outcome.AudioProvider, audioMetaJSON, rec.AudioURL,
		attemptsJSON, rec.Outcome.ErrorMessage,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("outcomestore: save %q: %w", rec.Outcome.RequestID, err)
	}
	return nil
}

// Get retrieves a record by request ID.
func (s *PostgresStore) Get(ctx context.Context, requestID string) (*Record, error) {
	const query = `
		SELECT request_id, success, text_content, text_model, text_usage,
		       text_attempts, audio_provider, audio_metadata, audio_url,
		       attempts, error_message, created_at
		FROM generation_outcomes
		WHERE request_id = $1`

	rec, err := scanRecord(s.db.QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, requestID)
		}
		return nil, fmt.Errorf("outcomestore: get %q: %w", requestID, err)
	}
	return rec, nil
}

// List returns the most recent records, newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	const query = `
		SELECT request_id, success, text_content, text_model, text_usage,
		       text_attempts, audio_provider, audio_metadata, audio_url,
		       attempts, error_message, created_at
		FROM generation_outcomes
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("outcomestore: list: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("outcomestore: list scan: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outcomestore: list: %w", err)
	}
	return recs, nil
}

// scanRecord reads one row into a Record, deserialising the JSONB columns.
func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var usageJSON, textAttJSON, audioMetaJSON, attemptsJSON []byte

	err := row.Scan(
		&rec.Outcome.RequestID, &rec.Outcome.Success, &rec.Outcome.TextContent,
		&rec.Outcome.TextModel, &usageJSON, &textAttJSON,
		&rec.Outcome.AudioProvider, &audioMetaJSON, &rec.AudioURL,
		&attemptsJSON, &rec.Outcome.ErrorMessage, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(usageJSON, &rec.Outcome.TextUsage); err != nil {
		return nil, fmt.Errorf("unmarshal text_usage: %w", err)
	}
	if err := json.Unmarshal(textAttJSON, &rec.Outcome.TextAttempts); err != nil {
		return nil, fmt.Errorf("unmarshal text_attempts: %w", err)
	}
	if err := json.Unmarshal(audioMetaJSON, &rec.Outcome.AudioMetadata); err != nil {
		return nil, fmt.Errorf("unmarshal audio_metadata: %w", err)
	}
	if err := json.Unmarshal(attemptsJSON, &rec.Outcome.Attempts); err != nil {
		return nil, fmt.Errorf("unmarshal attempts: %w", err)
	}
	return &rec, nil
}

// emptyAttempts returns s if non-nil, otherwise an empty non-nil slice. This
// ensures JSON marshalling produces "[]" instead of "null".
func emptyAttempts(s []story.Attempt) []story.Attempt {
	if s == nil {
		return []story.Attempt{}
	}
	return s
}

// emptyMap returns m if non-nil, otherwise an empty non-nil map. This ensures
// JSON marshalling produces "{}" instead of "null".
func emptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
