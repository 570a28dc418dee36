package outcomestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ---------------------------------------------------------------------------
// Test helpers — mock DB types
// ---------------------------------------------------------------------------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockRows implements pgx.Rows for testing.
type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	return scanInto(r.data[r.idx-1], dest)
}

func (r *mockRows) Values() ([]any, error) { return nil, nil }

// scanInto copies a mock row into scan destinations.
func scanInto(row []any, dest []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

// mockDB implements the DB interface for testing.
type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

// sampleRow builds a full generation_outcomes row for scan tests.
func sampleRow(id string, created time.Time) []any {
	return []any{
		id,          // request_id
		true,        // success
		"a story",   // text_content
		"gpt-4o",    // text_model
		[]byte(`{"total_tokens":512}`),                                       // text_usage
		[]byte(`[{"provider":"gpt-4o","succeeded":true,"latency_ms":1400}]`), // text_attempts
		"elevenlabs", // audio_provider
		[]byte(`{"language":"en"}`), // audio_metadata
		"file:///tmp/" + id + ".mp3",                                            // audio_url
		[]byte(`[{"provider":"elevenlabs","succeeded":true,"latency_ms":900}]`), // attempts
		"",      // error_message
		created, // created_at
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPostgresStore_Migrate(t *testing.T) {
	t.Parallel()

	var gotSQL string
	db := &mockDB{
		execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			gotSQL = sql
			return pgconn.CommandTag{}, nil
		},
	}

	s := NewPostgresStore(db)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !strings.Contains(gotSQL, "CREATE TABLE IF NOT EXISTS generation_outcomes") {
		t.Errorf("Migrate did not execute the schema DDL, got: %s", gotSQL)
	}
}

func TestPostgresStore_SaveMarshalsProvenance(t *testing.T) {
	t.Parallel()

	var gotArgs []any
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
			gotArgs = args
			return &mockRow{scanFunc: func(dest ...any) error {
				*(dest[0].(*time.Time)) = time.Now()
				return nil
			}}
		},
	}

	s := NewPostgresStore(db)
	rec := testRecord("req-pg")
	// Leave optional fields nil to verify they serialise as empty JSON
	// containers rather than null.
	rec.Outcome.TextUsage = nil
	rec.Outcome.TextAttempts = nil

	if err := s.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Save should populate CreatedAt from RETURNING")
	}
	if len(gotArgs) != 11 {
		t.Fatalf("Save passed %d args, want 11", len(gotArgs))
	}

	// text_usage ($5) and text_attempts ($6) must be valid empty containers.
	if got := string(gotArgs[4].([]byte)); got != "{}" {
		t.Errorf("nil usage serialised as %q, want {}", got)
	}
	if got := string(gotArgs[5].([]byte)); got != "[]" {
		t.Errorf("nil text attempts serialised as %q, want []", got)
	}

	// attempts ($10) carries the voice trail.
	var attempts []map[string]any
	if err := json.Unmarshal(gotArgs[9].([]byte), &attempts); err != nil {
		t.Fatalf("attempts arg is not valid JSON: %v", err)
	}
	if len(attempts) != 1 || attempts[0]["provider"] != "elevenlabs" {
		t.Errorf("attempts JSON = %v, want one elevenlabs entry", attempts)
	}
}

func TestPostgresStore_SaveRequiresRequestID(t *testing.T) {
	t.Parallel()
	s := NewPostgresStore(&mockDB{})
	if err := s.Save(context.Background(), &Record{}); err == nil {
		t.Fatal("expected error for record without request id")
	}
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	t.Parallel()
	s := NewPostgresStore(&mockDB{}) // default QueryRow returns ErrNoRows

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresStore_GetUnmarshalsRow(t *testing.T) {
	t.Parallel()

	created := time.Now().Add(-time.Hour)
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
			return &mockRow{scanFunc: func(dest ...any) error {
				return scanInto(sampleRow("req-42", created), dest)
			}}
		},
	}

	s := NewPostgresStore(db)
	rec, err := s.Get(context.Background(), "req-42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if rec.Outcome.RequestID != "req-42" {
		t.Errorf("request id = %q, want %q", rec.Outcome.RequestID, "req-42")
	}
	if !rec.Outcome.Success {
		t.Error("success should be true")
	}
	if rec.Outcome.TextUsage["total_tokens"] != float64(512) {
		t.Errorf("text usage = %v, want total_tokens=512", rec.Outcome.TextUsage)
	}
	if len(rec.Outcome.Attempts) != 1 || rec.Outcome.Attempts[0].Provider != "elevenlabs" {
		t.Errorf("attempts = %v, want one elevenlabs entry", rec.Outcome.Attempts)
	}
	if !rec.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", rec.CreatedAt, created)
	}
}

func TestPostgresStore_List(t *testing.T) {
	t.Parallel()

	now := time.Now()
	rows := &mockRows{data: [][]any{
		sampleRow("req-b", now),
		sampleRow("req-a", now.Add(-time.Minute)),
	}}
	var gotLimit any
	db := &mockDB{
		queryFunc: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			if len(args) > 0 {
				gotLimit = args[0]
			}
			return rows, nil
		},
	}

	s := NewPostgresStore(db)
	recs, err := s.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotLimit != defaultListLimit {
		t.Errorf("limit arg = %v, want default %d", gotLimit, defaultListLimit)
	}
	if len(recs) != 2 {
		t.Fatalf("List returned %d records, want 2", len(recs))
	}
	if recs[0].Outcome.RequestID != "req-b" {
		t.Errorf("first record = %q, want req-b", recs[0].Outcome.RequestID)
	}
	if !rows.closed {
		t.Error("List should close the rows")
	}
}
