// Package outcomestore persists generation outcomes and their audio
// artifacts. The outcome record keeps the full provenance trail (attempts,
// usage, cost) so failed and degraded generations can be audited later.
package outcomestore

import (
	"context"
	"errors"
	"time"

	"github.com/fablecast/fablecast/internal/story"
)

// ErrNotFound is returned by Get when no outcome exists for the request ID.
var ErrNotFound = errors.New("outcomestore: outcome not found")

// Record wraps a persisted outcome with storage metadata.
type Record struct {
	// Outcome is the generation result as produced by the orchestrator.
	// AudioBytes is not persisted inline; see AudioURL.
	Outcome story.Outcome

	// AudioURL locates the audio artifact written to the object store.
	// Empty when the generation produced no audio or no object store is
	// configured.
	AudioURL string

	// CreatedAt is when the record was first persisted.
	CreatedAt time.Time
}

// Store persists generation outcomes.
type Store interface {
	// Save persists the record, replacing any existing record with the same
	// request ID.
	Save(ctx context.Context, rec *Record) error

	// Get retrieves a record by request ID. Returns [ErrNotFound] when no
	// record exists.
	Get(ctx context.Context, requestID string) (*Record, error)

	// List returns the most recent records, newest first, up to limit.
	// A limit of 0 applies a server-side default.
	List(ctx context.Context, limit int) ([]Record, error)
}

// ObjectStore persists opaque binary artifacts (synthesised audio) outside
// the relational store and returns a locator for them.
type ObjectStore interface {
	// Put writes data under the given key and returns a URL or path that
	// locates it.
	Put(ctx context.Context, key string, data []byte) (string, error)
}
