package audit

import (
	"context"
	"time"
)

// Store is the durable append-only event store. Implementations must assign
// ID, CreatedAt, and UpdatedAt on Create, and return List results sorted by
// OccurredAt descending with ID as tiebreak.
type Store interface {
	Create(ctx context.Context, event *Event) (*Event, error)
	List(ctx context.Context, filter Filter) ([]Event, error)
	Count(ctx context.Context, filter Filter) (int, error)
}

// Filter is the store-level, fully normalized filter: string fields are
// already lowercased, time bounds parsed, limit/offset clamped. Zero values
// mean no constraint; nil time pointers mean an unbounded side.
// Implementations compare identifier fields case-insensitively so backends
// agree even on rows written outside the recorder.
type Filter struct {
	PolicyKey string
	Persona   string
	Resource  string
	Action    string
	Decision  string
	Search    string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
