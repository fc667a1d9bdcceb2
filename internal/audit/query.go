package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const (
	defaultLimit = 25
	maxLimit     = 200
)

// Query serves filtered, paginated event retrieval. Malformed filter values
// degrade to "no constraint" and store errors degrade to an empty page, so
// reporting surfaces stay up when inputs or storage misbehave.
type Query struct {
	store  Store
	logger *slog.Logger
}

func NewQuery(store Store, logger *slog.Logger) *Query {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Query{store: store, logger: logger}
}

// List returns one page of matching events, most recent first. Total reflects
// the full match count regardless of pagination.
func (q *Query) List(ctx context.Context, params ListParams) Page {
	filter := normalizeParams(params)
	page := Page{Limit: filter.Limit, Offset: filter.Offset, Events: []Event{}}

	total, err := q.store.Count(ctx, filter)
	if err != nil {
		q.logger.ErrorContext(ctx, "audit event count failed", "error", err, "cause", storeCause(err))
		return page
	}

	events, err := q.store.List(ctx, filter)
	if err != nil {
		q.logger.ErrorContext(ctx, "audit event list failed", "error", err, "cause", storeCause(err))
		return page
	}

	page.Total = total
	if events != nil {
		page.Events = events
	}
	return page
}

// normalizeParams lowercases filter terms, parses time bounds, and clamps
// pagination. A zero limit means "not specified" and takes the default.
func normalizeParams(params ListParams) Filter {
	limit := params.Limit
	switch {
	case limit == 0:
		limit = defaultLimit
	case limit < 1:
		limit = 1
	case limit > maxLimit:
		limit = maxLimit
	}

	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	return Filter{
		PolicyKey: normalize(params.PolicyKey),
		Persona:   normalize(params.Persona),
		Resource:  normalize(params.Resource),
		Action:    normalize(params.Action),
		Decision:  normalize(params.Decision),
		Search:    normalize(params.Search),
		From:      parseTime(params.From),
		To:        parseTime(params.To),
		Limit:     limit,
		Offset:    offset,
	}
}

// parseTime accepts RFC 3339 timestamps or bare dates. Anything else is
// treated as "no constraint" rather than an error.
func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
