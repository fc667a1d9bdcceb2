// Package postgres persists audit events in PostgreSQL. Metadata is stored
// as JSONB so nested structures (headers, client summaries) survive intact.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentra/internal/audit"
	"sentra/pkg/platform/sentinel"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const eventColumns = `
	id, policy_key, persona, resource, action, decision, reason,
	actor_id, actor_type, actor_email, request_id, ip_address, user_agent,
	response_status, metadata, occurred_at, created_at, updated_at`

func (s *Store) Create(ctx context.Context, event *audit.Event) (*audit.Event, error) {
	now := time.Now()

	stored := *event
	stored.ID = uuid.NewString()
	if stored.OccurredAt.IsZero() {
		stored.OccurredAt = now
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	metadata := stored.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal audit metadata: %w", err)
	}

	var responseStatus sql.NullInt32
	if stored.ResponseStatus != 0 {
		responseStatus = sql.NullInt32{Int32: int32(stored.ResponseStatus), Valid: true}
	}

	query := `
		INSERT INTO policy_audit_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = s.db.ExecContext(ctx, query,
		stored.ID,
		stored.PolicyKey,
		stored.Persona,
		stored.Resource,
		stored.Action,
		stored.Decision,
		stored.Reason,
		stored.ActorID,
		stored.ActorType,
		stored.ActorEmail,
		stored.RequestID,
		stored.IPAddress,
		stored.UserAgent,
		responseStatus,
		metadataJSON,
		stored.OccurredAt,
		stored.CreatedAt,
		stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit event: %w: %w", sentinel.ErrUnavailable, err)
	}
	return &stored, nil
}

func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	where, args := buildWhere(filter)

	query := `SELECT ` + eventColumns + ` FROM policy_audit_events` + where +
		fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *Store) Count(ctx context.Context, filter audit.Filter) (int, error) {
	where, args := buildWhere(filter)

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM policy_audit_events"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit events: %w: %w", sentinel.ErrUnavailable, err)
	}
	return count, nil
}

// buildWhere assembles the filter predicate. Identifier comparisons are
// case-insensitive so this backend matches the memory store event for event,
// even for rows written outside the recorder's normalization.
func buildWhere(filter audit.Filter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.PolicyKey != "" {
		add("lower(policy_key) = lower($%d)", filter.PolicyKey)
	}
	if filter.Persona != "" {
		add("lower(persona) = lower($%d)", filter.Persona)
	}
	if filter.Resource != "" {
		add("lower(resource) = lower($%d)", filter.Resource)
	}
	if filter.Action != "" {
		add("lower(action) = lower($%d)", filter.Action)
	}
	if filter.Decision != "" {
		add("lower(decision) = lower($%d)", filter.Decision)
	}
	if filter.Search != "" {
		args = append(args, strings.ToLower(filter.Search))
		conds = append(conds, fmt.Sprintf(
			"(strpos(lower(reason), $%d) > 0 OR strpos(lower(actor_email), $%d) > 0)",
			len(args), len(args)))
	}
	if filter.From != nil {
		add("occurred_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("occurred_at <= $%d", *filter.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			event          audit.Event
			responseStatus sql.NullInt32
			metadataJSON   []byte
		)

		err := rows.Scan(
			&event.ID,
			&event.PolicyKey,
			&event.Persona,
			&event.Resource,
			&event.Action,
			&event.Decision,
			&event.Reason,
			&event.ActorID,
			&event.ActorType,
			&event.ActorEmail,
			&event.RequestID,
			&event.IPAddress,
			&event.UserAgent,
			&responseStatus,
			&metadataJSON,
			&event.OccurredAt,
			&event.CreatedAt,
			&event.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		if responseStatus.Valid {
			event.ResponseStatus = int(responseStatus.Int32)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		if event.Metadata == nil {
			event.Metadata = map[string]any{}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w: %w", sentinel.ErrUnavailable, err)
	}
	return events, nil
}
