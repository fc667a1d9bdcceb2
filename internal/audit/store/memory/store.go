// Package memory provides the in-memory audit store used by unit tests and
// by deployments that run without a database URL.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentra/internal/audit"
)

type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Create(_ context.Context, event *audit.Event) (*audit.Event, error) {
	now := time.Now()

	stored := cloneEvent(*event)
	stored.ID = uuid.NewString()
	if stored.OccurredAt.IsZero() {
		stored.OccurredAt = now
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.mu.Lock()
	s.events = append(s.events, stored)
	s.mu.Unlock()

	out := cloneEvent(stored)
	return &out, nil
}

func (s *Store) List(_ context.Context, filter audit.Filter) ([]audit.Event, error) {
	s.mu.RLock()
	matched := s.matching(filter)
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		}
		return matched[i].ID > matched[j].ID
	})

	start := filter.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	page := make([]audit.Event, 0, end-start)
	for _, event := range matched[start:end] {
		page = append(page, cloneEvent(event))
	}
	return page, nil
}

func (s *Store) Count(_ context.Context, filter audit.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matching(filter)), nil
}

// matching returns references to matching events; callers must clone before
// releasing the lock-free result to the outside.
func (s *Store) matching(filter audit.Filter) []audit.Event {
	var matched []audit.Event
	for _, event := range s.events {
		if matches(event, filter) {
			matched = append(matched, event)
		}
	}
	return matched
}

func matches(event audit.Event, f audit.Filter) bool {
	if f.PolicyKey != "" && !strings.EqualFold(event.PolicyKey, f.PolicyKey) {
		return false
	}
	if f.Persona != "" && !strings.EqualFold(event.Persona, f.Persona) {
		return false
	}
	if f.Resource != "" && !strings.EqualFold(event.Resource, f.Resource) {
		return false
	}
	if f.Action != "" && !strings.EqualFold(event.Action, f.Action) {
		return false
	}
	if f.Decision != "" && !strings.EqualFold(event.Decision, f.Decision) {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		reason := strings.ToLower(event.Reason)
		email := strings.ToLower(event.ActorEmail)
		if !strings.Contains(reason, term) && !strings.Contains(email, term) {
			return false
		}
	}
	if f.From != nil && event.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && event.OccurredAt.After(*f.To) {
		return false
	}
	return true
}

func cloneEvent(event audit.Event) audit.Event {
	out := event
	out.Metadata = cloneMap(event.Metadata)
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(typed))
		copy(out, typed)
		return out
	default:
		return v
	}
}
