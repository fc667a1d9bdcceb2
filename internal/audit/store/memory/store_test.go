package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sentra/internal/audit"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) newEvent(persona string, occurredAt time.Time) *audit.Event {
	return &audit.Event{
		PolicyKey:  "support.case.handling",
		Persona:    persona,
		Resource:   "support.cases",
		Action:     "view",
		Decision:   "allow",
		OccurredAt: occurredAt,
		Metadata:   map[string]any{},
	}
}

func (s *StoreSuite) TestCreateAssignsIdentityAndTimestamps() {
	created, err := s.store.Create(s.ctx, s.newEvent("support_agent", time.Time{}))
	s.Require().NoError(err)

	s.NotEmpty(created.ID)
	s.False(created.CreatedAt.IsZero())
	s.False(created.UpdatedAt.IsZero())
	s.False(created.OccurredAt.IsZero(), "zero occurredAt defaults to now")
}

func (s *StoreSuite) TestCreateIsolatesMetadata() {
	input := s.newEvent("support_agent", time.Now())
	input.Metadata = map[string]any{
		"headers": map[string]any{"x-trace": "abc"},
	}

	created, err := s.store.Create(s.ctx, input)
	s.Require().NoError(err)

	// Mutating the caller's map after the write must not reach the store.
	input.Metadata["headers"].(map[string]any)["x-trace"] = "tampered"
	// Neither must mutating the returned copy.
	created.Metadata["injected"] = true

	listed, err := s.store.List(s.ctx, audit.Filter{Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal("abc", listed[0].Metadata["headers"].(map[string]any)["x-trace"])
	s.NotContains(listed[0].Metadata, "injected")
}

func (s *StoreSuite) TestFiltering() {
	now := time.Now()
	_, err := s.store.Create(s.ctx, s.newEvent("support_agent", now))
	s.Require().NoError(err)

	other := s.newEvent("platform_admin", now.Add(time.Minute))
	other.PolicyKey = "platform.user.lifecycle"
	other.Resource = "directory.users"
	other.Action = "suspend"
	other.Decision = "deny"
	other.Reason = "explicit-deny"
	other.ActorEmail = "ops@x.com"
	_, err = s.store.Create(s.ctx, other)
	s.Require().NoError(err)

	cases := map[string]audit.Filter{
		"policy key":            {PolicyKey: "platform.user.lifecycle"},
		"policy key mixed case": {PolicyKey: "Platform.User.Lifecycle"},
		"persona":               {Persona: "platform_admin"},
		"resource":              {Resource: "directory.users"},
		"action":                {Action: "suspend"},
		"decision":              {Decision: "deny"},
		"search":                {Search: "ops@"},
	}
	for name, filter := range cases {
		s.Run(name, func() {
			count, err := s.store.Count(s.ctx, filter)
			s.Require().NoError(err)
			s.Equal(1, count)

			filter.Limit = 10
			events, err := s.store.List(s.ctx, filter)
			s.Require().NoError(err)
			s.Require().Len(events, 1)
			s.Equal("platform_admin", events[0].Persona)
		})
	}
}

func (s *StoreSuite) TestCountIgnoresPagination() {
	now := time.Now()
	for i := 0; i < 5; i++ {
		_, err := s.store.Create(s.ctx, s.newEvent("support_agent", now.Add(time.Duration(i)*time.Second)))
		s.Require().NoError(err)
	}

	count, err := s.store.Count(s.ctx, audit.Filter{Limit: 2, Offset: 4})
	s.Require().NoError(err)
	s.Equal(5, count)

	events, err := s.store.List(s.ctx, audit.Filter{Limit: 2, Offset: 4})
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *StoreSuite) TestOffsetBeyondEnd() {
	_, err := s.store.Create(s.ctx, s.newEvent("support_agent", time.Now()))
	s.Require().NoError(err)

	events, err := s.store.List(s.ctx, audit.Filter{Limit: 10, Offset: 50})
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *StoreSuite) TestTiebreakOnIdenticalTimestamps() {
	at := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.store.Create(s.ctx, s.newEvent("support_agent", at))
		s.Require().NoError(err)
	}

	events, err := s.store.List(s.ctx, audit.Filter{Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Greater(events[0].ID, events[1].ID)
	s.Greater(events[1].ID, events[2].ID)
}
