//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sentra/internal/audit"
	"sentra/internal/audit/store/postgres"
	"sentra/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "policy_audit_events")
	s.Require().NoError(err)
}

func newTestEvent(persona, decision string, occurredAt time.Time) *audit.Event {
	return &audit.Event{
		PolicyKey:  "governance.rbac.matrix",
		Persona:    persona,
		Resource:   "governance.rbac",
		Action:     "view",
		Decision:   decision,
		Reason:     "",
		ActorEmail: persona + "@x.com",
		Metadata: map[string]any{
			"headers": map[string]any{"x-trace": "abc"},
			"path":    "/policy/matrix",
		},
		OccurredAt: occurredAt,
	}
}

func (s *PostgresStoreSuite) TestCreateAndListRoundtrip() {
	ctx := context.Background()

	created, err := s.store.Create(ctx, newTestEvent("platform_admin", "allow", time.Now().UTC()))
	s.Require().NoError(err)
	s.NotEmpty(created.ID)

	events, err := s.store.List(ctx, audit.Filter{Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(events, 1)

	got := events[0]
	s.Equal(created.ID, got.ID)
	s.Equal("platform_admin", got.Persona)
	s.Equal("allow", got.Decision)

	// JSONB roundtrip preserves nested metadata.
	headers, ok := got.Metadata["headers"].(map[string]any)
	s.Require().True(ok)
	s.Equal("abc", headers["x-trace"])
	s.Equal("/policy/matrix", got.Metadata["path"])
}

func (s *PostgresStoreSuite) TestFilteringAndCount() {
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.store.Create(ctx, newTestEvent("platform_admin", "allow", now))
	s.Require().NoError(err)
	_, err = s.store.Create(ctx, newTestEvent("security_officer", "deny", now.Add(time.Minute)))
	s.Require().NoError(err)

	count, err := s.store.Count(ctx, audit.Filter{Persona: "security_officer", Decision: "deny"})
	s.Require().NoError(err)
	s.Equal(1, count)

	events, err := s.store.List(ctx, audit.Filter{Persona: "security_officer", Decision: "deny", Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("security_officer", events[0].Persona)
}

// TestIdentifierFiltersIgnoreCase pins filter behavior to the memory backend:
// identifier comparisons are case-insensitive in both, even for rows written
// without the recorder's normalization.
func (s *PostgresStoreSuite) TestIdentifierFiltersIgnoreCase() {
	ctx := context.Background()

	event := newTestEvent("platform_admin", "allow", time.Now().UTC())
	event.PolicyKey = "Governance.RBAC.Matrix"
	_, err := s.store.Create(ctx, event)
	s.Require().NoError(err)

	count, err := s.store.Count(ctx, audit.Filter{PolicyKey: "governance.rbac.matrix"})
	s.Require().NoError(err)
	s.Equal(1, count)

	count, err = s.store.Count(ctx, audit.Filter{PolicyKey: "GOVERNANCE.rbac.MATRIX", Persona: "Platform_Admin"})
	s.Require().NoError(err)
	s.Equal(1, count)

	events, err := s.store.List(ctx, audit.Filter{PolicyKey: "governance.rbac.matrix", Limit: 10})
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *PostgresStoreSuite) TestSearchMatchesReasonAndEmail() {
	ctx := context.Background()
	now := time.Now().UTC()

	denied := newTestEvent("support_agent", "deny", now)
	denied.Reason = "no-matching-grant"
	_, err := s.store.Create(ctx, denied)
	s.Require().NoError(err)
	_, err = s.store.Create(ctx, newTestEvent("platform_admin", "allow", now.Add(time.Second)))
	s.Require().NoError(err)

	count, err := s.store.Count(ctx, audit.Filter{Search: "matching-grant"})
	s.Require().NoError(err)
	s.Equal(1, count)

	count, err = s.store.Count(ctx, audit.Filter{Search: "support_agent@"})
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestTimeWindowAndOrdering() {
	ctx := context.Background()
	base := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	oldest, err := s.store.Create(ctx, newTestEvent("platform_admin", "allow", base))
	s.Require().NoError(err)
	newest, err := s.store.Create(ctx, newTestEvent("platform_admin", "allow", base.Add(time.Hour)))
	s.Require().NoError(err)

	events, err := s.store.List(ctx, audit.Filter{Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(newest.ID, events[0].ID)
	s.Equal(oldest.ID, events[1].ID)

	from := base.Add(time.Minute)
	count, err := s.store.Count(ctx, audit.Filter{From: &from})
	s.Require().NoError(err)
	s.Equal(1, count)

	// Bounds are inclusive.
	count, err = s.store.Count(ctx, audit.Filter{From: &base, To: &base})
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestPagination() {
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_, err := s.store.Create(ctx, newTestEvent("platform_admin", "allow", now.Add(time.Duration(i)*time.Second)))
		s.Require().NoError(err)
	}

	events, err := s.store.List(ctx, audit.Filter{Limit: 2, Offset: 4})
	s.Require().NoError(err)
	s.Len(events, 1)

	count, err := s.store.Count(ctx, audit.Filter{Limit: 2, Offset: 4})
	s.Require().NoError(err)
	s.Equal(5, count)
}
