package audit_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sentra/internal/audit"
	"sentra/internal/audit/store/memory"
	"sentra/pkg/platform/sentinel"
	"sentra/pkg/requestcontext"
)

type RecorderSuite struct {
	suite.Suite
	store    *memory.Store
	recorder *audit.Recorder
	ctx      context.Context
}

func (s *RecorderSuite) SetupTest() {
	s.store = memory.New()
	s.recorder = audit.NewRecorder(s.store)
	s.ctx = context.Background()
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) validRequest() audit.RecordRequest {
	return audit.RecordRequest{
		PolicyKey: "governance.rbac.matrix",
		Persona:   "platform_admin",
		Resource:  "governance.rbac",
		Action:    "view",
		Decision:  "allow",
	}
}

func (s *RecorderSuite) storedCount() int {
	count, err := s.store.Count(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	return count
}

func (s *RecorderSuite) TestRecordsValidEvent() {
	event := s.recorder.Record(s.ctx, s.validRequest())
	s.Require().NotNil(event)
	s.NotEmpty(event.ID)
	s.False(event.OccurredAt.IsZero())
	s.False(event.CreatedAt.IsZero())
	s.NotNil(event.Metadata)
	s.Equal(1, s.storedCount())
}

// TestMissingRequiredFields verifies each required field independently
// short-circuits to nil without a partial write.
func (s *RecorderSuite) TestMissingRequiredFields() {
	mutations := map[string]func(*audit.RecordRequest){
		"policyKey": func(r *audit.RecordRequest) { r.PolicyKey = "" },
		"persona":   func(r *audit.RecordRequest) { r.Persona = "  " },
		"resource":  func(r *audit.RecordRequest) { r.Resource = "" },
		"action":    func(r *audit.RecordRequest) { r.Action = "" },
		"decision":  func(r *audit.RecordRequest) { r.Decision = "" },
	}

	for name, mutate := range mutations {
		s.Run(name, func() {
			req := s.validRequest()
			mutate(&req)
			s.Nil(s.recorder.Record(s.ctx, req))
		})
	}
	s.Equal(0, s.storedCount())
}

// TestNormalization covers the full normalization pass: identifier casing,
// email casing, decision labeling, and header sanitization.
func (s *RecorderSuite) TestNormalization() {
	req := audit.RecordRequest{
		PolicyKey: "Governance.RBAC.Matrix",
		Persona:   "Platform_Admin",
		Resource:  "Governance.RBAC",
		Action:    "View",
		Decision:  "Allow",
		Actor:     audit.Actor{ID: "99", Type: "admin", Email: "OPS@X.COM"},
		Metadata: map[string]any{
			"headers": map[string]any{
				"authorization": "Bearer x",
				"cookie":        "session=abc",
				"x-trace":       "abc",
			},
		},
	}

	event := s.recorder.Record(s.ctx, req)
	s.Require().NotNil(event)

	s.Equal("governance.rbac.matrix", event.PolicyKey)
	s.Equal("platform_admin", event.Persona)
	s.Equal("governance.rbac", event.Resource)
	s.Equal("view", event.Action)
	s.Equal("allow", event.Decision)
	s.Equal("ops@x.com", event.ActorEmail)

	headers, ok := event.Metadata["headers"].(map[string]any)
	s.Require().True(ok, "headers should survive as a map")
	s.Equal("abc", headers["x-trace"])
	s.NotContains(headers, "authorization")
	s.NotContains(headers, "cookie")
}

func (s *RecorderSuite) TestHeaderSanitizationIsCaseInsensitive() {
	req := s.validRequest()
	req.Metadata = map[string]any{
		"headers": map[string]string{
			"Authorization": "Bearer x",
			"Cookie":        "session=abc",
			"X-Trace":       "abc",
		},
	}

	event := s.recorder.Record(s.ctx, req)
	s.Require().NotNil(event)

	headers, ok := event.Metadata["headers"].(map[string]any)
	s.Require().True(ok)
	s.Equal("abc", headers["X-Trace"])
	s.NotContains(headers, "Authorization")
	s.NotContains(headers, "Cookie")
}

// TestDecisionFailClosed verifies anything but "allow" is labeled "deny".
func (s *RecorderSuite) TestDecisionFailClosed() {
	for input, want := range map[string]string{
		"allow":   "allow",
		"ALLOW":   "allow",
		"deny":    "deny",
		"granted": "deny",
		"yes":     "deny",
	} {
		s.Run(input, func() {
			req := s.validRequest()
			req.Decision = input
			event := s.recorder.Record(s.ctx, req)
			s.Require().NotNil(event)
			s.Equal(want, event.Decision)
		})
	}
}

// TestMetadataMerge verifies request context lands in metadata and that
// caller-supplied keys win on conflict.
func (s *RecorderSuite) TestMetadataMerge() {
	req := s.validRequest()
	req.Request = audit.RequestInfo{
		ID:         "req-1",
		Path:       "/admin/users",
		Method:     "POST",
		IP:         "10.0.0.9",
		UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		DurationMs: 42,
	}
	req.Constraints = []string{"MFA-protected session required"}
	req.Metadata = map[string]any{"path": "/override", "ticket": "OPS-7"}

	event := s.recorder.Record(s.ctx, req)
	s.Require().NotNil(event)

	s.Equal("/override", event.Metadata["path"], "caller-supplied key wins")
	s.Equal("POST", event.Metadata["method"])
	s.Equal(int64(42), event.Metadata["durationMs"])
	s.Equal([]string{"MFA-protected session required"}, event.Metadata["constraints"])
	s.Equal("OPS-7", event.Metadata["ticket"])

	s.Equal("req-1", event.RequestID)
	s.Equal("10.0.0.9", event.IPAddress)

	client, ok := event.Metadata["client"].(map[string]any)
	s.Require().True(ok, "user agent should be summarized")
	s.Equal("Chrome", client["browser"])
}

func (s *RecorderSuite) TestOccurredAtDefaultsToRequestTime() {
	fixed := time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, fixed)

	event := s.recorder.Record(ctx, s.validRequest())
	s.Require().NotNil(event)
	s.True(event.OccurredAt.Equal(fixed))
}

func (s *RecorderSuite) TestExplicitOccurredAtWins() {
	explicit := time.Date(2026, time.July, 1, 8, 30, 0, 0, time.UTC)
	req := s.validRequest()
	req.OccurredAt = explicit

	event := s.recorder.Record(s.ctx, req)
	s.Require().NotNil(event)
	s.True(event.OccurredAt.Equal(explicit))
}

// TestStoreFailureReturnsNil verifies a failing store never propagates past
// the recorder boundary.
func (s *RecorderSuite) TestStoreFailureReturnsNil() {
	recorder := audit.NewRecorder(failingStore{})
	s.Nil(recorder.Record(s.ctx, s.validRequest()))
}

// TestStoreFailureLogsClassifiedCause verifies an unavailable backend is
// logged as such rather than as a generic store error.
func (s *RecorderSuite) TestStoreFailureLogsClassifiedCause() {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	recorder := audit.NewRecorder(failingStore{}, audit.WithLogger(logger))
	s.Nil(recorder.Record(s.ctx, s.validRequest()))

	s.Contains(buf.String(), "audit event write failed")
	s.Contains(buf.String(), "cause=store_unavailable")
}

type failingStore struct{}

func storeDown() error {
	return fmt.Errorf("connect: %w", sentinel.ErrUnavailable)
}

func (failingStore) Create(context.Context, *audit.Event) (*audit.Event, error) {
	return nil, storeDown()
}

func (failingStore) List(context.Context, audit.Filter) ([]audit.Event, error) {
	return nil, storeDown()
}

func (failingStore) Count(context.Context, audit.Filter) (int, error) {
	return 0, storeDown()
}
