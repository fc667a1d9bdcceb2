package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mssola/useragent"

	"sentra/internal/audit/metrics"
	"sentra/pkg/platform/sentinel"
	"sentra/pkg/requestcontext"
)

// Recorder writes sanitized, normalized audit events to the store.
//
// Record never panics and never returns an error: a nil result means the
// event was dropped (missing required fields) or lost (store failure), and
// the cause has been logged. The access decision that triggered the event
// must not fail because auditing did.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type RecorderOption func(*Recorder)

func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists one policy event. Returns the stored event, or nil if the
// event could not be recorded.
func (r *Recorder) Record(ctx context.Context, req RecordRequest) *Event {
	if missing := req.missingFields(); len(missing) > 0 {
		r.logger.WarnContext(ctx, "audit event dropped",
			"missing", strings.Join(missing, ","),
			"policy_key", req.PolicyKey,
			"persona", req.Persona,
		)
		if r.metrics != nil {
			r.metrics.Dropped.Inc()
		}
		return nil
	}

	event := buildEvent(ctx, req)

	created, err := r.store.Create(ctx, event)
	if err != nil {
		r.logger.ErrorContext(ctx, "audit event write failed",
			"error", err,
			"cause", storeCause(err),
			"policy_key", event.PolicyKey,
			"persona", event.Persona,
			"resource", event.Resource,
			"action", event.Action,
		)
		if r.metrics != nil {
			r.metrics.WriteFailures.Inc()
		}
		return nil
	}

	if r.metrics != nil {
		r.metrics.Recorded.WithLabelValues(created.Decision).Inc()
	}
	return created
}

// storeCause classifies a store failure for logging so operators can tell an
// unreachable backend apart from a write that the backend rejected.
func storeCause(err error) string {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return "store_unavailable"
	}
	return "store_error"
}

// buildEvent normalizes and sanitizes a request into a storable event. Pure:
// the store assigns ID/CreatedAt/UpdatedAt.
func buildEvent(ctx context.Context, req RecordRequest) *Event {
	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = requestcontext.Now(ctx)
	}

	responseStatus := req.ResponseStatus
	if responseStatus == 0 {
		responseStatus = req.Request.StatusCode
	}

	return &Event{
		PolicyKey:      normalize(req.PolicyKey),
		Persona:        normalize(req.Persona),
		Resource:       normalize(req.Resource),
		Action:         normalize(req.Action),
		Decision:       normalizeDecision(req.Decision),
		Reason:         strings.TrimSpace(req.Reason),
		ActorID:        strings.TrimSpace(req.Actor.ID),
		ActorType:      strings.TrimSpace(req.Actor.Type),
		ActorEmail:     normalize(req.Actor.Email),
		RequestID:      req.Request.ID,
		IPAddress:      req.Request.IP,
		UserAgent:      req.Request.UserAgent,
		ResponseStatus: responseStatus,
		Metadata:       buildMetadata(req),
		OccurredAt:     occurredAt,
	}
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// normalizeDecision collapses anything that is not exactly "allow" to "deny".
// Fail-closed labeling for the audit record only; access control already
// happened upstream.
func normalizeDecision(decision string) string {
	if normalize(decision) == "allow" {
		return "allow"
	}
	return "deny"
}

// buildMetadata merges request context under the caller-supplied metadata so
// caller keys win on conflict, and strips credential headers.
func buildMetadata(req RecordRequest) map[string]any {
	metadata := map[string]any{}

	if req.Request.Path != "" {
		metadata["path"] = req.Request.Path
	}
	if req.Request.Method != "" {
		metadata["method"] = req.Request.Method
	}
	if req.Request.DurationMs > 0 {
		metadata["durationMs"] = req.Request.DurationMs
	}
	if len(req.Constraints) > 0 {
		constraints := make([]string, len(req.Constraints))
		copy(constraints, req.Constraints)
		metadata["constraints"] = constraints
	}
	if client := clientSummary(req.Request.UserAgent); client != nil {
		metadata["client"] = client
	}

	for key, value := range req.Metadata {
		if strings.EqualFold(key, "headers") {
			if headers := sanitizeHeaders(value); headers != nil {
				metadata[key] = headers
			}
			continue
		}
		metadata[key] = value
	}

	return metadata
}

// clientSummary derives a compact browser/OS view from the raw User-Agent.
func clientSummary(rawUA string) map[string]any {
	if rawUA == "" {
		return nil
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	summary := map[string]any{}
	if name != "" {
		summary["browser"] = name
	}
	if version != "" {
		summary["browserVersion"] = version
	}
	if os := ua.OS(); os != "" {
		summary["os"] = os
	}
	if ua.Bot() {
		summary["bot"] = true
	}
	if len(summary) == 0 {
		return nil
	}
	return summary
}

// sanitizeHeaders copies a headers map with credential-bearing keys removed.
// Authorization and cookie values must never reach the store.
func sanitizeHeaders(value any) map[string]any {
	strip := func(key string) bool {
		return strings.EqualFold(key, "authorization") || strings.EqualFold(key, "cookie")
	}

	switch headers := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(headers))
		for k, v := range headers {
			if strip(k) {
				continue
			}
			out[k] = v
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(headers))
		for k, v := range headers {
			if strip(k) {
				continue
			}
			out[k] = v
		}
		return out
	default:
		// Not a map; drop rather than persist something unexpected.
		return nil
	}
}
