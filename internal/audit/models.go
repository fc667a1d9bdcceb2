// Package audit records policy decisions as immutable events and serves
// filtered, paginated retrieval for compliance review. Persistence is
// best-effort: a failing store never propagates past the recorder boundary.
package audit

import (
	"strings"
	"time"
)

// Event is one recorded policy decision. Created exactly once, never mutated
// or deleted by this module; retention and purging live elsewhere.
type Event struct {
	ID             string         `json:"id"`
	PolicyKey      string         `json:"policyKey"`
	Persona        string         `json:"persona"`
	Resource       string         `json:"resource"`
	Action         string         `json:"action"`
	Decision       string         `json:"decision"`
	Reason         string         `json:"reason,omitempty"`
	ActorID        string         `json:"actorId,omitempty"`
	ActorType      string         `json:"actorType,omitempty"`
	ActorEmail     string         `json:"actorEmail,omitempty"`
	RequestID      string         `json:"requestId,omitempty"`
	IPAddress      string         `json:"ipAddress,omitempty"`
	UserAgent      string         `json:"userAgent,omitempty"`
	ResponseStatus int            `json:"responseStatus,omitempty"`
	Metadata       map[string]any `json:"metadata"`
	OccurredAt     time.Time      `json:"occurredAt"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Actor identifies who triggered the recorded decision.
type Actor struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Email string `json:"email"`
}

// RequestInfo carries transport context into the audit trail.
type RequestInfo struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Method     string `json:"method"`
	IP         string `json:"ip"`
	UserAgent  string `json:"userAgent"`
	DurationMs int64  `json:"durationMs"`
	StatusCode int    `json:"statusCode"`
}

// RecordRequest is the recorder input. PolicyKey, Persona, Resource, Action,
// and Decision are required; everything else is enrichment.
type RecordRequest struct {
	PolicyKey      string
	Persona        string
	Resource       string
	Action         string
	Decision       string
	Reason         string
	Actor          Actor
	Request        RequestInfo
	ResponseStatus int
	Constraints    []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// missingFields returns the names of required fields that are empty.
func (r RecordRequest) missingFields() []string {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"policyKey", r.PolicyKey},
		{"persona", r.Persona},
		{"resource", r.Resource},
		{"action", r.Action},
		{"decision", r.Decision},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// ListParams is the query-service input, mirroring the transport layer: time
// bounds arrive as strings and unparseable values are silently ignored.
type ListParams struct {
	PolicyKey string
	Persona   string
	Resource  string
	Action    string
	Decision  string
	Search    string
	From      string
	To        string
	Limit     int
	Offset    int
}

// Page is one page of matching events. Total counts all matches regardless of
// pagination.
type Page struct {
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Events []Event `json:"events"`
}
