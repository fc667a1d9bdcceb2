package policy

import (
	"fmt"
	"strings"
	"time"

	"sentra/pkg/platform/sentinel"
)

// Registry is the immutable, process-lifetime holder of the access matrix.
// Construct it once in main; a new matrix means a new process.
type Registry struct {
	matrix   Matrix
	personas map[string]Persona
}

// NewRegistry validates and indexes a matrix. Persona keys must be non-empty
// and unique under case-insensitive comparison.
func NewRegistry(matrix Matrix) (*Registry, error) {
	personas := make(map[string]Persona, len(matrix.Personas))
	for _, p := range matrix.Personas {
		key := normalizeKey(p.Key)
		if key == "" {
			return nil, fmt.Errorf("persona with empty key in matrix %s: %w", matrix.Version, sentinel.ErrInvalidState)
		}
		if _, exists := personas[key]; exists {
			return nil, fmt.Errorf("duplicate persona key %q in matrix %s: %w", key, matrix.Version, sentinel.ErrInvalidState)
		}
		personas[key] = p
	}
	return &Registry{matrix: matrix.Clone(), personas: personas}, nil
}

// Matrix returns a deep copy of the full matrix.
func (r *Registry) Matrix() Matrix {
	return r.matrix.Clone()
}

// ListPersonas returns introspection summaries in matrix declaration order.
func (r *Registry) ListPersonas() []PersonaSummary {
	summaries := make([]PersonaSummary, 0, len(r.matrix.Personas))
	for _, p := range r.matrix.Personas {
		summaries = append(summaries, PersonaSummary{
			Key:              p.Key,
			Label:            p.Label,
			Description:      p.Description,
			GrantCount:       len(p.Grants),
			EscalationTarget: p.EscalationTarget,
			DefaultChannels:  cloneStrings(p.DefaultChannels),
		})
	}
	return summaries
}

// persona resolves a normalized key against the index. Internal: the returned
// value shares grant slices with the registry and must not escape un-cloned.
func (r *Registry) persona(normalizedKey string) (Persona, bool) {
	p, ok := r.personas[normalizedKey]
	return p, ok
}

// normalizeKey canonicalizes persona, resource, and action identifiers.
func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// BuiltinMatrix returns the shipped access matrix. This is the static
// configuration the process starts with; editing it is a deploy, not an API
// call.
func BuiltinMatrix() Matrix {
	return Matrix{
		Version:           "2026.08",
		PublishedAt:       time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC),
		ReviewCadenceDays: 90,
		Personas: []Persona{
			{
				Key:              "platform_admin",
				Label:            "Platform Administrator",
				Description:      "Operates the runtime platform and the user directory.",
				DefaultChannels:  []string{"email", "pagerduty"},
				EscalationTarget: "security_officer",
				Grants: []Grant{
					{
						PolicyKey: "platform.runtime.control",
						Resource:  "runtime.telemetry",
						Actions:   []string{"manage"},
						Decision:  EffectAllow,
						Constraints: []string{
							"MFA-protected session required",
							"Runtime changes announced in the ops channel",
						},
						AuditRetentionDays: 365,
					},
					{
						PolicyKey: "platform.user.lifecycle",
						Resource:  "directory.users",
						Actions:   []string{"view", "update", "suspend"},
						Decision:  EffectAllow,
						Constraints: []string{
							"Suspension requires a linked support ticket",
						},
						AuditRetentionDays: 365,
					},
					{
						PolicyKey: "governance.rbac.matrix",
						Resource:  "governance.rbac",
						Actions:   []string{"view", "export"},
						Decision:  EffectAllow,
						Constraints: []string{
							"Exports are shared only with the compliance auditor",
						},
						AuditRetentionDays: 730,
					},
					{
						PolicyKey: "platform.billing.restraint",
						Resource:  "billing.ledger",
						Actions:   []string{"*"},
						Decision:  EffectDeny,
						Constraints: []string{
							"Ledger access is reserved for the finance controller",
						},
						AuditRetentionDays: 365,
					},
				},
			},
			{
				Key:              "security_officer",
				Label:            "Security Officer",
				Description:      "Owns perimeter defenses and incident response.",
				DefaultChannels:  []string{"email", "slack"},
				EscalationTarget: "ciso",
				Grants: []Grant{
					{
						PolicyKey: "security.waf.operations",
						Resource:  "security.waf",
						Actions:   []string{"view", "create-temporary-rule", "expire-temporary-rule"},
						Decision:  EffectAllow,
						Constraints: []string{
							"Temporary rules expire within 24 hours",
						},
						AuditRetentionDays: 730,
					},
					{
						PolicyKey: "security.incident.response",
						Resource:  "security.incidents",
						Actions:   []string{"manage"},
						Decision:  EffectAllow,
						Constraints: []string{
							"Incident commander assigned before containment actions",
						},
						AuditRetentionDays: 1095,
					},
					{
						PolicyKey:          "governance.rbac.matrix",
						Resource:           "governance.rbac",
						Actions:            []string{"view"},
						Decision:           EffectAllow,
						Constraints:        []string{},
						AuditRetentionDays: 730,
					},
				},
			},
			{
				Key:              "support_agent",
				Label:            "Support Agent",
				Description:      "Handles customer cases with read-mostly access.",
				DefaultChannels:  []string{"email"},
				EscalationTarget: "platform_admin",
				Grants: []Grant{
					{
						PolicyKey: "support.case.handling",
						Resource:  "support.cases",
						Actions:   []string{"view", "update", "close"},
						Decision:  EffectAllow,
						Constraints: []string{
							"Customer consent recorded before account changes",
						},
						AuditRetentionDays: 180,
					},
					{
						PolicyKey:          "support.user.readonly",
						Resource:           "directory.users",
						Actions:            []string{"view"},
						Decision:           EffectAllow,
						Constraints:        []string{},
						AuditRetentionDays: 180,
					},
				},
			},
			{
				Key:              "compliance_auditor",
				Label:            "Compliance Auditor",
				Description:      "Reviews access decisions and audit trails.",
				DefaultChannels:  []string{"email"},
				EscalationTarget: "security_officer",
				Grants: []Grant{
					{
						PolicyKey: "governance.audit.review",
						Resource:  "governance.audit-log",
						Actions:   []string{"view", "export"},
						Decision:  EffectAllow,
						Constraints: []string{
							"Exports stored in the evidence locker",
						},
						AuditRetentionDays: 2555,
					},
					{
						PolicyKey:          "governance.rbac.matrix",
						Resource:           "governance.rbac",
						Actions:            []string{"view"},
						Decision:           EffectAllow,
						Constraints:        []string{},
						AuditRetentionDays: 730,
					},
				},
			},
		},
		Guardrails: []Guardrail{
			{
				Key:         "mfa-enforcement",
				Label:       "MFA enforcement",
				Description: "All persona sessions require a second factor.",
				Coverage:    []string{"platform_admin", "security_officer", "support_agent", "compliance_auditor"},
				Severity:    "critical",
			},
			{
				Key:         "session-recording",
				Label:       "Privileged session recording",
				Description: "Runtime and WAF sessions are recorded end to end.",
				Coverage:    []string{"platform_admin", "security_officer"},
				Severity:    "high",
			},
			{
				Key:         "quarterly-access-review",
				Label:       "Quarterly access review",
				Description: "Grants are re-certified every review cadence.",
				Coverage:    []string{"platform_admin", "security_officer", "support_agent", "compliance_auditor"},
				Severity:    "medium",
			},
		},
		Resources: []ResourceDescriptor{
			{Key: "runtime.telemetry", Owner: "platform", DataClassification: "internal", Surfaces: []string{"admin-console", "cli"}},
			{Key: "directory.users", Owner: "platform", DataClassification: "pii", Surfaces: []string{"admin-console"}},
			{Key: "governance.rbac", Owner: "security", DataClassification: "internal", Surfaces: []string{"admin-console", "api"}},
			{Key: "billing.ledger", Owner: "finance", DataClassification: "financial", Surfaces: []string{"finance-console"}},
			{Key: "security.waf", Owner: "security", DataClassification: "internal", Surfaces: []string{"security-console", "cli"}},
			{Key: "security.incidents", Owner: "security", DataClassification: "confidential", Surfaces: []string{"security-console"}},
			{Key: "support.cases", Owner: "support", DataClassification: "pii", Surfaces: []string{"support-console"}},
			{Key: "governance.audit-log", Owner: "security", DataClassification: "confidential", Surfaces: []string{"admin-console", "api"}},
		},
	}
}
