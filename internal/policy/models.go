// Package policy holds the persona access matrix and its evaluation rules.
// The matrix is pure data constructed once at process start; evaluation is a
// pure function over it. No I/O, no locking - immutability makes concurrent
// reads safe.
package policy

import "time"

// Effect is the outcome a grant (or a decision) carries.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Reason codes for denied decisions. An allowed decision carries no reason.
type Reason string

const (
	ReasonUnknownPersona  Reason = "unknown-persona"
	ReasonNoMatchingGrant Reason = "no-matching-grant"
	ReasonExplicitDeny    Reason = "explicit-deny"
)

// Matrix is the versioned persona access matrix.
type Matrix struct {
	Version           string               `json:"version"`
	PublishedAt       time.Time            `json:"publishedAt"`
	ReviewCadenceDays int                  `json:"reviewCadenceDays"`
	Personas          []Persona            `json:"personas"`
	Guardrails        []Guardrail          `json:"guardrails"`
	Resources         []ResourceDescriptor `json:"resources"`
}

// Persona is a named role bundle carrying a set of grants.
type Persona struct {
	Key              string   `json:"key"`
	Label            string   `json:"label"`
	Description      string   `json:"description"`
	DefaultChannels  []string `json:"defaultChannels"`
	EscalationTarget string   `json:"escalationTarget"`
	Grants           []Grant  `json:"grants"`
}

// Grant is one persona's permission rule for a resource.
//
// Within a persona at most one grant should match a given (resource, action)
// pair; if several do, the first in declaration order wins.
type Grant struct {
	PolicyKey          string   `json:"policyKey"`
	Resource           string   `json:"resource"`
	Actions            []string `json:"actions"`
	Decision           Effect   `json:"decision"`
	Constraints        []string `json:"constraints"`
	AuditRetentionDays int      `json:"auditRetentionDays"`
}

// Guardrail is a descriptive cross-persona control. It is not enforced by the
// evaluator; external compliance tooling consumes it.
type Guardrail struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Coverage    []string `json:"coverage"`
	Severity    string   `json:"severity"`
}

// ResourceDescriptor classifies a protected resource for introspection. The
// evaluator never consults it.
type ResourceDescriptor struct {
	Key                string   `json:"key"`
	Owner              string   `json:"owner"`
	DataClassification string   `json:"dataClassification"`
	Surfaces           []string `json:"surfaces"`
}

// Decision is the evaluator's output. Allowed=false always comes with a
// reason code; constraints are never nil.
type Decision struct {
	Allowed            bool     `json:"allowed"`
	Decision           Effect   `json:"decision"`
	Reason             Reason   `json:"reason,omitempty"`
	PolicyKey          string   `json:"policyKey,omitempty"`
	Constraints        []string `json:"constraints"`
	AuditRetentionDays int      `json:"auditRetentionDays,omitempty"`
}

// PersonaSummary is the introspection view of a persona.
type PersonaSummary struct {
	Key              string   `json:"key"`
	Label            string   `json:"label"`
	Description      string   `json:"description"`
	GrantCount       int      `json:"grantCount"`
	EscalationTarget string   `json:"escalationTarget"`
	DefaultChannels  []string `json:"defaultChannels"`
}

// Clone returns a deep copy so callers can never mutate shared matrix state.
func (m Matrix) Clone() Matrix {
	out := m
	out.Personas = make([]Persona, len(m.Personas))
	for i, p := range m.Personas {
		out.Personas[i] = p.clone()
	}
	out.Guardrails = make([]Guardrail, len(m.Guardrails))
	for i, g := range m.Guardrails {
		out.Guardrails[i] = g.clone()
	}
	out.Resources = make([]ResourceDescriptor, len(m.Resources))
	for i, r := range m.Resources {
		out.Resources[i] = r.clone()
	}
	return out
}

func (p Persona) clone() Persona {
	out := p
	out.DefaultChannels = cloneStrings(p.DefaultChannels)
	out.Grants = make([]Grant, len(p.Grants))
	for i, g := range p.Grants {
		out.Grants[i] = g.clone()
	}
	return out
}

func (g Grant) clone() Grant {
	out := g
	out.Actions = cloneStrings(g.Actions)
	out.Constraints = cloneStrings(g.Constraints)
	return out
}

func (g Guardrail) clone() Guardrail {
	out := g
	out.Coverage = cloneStrings(g.Coverage)
	return out
}

func (r ResourceDescriptor) clone() ResourceDescriptor {
	out := r
	out.Surfaces = cloneStrings(r.Surfaces)
	return out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
