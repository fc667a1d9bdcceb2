package policy

// Evaluator turns (persona, resource, action) into a Decision by consulting
// the registry. It is a pure function over immutable data: no errors, no
// side effects, safe for unbounded concurrent callers.
type Evaluator struct {
	registry *Registry
}

func NewEvaluator(registry *Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// matchKind is the closed vocabulary of ways a grant action entry can match a
// requested action. There is no fuzzy or partial matching beyond these.
type matchKind int

const (
	matchExact matchKind = iota
	matchWildcard
	matchSynonym
)

// wildcardTokens match any requested action.
var wildcardTokens = map[string]struct{}{
	"*":      {},
	"all":    {},
	"any":    {},
	"manage": {},
}

// actionSynonyms maps a grant action entry to the requested actions it also
// covers. Keep this table short and auditable.
var actionSynonyms = map[string][]string{
	"view":   {"read", "fetch"},
	"update": {"edit", "patch"},
}

// classify returns how a grant entry would match the requested action, and
// whether it matches at all.
func classify(entry, requested string) (matchKind, bool) {
	if _, ok := wildcardTokens[entry]; ok {
		return matchWildcard, true
	}
	if entry == requested {
		return matchExact, true
	}
	for _, synonym := range actionSynonyms[entry] {
		if synonym == requested {
			return matchSynonym, true
		}
	}
	return 0, false
}

// Evaluate renders an allow/deny decision. Every input, including unknown or
// malformed values, yields a Decision with a reason code - never a panic or
// an error.
//
// Grants are scanned in declaration order and the first (resource, action)
// match wins. A later, more specific grant never overrides an earlier broader
// one; the matrix is authored with that rule in mind.
func (e *Evaluator) Evaluate(personaKey, resourceKey, action string) Decision {
	persona, ok := e.registry.persona(normalizeKey(personaKey))
	if !ok {
		return Decision{
			Allowed:     false,
			Decision:    EffectDeny,
			Reason:      ReasonUnknownPersona,
			Constraints: []string{},
		}
	}

	resource := normalizeKey(resourceKey)
	requested := normalizeKey(action)

	for _, grant := range persona.Grants {
		if normalizeKey(grant.Resource) != resource {
			continue
		}
		if !grantCoversAction(grant, requested) {
			continue
		}
		if grant.Decision == EffectDeny {
			return Decision{
				Allowed:     false,
				Decision:    EffectDeny,
				Reason:      ReasonExplicitDeny,
				PolicyKey:   grant.PolicyKey,
				Constraints: cloneStrings(grant.Constraints),
			}
		}
		return Decision{
			Allowed:            true,
			Decision:           EffectAllow,
			PolicyKey:          grant.PolicyKey,
			Constraints:        cloneStrings(grant.Constraints),
			AuditRetentionDays: grant.AuditRetentionDays,
		}
	}

	return Decision{
		Allowed:     false,
		Decision:    EffectDeny,
		Reason:      ReasonNoMatchingGrant,
		Constraints: []string{},
	}
}

func grantCoversAction(grant Grant, requested string) bool {
	for _, entry := range grant.Actions {
		if _, ok := classify(normalizeKey(entry), requested); ok {
			return true
		}
	}
	return false
}
