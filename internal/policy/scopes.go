package policy

import "strings"

// CapabilitySet: набор выданных прав (scopes) вызывающей стороны.
type CapabilitySet map[string]struct{}

// ParseScopes разбирает claim вида "purchase.write purchase.read" (разделители: пробел или запятая).
func ParseScopes(raw string) CapabilitySet {
	set := make(CapabilitySet)
	for _, s := range strings.FieldsFunc(raw, func(r rune) bool { return r == ' ' || r == ',' }) {
		set[s] = struct{}{}
	}
	return set
}

// FromClaims строит набор из claim-мапы токена ("scope": true).
func FromClaims(claims map[string]bool) CapabilitySet {
	set := make(CapabilitySet, len(claims))
	for s, granted := range claims {
		if granted {
			set[s] = struct{}{}
		}
	}
	return set
}

func (c CapabilitySet) Has(scope string) bool {
	_, ok := c[scope]
	return ok
}

// HasAny: пересечение выданных и требуемых прав не пусто.
// Пустой список требований означает отказ (fail closed).
func (c CapabilitySet) HasAny(required ...string) bool {
	for _, r := range required {
		if c.Has(r) {
			return true
		}
	}
	return false
}
