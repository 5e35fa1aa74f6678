package auth

import "strings"

// Scope names a single permission. The set of scopes is closed; raw strings
// arriving in token payloads that match none of these can never satisfy a
// requirement.
type Scope string

const (
	// ScopeAll is the superuser wildcard: holding it satisfies any
	// requirement without further membership checks.
	ScopeAll        Scope = "all"
	ScopeCreateUser Scope = "create-user"
	ScopeRead       Scope = "read"
	ScopeWrite      Scope = "write"
)

// Scopes is an ordered scope list as embedded in a token subject.
type Scopes []Scope

// IsSuperuser reports whether the wildcard scope is present. It is checked
// before any set membership so the wildcard never participates in per-scope
// comparison.
func (s Scopes) IsSuperuser() bool {
	for _, sc := range s {
		if sc == ScopeAll {
			return true
		}
	}
	return false
}

// Contains reports literal membership, wildcard excluded.
func (s Scopes) Contains(target Scope) bool {
	for _, sc := range s {
		if sc == target {
			return true
		}
	}
	return false
}

// String renders the scope list the way a WWW-Authenticate challenge expects.
func (s Scopes) String() string {
	parts := make([]string, 0, len(s))
	for _, sc := range s {
		parts = append(parts, string(sc))
	}
	return strings.Join(parts, " ")
}

// DefaultScopes is the static registry mapping a classification to the scopes
// granted at token issuance. Read-only after init; scopes embedded in a token
// are frozen there and never re-derived from this table on later requests.
func DefaultScopes(t UserType) Scopes {
	switch t {
	case UserTypeAdmin:
		return Scopes{ScopeAll}
	case UserTypeOrganization:
		return Scopes{ScopeRead, ScopeWrite}
	default:
		return Scopes{ScopeRead}
	}
}
