// Package policy holds the in-memory rule model shared by every stage of the
// conformance-test pipeline, plus the XACML policy loader that produces it.
package policy

// Effect is the decision a rule yields when all of its conditions match.
type Effect string

const (
	Permit Effect = "Permit"
	Deny   Effect = "Deny"
)

// Condition is a single equality constraint within a rule. Category is carried
// through to the generated request documents but plays no part in matching.
type Condition struct {
	Attribute string
	Category  string
	Value     string
}

// Rule maps a conjunction of conditions to an effect. Rules are immutable once
// loaded; the generator and optimizer only ever read them.
type Rule struct {
	ID         string
	Effect     Effect
	Conditions []Condition
}

// Vacuous reports whether the rule has no conditions at all. How such rules
// count toward coverage is a generator option, not a property of the rule.
func (r Rule) Vacuous() bool {
	return len(r.Conditions) == 0
}

// IDs returns the identifiers of all rules in order.
func IDs(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.ID
	}
	return out
}
