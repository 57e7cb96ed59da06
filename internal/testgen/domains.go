// Package testgen derives attribute domains from a policy, enumerates the
// candidate test universe with rule-coverage labels, and measures rule
// coverage of a suite.
package testgen

import (
	"math"

	"github.com/policyprobe/policyprobe/internal/policy"
)

// DefaultSentinel is the synthetic value appended to every attribute domain to
// probe NotApplicable paths.
const DefaultSentinel = "UNKNOWN"

// Domain is the set of values observed for one attribute across all rules,
// plus exactly one sentinel value that no rule references.
type Domain struct {
	Attribute string
	Category  string
	Values    []string // real values in first-seen order, sentinel last
	Sentinel  string
}

// BuildDomains scans the rules and returns one domain per attribute, attributes
// in first-seen order. The category of an attribute is taken from the first
// condition that mentions it; rules are assumed consistent. An empty rule list
// yields an empty domain list, which is a valid state.
func BuildDomains(rules []policy.Rule, sentinel string) []Domain {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}

	var order []string
	index := make(map[string]int)
	seen := make(map[string]map[string]bool)

	var domains []Domain
	for _, rule := range rules {
		for _, cond := range rule.Conditions {
			i, ok := index[cond.Attribute]
			if !ok {
				i = len(domains)
				index[cond.Attribute] = i
				order = append(order, cond.Attribute)
				seen[cond.Attribute] = make(map[string]bool)
				domains = append(domains, Domain{
					Attribute: cond.Attribute,
					Category:  cond.Category,
				})
			}
			if !seen[cond.Attribute][cond.Value] {
				seen[cond.Attribute][cond.Value] = true
				domains[i].Values = append(domains[i].Values, cond.Value)
			}
		}
	}

	for _, attr := range order {
		i := index[attr]
		s := sentinel
		for seen[attr][s] {
			// The policy uses the sentinel literal as a real value; keep
			// prefixing until the synthetic value is distinct.
			s = "_" + s
		}
		domains[i].Sentinel = s
		domains[i].Values = append(domains[i].Values, s)
	}

	return domains
}

// PoolSize returns the size of the Cartesian product over the domains, or -1
// when the product overflows int.
func PoolSize(domains []Domain) int {
	if len(domains) == 0 {
		return 0
	}
	size := 1
	for _, d := range domains {
		n := len(d.Values)
		if n == 0 {
			return 0
		}
		if size > math.MaxInt/n {
			return -1
		}
		size *= n
	}
	return size
}
