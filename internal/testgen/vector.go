package testgen

import (
	"fmt"
	"sort"
	"strings"
)

// AttributeValue is one attribute's assignment within a test vector.
type AttributeValue struct {
	Attribute string
	Category  string
	Value     string
}

// Vector is a single candidate test case: a concrete value for every attribute
// in the domain, labeled with the rules it satisfies. Vectors are immutable
// once generated; the optimizer selects them by index and never copies or
// mutates them.
type Vector struct {
	ID         int
	Assignment []AttributeValue // domain order
	Covers     map[string]bool  // rule IDs satisfied by this assignment
}

// Value returns the assigned value for an attribute and whether the attribute
// is present in the assignment.
func (v Vector) Value(attr string) (string, bool) {
	for _, av := range v.Assignment {
		if av.Attribute == attr {
			return av.Value, true
		}
	}
	return "", false
}

// CoveredRules returns the vector's covered rule IDs sorted for stable output.
func (v Vector) CoveredRules() []string {
	out := make([]string, 0, len(v.Covers))
	for id := range v.Covers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (v Vector) String() string {
	parts := make([]string, len(v.Assignment))
	for i, av := range v.Assignment {
		parts[i] = fmt.Sprintf("%s=%s", av.Attribute, av.Value)
	}
	return fmt.Sprintf("TC%d{%s} covers=%v", v.ID, strings.Join(parts, " "), v.CoveredRules())
}
