package testgen

import (
	"fmt"

	"github.com/policyprobe/policyprobe/internal/policy"
)

// Strategy selects how the candidate pool is enumerated.
type Strategy string

const (
	// Combinatorial enumerates the full Cartesian product of the attribute
	// domains. Pool size is the product of domain sizes, so it is guarded by
	// Options.MaxCandidates.
	Combinatorial Strategy = "combinatorial"

	// PerRule emits one vector per rule carrying exactly that rule's condition
	// values, plus one trailing all-sentinel vector for the NotApplicable path.
	PerRule Strategy = "per-rule"
)

// VacuousMode decides how a rule with zero conditions counts toward coverage.
type VacuousMode string

const (
	// VacuousCoversAll treats the empty conjunction as trivially true: every
	// vector covers the rule. This matches the plain coverage arithmetic and
	// is the default.
	VacuousCoversAll VacuousMode = "covers-all"

	// VacuousNeverCovered excludes condition-less rules from every vector's
	// cover set.
	VacuousNeverCovered VacuousMode = "never-covered"
)

// DefaultMaxCandidates caps combinatorial enumeration unless overridden.
const DefaultMaxCandidates = 100000

// Options controls candidate generation.
type Options struct {
	Strategy Strategy
	Vacuous  VacuousMode
	Sentinel string

	// MaxCandidates bounds the combinatorial pool. Zero means the default cap;
	// negative disables the guard entirely.
	MaxCandidates int
}

// DefaultOptions returns the generation defaults: exhaustive enumeration with
// the standard cap and vacuous rules covered by everything.
func DefaultOptions() Options {
	return Options{
		Strategy:      Combinatorial,
		Vacuous:       VacuousCoversAll,
		Sentinel:      DefaultSentinel,
		MaxCandidates: DefaultMaxCandidates,
	}
}

// PoolSizeError reports a combinatorial product exceeding the configured cap.
type PoolSizeError struct {
	Size int // -1 when the product overflows
	Max  int
}

func (e *PoolSizeError) Error() string {
	if e.Size < 0 {
		return fmt.Sprintf("candidate pool size overflows (cap %d); reduce attribute domains or use the per-rule strategy", e.Max)
	}
	return fmt.Sprintf("candidate pool would hold %d vectors (cap %d); raise MaxCandidates or use the per-rule strategy", e.Size, e.Max)
}

// Generate builds the candidate pool for the rules under the given options.
// Generation is deterministic: attributes iterate in first-seen order, values
// in first-seen order with the sentinel last, and the rightmost attribute
// varies fastest. IDs are assigned 1..N in enumeration order.
func Generate(rules []policy.Rule, opts Options) ([]Vector, error) {
	if opts.Strategy == "" {
		opts.Strategy = Combinatorial
	}
	if opts.Vacuous == "" {
		opts.Vacuous = VacuousCoversAll
	}
	if opts.MaxCandidates == 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}

	domains := BuildDomains(rules, opts.Sentinel)

	switch opts.Strategy {
	case Combinatorial:
		return generateCombinatorial(rules, domains, opts)
	case PerRule:
		return generatePerRule(rules, domains, opts), nil
	default:
		return nil, fmt.Errorf("unknown generation strategy %q", opts.Strategy)
	}
}

func generateCombinatorial(rules []policy.Rule, domains []Domain, opts Options) ([]Vector, error) {
	size := PoolSize(domains)
	if opts.MaxCandidates > 0 && (size < 0 || size > opts.MaxCandidates) {
		return nil, &PoolSizeError{Size: size, Max: opts.MaxCandidates}
	}
	if size <= 0 {
		return nil, nil
	}

	vectors := make([]Vector, 0, size)
	indices := make([]int, len(domains))
	for {
		assignment := make([]AttributeValue, len(domains))
		for i, d := range domains {
			assignment[i] = AttributeValue{
				Attribute: d.Attribute,
				Category:  d.Category,
				Value:     d.Values[indices[i]],
			}
		}
		v := Vector{
			ID:         len(vectors) + 1,
			Assignment: assignment,
		}
		v.Covers = coversFor(v, rules, opts.Vacuous)
		vectors = append(vectors, v)

		// Advance the odometer, rightmost attribute fastest.
		pos := len(indices) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(domains[pos].Values) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}

	return vectors, nil
}

func generatePerRule(rules []policy.Rule, domains []Domain, opts Options) []Vector {
	vectors := make([]Vector, 0, len(rules)+1)
	for _, rule := range rules {
		assignment := make([]AttributeValue, 0, len(rule.Conditions))
		for _, cond := range rule.Conditions {
			assignment = append(assignment, AttributeValue{
				Attribute: cond.Attribute,
				Category:  cond.Category,
				Value:     cond.Value,
			})
		}
		v := Vector{
			ID:         len(vectors) + 1,
			Assignment: assignment,
		}
		v.Covers = coversFor(v, rules, opts.Vacuous)
		vectors = append(vectors, v)
	}

	if len(domains) > 0 {
		assignment := make([]AttributeValue, len(domains))
		for i, d := range domains {
			assignment[i] = AttributeValue{
				Attribute: d.Attribute,
				Category:  d.Category,
				Value:     d.Sentinel,
			}
		}
		v := Vector{
			ID:         len(vectors) + 1,
			Assignment: assignment,
		}
		v.Covers = coversFor(v, rules, opts.Vacuous)
		vectors = append(vectors, v)
	}

	return vectors
}

// coversFor labels a vector with every rule it satisfies. A rule is satisfied
// when all of its conditions match the assignment exactly; a condition on an
// attribute absent from the assignment never matches.
func coversFor(v Vector, rules []policy.Rule, vacuous VacuousMode) map[string]bool {
	covers := make(map[string]bool)
	for _, rule := range rules {
		if rule.Vacuous() {
			if vacuous == VacuousCoversAll {
				covers[rule.ID] = true
			}
			continue
		}
		matched := true
		for _, cond := range rule.Conditions {
			val, ok := v.Value(cond.Attribute)
			if !ok || val != cond.Value {
				matched = false
				break
			}
		}
		if matched {
			covers[rule.ID] = true
		}
	}
	return covers
}
