package testgen

// Coverage returns the fraction of ruleIDs satisfied by at least one vector in
// the suite. An empty suite or an empty rule set scores 0; the function never
// divides by zero.
func Coverage(suite []Vector, ruleIDs []string) float64 {
	if len(suite) == 0 || len(ruleIDs) == 0 {
		return 0
	}

	covered := make(map[string]bool)
	for _, v := range suite {
		for id := range v.Covers {
			covered[id] = true
		}
	}

	n := 0
	for _, id := range ruleIDs {
		if covered[id] {
			n++
		}
	}
	return float64(n) / float64(len(ruleIDs))
}
