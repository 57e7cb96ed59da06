package testgen

import (
	"testing"

	"github.com/policyprobe/policyprobe/internal/policy"
)

func twoRolePolicy() []policy.Rule {
	return []policy.Rule{
		{ID: "rule-1", Effect: policy.Permit, Conditions: []policy.Condition{
			{Attribute: "role", Category: "subject", Value: "manager"},
		}},
		{ID: "rule-2", Effect: policy.Deny, Conditions: []policy.Condition{
			{Attribute: "role", Category: "subject", Value: "guest"},
		}},
	}
}

func TestBuildDomainsCompleteness(t *testing.T) {
	rules := []policy.Rule{
		{ID: "r1", Conditions: []policy.Condition{
			{Attribute: "role", Category: "subject", Value: "manager"},
			{Attribute: "action", Category: "action", Value: "read"},
		}},
		{ID: "r2", Conditions: []policy.Condition{
			{Attribute: "role", Category: "subject", Value: "guest"},
		}},
	}

	domains := BuildDomains(rules, "")
	if len(domains) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(domains))
	}

	for _, rule := range rules {
		for _, cond := range rule.Conditions {
			d := findDomain(t, domains, cond.Attribute)
			if d.Category != cond.Category {
				t.Fatalf("domain %s: category %q, want %q", d.Attribute, d.Category, cond.Category)
			}
			if !contains(d.Values, cond.Value) {
				t.Fatalf("domain %s missing value %q", d.Attribute, cond.Value)
			}
		}
	}
}

func TestBuildDomainsSentinel(t *testing.T) {
	domains := BuildDomains(twoRolePolicy(), "")
	d := findDomain(t, domains, "role")

	if len(d.Values) != 3 {
		t.Fatalf("expected {manager, guest, sentinel}, got %v", d.Values)
	}
	if d.Sentinel != DefaultSentinel {
		t.Fatalf("sentinel = %q, want %q", d.Sentinel, DefaultSentinel)
	}
	if d.Values[len(d.Values)-1] != d.Sentinel {
		t.Fatalf("sentinel must be last, got %v", d.Values)
	}

	// Exactly one value absent from all rule conditions.
	synthetic := 0
	for _, v := range d.Values {
		if v != "manager" && v != "guest" {
			synthetic++
		}
	}
	if synthetic != 1 {
		t.Fatalf("expected exactly one synthetic value, got %d", synthetic)
	}
}

func TestBuildDomainsSentinelCollision(t *testing.T) {
	rules := []policy.Rule{
		{ID: "r1", Conditions: []policy.Condition{
			{Attribute: "role", Category: "subject", Value: "UNKNOWN"},
		}},
	}
	domains := BuildDomains(rules, "")
	d := findDomain(t, domains, "role")
	if d.Sentinel == "UNKNOWN" {
		t.Fatal("sentinel must differ from real values")
	}
	if d.Sentinel != "_UNKNOWN" {
		t.Fatalf("sentinel = %q, want %q", d.Sentinel, "_UNKNOWN")
	}
}

func TestBuildDomainsEmptyRules(t *testing.T) {
	if domains := BuildDomains(nil, ""); len(domains) != 0 {
		t.Fatalf("expected no domains, got %v", domains)
	}
}

func TestBuildDomainsFirstWriterWinsCategory(t *testing.T) {
	rules := []policy.Rule{
		{ID: "r1", Conditions: []policy.Condition{{Attribute: "role", Category: "subject", Value: "a"}}},
		{ID: "r2", Conditions: []policy.Condition{{Attribute: "role", Category: "resource", Value: "b"}}},
	}
	d := findDomain(t, BuildDomains(rules, ""), "role")
	if d.Category != "subject" {
		t.Fatalf("category = %q, want first-writer %q", d.Category, "subject")
	}
}

func TestPoolSize(t *testing.T) {
	domains := BuildDomains(twoRolePolicy(), "")
	if n := PoolSize(domains); n != 3 {
		t.Fatalf("pool size = %d, want 3", n)
	}
	if n := PoolSize(nil); n != 0 {
		t.Fatalf("empty pool size = %d, want 0", n)
	}
}

func findDomain(t *testing.T, domains []Domain, attr string) Domain {
	t.Helper()
	for _, d := range domains {
		if d.Attribute == attr {
			return d
		}
	}
	t.Fatalf("no domain for attribute %q", attr)
	return Domain{}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
