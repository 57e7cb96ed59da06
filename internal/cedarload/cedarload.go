// Package cedarload loads a rule model from Cedar policy text. Each Cedar
// policy becomes one rule: permit maps to Permit, forbid to Deny, and the
// equality clauses on context attributes in the when body become the rule's
// conditions.
package cedarload

import (
	"fmt"
	"os"
	"sort"

	cedarlib "github.com/cedar-policy/cedar-go"
	"github.com/cedar-policy/cedar-go/types"
	internalast "github.com/cedar-policy/cedar-go/x/exp/ast"

	"github.com/policyprobe/policyprobe/internal/policy"
)

// DefaultCategory is assigned to conditions of policies without a @category
// annotation.
const DefaultCategory = "subject"

// categoryAnnotation names the Cedar annotation carrying the XACML attribute
// category, e.g. @category("subject").
const categoryAnnotation = "category"

// idAnnotation lets a policy carry a stable rule identifier, e.g.
// @id("rule-1"). Without it the cedar-go set key (policy0, policy1, ...) is
// used.
const idAnnotation = "id"

// Parse loads rules from Cedar policy text. Policies are returned sorted by
// policy ID so the rule order is stable regardless of map iteration.
func Parse(name string, content []byte) ([]policy.Rule, error) {
	set, err := cedarlib.NewPolicySetFromBytes(name, content)
	if err != nil {
		return nil, fmt.Errorf("parse Cedar policies: %w", err)
	}

	var rules []policy.Rule
	for id, p := range set.Map() {
		rules = append(rules, extractRule(string(id), p))
	}

	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

// ParseFile is Parse over a file path.
func ParseFile(path string) ([]policy.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read Cedar policy file: %w", err)
	}
	return Parse(path, data)
}

func extractRule(id string, p *cedarlib.Policy) policy.Rule {
	effect := policy.Deny
	if p.Effect() == types.Permit {
		effect = policy.Permit
	}

	category := DefaultCategory
	for key, value := range p.Annotations() {
		switch string(key) {
		case categoryAnnotation:
			if string(value) != "" {
				category = string(value)
			}
		case idAnnotation:
			if string(value) != "" {
				id = string(value)
			}
		}
	}

	rule := policy.Rule{ID: id, Effect: effect}

	// The external AST is a type definition of the internal one; cedar-go
	// documents this cast as the way to analyze parsed policies.
	policyAST := (*internalast.Policy)(p.AST())
	if policyAST == nil {
		return rule
	}

	for _, cond := range policyAST.Conditions {
		if cond.Condition != internalast.ConditionWhen {
			// unless clauses are negations; they carry no equality the
			// generator could enumerate.
			continue
		}
		for _, leaf := range flattenAnd(cond.Body) {
			attr, value, ok := extractEquality(leaf)
			if !ok {
				continue
			}
			rule.Conditions = append(rule.Conditions, policy.Condition{
				Attribute: attr,
				Category:  category,
				Value:     value,
			})
		}
	}

	return rule
}

// flattenAnd returns the leaves of a chain of logical ANDs, left to right.
func flattenAnd(node internalast.IsNode) []internalast.IsNode {
	and, ok := node.(internalast.NodeTypeAnd)
	if !ok {
		return []internalast.IsNode{node}
	}
	return append(flattenAnd(and.Left), flattenAnd(and.Right)...)
}

// extractEquality recognizes `context.<attr> == "literal"` (in either operand
// order) and returns the attribute name and literal value. Any other
// comparison, including !=, is not an enumerable condition.
func extractEquality(node internalast.IsNode) (string, string, bool) {
	eq, ok := node.(internalast.NodeTypeEquals)
	if !ok {
		return "", "", false
	}

	if attr, ok := contextAttr(eq.Left); ok {
		if value, ok := literalString(eq.Right); ok {
			return attr, value, true
		}
	}
	if attr, ok := contextAttr(eq.Right); ok {
		if value, ok := literalString(eq.Left); ok {
			return attr, value, true
		}
	}
	return "", "", false
}

// contextAttr returns the attribute name when the node is an access on the
// context variable, e.g. context.role.
func contextAttr(node internalast.IsNode) (string, bool) {
	access, ok := node.(internalast.NodeTypeAccess)
	if !ok {
		return "", false
	}
	variable, ok := access.Arg.(internalast.NodeTypeVariable)
	if !ok || variable.Name != "context" {
		return "", false
	}
	return string(access.Value), true
}

// literalString pulls a string literal out of a value node.
func literalString(node internalast.IsNode) (string, bool) {
	value, ok := node.(internalast.NodeValue)
	if !ok {
		return "", false
	}
	s, ok := value.Value.(types.String)
	if !ok {
		return "", false
	}
	return string(s), true
}
