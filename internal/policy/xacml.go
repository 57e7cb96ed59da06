package policy

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// xacmlPolicy mirrors the subset of the XACML 3.0 policy schema the loader
// cares about: rules, their effects, and the equality matches in their targets.
type xacmlPolicy struct {
	XMLName xml.Name    `xml:"Policy"`
	Rules   []xacmlRule `xml:"Rule"`
}

type xacmlRule struct {
	RuleID  string       `xml:"RuleId,attr"`
	Effect  string       `xml:"Effect,attr"`
	Matches []xacmlMatch `xml:"Target>AnyOf>AllOf>Match"`
}

type xacmlMatch struct {
	AttributeValue string          `xml:"AttributeValue"`
	Designator     xacmlDesignator `xml:"AttributeDesignator"`
}

type xacmlDesignator struct {
	AttributeID string `xml:"AttributeId,attr"`
	Category    string `xml:"Category,attr"`
}

// ParseXACML reads an XACML 3.0 policy document and returns its rules in
// document order. Matches within a rule become ANDed conditions.
func ParseXACML(r io.Reader) ([]Rule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}

	var doc xacmlPolicy
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse XACML policy: %w", err)
	}

	rules := make([]Rule, 0, len(doc.Rules))
	for _, xr := range doc.Rules {
		effect, err := parseEffect(xr.Effect)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", xr.RuleID, err)
		}

		conditions := make([]Condition, 0, len(xr.Matches))
		for _, m := range xr.Matches {
			conditions = append(conditions, Condition{
				Attribute: m.Designator.AttributeID,
				Category:  m.Designator.Category,
				Value:     m.AttributeValue,
			})
		}

		rules = append(rules, Rule{
			ID:         xr.RuleID,
			Effect:     effect,
			Conditions: conditions,
		})
	}

	return rules, nil
}

// ParseXACMLFile is ParseXACML over a file path.
func ParseXACMLFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open policy file: %w", err)
	}
	defer f.Close()

	rules, err := ParseXACML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

func parseEffect(s string) (Effect, error) {
	switch s {
	case "Permit":
		return Permit, nil
	case "Deny":
		return Deny, nil
	default:
		return "", fmt.Errorf("unknown effect %q", s)
	}
}
