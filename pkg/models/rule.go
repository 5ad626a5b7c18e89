package models

import "strings"

// Group operators.
const (
	RuleOperatorAnd = "and"
	RuleOperatorOr  = "or"
)

// Leaf comparison operators.
const (
	RuleOperatorEquals      = "equals"
	RuleOperatorNotEquals   = "not_equals"
	RuleOperatorGreaterThan = "greater_than"
	RuleOperatorLessThan    = "less_than"
	RuleOperatorContains    = "contains"
)

// Rule is a node of a boolean rule tree. A node with an "and"/"or" operator is a
// group over Children; any other node is a leaf comparing Field with Value.
type Rule struct {
	Operator string `json:"operator"`
	Children []Rule `json:"children,omitempty"`
	Field    string `json:"field,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// And builds a conjunction group.
func And(children ...Rule) Rule {
	return Rule{Operator: RuleOperatorAnd, Children: children}
}

// Or builds a disjunction group.
func Or(children ...Rule) Rule {
	return Rule{Operator: RuleOperatorOr, Children: children}
}

// Leaf builds a comparison node.
func Leaf(field, operator string, value any) Rule {
	return Rule{Field: field, Operator: operator, Value: value}
}

// IsGroup reports whether the node combines children.
func (r Rule) IsGroup() bool {
	switch strings.ToLower(r.Operator) {
	case RuleOperatorAnd, RuleOperatorOr:
		return true
	default:
		return false
	}
}
