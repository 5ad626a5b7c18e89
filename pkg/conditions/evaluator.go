// Package conditions evaluates boolean rule trees against a trigger context.
//
// Every operator is total: type mismatches, missing fields and unknown
// operators evaluate to false instead of failing, so a malformed rule can only
// ever mean "condition not met".
package conditions

import (
	"strings"

	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/template"
)

// Evaluate reports whether data satisfies rule. A nil rule always holds.
func Evaluate(rule *models.Rule, data map[string]any) bool {
	if rule == nil {
		return true
	}

	return evaluate(*rule, data)
}

func evaluate(rule models.Rule, data map[string]any) bool {
	switch strings.ToLower(rule.Operator) {
	case models.RuleOperatorAnd:
		// An empty conjunction is vacuously true.
		for _, child := range rule.Children {
			if !evaluate(child, data) {
				return false
			}
		}

		return true
	case models.RuleOperatorOr:
		// An empty disjunction has no true member and is false.
		for _, child := range rule.Children {
			if evaluate(child, data) {
				return true
			}
		}

		return false
	default:
		return evaluateLeaf(rule, data)
	}
}

func evaluateLeaf(rule models.Rule, data map[string]any) bool {
	actual, found := template.Lookup(data, rule.Field)

	switch strings.ToLower(rule.Operator) {
	case models.RuleOperatorEquals:
		return found && strictEqual(actual, rule.Value)
	case models.RuleOperatorNotEquals:
		return !found || !strictEqual(actual, rule.Value)
	case models.RuleOperatorGreaterThan:
		return found && compareNumbers(actual, rule.Value, func(a, b float64) bool { return a > b })
	case models.RuleOperatorLessThan:
		return found && compareNumbers(actual, rule.Value, func(a, b float64) bool { return a < b })
	case models.RuleOperatorContains:
		text, ok := actual.(string)
		if !found || !ok || rule.Value == nil {
			return false
		}

		return strings.Contains(text, template.Stringify(rule.Value))
	default:
		return false
	}
}

func compareNumbers(actual, expected any, cmp func(a, b float64) bool) bool {
	if order, ok := compareIntegers(actual, expected); ok {
		return cmp(float64(order), 0)
	}

	a, ok := toNumber(actual)
	if !ok {
		return false
	}

	b, ok := toNumber(expected)
	if !ok {
		return false
	}

	return cmp(a, b)
}
