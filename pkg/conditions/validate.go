package conditions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/rentflow/pkg/models"
)

// ErrInvalidRule indicates a structurally malformed rule tree.
var ErrInvalidRule = errors.New("invalid rule")

var leafOperators = map[string]bool{
	models.RuleOperatorEquals:      true,
	models.RuleOperatorNotEquals:   true,
	models.RuleOperatorGreaterThan: true,
	models.RuleOperatorLessThan:    true,
	models.RuleOperatorContains:    true,
}

// Validate reports structural problems in a rule tree. It is meant for
// definition time; Evaluate never needs it and stays total.
func Validate(rule *models.Rule) error {
	if rule == nil {
		return nil
	}

	return validate(*rule, "conditions")
}

func validate(rule models.Rule, path string) error {
	if rule.IsGroup() {
		if rule.Field != "" {
			return fmt.Errorf("%w: %s: group must not set field %q", ErrInvalidRule, path, rule.Field)
		}

		for i, child := range rule.Children {
			err := validate(child, fmt.Sprintf("%s.children[%d]", path, i))
			if err != nil {
				return err
			}
		}

		return nil
	}

	if !leafOperators[strings.ToLower(rule.Operator)] {
		return fmt.Errorf("%w: %s: unknown operator %q", ErrInvalidRule, path, rule.Operator)
	}

	if rule.Field == "" {
		return fmt.Errorf("%w: %s: field is required", ErrInvalidRule, path)
	}

	if len(rule.Children) > 0 {
		return fmt.Errorf("%w: %s: leaf %q must not have children", ErrInvalidRule, path, rule.Field)
	}

	return nil
}
