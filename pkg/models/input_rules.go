package models

import (
	"fmt"

	"github.com/samber/lo"
)

// InputRule describes one positional argument of a formula function.
//
// Example: a function taking a text and an optional length:
//
//	InputRules{
//	  {Name: "text", Type: ValueTypeString},
//	  {Name: "length", Type: ValueTypeNumber, Optional: true},
//	}
//
// A Variadic rule must be the last one and accepts any number of further arguments.
type InputRule struct {
	Name     string    `json:"name"`
	Type     ValueType `json:"type"`
	Optional bool      `json:"optional"`
	Variadic bool      `json:"variadic"`
}

type InputRules []InputRule

// MinArgs is the number of required arguments.
func (r InputRules) MinArgs() int {
	return lo.CountBy(r, func(rule InputRule) bool {
		return !rule.Optional && !rule.Variadic
	})
}

// MaxArgs is the maximum number of arguments, or -1 if the last rule is variadic.
func (r InputRules) MaxArgs() int {
	if len(r) > 0 && r[len(r)-1].Variadic {
		return -1
	}
	return len(r)
}

// Validate checks the argument count. Scalar arguments are coerced by the functions
// themselves, so only array arguments are type checked.
func (r InputRules) Validate(inputs ...any) error {
	if len(inputs) < r.MinArgs() {
		return fmt.Errorf("expected at least %d arguments, got %d", r.MinArgs(), len(inputs))
	}

	if max := r.MaxArgs(); max != -1 && len(inputs) > max {
		return fmt.Errorf("expected at most %d arguments, got %d", max, len(inputs))
	}

	for i, input := range inputs {
		rule := r.ruleAt(i)
		if input == nil || rule.Type != ValueTypeArray {
			continue
		}
		if !ValueTypeArray.Accepts(input) {
			return fmt.Errorf("argument '%s' expects %s, got %T", rule.Name, rule.Type, input)
		}
	}

	return nil
}

func (r InputRules) ruleAt(i int) InputRule {
	if i < len(r) {
		return r[i]
	}
	return r[len(r)-1]
}
