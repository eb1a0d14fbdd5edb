package datasheet

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/samber/lo"
)

type Operator string

const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

type Comparator string

const (
	ComparatorIs          Comparator = "="
	ComparatorIsNot       Comparator = "!="
	ComparatorEquals      Comparator = "=="
	ComparatorEqualsNot   Comparator = "!=="
	ComparatorLessThan    Comparator = "<"
	ComparatorLessOrEqual Comparator = "<="
	ComparatorGreaterThan Comparator = ">"
	ComparatorGreaterOrEq Comparator = ">="
	ComparatorIn          Comparator = "["
	ComparatorNotIn       Comparator = "!["
)

var comparators = []Comparator{
	ComparatorIs, ComparatorIsNot, ComparatorEquals, ComparatorEqualsNot,
	ComparatorLessThan, ComparatorLessOrEqual, ComparatorGreaterThan, ComparatorGreaterOrEq,
	ComparatorIn, ComparatorNotIn,
}

func ParseComparator(str string) (Comparator, error) {
	if str == "" {
		return ComparatorIs, nil
	}
	c, ok := lo.Find(comparators, func(c Comparator) bool { return string(c) == strings.TrimSpace(str) })
	if !ok {
		return "", fmt.Errorf("unknown comparator '%s'", str)
	}
	return c, nil
}

func ParseOperator(str string) (Operator, error) {
	switch strings.ToUpper(strings.TrimSpace(str)) {
	case "", string(OperatorAnd):
		return OperatorAnd, nil
	case string(OperatorOr):
		return OperatorOr, nil
	}
	return "", fmt.Errorf("unknown operator '%s'", str)
}

type Condition struct {
	Expression        *expression.Expression
	Comparator        Comparator
	Value             any
	IgnoreEmptyValues bool
}

func NewCondition(e *expression.Expression, comparator Comparator, value any) *Condition {
	return &Condition{Expression: e, Comparator: comparator, Value: value}
}

func (c *Condition) Copy() *Condition {
	copied := *c
	return &copied
}

func (c *Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Expression, c.Comparator, utils.ToString(c.Value))
}

// Evaluate checks the condition against one row of the source. Conditions on empty
// values with IgnoreEmptyValues always match.
func (c *Condition) Evaluate(src expression.RowSource, row int) (bool, error) {
	if c.IgnoreEmptyValues && utils.IsEmpty(c.Value) {
		return true, nil
	}

	actual, err := c.Expression.Evaluate(src, row)
	if err != nil {
		return false, err
	}
	return Compare(actual, c.Comparator, c.Value, c.delimiter()), nil
}

func (c *Condition) delimiter() string {
	if a, ok := c.Expression.Attribute(); ok {
		return a.GetValueListDelimiter()
	}
	return meta.DefaultValueListDelimiter
}

// Compare applies a comparator. "=" is a case-insensitive contains for text and an
// equality for numbers; "==" is strict equality.
func Compare(actual any, comparator Comparator, expected any, delimiter string) bool {
	switch comparator {
	case ComparatorIs:
		return is(actual, expected)
	case ComparatorIsNot:
		return !is(actual, expected)
	case ComparatorEquals:
		return utils.ValuesEqual(actual, expected)
	case ComparatorEqualsNot:
		return !utils.ValuesEqual(actual, expected)
	case ComparatorLessThan:
		return utils.Compare(actual, expected) < 0
	case ComparatorLessOrEqual:
		return utils.Compare(actual, expected) <= 0
	case ComparatorGreaterThan:
		return utils.Compare(actual, expected) > 0
	case ComparatorGreaterOrEq:
		return utils.Compare(actual, expected) >= 0
	case ComparatorIn:
		return in(actual, expected, delimiter)
	case ComparatorNotIn:
		return !in(actual, expected, delimiter)
	}
	return false
}

func is(actual, expected any) bool {
	if utils.IsEmpty(expected) {
		return utils.IsEmpty(actual)
	}
	if _, ok := utils.ToDecimal(expected); ok {
		if _, ok := utils.ToDecimal(actual); ok {
			return utils.ValuesEqual(actual, expected)
		}
	}
	return strings.Contains(strings.ToLower(utils.ToString(actual)), strings.ToLower(utils.ToString(expected)))
}

func in(actual, expected any, delimiter string) bool {
	return lo.SomeBy(utils.SplitList(expected, delimiter), func(item string) bool {
		return utils.ValuesEqual(actual, item)
	})
}

type ConditionGroup struct {
	Operator     Operator
	Conditions   []*Condition
	NestedGroups []*ConditionGroup
}

func NewConditionGroup(operator Operator) *ConditionGroup {
	return &ConditionGroup{
		Operator:     operator,
		Conditions:   []*Condition{},
		NestedGroups: []*ConditionGroup{},
	}
}

func (g *ConditionGroup) AddCondition(c *Condition) *ConditionGroup {
	g.Conditions = append(g.Conditions, c)
	return g
}

func (g *ConditionGroup) AddNestedGroup(nested *ConditionGroup) *ConditionGroup {
	g.NestedGroups = append(g.NestedGroups, nested)
	return g
}

// RemoveCondition removes the condition from this group or any nested group.
func (g *ConditionGroup) RemoveCondition(c *Condition) {
	g.Conditions = lo.Without(g.Conditions, c)
	for _, nested := range g.NestedGroups {
		nested.RemoveCondition(c)
	}
}

// AllConditions lists the conditions of the whole tree, depth first.
func (g *ConditionGroup) AllConditions() []*Condition {
	result := append([]*Condition{}, g.Conditions...)
	for _, nested := range g.NestedGroups {
		result = append(result, nested.AllConditions()...)
	}
	return result
}

func (g *ConditionGroup) IsEmpty() bool {
	return len(g.Conditions) == 0 && lo.EveryBy(g.NestedGroups, func(n *ConditionGroup) bool {
		return n.IsEmpty()
	})
}

func (g *ConditionGroup) Copy() *ConditionGroup {
	return &ConditionGroup{
		Operator:     g.Operator,
		Conditions:   lo.Map(g.Conditions, func(c *Condition, _ int) *Condition { return c.Copy() }),
		NestedGroups: lo.Map(g.NestedGroups, func(n *ConditionGroup, _ int) *ConditionGroup { return n.Copy() }),
	}
}

// Evaluate checks one row. An empty group matches every row.
func (g *ConditionGroup) Evaluate(src expression.RowSource, row int) (bool, error) {
	if g.IsEmpty() {
		return true, nil
	}

	results := make([]bool, 0, len(g.Conditions)+len(g.NestedGroups))
	for _, c := range g.Conditions {
		ok, err := c.Evaluate(src, row)
		if err != nil {
			return false, err
		}
		results = append(results, ok)
	}
	for _, nested := range g.NestedGroups {
		if nested.IsEmpty() {
			continue
		}
		ok, err := nested.Evaluate(src, row)
		if err != nil {
			return false, err
		}
		results = append(results, ok)
	}

	if g.Operator == OperatorOr {
		return lo.Contains(results, true), nil
	}
	return !lo.Contains(results, false), nil
}

func (g *ConditionGroup) String() string {
	parts := lo.Map(g.Conditions, func(c *Condition, _ int) string { return c.String() })
	for _, nested := range g.NestedGroups {
		if !nested.IsEmpty() {
			parts = append(parts, "("+nested.String()+")")
		}
	}
	return strings.Join(parts, " "+string(g.Operator)+" ")
}
