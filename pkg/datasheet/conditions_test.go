package datasheet

import (
	"testing"

	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name       string
		actual     any
		comparator Comparator
		expected   any
		result     bool
	}{
		{name: "is contains case-insensitively", actual: "Hello World", comparator: ComparatorIs, expected: "world", result: true},
		{name: "is compares numbers", actual: 10, comparator: ComparatorIs, expected: "10", result: true},
		{name: "is with empty expects empty", actual: "", comparator: ComparatorIs, expected: nil, result: true},
		{name: "is not", actual: "abc", comparator: ComparatorIsNot, expected: "x", result: true},
		{name: "equals is strict", actual: "Hello World", comparator: ComparatorEquals, expected: "world", result: false},
		{name: "equals numbers", actual: 1, comparator: ComparatorEquals, expected: 1.0, result: true},
		{name: "equals not", actual: 1, comparator: ComparatorEqualsNot, expected: 2, result: true},
		{name: "less than", actual: 2, comparator: ComparatorLessThan, expected: 10, result: true},
		{name: "less or equal", actual: 10, comparator: ComparatorLessOrEqual, expected: 10, result: true},
		{name: "greater than", actual: "b", comparator: ComparatorGreaterThan, expected: "a", result: true},
		{name: "greater or equal", actual: 1, comparator: ComparatorGreaterOrEq, expected: 2, result: false},
		{name: "in list", actual: 2, comparator: ComparatorIn, expected: "1,2,3", result: true},
		{name: "in slice", actual: "b", comparator: ComparatorIn, expected: []any{"a", "b"}, result: true},
		{name: "not in", actual: 5, comparator: ComparatorNotIn, expected: "1,2,3", result: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.result, Compare(tt.actual, tt.comparator, tt.expected, ","))
		})
	}
}

func TestConditionGroup(t *testing.T) {
	sheet := orderSheet(t)
	id := expression.MustParse("ID", sheet.Object())
	name := expression.MustParse("NAME", sheet.Object())

	t.Run("should match every row when empty", func(t *testing.T) {
		ok, err := NewConditionGroup(OperatorAnd).Evaluate(sheet, 0)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("should combine with AND and OR", func(t *testing.T) {
		or := NewConditionGroup(OperatorOr).
			AddCondition(NewCondition(id, ComparatorEquals, 1)).
			AddCondition(NewCondition(id, ComparatorEquals, 3))
		group := NewConditionGroup(OperatorAnd).
			AddCondition(NewCondition(name, ComparatorIs, "ir")).
			AddNestedGroup(or)

		matches := []bool{}
		for i := 0; i < sheet.CountRows(); i++ {
			ok, err := group.Evaluate(sheet, i)
			require.NoError(t, err)
			matches = append(matches, ok)
		}
		assert.Equal(t, []bool{true, false, true}, matches)
	})

	t.Run("should ignore empty values when asked", func(t *testing.T) {
		c := NewCondition(id, ComparatorEquals, "")
		c.IgnoreEmptyValues = true
		ok, err := c.Evaluate(sheet, 0)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("should remove nested conditions", func(t *testing.T) {
		c := NewCondition(id, ComparatorEquals, 1)
		nested := NewConditionGroup(OperatorOr).AddCondition(c)
		group := NewConditionGroup(OperatorAnd).AddNestedGroup(nested)
		assert.Len(t, group.AllConditions(), 1)

		group.RemoveCondition(c)
		assert.Empty(t, group.AllConditions())
		assert.True(t, group.IsEmpty())
	})

	t.Run("should parse comparators and operators", func(t *testing.T) {
		c, err := ParseComparator("![")
		require.NoError(t, err)
		assert.Equal(t, ComparatorNotIn, c)

		c, err = ParseComparator("")
		require.NoError(t, err)
		assert.Equal(t, ComparatorIs, c)

		op, err := ParseOperator("or")
		require.NoError(t, err)
		assert.Equal(t, OperatorOr, op)

		_, err = ParseOperator("xor")
		assert.Error(t, err)
	})
}
