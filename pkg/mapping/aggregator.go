package mapping

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type Aggregator string

const (
	AggregatorSum           Aggregator = "SUM"
	AggregatorAvg           Aggregator = "AVG"
	AggregatorMin           Aggregator = "MIN"
	AggregatorMax           Aggregator = "MAX"
	AggregatorCount         Aggregator = "COUNT"
	AggregatorCountDistinct Aggregator = "COUNT_DISTINCT"
	AggregatorList          Aggregator = "LIST"
	AggregatorListDistinct  Aggregator = "LIST_DISTINCT"
)

var aggregators = []Aggregator{
	AggregatorSum, AggregatorAvg, AggregatorMin, AggregatorMax,
	AggregatorCount, AggregatorCountDistinct, AggregatorList, AggregatorListDistinct,
}

func ParseAggregator(name string) (Aggregator, error) {
	a, ok := lo.Find(aggregators, func(a Aggregator) bool {
		return strings.EqualFold(string(a), strings.TrimSpace(name))
	})
	if !ok {
		return "", fmt.Errorf("unknown aggregator '%s'", name)
	}
	return a, nil
}

// splitAggregation separates "QTY:SUM" into column and aggregator.
func splitAggregation(expr string) (string, string) {
	i := strings.LastIndex(expr, ":")
	if i <= 0 {
		return expr, ""
	}
	return expr[:i], expr[i+1:]
}

// Apply aggregates the values. Empty values are skipped; numeric aggregators
// also skip values that are not numbers.
func (a Aggregator) Apply(values []any) any {
	present := lo.Filter(values, func(v any, _ int) bool { return !utils.IsEmpty(v) })

	switch a {
	case AggregatorSum, AggregatorAvg:
		numbers := lo.FilterMap(present, func(v any, _ int) (decimal.Decimal, bool) { return utils.ToDecimal(v) })
		if len(numbers) == 0 {
			if a == AggregatorSum {
				return 0.0
			}
			return nil
		}
		sum := decimal.Sum(numbers[0], numbers[1:]...)
		if a == AggregatorAvg {
			sum = sum.Div(decimal.NewFromInt(int64(len(numbers))))
		}
		return sum.InexactFloat64()
	case AggregatorMin, AggregatorMax:
		if len(present) == 0 {
			return nil
		}
		result := present[0]
		for _, v := range present[1:] {
			cmp := utils.Compare(v, result)
			if (a == AggregatorMin && cmp < 0) || (a == AggregatorMax && cmp > 0) {
				result = v
			}
		}
		return result
	case AggregatorCount:
		return len(present)
	case AggregatorCountDistinct:
		return len(lo.UniqBy(present, func(v any) string { return utils.KeyOf(v) }))
	case AggregatorListDistinct:
		present = lo.UniqBy(present, func(v any) string { return utils.KeyOf(v) })
	}

	return strings.Join(lo.Map(present, func(v any, _ int) string { return utils.ToString(v) }), meta.DefaultValueListDelimiter)
}
