package formula

import (
	"fmt"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/utils"
)

var formatAliases = map[string]string{
	"iso8601":   time.RFC3339,
	"rfc3339":   time.RFC3339,
	"rfc1123":   time.RFC1123,
	"date":      "2006-01-02",
	"datetime":  "2006-01-02 15:04:05",
	"time":      "15:04:05",
	"timestamp": "2006-01-02T15:04:05Z07:00",
}

var parseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// now is swapped in tests.
var now = time.Now

var dateFunctions = []Definition{
	{
		Key:         "NOW",
		Name:        "Now",
		Description: "Current time in UTC, formatted as RFC 3339.",
		OutputType:  models.ValueTypeDate,
		Volatile:    true,
		Fn: func(inputs ...any) (any, error) {
			return now().UTC().Format(time.RFC3339), nil
		},
	},
	{
		Key:         "DATE_FORMAT",
		Name:        "Format date",
		Description: "Formats a date with a Go layout or one of iso8601, date, datetime, time, timestamp.",
		InputRules: models.InputRules{
			{Name: "date", Type: models.ValueTypeAny},
			{Name: "format", Type: models.ValueTypeString},
			{Name: "timezone", Type: models.ValueTypeString, Optional: true},
		},
		OutputType: models.ValueTypeString,
		Fn: func(inputs ...any) (any, error) {
			if utils.IsEmpty(inputs[0]) {
				return nil, nil
			}
			parsed, err := parseDate(inputs[0])
			if err != nil {
				return nil, err
			}
			if len(inputs) > 2 && utils.ToString(inputs[2]) != "" {
				loc, err := time.LoadLocation(utils.ToString(inputs[2]))
				if err != nil {
					return nil, err
				}
				parsed = parsed.In(loc)
			}
			return parsed.Format(resolveFormat(utils.ToString(inputs[1]))), nil
		},
	},
	{
		Key:         "DATE_ADD",
		Name:        "Add to date",
		Description: "Adds a Go duration (e.g. 36h, -15m) to a date.",
		InputRules: models.InputRules{
			{Name: "date", Type: models.ValueTypeAny},
			{Name: "duration", Type: models.ValueTypeString},
		},
		OutputType: models.ValueTypeDate,
		Fn: func(inputs ...any) (any, error) {
			parsed, err := parseDate(inputs[0])
			if err != nil {
				return nil, err
			}
			d, err := time.ParseDuration(utils.ToString(inputs[1]))
			if err != nil {
				return nil, err
			}
			return parsed.Add(d).Format(time.RFC3339), nil
		},
	},
}

func resolveFormat(format string) string {
	if alias, ok := formatAliases[format]; ok {
		return alias
	}
	return format
}

func parseDate(value any) (time.Time, error) {
	if t, ok := value.(time.Time); ok {
		return t, nil
	}
	str := utils.ToString(value)
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", str)
}
