package datasheet

import (
	"fmt"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/models"
)

type Column struct {
	Name     string
	Hidden   bool
	DataType models.ValueType

	expression *expression.Expression
	sheet      *DataSheet
}

// Expression is the expression the column was created for.
func (c *Column) Expression() *expression.Expression {
	return c.expression
}

// Attribute returns the meta attribute behind the column, if any.
func (c *Column) Attribute() (*meta.Attribute, bool) {
	if c.expression == nil {
		return nil, false
	}
	return c.expression.Attribute()
}

// Values returns the column's value on every row of the sheet.
func (c *Column) Values() []any {
	values := make([]any, len(c.sheet.rows))
	for i, row := range c.sheet.rows {
		values[i] = row[c.Name]
	}
	return values
}

func (c *Column) Value(row int) any {
	if row < 0 || row >= len(c.sheet.rows) {
		return nil
	}
	return c.sheet.rows[row][c.Name]
}

// SetValues writes values row by row, adding rows if there are more values than
// rows. Rows beyond the values keep their current cell.
func (c *Column) SetValues(values []any) {
	for i, v := range values {
		if i >= len(c.sheet.rows) {
			c.sheet.rows = append(c.sheet.rows, Row{})
		}
		c.sheet.rows[i][c.Name] = v
	}
	c.sheet.fresh = false
}

func (c *Column) SetValue(row int, value any) {
	c.sheet.rows[row][c.Name] = value
}

func (c *Column) SetValueOnAllRows(value any) {
	for _, row := range c.sheet.rows {
		row[c.Name] = value
	}
	c.sheet.fresh = false
}

// ValueListDelimiter is the delimiter of the underlying attribute, or ",".
func (c *Column) ValueListDelimiter() string {
	if a, ok := c.Attribute(); ok {
		return a.GetValueListDelimiter()
	}
	return meta.DefaultValueListDelimiter
}

func (c *Column) copyTo(sheet *DataSheet) *Column {
	copied := *c
	copied.sheet = sheet
	return &copied
}

func errColumnNotFound(name string, sheet *DataSheet) error {
	return errors.NewMappingFailedError(fmt.Sprintf("column '%s' not found in sheet of '%s'", name, sheet.ObjectAlias())).
		AddField(name).
		AddCode(errors.CodeFromAttributeNotFound)
}
