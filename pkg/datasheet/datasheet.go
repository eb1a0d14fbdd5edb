// Package datasheet implements the in-memory table mappings work on: ordered rows,
// named columns and a filter condition tree, all bound to one meta object.
package datasheet

import (
	"sort"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/samber/lo"
)

// Row maps column names to values.
type Row map[string]any

func (r Row) Copy() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

type DataSheet struct {
	object  *meta.Object
	columns []*Column
	rows    []Row
	filters *ConditionGroup
	fresh   bool
}

func New(object *meta.Object) *DataSheet {
	return &DataSheet{
		object:  object,
		columns: []*Column{},
		rows:    []Row{},
		filters: NewConditionGroup(OperatorAnd),
	}
}

func (s *DataSheet) Object() *meta.Object {
	return s.object
}

func (s *DataSheet) ObjectAlias() string {
	if s.object == nil {
		return ""
	}
	return s.object.Alias
}

// IsFresh reports whether the rows were read from (or written by) the data source
// and need no further read.
func (s *DataSheet) IsFresh() bool {
	return s.fresh
}

func (s *DataSheet) SetFresh(fresh bool) {
	s.fresh = fresh
}

// Columns

func (s *DataSheet) Columns() []*Column {
	return s.columns
}

func (s *DataSheet) ColumnNames() []string {
	return ectolinq.Map(s.columns, func(c *Column) string { return c.Name })
}

func (s *DataSheet) HasColumns() bool {
	return len(s.columns) > 0
}

// AddColumn parses the expression against the sheet's object and adds a column for
// it. An existing column with the same name is returned instead.
func (s *DataSheet) AddColumn(expr string) (*Column, error) {
	e, err := expression.Parse(expr, s.object)
	if err != nil {
		return nil, err
	}
	return s.AddColumnExpression(e), nil
}

func (s *DataSheet) AddColumnExpression(e *expression.Expression) *Column {
	if existing, ok := s.GetColumn(e.ColumnName()); ok {
		return existing
	}

	c := &Column{Name: e.ColumnName(), expression: e, sheet: s}
	if a, ok := e.Attribute(); ok {
		c.DataType = a.GetDataType()
		c.Hidden = a.Hidden
	}
	s.columns = append(s.columns, c)
	return c
}

// GetColumn finds a column by name, case-insensitively if there is no exact match.
func (s *DataSheet) GetColumn(name string) (*Column, bool) {
	if c, ok := lo.Find(s.columns, func(c *Column) bool { return c.Name == name }); ok {
		return c, true
	}
	return lo.Find(s.columns, func(c *Column) bool { return strings.EqualFold(c.Name, name) })
}

// GetColumnByExpression finds the column holding the expression's values.
func (s *DataSheet) GetColumnByExpression(e *expression.Expression) (*Column, bool) {
	if e == nil || e.IsEmpty() {
		return nil, false
	}
	if c, ok := s.GetColumn(e.ColumnName()); ok {
		return c, true
	}
	return lo.Find(s.columns, func(c *Column) bool {
		return c.expression != nil && c.expression.Equals(e)
	})
}

func (s *DataSheet) RemoveColumn(name string) {
	c, ok := s.GetColumn(name)
	if !ok {
		return
	}
	s.columns = lo.Without(s.columns, c)
	for _, row := range s.rows {
		delete(row, c.Name)
	}
}

// GetUidColumn returns the column of the object's UID attribute.
func (s *DataSheet) GetUidColumn() (*Column, bool) {
	if s.object == nil {
		return nil, false
	}
	uid, ok := s.object.GetUIDAttribute()
	if !ok {
		return nil, false
	}
	return s.GetColumn(uid.AliasWithRelationPath())
}

// CellValue returns false if there is no such column.
func (s *DataSheet) CellValue(column string, row int) (any, bool) {
	if row < 0 || row >= len(s.rows) {
		return nil, false
	}
	if v, ok := s.rows[row][column]; ok {
		return v, true
	}
	c, ok := s.GetColumn(column)
	if !ok {
		return nil, false
	}
	return s.rows[row][c.Name], true
}

// Rows

// Rows returns the rows. They are not copied.
func (s *DataSheet) Rows() []Row {
	return s.rows
}

func (s *DataSheet) Row(i int) Row {
	return s.rows[i]
}

func (s *DataSheet) CountRows() int {
	return len(s.rows)
}

func (s *DataSheet) IsEmpty() bool {
	return len(s.rows) == 0
}

// AddRow appends a row. Columns are added for keys the sheet does not have yet, in
// alphabetical order.
func (s *DataSheet) AddRow(row Row) {
	normalized := make(Row, len(row))
	keys := lo.Keys(row)
	sort.Strings(keys)
	for _, k := range keys {
		v := row[k]
		c, ok := s.GetColumn(k)
		if !ok {
			var err error
			c, err = s.AddColumn(k)
			if err != nil {
				c = s.AddColumnExpression(expression.NewConstant(k))
			}
		}
		normalized[c.Name] = v
	}
	s.rows = append(s.rows, normalized)
	s.fresh = false
}

func (s *DataSheet) AddRows(rows []Row) {
	for _, row := range rows {
		s.AddRow(row)
	}
}

// SetRows replaces all rows.
func (s *DataSheet) SetRows(rows []Row) {
	s.rows = []Row{}
	s.AddRows(rows)
}

func (s *DataSheet) RemoveRows() {
	s.rows = []Row{}
	s.fresh = false
}

func (s *DataSheet) RemoveRow(i int) {
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
}

// Merge appends the rows of another sheet.
func (s *DataSheet) Merge(other *DataSheet) {
	for _, c := range other.columns {
		if _, ok := s.GetColumn(c.Name); !ok {
			s.columns = append(s.columns, c.copyTo(s))
		}
	}
	s.AddRows(lo.Map(other.rows, func(r Row, _ int) Row { return r.Copy() }))
}

// rowKey serializes the row's values in column order.
func (s *DataSheet) rowKey(row Row) string {
	return utils.KeyOf(ectolinq.Map(s.columns, func(c *Column) any { return row[c.Name] })...)
}

// UniqueRows returns the rows with duplicates removed, keeping first occurrences.
func (s *DataSheet) UniqueRows() []Row {
	return lo.UniqBy(s.rows, s.rowKey)
}

// RowsDiff returns the rows of this sheet that the other sheet does not contain.
func (s *DataSheet) RowsDiff(other *DataSheet) []Row {
	seen := lo.SliceToMap(other.rows, func(r Row) (string, bool) { return s.rowKey(r), true })
	return lo.Filter(s.rows, func(r Row, _ int) bool { return !seen[s.rowKey(r)] })
}

// Copy returns a deep copy. Cell values are copied shallowly.
func (s *DataSheet) Copy() *DataSheet {
	c := &DataSheet{
		object:  s.object,
		filters: s.filters.Copy(),
		fresh:   s.fresh,
	}
	c.columns = ectolinq.Map(s.columns, func(col *Column) *Column { return col.copyTo(c) })
	c.rows = ectolinq.Map(s.rows, func(r Row) Row { return r.Copy() })
	return c
}

// CopyStructure copies columns and filters but no rows.
func (s *DataSheet) CopyStructure() *DataSheet {
	c := s.Copy()
	c.rows = []Row{}
	c.fresh = false
	return c
}

// Extract returns a copy holding only the rows matching the filter.
func (s *DataSheet) Extract(filter *ConditionGroup) (*DataSheet, error) {
	c := s.CopyStructure()
	for i, row := range s.rows {
		ok, err := filter.Evaluate(s, i)
		if err != nil {
			return nil, err
		}
		if ok {
			c.rows = append(c.rows, row.Copy())
		}
	}
	return c, nil
}

// Filters

func (s *DataSheet) Filters() *ConditionGroup {
	return s.filters
}

func (s *DataSheet) SetFilters(filters *ConditionGroup) {
	if filters == nil {
		filters = NewConditionGroup(OperatorAnd)
	}
	s.filters = filters
}

// JoinLeft adds the columns of the other sheet to every row whose leftKey value
// equals the other sheet's rightKey value. A left row matching several right rows is
// repeated once per match. On column name collisions the left value is kept.
func (s *DataSheet) JoinLeft(other *DataSheet, leftKey, rightKey string) error {
	left, ok := s.GetColumn(leftKey)
	if !ok {
		return errColumnNotFound(leftKey, s)
	}
	right, ok := other.GetColumn(rightKey)
	if !ok {
		return errColumnNotFound(rightKey, other)
	}

	index := lo.GroupBy(other.rows, func(r Row) string { return utils.KeyOf(r[right.Name]) })

	newColumns := lo.Filter(other.columns, func(c *Column, _ int) bool {
		_, exists := s.GetColumn(c.Name)
		return !exists
	})
	for _, c := range newColumns {
		s.columns = append(s.columns, c.copyTo(s))
	}

	joined := make([]Row, 0, len(s.rows))
	for _, row := range s.rows {
		matches := index[utils.KeyOf(row[left.Name])]
		if len(matches) == 0 || utils.IsEmpty(row[left.Name]) {
			joined = append(joined, row)
			continue
		}
		for _, match := range matches {
			r := row.Copy()
			for _, c := range newColumns {
				r[c.Name] = match[c.Name]
			}
			joined = append(joined, r)
		}
	}
	s.rows = joined
	return nil
}
