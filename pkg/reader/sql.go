package reader

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"
)

const baseAlias = "t"

// SQL reads sheets from the postgres tables named by the objects' data addresses.
// Columns may follow one forward relation, which becomes a left join.
type SQL struct {
	db     database.DB
	logger ectologger.Logger
}

func NewSQL(db database.DB, logger ectologger.Logger) *SQL {
	return &SQL{db: db, logger: logger}
}

func (r *SQL) Read(ctx context.Context, sheet *datasheet.DataSheet) error {
	ctx, span := tracing.StartSpan(ctx, "SQLReader.Read")
	defer span.End()

	if sheet.Object() == nil {
		return fmt.Errorf("cannot read a sheet without object")
	}

	if !sheet.HasColumns() {
		for _, a := range sheet.Object().Attributes {
			if _, err := sheet.AddColumn(a.Alias); err != nil {
				return err
			}
		}
	}

	query, args, err := BuildSelect(sheet)
	if err != nil {
		return err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"object":  sheet.ObjectAlias(),
		"columns": len(sheet.Columns()),
	}).Debug("Reading data sheet")

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"object": sheet.ObjectAlias(),
		}).Error("error reading data sheet")
		return errors.Wrapf(err, "reading %s", sheet.ObjectAlias())
	}
	defer rows.Close()

	result := []datasheet.Row{}
	for rows.Next() {
		values := map[string]any{}
		if err := rows.MapScan(values); err != nil {
			return errors.Wrapf(err, "scanning %s", sheet.ObjectAlias())
		}
		row := datasheet.Row{}
		for k, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[k] = v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrapf(err, "reading %s", sheet.ObjectAlias())
	}

	sheet.SetRows(result)
	sheet.SetFresh(true)
	return nil
}

// BuildSelect builds the query for a sheet. Columns that are not attributes of the
// sheet's object are skipped, and so are reverse relations, which hold subsheets.
func BuildSelect(sheet *datasheet.DataSheet) (string, []any, error) {
	q := &query{
		sb:     database.NewSelectBuilder(),
		object: sheet.Object(),
		joins:  map[string]string{},
	}
	q.sb.From(q.sb.As(q.object.GetDataAddress(), baseAlias))

	selected := []string{}
	for _, c := range sheet.Columns() {
		a, ok := c.Attribute()
		if !ok || a.Reverse {
			continue
		}
		field, err := q.field(a)
		if err != nil {
			return "", nil, err
		}
		selected = append(selected, q.sb.As(field, database.QuoteIdent(c.Name)))
	}
	if len(selected) == 0 {
		return "", nil, fmt.Errorf("no readable columns in sheet of '%s'", sheet.ObjectAlias())
	}
	q.sb.Select(selected...)

	where, err := q.group(sheet.Filters())
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		q.sb.Where(where)
	}

	sql, args := q.sb.Build()
	return sql, args, nil
}

type query struct {
	sb     *database.SelectBuilder
	object *meta.Object
	joins  map[string]string
}

// field returns the qualified column of an attribute, adding a join for attributes
// behind a relation.
func (q *query) field(a *meta.Attribute) (string, error) {
	if a.RelationPath == "" {
		return baseAlias + "." + a.GetDataAddress(), nil
	}
	if strings.Contains(a.RelationPath, meta.RelationSeparator) {
		return "", fmt.Errorf("cannot read '%s': only one relation level is supported", a.AliasWithRelationPath())
	}

	alias, ok := q.joins[a.RelationPath]
	if !ok {
		relation, err := q.object.GetAttribute(a.RelationPath)
		if err != nil {
			return "", err
		}
		if relation.Reverse {
			return "", fmt.Errorf("cannot read '%s': reverse relations are not supported", a.AliasWithRelationPath())
		}
		related, err := relation.GetRelatedObject()
		if err != nil {
			return "", err
		}

		keyAlias := relation.RelatedKeyAlias
		if keyAlias == "" {
			keyAlias = related.UIDAttributeAlias
		}
		key, err := related.GetAttribute(keyAlias)
		if err != nil {
			return "", fmt.Errorf("relation '%s' has no key: %v", relation.Alias, err)
		}

		alias = "r_" + strings.ToLower(a.RelationPath)
		q.sb.JoinWithOption(sqlbuilder.LeftJoin,
			q.sb.As(related.GetDataAddress(), alias),
			fmt.Sprintf("%s.%s = %s.%s", alias, key.GetDataAddress(), baseAlias, relation.GetDataAddress()),
		)
		q.joins[a.RelationPath] = alias
	}
	return alias + "." + a.GetDataAddress(), nil
}

func (q *query) group(g *datasheet.ConditionGroup) (string, error) {
	parts := []string{}
	for _, c := range g.Conditions {
		part, err := q.condition(c)
		if err != nil {
			return "", err
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	for _, nested := range g.NestedGroups {
		part, err := q.group(nested)
		if err != nil {
			return "", err
		}
		if part != "" {
			parts = append(parts, part)
		}
	}

	switch {
	case len(parts) == 0:
		return "", nil
	case len(parts) == 1:
		return parts[0], nil
	case g.Operator == datasheet.OperatorOr:
		return q.sb.Or(parts...), nil
	}
	return q.sb.And(parts...), nil
}

func (q *query) condition(c *datasheet.Condition) (string, error) {
	if c.IgnoreEmptyValues && utils.IsEmpty(c.Value) {
		return "", nil
	}

	a, ok := c.Expression.Attribute()
	if !ok {
		return "", fmt.Errorf("cannot filter on '%s': not an attribute of '%s'", c.Expression, q.object.Alias)
	}
	field, err := q.field(a)
	if err != nil {
		return "", err
	}

	_, numeric := utils.ToDecimal(c.Value)
	switch c.Comparator {
	case datasheet.ComparatorIs:
		if utils.IsEmpty(c.Value) {
			return q.sb.IsNull(field), nil
		}
		if numeric {
			return q.sb.Equal(field, c.Value), nil
		}
		return q.sb.ILike("CAST("+field+" AS TEXT)", "%"+utils.ToString(c.Value)+"%"), nil
	case datasheet.ComparatorIsNot:
		if utils.IsEmpty(c.Value) {
			return q.sb.IsNotNull(field), nil
		}
		if numeric {
			return q.sb.NotEqual(field, c.Value), nil
		}
		return q.sb.NotILike("CAST("+field+" AS TEXT)", "%"+utils.ToString(c.Value)+"%"), nil
	case datasheet.ComparatorEquals:
		return q.sb.Equal(field, c.Value), nil
	case datasheet.ComparatorEqualsNot:
		return q.sb.NotEqual(field, c.Value), nil
	case datasheet.ComparatorLessThan:
		return q.sb.LessThan(field, c.Value), nil
	case datasheet.ComparatorLessOrEqual:
		return q.sb.LessEqualThan(field, c.Value), nil
	case datasheet.ComparatorGreaterThan:
		return q.sb.GreaterThan(field, c.Value), nil
	case datasheet.ComparatorGreaterOrEq:
		return q.sb.GreaterEqualThan(field, c.Value), nil
	case datasheet.ComparatorIn, datasheet.ComparatorNotIn:
		items := utils.SplitList(c.Value, a.GetValueListDelimiter())
		values := make([]any, len(items))
		for i, item := range items {
			values[i] = item
		}
		if c.Comparator == datasheet.ComparatorNotIn {
			if len(values) == 0 {
				return "1 = 1", nil
			}
			return q.sb.NotIn("CAST("+field+" AS TEXT)", values...), nil
		}
		if len(values) == 0 {
			return "1 = 0", nil
		}
		return q.sb.In("CAST("+field+" AS TEXT)", values...), nil
	}
	return "", fmt.Errorf("unsupported comparator '%s'", c.Comparator)
}
