package mapping

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// GenericListKey holds mappings of any type, each with a "type" property.
const GenericListKey = "mappings"

type mappingList struct {
	key  string
	kind string
}

type mappingListSet []mappingList

// mappingLists are processed in this order, followed by the generic list.
var mappingLists = mappingListSet{
	{"column_to_variable_mappings", TypeColumnToVariable},
	{"variable_to_column_mappings", TypeVariableToColumn},
	{"column_to_column_mappings", TypeColumnToColumn},
	{"column_to_filter_mappings", TypeColumnToFilter},
	{"filter_to_filter_mappings", TypeFilterToFilter},
	{"column_to_json_mappings", TypeColumnToJSON},
	{"data_to_subsheet_mappings", TypeDataToSubsheet},
	{"subsheet_mappings", TypeSubsheet},
	{"joins", TypeJoin},
	{"lookup_mappings", TypeLookup},
	{"json_to_rows_mappings", TypeJSONToRows},
	{"unpivot_mappings", TypeUnpivot},
	{"pivot_mappings", TypePivot},
}

func (s mappingListSet) kinds() []string {
	return lo.Map(s, func(l mappingList, _ int) string { return l.kind })
}

type mapperConfig struct {
	FromObjectAlias     string          `json:"from_object_alias"`
	ToObjectAlias       string          `json:"to_object_alias"`
	InheritColumns      mo.Option[bool] `json:"inherit_columns"`
	InheritFilters      mo.Option[bool] `json:"inherit_filters"`
	ReadMissingFromData mo.Option[bool] `json:"read_missing_from_data"`
}

type entry struct {
	list    string
	mapping Mapping
}

// Mapper runs an ordered list of mappings. A built mapper is immutable and can be
// shared between goroutines.
type Mapper struct {
	model      *meta.Model
	fromObject *meta.Object
	toObject   *meta.Object
	config     mapperConfig
	entries    []entry

	inheritColumns bool
	inheritFilters bool
	readMissing    bool
}

// Parse builds a mapper from JSON or Hjson.
func Parse(model *meta.Model, data []byte) (*Mapper, error) {
	u, err := uxon.Parse(data)
	if err != nil {
		return nil, errors.NewConfigurationErrorf("%w", err)
	}
	return FromUxon(model, u)
}

// FromUxon builds a mapper. Both object aliases are required.
func FromUxon(model *meta.Model, u uxon.Object) (*Mapper, error) {
	return build(model, u, nil, nil)
}

// build resolves the objects, falling back to the defaults of an enclosing
// mapping, and builds all mappings eagerly.
func build(model *meta.Model, u uxon.Object, defaultFrom, defaultTo *meta.Object) (*Mapper, error) {
	cfg, err := parseConfig[mapperConfig](u)
	if err != nil {
		return nil, err
	}

	from, err := resolveObject(model, cfg.FromObjectAlias, defaultFrom, "from_object_alias")
	if err != nil {
		return nil, err
	}
	to, err := resolveObject(model, cfg.ToObjectAlias, defaultTo, "to_object_alias")
	if err != nil {
		return nil, err
	}

	sameObject := from.Is(to)
	m := &Mapper{
		model:          model,
		fromObject:     from,
		toObject:       to,
		config:         cfg,
		entries:        []entry{},
		inheritColumns: cfg.InheritColumns.OrElse(sameObject),
		inheritFilters: cfg.InheritFilters.OrElse(sameObject),
		readMissing:    cfg.ReadMissingFromData.OrElse(true),
	}

	s := scope{model: model, from: from, to: to}
	for _, list := range mappingLists {
		for i, item := range u.GetObjects(list.key) {
			mapping, err := newMapping(list.kind, s, item)
			if err != nil {
				return nil, errors.WrapMappingError(err).AddMapping(fmt.Sprintf("%s[%d]", list.key, i))
			}
			m.entries = append(m.entries, entry{list: list.key, mapping: mapping})
		}
	}

	for i, item := range u.GetObjects(GenericListKey) {
		kind := item.GetString("type")
		if kind == "" {
			return nil, errors.NewConfigurationError("mapping without type").AddMapping(fmt.Sprintf("%s[%d]", GenericListKey, i))
		}
		config := item.Copy()
		delete(config, "type")
		mapping, err := newMapping(kind, s, config)
		if err != nil {
			return nil, errors.WrapMappingError(err).AddMapping(fmt.Sprintf("%s[%d]", GenericListKey, i))
		}
		m.entries = append(m.entries, entry{list: GenericListKey, mapping: mapping})
	}

	return m, nil
}

func resolveObject(model *meta.Model, alias string, fallback *meta.Object, property string) (*meta.Object, error) {
	if alias == "" {
		if fallback == nil {
			return nil, errors.NewConfigurationErrorf("'%s' is required", property).AddField(property)
		}
		return fallback, nil
	}
	if model == nil {
		return nil, errors.NewConfigurationError("no meta model to resolve objects in").AddField(property)
	}
	o, err := model.GetObject(alias)
	if err != nil {
		return nil, errors.NewConfigurationErrorf("%w", err).AddField(property)
	}
	return o, nil
}

func (m *Mapper) FromObject() *meta.Object {
	return m.fromObject
}

func (m *Mapper) ToObject() *meta.Object {
	return m.toObject
}

func (m *Mapper) Mappings() []Mapping {
	return lo.Map(m.entries, func(e entry, _ int) Mapping { return e.mapping })
}

// MutatesFromSheet reports whether any mapping changes the from-sheet.
func (m *Mapper) MutatesFromSheet() bool {
	return lo.SomeBy(m.entries, func(e entry) bool { return e.mapping.MutatesFromSheet() })
}

type mapOptions struct {
	read mo.Option[bool]
}

type MapOption func(*mapOptions)

// WithoutRead disables reading missing from-columns.
func WithoutRead() MapOption {
	return func(o *mapOptions) {
		o.read = mo.Some(false)
	}
}

// Map transforms the from-sheet. If to is nil, a new sheet of the to-object is
// created, inheriting the from-columns if configured. The from-sheet may receive
// prefetched columns and, for filter-to-filter mappings, lose filter conditions.
func (m *Mapper) Map(ctx context.Context, from, to *datasheet.DataSheet, env Env, opts ...MapOption) (*datasheet.DataSheet, error) {
	ctx, span := tracing.StartSpan(ctx, "Mapper.Map")
	defer span.End()

	o := &mapOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if from == nil {
		return nil, errors.NewMappingFailedError("no from-sheet given")
	}
	if !from.Object().Is(m.fromObject) {
		return nil, errors.NewMappingFailedErrorf("mapper expects data of '%s', got '%s'", m.fromObject.Alias, from.ObjectAlias()).
			AddSheets(from, nil)
	}

	log := env.log()
	log.AddLinef("Mapping %s to %s", m.fromObject.Alias, m.toObject.Alias)
	log.AddIndent(1)
	defer log.AddIndent(-1)

	if o.read.OrElse(m.readMissing) {
		if err := m.readMissingColumns(ctx, from, env); err != nil {
			return nil, err
		}
	}

	if to == nil {
		to = m.newToSheet(from)
	}

	for _, e := range m.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log.AddLine(e.mapping.Description())
		log.AddIndent(1)
		result, err := e.mapping.Map(ctx, from, to, env)
		log.AddIndent(-1)
		if err != nil {
			mappingErr := errors.WrapMappingError(err).AddMapping(e.mapping.Description())
			if mappingErr.FromSheet == nil {
				mappingErr.FromSheet = from
			}
			if mappingErr.ToSheet == nil {
				mappingErr.ToSheet = to
			}
			return nil, mappingErr
		}
		to = result
	}

	if m.inheritFilters && !from.Filters().IsEmpty() {
		to.Filters().AddNestedGroup(from.Filters().Copy())
		log.AddLinef("Inherited filters: %s", from.Filters())
	}

	return to, nil
}

func (m *Mapper) newToSheet(from *datasheet.DataSheet) *datasheet.DataSheet {
	to := datasheet.New(m.toObject)
	if !m.inheritColumns {
		return to
	}

	for _, c := range from.Columns() {
		col := to.AddColumnExpression(c.Expression().Rebase("", m.toObject))
		col.Hidden = c.Hidden
	}
	to.AddRows(lo.Map(from.Rows(), func(r datasheet.Row, _ int) datasheet.Row { return r.Copy() }))
	return to
}

// readMissingColumns loads attributes the mappings need but the from-sheet lacks,
// matching rows by the UID column. Without UID or reader nothing is read and the
// mappings report the missing columns themselves.
func (m *Mapper) readMissingColumns(ctx context.Context, from *datasheet.DataSheet, env Env) error {
	missing := map[string]*meta.Attribute{}
	for _, e := range m.entries {
		for _, expr := range e.mapping.RequiredExpressions(from) {
			for _, a := range expr.RequiredAttributes() {
				name := a.AliasWithRelationPath()
				if _, ok := from.GetColumn(name); !ok {
					missing[strings.ToUpper(name)] = a
				}
			}
		}
	}
	if len(missing) == 0 || from.IsEmpty() {
		return nil
	}

	log := env.log()
	uid, ok := from.GetUidColumn()
	if !ok || env.Reader == nil {
		log.AddLinef("Cannot read %d missing columns: no UID column or no reader", len(missing))
		return nil
	}

	uidExpr := uid.Expression()
	read := datasheet.New(from.Object())
	read.AddColumnExpression(uidExpr)
	attributes := lo.Values(missing)
	for _, a := range attributes {
		read.AddColumnExpression(expression.MustParse(a.AliasWithRelationPath(), from.Object()))
	}
	uids := lo.Uniq(lo.FilterMap(uid.Values(), func(v any, _ int) (string, bool) {
		return utils.ToString(v), !utils.IsEmpty(v)
	}))
	read.Filters().AddCondition(datasheet.NewCondition(uidExpr, datasheet.ComparatorIn, strings.Join(uids, uid.ValueListDelimiter())))

	if err := env.Reader.Read(ctx, read); err != nil {
		return errors.NewMappingFailedErrorf("reading missing columns of '%s': %w", from.ObjectAlias(), err).
			AddCode(errors.CodeReadFailed).
			AddSheets(from, nil)
	}

	byUID := map[string]int{}
	for i := range read.Rows() {
		v, _ := read.CellValue(uid.Name, i)
		byUID[utils.KeyOf(v)] = i
	}
	for _, a := range attributes {
		col := from.AddColumnExpression(expression.MustParse(a.AliasWithRelationPath(), from.Object()))
		vals := make([]any, from.CountRows())
		for i := range vals {
			if row, ok := byUID[utils.KeyOf(uid.Value(i))]; ok {
				vals[i], _ = read.CellValue(col.Name, row)
			}
		}
		col.SetValues(vals)
	}

	log.AddLinef("Read %d missing columns for %d rows", len(attributes), from.CountRows())
	return nil
}

// ExportUxon returns the configuration the mapper was built from.
func (m *Mapper) ExportUxon() uxon.Object {
	u := uxon.Object{}
	if m.config.FromObjectAlias != "" {
		u["from_object_alias"] = m.config.FromObjectAlias
	}
	if m.config.ToObjectAlias != "" {
		u["to_object_alias"] = m.config.ToObjectAlias
	}
	if v, ok := m.config.InheritColumns.Get(); ok {
		u["inherit_columns"] = v
	}
	if v, ok := m.config.InheritFilters.Get(); ok {
		u["inherit_filters"] = v
	}
	if v, ok := m.config.ReadMissingFromData.Get(); ok {
		u["read_missing_from_data"] = v
	}

	for _, e := range m.entries {
		item := map[string]any(e.mapping.ExportUxon())
		if e.list == GenericListKey {
			item["type"] = e.mapping.Type()
		}
		list, _ := u[e.list].([]any)
		u[e.list] = append(list, item)
	}
	return u
}
