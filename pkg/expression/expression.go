// Package expression describes how a value is obtained for a data sheet cell.
//
// An expression is exactly one of:
//
//	'text', 42              constant
//	=Concat(NAME, '-', ID)  formula
//	CUSTOMER__NAME          attribute of the sheet's object (relation paths allowed)
//	=~filter_widget!VALUE   widget reference
//	anything else           unknown (may still match a plain column name)
//
// Expressions are immutable. Rebase returns a copy.
package expression

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/utils"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindConstant
	KindFormula
	KindAttribute
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindFormula:
		return "formula"
	case KindAttribute:
		return "attribute"
	case KindReference:
		return "reference"
	}
	return "unknown"
}

// RowSource is the read side of a data sheet as seen by expressions.
type RowSource interface {
	CountRows() int
	// CellValue returns false if the sheet has no such column.
	CellValue(column string, row int) (any, bool)
}

type Expression struct {
	raw       string
	kind      Kind
	value     any
	root      node
	attribute *meta.Attribute
	name      string
	object    *meta.Object
}

// Parse builds an expression for the given object. The object may be nil, in
// which case identifiers never resolve to attributes.
//
// Only formulas can fail to parse; their errors are configuration errors.
func Parse(str string, object *meta.Object) (*Expression, error) {
	trimmed := strings.TrimSpace(str)
	e := &Expression{raw: trimmed, object: object}

	switch {
	case trimmed == "":
		return e, nil
	case strings.HasPrefix(trimmed, "=~"):
		e.kind = KindReference
		e.name = strings.TrimPrefix(trimmed, "=~")
		return e, nil
	case strings.HasPrefix(trimmed, "="):
		root, err := parseFormula(trimmed[1:], object)
		if err != nil {
			return nil, errors.NewConfigurationErrorf("invalid formula '%s': %w", trimmed, err)
		}
		e.fromNode(root)
		return e, nil
	}

	if value, ok := parseLiteral(trimmed); ok {
		e.kind = KindConstant
		e.value = value
		return e, nil
	}

	if isIdentifier(trimmed) {
		e.resolveIdentifier(trimmed)
		return e, nil
	}

	e.kind = KindConstant
	e.value = trimmed
	return e, nil
}

// MustParse is Parse for expressions known to be valid.
func MustParse(str string, object *meta.Object) *Expression {
	e, err := Parse(str, object)
	if err != nil {
		panic(err)
	}
	return e
}

// FromValue turns a raw configuration value into an expression. Non-string values
// are constants.
func FromValue(value any, object *meta.Object) (*Expression, error) {
	switch v := value.(type) {
	case string:
		return Parse(v, object)
	case *Expression:
		return v, nil
	case nil:
		return Parse("", object)
	}
	return NewConstant(value), nil
}

func NewConstant(value any) *Expression {
	return &Expression{raw: utils.ToString(value), kind: KindConstant, value: value}
}

// fromNode turns a parsed formula body into the expression. A body that is a bare
// literal or identifier is not a formula.
func (e *Expression) fromNode(root node) {
	switch n := root.(type) {
	case literalNode:
		e.kind = KindConstant
		e.value = n.value
	case columnNode:
		e.resolveIdentifier(n.name)
	default:
		e.kind = KindFormula
		e.root = root
	}
}

func (e *Expression) resolveIdentifier(name string) {
	e.name = name
	if e.object != nil {
		if a, err := e.object.GetAttribute(name); err == nil {
			e.kind = KindAttribute
			e.attribute = a
			e.name = a.AliasWithRelationPath()
			return
		}
	}
	e.kind = KindUnknown
}

func (e *Expression) Kind() Kind {
	return e.kind
}

func (e *Expression) IsEmpty() bool {
	return e.raw == ""
}

func (e *Expression) IsConstant() bool {
	return e.kind == KindConstant
}

func (e *Expression) IsFormula() bool {
	return e.kind == KindFormula
}

func (e *Expression) IsMetaAttribute() bool {
	return e.kind == KindAttribute
}

func (e *Expression) IsReference() bool {
	return e.kind == KindReference
}

func (e *Expression) IsUnknown() bool {
	return e.kind == KindUnknown
}

// IsStatic reports whether the expression can be evaluated without a row: constants
// and formulas without column arguments or volatile functions.
func (e *Expression) IsStatic() bool {
	switch e.kind {
	case KindConstant:
		return true
	case KindFormula:
		return len(e.root.columns()) == 0 && !e.root.volatile()
	}
	return false
}

// Attribute returns the resolved attribute of attribute expressions.
func (e *Expression) Attribute() (*meta.Attribute, bool) {
	return e.attribute, e.attribute != nil
}

func (e *Expression) Object() *meta.Object {
	return e.object
}

// ColumnName is the name of the data sheet column holding this expression's values.
func (e *Expression) ColumnName() string {
	switch e.kind {
	case KindAttribute, KindUnknown:
		return e.name
	}
	return e.raw
}

// RequiredColumns lists the columns the expression reads.
func (e *Expression) RequiredColumns() []string {
	switch e.kind {
	case KindAttribute, KindUnknown:
		if e.name == "" {
			return []string{}
		}
		return []string{e.name}
	case KindFormula:
		return e.root.columns()
	}
	return []string{}
}

// RequiredAttributes lists the attributes the expression reads.
func (e *Expression) RequiredAttributes() []*meta.Attribute {
	result := []*meta.Attribute{}
	if e.object == nil {
		return result
	}
	for _, column := range e.RequiredColumns() {
		if a, err := e.object.GetAttribute(column); err == nil {
			result = append(result, a)
		}
	}
	return result
}

// Equals compares the string form case-insensitively.
func (e *Expression) Equals(other *Expression) bool {
	if e == nil || other == nil {
		return e == other
	}
	return strings.EqualFold(e.String(), other.String())
}

func (e *Expression) String() string {
	if e.kind == KindAttribute {
		return e.name
	}
	return e.raw
}

// Evaluate computes the value for one row of the source.
func (e *Expression) Evaluate(src RowSource, row int) (any, error) {
	switch e.kind {
	case KindConstant:
		return e.value, nil
	case KindFormula:
		return e.root.eval(src, row)
	case KindAttribute, KindUnknown:
		if e.name == "" {
			return nil, nil
		}
		return columnNode{name: e.name}.eval(src, row)
	}
	return nil, errors.NewMappingFailedErrorf("cannot evaluate widget reference '%s' on data", e.raw).
		AddCode(errors.CodeUnsupportedFrom)
}

// EvaluateStatic computes a static expression without row context.
func (e *Expression) EvaluateStatic() (any, error) {
	if !e.IsStatic() {
		return nil, errors.NewMappingFailedErrorf("expression '%s' is not static", e.raw).
			AddCode(errors.CodeEvaluationFailed)
	}
	return e.Evaluate(nil, -1)
}

// EvaluateAll computes the value for every row of the source.
func (e *Expression) EvaluateAll(src RowSource) ([]any, error) {
	values := make([]any, src.CountRows())
	for i := range values {
		v, err := e.Evaluate(src, i)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// Rebase returns a copy whose columns are prefixed with the relation path and
// resolved against the given object.
func (e *Expression) Rebase(relationPath string, object *meta.Object) *Expression {
	if relationPath == "" {
		c := *e
		c.object = object
		if c.kind == KindAttribute || c.kind == KindUnknown {
			c.resolveIdentifier(c.name)
		}
		return &c
	}

	prefix := relationPath + meta.RelationSeparator
	switch e.kind {
	case KindAttribute, KindUnknown:
		c := &Expression{raw: prefix + e.name, object: object}
		c.resolveIdentifier(prefix + e.name)
		return c
	case KindFormula:
		root := e.root.rebase(prefix)
		return &Expression{raw: "=" + root.String(), kind: KindFormula, root: root, object: object}
	}

	c := *e
	c.object = object
	return &c
}

// parseLiteral recognizes quoted strings and numbers.
func parseLiteral(str string) (any, bool) {
	if len(str) >= 2 && (str[0] == '\'' || str[0] == '"') && str[len(str)-1] == str[0] {
		return unescape(str[1:len(str)-1], str[0]), true
	}
	if isNumber(str) {
		n, _ := utils.ToNumber(str)
		return n, true
	}
	return nil, false
}

func unescape(s string, quote byte) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`+string(quote), string(quote)), `\\`, `\`)
}

func isNumber(str string) bool {
	_, ok := utils.ToDecimal(str)
	if !ok {
		return false
	}
	for _, r := range str {
		if !strings.ContainsRune("+-.0123456789eE", r) {
			return false
		}
	}
	return true
}

func isIdentifier(str string) bool {
	for i, r := range str {
		switch {
		case r == '_' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '.' || r == ':'):
		default:
			return false
		}
	}
	return str != ""
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
	}
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}
