package expression

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/formula"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/samber/lo"
)

// node is one element of a formula tree.
type node interface {
	eval(src RowSource, row int) (any, error)
	columns() []string
	volatile() bool
	rebase(prefix string) node
	String() string
}

type literalNode struct {
	value any
}

func (n literalNode) eval(RowSource, int) (any, error) { return n.value, nil }
func (n literalNode) columns() []string                { return nil }
func (n literalNode) volatile() bool                   { return false }
func (n literalNode) rebase(string) node               { return n }
func (n literalNode) String() string                   { return formatValue(n.value) }

type columnNode struct {
	name string
}

func (n columnNode) eval(src RowSource, row int) (any, error) {
	if src == nil || row < 0 {
		return nil, errors.NewMappingFailedErrorf("column '%s' needs row context", n.name).
			AddCode(errors.CodeEvaluationFailed)
	}
	value, ok := src.CellValue(n.name, row)
	if !ok {
		return nil, errors.NewMappingFailedErrorf("column '%s' not found", n.name).
			AddField(n.name).
			AddCode(errors.CodeFromAttributeNotFound)
	}
	return value, nil
}

func (n columnNode) columns() []string { return []string{n.name} }
func (n columnNode) volatile() bool    { return false }
func (n columnNode) rebase(prefix string) node {
	return columnNode{name: prefix + n.name}
}
func (n columnNode) String() string { return n.name }

type callNode struct {
	fn   string
	args []node
}

func (n callNode) eval(src RowSource, row int) (any, error) {
	args := make([]any, len(n.args))
	for i, arg := range n.args {
		v, err := arg.eval(src, row)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return formula.Call(n.fn, args...)
}

func (n callNode) columns() []string {
	return lo.Uniq(lo.FlatMap(n.args, func(arg node, _ int) []string {
		return arg.columns()
	}))
}

func (n callNode) volatile() bool {
	return formula.IsVolatile(n.fn) || lo.SomeBy(n.args, func(arg node) bool {
		return arg.volatile()
	})
}

func (n callNode) rebase(prefix string) node {
	return callNode{fn: n.fn, args: ectolinq.Map(n.args, func(arg node) node {
		return arg.rebase(prefix)
	})}
}

func (n callNode) String() string {
	args := ectolinq.Map(n.args, func(arg node) string { return arg.String() })
	return n.fn + "(" + strings.Join(args, ", ") + ")"
}

// parser is a recursive descent parser for formula bodies:
//
//	expr := literal | identifier | identifier '(' [expr {',' expr}] ')'
type parser struct {
	input  []rune
	pos    int
	object *meta.Object
}

func parseFormula(body string, object *meta.Object) (node, error) {
	p := &parser{input: []rune(body), object: object}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("unexpected '%c' at position %d", p.input[p.pos], p.pos+1)
	}
	return n, nil
}

func (p *parser) parseExpr() (node, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unexpected end of formula")
	}

	r := p.input[p.pos]
	switch {
	case r == '\'' || r == '"':
		s, err := p.parseString(r)
		if err != nil {
			return nil, err
		}
		return literalNode{value: s}, nil
	case r == '-' || r == '+' || unicode.IsDigit(r):
		return p.parseNumber()
	case r == '_' || unicode.IsLetter(r):
		return p.parseIdentifier()
	}
	return nil, fmt.Errorf("unexpected '%c' at position %d", r, p.pos+1)
}

func (p *parser) parseString(quote rune) (string, error) {
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.input) {
		r := p.input[p.pos]
		p.pos++
		switch {
		case r == '\\' && p.pos < len(p.input):
			sb.WriteRune(p.input[p.pos])
			p.pos++
		case r == quote:
			return sb.String(), nil
		default:
			sb.WriteRune(r)
		}
	}
	return "", fmt.Errorf("unterminated string")
}

func (p *parser) parseNumber() (node, error) {
	start := p.pos
	p.pos++
	for p.pos < len(p.input) && strings.ContainsRune("0123456789.eE", p.input[p.pos]) {
		p.pos++
	}
	text := string(p.input[start:p.pos])
	value, ok := parseLiteral(text)
	if !ok {
		return nil, fmt.Errorf("invalid number '%s'", text)
	}
	return literalNode{value: value}, nil
}

func (p *parser) parseIdentifier() (node, error) {
	start := p.pos
	for p.pos < len(p.input) {
		r := p.input[p.pos]
		if r != '_' && r != '.' && r != ':' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		p.pos++
	}
	name := string(p.input[start:p.pos])

	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != '(' {
		switch strings.ToLower(name) {
		case "true":
			return literalNode{value: true}, nil
		case "false":
			return literalNode{value: false}, nil
		case "null":
			return literalNode{value: nil}, nil
		}
		return p.column(name), nil
	}

	p.pos++
	args, err := p.parseArgs()
	if err != nil {
		return nil, fmt.Errorf("%s: %v", name, err)
	}

	fn, err := formula.GetFunction(name)
	if err != nil {
		return nil, err
	}
	rules := fn.GetInputRules()
	if len(args) < rules.MinArgs() || (rules.MaxArgs() != -1 && len(args) > rules.MaxArgs()) {
		return nil, fmt.Errorf("%s: wrong number of arguments (%d)", name, len(args))
	}
	return callNode{fn: fn.GetKey(), args: args}, nil
}

func (p *parser) parseArgs() ([]node, error) {
	args := []node{}
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == ')' {
		p.pos++
		return args, nil
	}

	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil, fmt.Errorf("missing ')'")
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return args, nil
		default:
			return nil, fmt.Errorf("unexpected '%c' at position %d", p.input[p.pos], p.pos+1)
		}
	}
}

// column resolves an identifier to the column name it reads: the attribute alias
// with relation path if it is an attribute, else the identifier itself.
func (p *parser) column(name string) node {
	if p.object != nil {
		if a, err := p.object.GetAttribute(name); err == nil {
			return columnNode{name: a.AliasWithRelationPath()}
		}
	}
	return columnNode{name: name}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(p.input[p.pos]) {
		p.pos++
	}
}
