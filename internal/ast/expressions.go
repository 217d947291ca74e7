package ast

import (
	"fmt"
	"strings"

	"github.com/Vantio-Games/lingual/internal/position"
)

// Inferred type tags attached to expressions by the type checker. The
// checker is best-effort: TypeAny marks everything it cannot constrain.
const (
	TypeNumber  = "number"
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeNull    = "null"
	TypeAny     = "any"
	TypeVoid    = "void"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Identifier represents an identifier reference
type Identifier struct {
	Span         position.Span
	Name         string
	InferredType string
}

func (i *Identifier) Kind() NodeKind         { return KindIdentifier }
func (i *Identifier) GetSpan() position.Span { return i.Span }
func (i *Identifier) String() string         { return i.Name }
func (i *Identifier) expressionNode()        {}

// NewIdentifier creates an identifier node
func NewIdentifier(span position.Span, name string) *Identifier {
	return &Identifier{Span: span, Name: name}
}

// Literal represents a literal value. Value is one of string, float64,
// bool, or nil.
type Literal struct {
	Span         position.Span
	Value        interface{}
	InferredType string
}

func (l *Literal) Kind() NodeKind         { return KindLiteral }
func (l *Literal) GetSpan() position.Span { return l.Span }
func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
func (l *Literal) expressionNode() {}

// NewLiteral creates a literal node
func NewLiteral(span position.Span, value interface{}) *Literal {
	return &Literal{Span: span, Value: value}
}

// TypeOfLiteral returns the type tag for a literal's value kind
func TypeOfLiteral(l *Literal) string {
	switch l.Value.(type) {
	case float64:
		return TypeNumber
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case nil:
		return TypeNull
	}
	return TypeAny
}

// BinaryExpression represents binary operations. Assignment and compound
// assignment also take this shape, with the operator text preserved.
type BinaryExpression struct {
	Span         position.Span
	Operator     string
	Left         Expression
	Right        Expression
	InferredType string
}

func (b *BinaryExpression) Kind() NodeKind         { return KindBinaryExpression }
func (b *BinaryExpression) GetSpan() position.Span { return b.Span }
func (b *BinaryExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Operator, b.Right)
}
func (b *BinaryExpression) expressionNode() {}

// UnaryExpression represents prefix unary operations
type UnaryExpression struct {
	Span         position.Span
	Operator     string
	Operand      Expression
	InferredType string
}

func (u *UnaryExpression) Kind() NodeKind         { return KindUnaryExpression }
func (u *UnaryExpression) GetSpan() position.Span { return u.Span }
func (u *UnaryExpression) String() string {
	return fmt.Sprintf("(%s%s)", u.Operator, u.Operand)
}
func (u *UnaryExpression) expressionNode() {}

// CallExpression represents a function call
type CallExpression struct {
	Span         position.Span
	Callee       Expression
	Args         []Expression
	InferredType string
}

func (c *CallExpression) Kind() NodeKind         { return KindCallExpression }
func (c *CallExpression) GetSpan() position.Span { return c.Span }
func (c *CallExpression) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Callee, strings.Join(args, ", "))
}
func (c *CallExpression) expressionNode() {}

// MemberExpression represents property access. When Computed is true the
// property is an arbitrary bracketed expression; otherwise it is an
// identifier after a dot.
type MemberExpression struct {
	Span         position.Span
	Object       Expression
	Property     Expression
	Computed     bool
	InferredType string
}

func (m *MemberExpression) Kind() NodeKind         { return KindMemberExpression }
func (m *MemberExpression) GetSpan() position.Span { return m.Span }
func (m *MemberExpression) String() string {
	if m.Computed {
		return fmt.Sprintf("%s[%s]", m.Object, m.Property)
	}
	return fmt.Sprintf("%s.%s", m.Object, m.Property)
}
func (m *MemberExpression) expressionNode() {}

// ArrayLiteral represents an array literal
type ArrayLiteral struct {
	Span         position.Span
	Elements     []Expression
	InferredType string
}

func (a *ArrayLiteral) Kind() NodeKind         { return KindArrayLiteral }
func (a *ArrayLiteral) GetSpan() position.Span { return a.Span }
func (a *ArrayLiteral) String() string {
	elems := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		elems[i] = e.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(elems, ", "))
}
func (a *ArrayLiteral) expressionNode() {}

// TypeOf returns the inferred type tag of an expression, or TypeAny when
// the expression has not been annotated.
func TypeOf(expr Expression) string {
	var tag string
	switch e := expr.(type) {
	case *Identifier:
		tag = e.InferredType
	case *Literal:
		tag = e.InferredType
	case *BinaryExpression:
		tag = e.InferredType
	case *UnaryExpression:
		tag = e.InferredType
	case *CallExpression:
		tag = e.InferredType
	case *MemberExpression:
		tag = e.InferredType
	case *ArrayLiteral:
		tag = e.InferredType
	case *MacroCall:
		tag = e.InferredType
	}
	if tag == "" {
		return TypeAny
	}
	return tag
}
