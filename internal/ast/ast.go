// Package ast defines the lingual abstract syntax tree.
//
// Every node carries a kind tag from a closed set and a source span.
// Nodes are constructed once by the parser or by a rewriting pass and are
// treated as immutable values afterwards; a pass that needs to change a
// node produces a new node instead of mutating in place.
package ast

import (
	"fmt"
	"strings"

	"github.com/Vantio-Games/lingual/internal/position"
)

// NodeKind identifies the variant of an AST node
type NodeKind int

const (
	KindProgram NodeKind = iota

	// Statements
	KindFunctionDeclaration
	KindVariableDeclaration
	KindExpressionStatement
	KindIfStatement
	KindWhileStatement
	KindForStatement
	KindReturnStatement
	KindBlockStatement
	KindTypeDeclaration
	KindMacroDefinition
	KindMacroCall
	KindApiDefinition
	KindModuleDefinition
	KindImportStatement
	KindExportStatement

	// Expressions
	KindIdentifier
	KindLiteral
	KindBinaryExpression
	KindUnaryExpression
	KindCallExpression
	KindMemberExpression
	KindArrayLiteral

	// Support nodes
	KindParameter
	KindTypeAnnotation
	KindTypeField
	KindApiRoute
)

var kindNames = map[NodeKind]string{
	KindProgram:             "Program",
	KindFunctionDeclaration: "FunctionDeclaration",
	KindVariableDeclaration: "VariableDeclaration",
	KindExpressionStatement: "ExpressionStatement",
	KindIfStatement:         "IfStatement",
	KindWhileStatement:      "WhileStatement",
	KindForStatement:        "ForStatement",
	KindReturnStatement:     "ReturnStatement",
	KindBlockStatement:      "BlockStatement",
	KindTypeDeclaration:     "TypeDeclaration",
	KindMacroDefinition:     "MacroDefinition",
	KindMacroCall:           "MacroCall",
	KindApiDefinition:       "ApiDefinition",
	KindModuleDefinition:    "ModuleDefinition",
	KindImportStatement:     "ImportStatement",
	KindExportStatement:     "ExportStatement",
	KindIdentifier:          "Identifier",
	KindLiteral:             "Literal",
	KindBinaryExpression:    "BinaryExpression",
	KindUnaryExpression:     "UnaryExpression",
	KindCallExpression:      "CallExpression",
	KindMemberExpression:    "MemberExpression",
	KindArrayLiteral:        "ArrayLiteral",
	KindParameter:           "Parameter",
	KindTypeAnnotation:      "TypeAnnotation",
	KindTypeField:           "TypeField",
	KindApiRoute:            "ApiRoute",
}

// String returns the variant name of the node kind
func (k NodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(k))
}

// Node represents the base interface for all AST nodes
type Node interface {
	// Kind returns the variant tag for this node
	Kind() NodeKind
	// GetSpan returns the source span for this node
	GetSpan() position.Span
	// String returns a string representation of the node
	String() string
}

// Statement represents all statement nodes
type Statement interface {
	Node
	statementNode()
}

// Expression represents all expression nodes
type Expression interface {
	Node
	expressionNode()
}

// BindingKind selects the declaration form of a VariableDeclaration.
// Exactly three values exist; no other token may populate it.
type BindingKind int

const (
	BindVar BindingKind = iota
	BindLet
	BindConst
)

// String returns the surface keyword for the binding kind
func (b BindingKind) String() string {
	switch b {
	case BindVar:
		return "var"
	case BindLet:
		return "let"
	case BindConst:
		return "const"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(b))
}

// ====== Program ======

// Program represents the root of the AST
type Program struct {
	Span position.Span
	Body []Statement
}

func (p *Program) Kind() NodeKind         { return KindProgram }
func (p *Program) GetSpan() position.Span { return p.Span }
func (p *Program) String() string         { return "Program" }

// ====== Statements ======

// FunctionDeclaration represents a function declaration
type FunctionDeclaration struct {
	Span       position.Span
	Name       *Identifier
	Params     []*Parameter
	ReturnType *TypeAnnotation // can be nil
	Body       *BlockStatement
}

func (f *FunctionDeclaration) Kind() NodeKind         { return KindFunctionDeclaration }
func (f *FunctionDeclaration) GetSpan() position.Span { return f.Span }
func (f *FunctionDeclaration) String() string         { return fmt.Sprintf("function %s", f.Name.Name) }
func (f *FunctionDeclaration) statementNode()         {}

// Parameter represents a function parameter
type Parameter struct {
	Span           position.Span
	Name           *Identifier
	TypeAnnotation *TypeAnnotation // can be nil
}

func (p *Parameter) Kind() NodeKind         { return KindParameter }
func (p *Parameter) GetSpan() position.Span { return p.Span }
func (p *Parameter) String() string {
	if p.TypeAnnotation != nil {
		return fmt.Sprintf("%s: %s", p.Name.Name, p.TypeAnnotation.Name)
	}
	return p.Name.Name
}

// TypeAnnotation represents a `: Type` annotation
type TypeAnnotation struct {
	Span position.Span
	Name string
}

func (t *TypeAnnotation) Kind() NodeKind         { return KindTypeAnnotation }
func (t *TypeAnnotation) GetSpan() position.Span { return t.Span }
func (t *TypeAnnotation) String() string         { return t.Name }

// VariableDeclaration represents a var/let/const declaration
type VariableDeclaration struct {
	Span           position.Span
	BindingKind    BindingKind
	Name           *Identifier
	TypeAnnotation *TypeAnnotation // can be nil
	Initializer    Expression      // can be nil
}

func (v *VariableDeclaration) Kind() NodeKind         { return KindVariableDeclaration }
func (v *VariableDeclaration) GetSpan() position.Span { return v.Span }
func (v *VariableDeclaration) String() string {
	return fmt.Sprintf("%s %s", v.BindingKind, v.Name.Name)
}
func (v *VariableDeclaration) statementNode() {}

// ExpressionStatement represents an expression used as a statement
type ExpressionStatement struct {
	Span       position.Span
	Expression Expression
}

func (e *ExpressionStatement) Kind() NodeKind         { return KindExpressionStatement }
func (e *ExpressionStatement) GetSpan() position.Span { return e.Span }
func (e *ExpressionStatement) String() string         { return e.Expression.String() }
func (e *ExpressionStatement) statementNode()         {}

// IfStatement represents an if statement
type IfStatement struct {
	Span position.Span
	Test Expression
	Then *BlockStatement
	Else Statement // *BlockStatement, *IfStatement, or nil
}

func (i *IfStatement) Kind() NodeKind         { return KindIfStatement }
func (i *IfStatement) GetSpan() position.Span { return i.Span }
func (i *IfStatement) String() string         { return "if" }
func (i *IfStatement) statementNode()         {}

// WhileStatement represents a while loop
type WhileStatement struct {
	Span position.Span
	Test Expression
	Body *BlockStatement
}

func (w *WhileStatement) Kind() NodeKind         { return KindWhileStatement }
func (w *WhileStatement) GetSpan() position.Span { return w.Span }
func (w *WhileStatement) String() string         { return "while" }
func (w *WhileStatement) statementNode()         {}

// ForStatement represents a C-style for loop
type ForStatement struct {
	Span   position.Span
	Init   Statement  // VariableDeclaration or ExpressionStatement, can be nil
	Test   Expression // can be nil
	Update Expression // can be nil
	Body   *BlockStatement
}

func (f *ForStatement) Kind() NodeKind         { return KindForStatement }
func (f *ForStatement) GetSpan() position.Span { return f.Span }
func (f *ForStatement) String() string         { return "for" }
func (f *ForStatement) statementNode()         {}

// ReturnStatement represents a return statement
type ReturnStatement struct {
	Span  position.Span
	Value Expression // can be nil
}

func (r *ReturnStatement) Kind() NodeKind         { return KindReturnStatement }
func (r *ReturnStatement) GetSpan() position.Span { return r.Span }
func (r *ReturnStatement) String() string         { return "return" }
func (r *ReturnStatement) statementNode()         {}

// BlockStatement represents a brace-delimited block of statements
type BlockStatement struct {
	Span       position.Span
	Statements []Statement
}

func (b *BlockStatement) Kind() NodeKind         { return KindBlockStatement }
func (b *BlockStatement) GetSpan() position.Span { return b.Span }
func (b *BlockStatement) String() string         { return "Block" }
func (b *BlockStatement) statementNode()         {}

// TypeDeclaration represents a `type Name { field: Type; }` declaration
type TypeDeclaration struct {
	Span   position.Span
	Name   *Identifier
	Fields []*TypeField
}

func (t *TypeDeclaration) Kind() NodeKind         { return KindTypeDeclaration }
func (t *TypeDeclaration) GetSpan() position.Span { return t.Span }
func (t *TypeDeclaration) String() string         { return fmt.Sprintf("type %s", t.Name.Name) }
func (t *TypeDeclaration) statementNode()         {}

// TypeField represents one `name: Type` pair inside a type declaration
type TypeField struct {
	Span      position.Span
	Name      *Identifier
	ValueType *TypeAnnotation
}

func (t *TypeField) Kind() NodeKind         { return KindTypeField }
func (t *TypeField) GetSpan() position.Span { return t.Span }
func (t *TypeField) String() string {
	return fmt.Sprintf("%s: %s", t.Name.Name, t.ValueType.Name)
}

// MacroDefinition represents a `macro name(params) ... end` definition
type MacroDefinition struct {
	Span   position.Span
	Name   *Identifier
	Params []*Identifier
	Body   []Statement
}

func (m *MacroDefinition) Kind() NodeKind         { return KindMacroDefinition }
func (m *MacroDefinition) GetSpan() position.Span { return m.Span }
func (m *MacroDefinition) String() string         { return fmt.Sprintf("macro %s", m.Name.Name) }
func (m *MacroDefinition) statementNode()         {}

// MacroCall represents a call of a named macro. It can occur in both
// statement and expression position; expansion removes every occurrence.
type MacroCall struct {
	Span         position.Span
	Name         *Identifier
	Args         []Expression
	InferredType string
}

func (m *MacroCall) Kind() NodeKind         { return KindMacroCall }
func (m *MacroCall) GetSpan() position.Span { return m.Span }
func (m *MacroCall) String() string {
	args := make([]string, len(m.Args))
	for i, a := range m.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("@%s(%s)", m.Name.Name, strings.Join(args, ", "))
}
func (m *MacroCall) statementNode()  {}
func (m *MacroCall) expressionNode() {}

// ApiDefinition represents an `api Name { ... }` declarative block
type ApiDefinition struct {
	Span   position.Span
	Name   *Identifier
	Routes []*ApiRoute
}

func (a *ApiDefinition) Kind() NodeKind         { return KindApiDefinition }
func (a *ApiDefinition) GetSpan() position.Span { return a.Span }
func (a *ApiDefinition) String() string         { return fmt.Sprintf("api %s", a.Name.Name) }
func (a *ApiDefinition) statementNode()         {}

// ApiRoute represents one `method "path" -> handler;` route
type ApiRoute struct {
	Span    position.Span
	Method  string
	Path    string
	Handler *Identifier
}

func (a *ApiRoute) Kind() NodeKind         { return KindApiRoute }
func (a *ApiRoute) GetSpan() position.Span { return a.Span }
func (a *ApiRoute) String() string {
	return fmt.Sprintf("%s %q -> %s", a.Method, a.Path, a.Handler.Name)
}

// ModuleDefinition represents a `module a.b.c;` declaration
type ModuleDefinition struct {
	Span position.Span
	Name string
}

func (m *ModuleDefinition) Kind() NodeKind         { return KindModuleDefinition }
func (m *ModuleDefinition) GetSpan() position.Span { return m.Span }
func (m *ModuleDefinition) String() string         { return fmt.Sprintf("module %s", m.Name) }
func (m *ModuleDefinition) statementNode()         {}

// ImportStatement represents an `import a, b from "mod";` declaration
type ImportStatement struct {
	Span  position.Span
	Names []*Identifier
	From  string
}

func (i *ImportStatement) Kind() NodeKind         { return KindImportStatement }
func (i *ImportStatement) GetSpan() position.Span { return i.Span }
func (i *ImportStatement) String() string {
	names := make([]string, len(i.Names))
	for j, n := range i.Names {
		names[j] = n.Name
	}
	return fmt.Sprintf("import %s from %q", strings.Join(names, ", "), i.From)
}
func (i *ImportStatement) statementNode() {}

// ExportStatement represents an `export <decl>` or `export name;` form.
// Exactly one of Declaration and Name is set.
type ExportStatement struct {
	Span        position.Span
	Declaration Statement   // can be nil
	Name        *Identifier // can be nil
}

func (e *ExportStatement) Kind() NodeKind         { return KindExportStatement }
func (e *ExportStatement) GetSpan() position.Span { return e.Span }
func (e *ExportStatement) String() string {
	if e.Name != nil {
		return fmt.Sprintf("export %s", e.Name.Name)
	}
	return fmt.Sprintf("export %s", e.Declaration.String())
}
func (e *ExportStatement) statementNode() {}

// IsDeclaration reports whether a statement is a function or variable
// declaration for hoisting purposes. An export wrapping a declaration
// hoists with its payload.
func IsDeclaration(stmt Statement) bool {
	switch s := stmt.(type) {
	case *FunctionDeclaration, *VariableDeclaration:
		return true
	case *ExportStatement:
		if s.Declaration != nil {
			return IsDeclaration(s.Declaration)
		}
	}
	return false
}
