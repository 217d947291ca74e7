package ast

import (
	"fmt"
	"io"
	"strings"
)

// Dump renders a node as an indented tree, one node per line. The debug
// commands print parse results with it; tests read it in goldens.
// Expressions annotated by the type checker carry a :type suffix.
func Dump(node Node) string {
	p := &printer{}
	p.print(node)
	return p.b.String()
}

// Fprint writes the Dump rendering of node to w.
func Fprint(w io.Writer, node Node) error {
	_, err := io.WriteString(w, Dump(node))
	return err
}

type printer struct {
	b      strings.Builder
	indent int
}

func (p *printer) line(text string) {
	p.b.WriteString(strings.Repeat("  ", p.indent))
	p.b.WriteString(text)
	p.b.WriteByte('\n')
}

// typed appends the inferred-type suffix when the checker has run.
func typed(label, inferred string) string {
	if inferred == "" {
		return label
	}
	return label + " :" + inferred
}

func (p *printer) children(nodes ...Node) {
	p.indent++
	for _, n := range nodes {
		p.print(n)
	}
	p.indent--
}

func (p *printer) print(node Node) {
	if node == nil {
		return
	}

	switch n := node.(type) {
	case *Program:
		p.line("Program")
		p.indent++
		for _, stmt := range n.Body {
			p.print(stmt)
		}
		p.indent--

	case *FunctionDeclaration:
		p.line(n.String())
		p.indent++
		for _, param := range n.Params {
			p.print(param)
		}
		if n.ReturnType != nil {
			p.line("returns " + n.ReturnType.Name)
		}
		p.print(n.Body)
		p.indent--

	case *VariableDeclaration:
		label := n.String()
		if n.TypeAnnotation != nil {
			label += ": " + n.TypeAnnotation.Name
		}
		p.line(label)
		if n.Initializer != nil {
			p.children(n.Initializer)
		}

	case *ExpressionStatement:
		p.line("expr")
		p.children(n.Expression)

	case *IfStatement:
		p.line("if")
		p.children(n.Test, n.Then)
		if n.Else != nil {
			p.line("else")
			p.children(n.Else)
		}

	case *WhileStatement:
		p.line("while")
		p.children(n.Test, n.Body)

	case *ForStatement:
		p.line("for")
		p.indent++
		if n.Init != nil {
			p.print(n.Init)
		}
		if n.Test != nil {
			p.print(n.Test)
		}
		if n.Update != nil {
			p.print(n.Update)
		}
		p.print(n.Body)
		p.indent--

	case *ReturnStatement:
		p.line("return")
		if n.Value != nil {
			p.children(n.Value)
		}

	case *BlockStatement:
		p.line("Block")
		p.indent++
		for _, stmt := range n.Statements {
			p.print(stmt)
		}
		p.indent--

	case *TypeDeclaration:
		p.line(n.String())
		p.indent++
		for _, field := range n.Fields {
			p.line(field.String())
		}
		p.indent--

	case *MacroDefinition:
		params := make([]string, len(n.Params))
		for i, param := range n.Params {
			params[i] = param.Name
		}
		p.line(fmt.Sprintf("macro %s(%s)", n.Name.Name, strings.Join(params, ", ")))
		p.indent++
		for _, stmt := range n.Body {
			p.print(stmt)
		}
		p.indent--

	case *MacroCall:
		p.line(typed("@"+n.Name.Name, n.InferredType))
		p.indent++
		for _, arg := range n.Args {
			p.print(arg)
		}
		p.indent--

	case *ApiDefinition:
		p.line(n.String())
		p.indent++
		for _, route := range n.Routes {
			p.line(route.String())
		}
		p.indent--

	case *ModuleDefinition, *ImportStatement:
		p.line(n.String())

	case *ExportStatement:
		if n.Name != nil {
			p.line("export " + n.Name.Name)
			return
		}
		p.line("export")
		p.children(n.Declaration)

	case *Identifier:
		p.line(typed(n.Name, n.InferredType))

	case *Literal:
		p.line(typed(n.String(), n.InferredType))

	case *BinaryExpression:
		p.line(typed("binary "+n.Operator, n.InferredType))
		p.children(n.Left, n.Right)

	case *UnaryExpression:
		p.line(typed("unary "+n.Operator, n.InferredType))
		p.children(n.Operand)

	case *CallExpression:
		p.line(typed("call", n.InferredType))
		p.indent++
		p.print(n.Callee)
		for _, arg := range n.Args {
			p.print(arg)
		}
		p.indent--

	case *MemberExpression:
		label := "member ."
		if n.Computed {
			label = "member []"
		}
		p.line(typed(label, n.InferredType))
		p.children(n.Object, n.Property)

	case *ArrayLiteral:
		p.line(typed("array", n.InferredType))
		p.indent++
		for _, elem := range n.Elements {
			p.print(elem)
		}
		p.indent--

	case *Parameter, *TypeAnnotation, *TypeField, *ApiRoute:
		p.line(n.String())

	default:
		p.line(node.String())
	}
}
