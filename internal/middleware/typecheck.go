package middleware

import (
	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/diag"
)

// TypeChecker infers a type tag for every expression bottom-up over a
// flat name-to-type table and records rule violations on the context.
// Inference is best-effort: unknown names read as `any`, which satisfies
// every operand rule, so one missing declaration does not cascade into a
// wall of follow-on errors. The rewritten tree carries the inferred tag
// on each expression node for the emitter.
type TypeChecker struct{}

// NewTypeChecker creates the type checking pass.
func NewTypeChecker() *TypeChecker { return &TypeChecker{} }

func (t *TypeChecker) Name() string { return "typecheck" }

func (t *TypeChecker) Run(prog *ast.Program, ctx *diag.Context) *ast.Program {
	state := &checkState{table: make(map[string]string), ctx: ctx}

	// Parameters are visible throughout their function body, so they
	// enter the table before inference starts. Variable declarations
	// enter in visit order during the rewrite below.
	ast.Walk(prog, func(n ast.Node) bool {
		if fn, ok := n.(*ast.FunctionDeclaration); ok {
			for _, p := range fn.Params {
				state.table[p.Name.Name] = annotationType(p.TypeAnnotation)
			}
		}
		return true
	})

	return ast.RewriteProgram(prog, state.annotate)
}

type checkState struct {
	table map[string]string
	ctx   *diag.Context
}

func annotationType(t *ast.TypeAnnotation) string {
	if t == nil {
		return ast.TypeAny
	}
	return t.Name
}

func tagName(id *ast.Identifier) {
	if id != nil && id.InferredType == "" {
		id.InferredType = ast.TypeAny
	}
}

func (s *checkState) annotate(n ast.Node) ast.Node {
	switch node := n.(type) {
	case *ast.Literal:
		node.InferredType = ast.TypeOfLiteral(node)

	case *ast.Identifier:
		if t, ok := s.table[node.Name]; ok {
			node.InferredType = t
		} else {
			node.InferredType = ast.TypeAny
		}

	case *ast.ArrayLiteral:
		node.InferredType = ast.TypeArray

	case *ast.BinaryExpression:
		node.InferredType = s.binaryType(node)

	case *ast.UnaryExpression:
		node.InferredType = s.unaryType(node)

	case *ast.CallExpression:
		node.InferredType = ast.TypeAny

	case *ast.MemberExpression:
		node.InferredType = ast.TypeAny
		if !node.Computed {
			if id, ok := node.Property.(*ast.Identifier); ok {
				tagName(id)
			}
		}

	case *ast.MacroCall:
		node.InferredType = ast.TypeAny
		tagName(node.Name)

	case *ast.VariableDeclaration:
		s.declare(node)

	case *ast.FunctionDeclaration:
		// Name positions are not value references, but they are still
		// identifier nodes; tag them so the whole tree ends up typed.
		tagName(node.Name)
		for _, p := range node.Params {
			p.Name.InferredType = annotationType(p.TypeAnnotation)
		}

	case *ast.TypeDeclaration:
		tagName(node.Name)
		for _, f := range node.Fields {
			tagName(f.Name)
		}

	case *ast.MacroDefinition:
		tagName(node.Name)
		for _, p := range node.Params {
			tagName(p)
		}

	case *ast.ApiDefinition:
		tagName(node.Name)
		for _, r := range node.Routes {
			tagName(r.Handler)
		}

	case *ast.ImportStatement:
		for _, name := range node.Names {
			tagName(name)
		}

	case *ast.ExportStatement:
		tagName(node.Name)

	case *ast.IfStatement:
		s.checkCondition(node.Test, "if")

	case *ast.WhileStatement:
		s.checkCondition(node.Test, "while")

	case *ast.ForStatement:
		if node.Test != nil {
			s.checkCondition(node.Test, "for")
		}
	}
	return n
}

// binaryType applies the operator rules. `+` concatenates when either
// side is a string and is numeric addition otherwise; the other
// arithmetic operators require numbers and stay number-typed even when
// an operand violates the rule, so downstream inference is not poisoned
// by one bad operand.
func (s *checkState) binaryType(e *ast.BinaryExpression) string {
	left, right := ast.TypeOf(e.Left), ast.TypeOf(e.Right)

	switch e.Operator {
	case "=":
		return right

	case "+", "+=":
		if left == ast.TypeString || right == ast.TypeString {
			return ast.TypeString
		}
		s.requireNumber(e.Operator, e.Left, left)
		s.requireNumber(e.Operator, e.Right, right)
		return ast.TypeNumber

	case "-", "*", "/", "%", "-=", "*=", "/=", "%=":
		s.requireNumber(e.Operator, e.Left, left)
		s.requireNumber(e.Operator, e.Right, right)
		return ast.TypeNumber

	case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
		return ast.TypeBoolean
	}
	return ast.TypeAny
}

func (s *checkState) unaryType(e *ast.UnaryExpression) string {
	operand := ast.TypeOf(e.Operand)

	switch e.Operator {
	case "!":
		if operand != ast.TypeBoolean && operand != ast.TypeAny {
			s.ctx.Errorf(diag.CodeTypeOperand, e.Operand.GetSpan(),
				"operator %q needs a boolean operand, got %s", e.Operator, operand)
		}
		return ast.TypeBoolean

	case "+", "-":
		s.requireNumber(e.Operator, e.Operand, operand)
		return ast.TypeNumber
	}
	return ast.TypeAny
}

func (s *checkState) requireNumber(op string, expr ast.Expression, t string) {
	if t != ast.TypeNumber && t != ast.TypeAny {
		s.ctx.Errorf(diag.CodeTypeOperand, expr.GetSpan(),
			"operator %q needs number operands, got %s", op, t)
	}
}

// declare records the declaration's type in the table: the annotation
// when present, the initializer's inferred type otherwise. A null
// initializer satisfies any annotation.
func (s *checkState) declare(d *ast.VariableDeclaration) {
	declared := annotationType(d.TypeAnnotation)

	if d.Initializer != nil {
		inferred := ast.TypeOf(d.Initializer)
		if d.TypeAnnotation == nil {
			declared = inferred
		} else if declared != ast.TypeAny && inferred != ast.TypeAny && inferred != ast.TypeNull && inferred != declared {
			s.ctx.Errorf(diag.CodeTypeMismatch, d.GetSpan(),
				"%q is declared as %s but initialized with %s", d.Name.Name, declared, inferred)
		}
	}
	s.table[d.Name.Name] = declared
	d.Name.InferredType = declared
}

func (s *checkState) checkCondition(test ast.Expression, form string) {
	if t := ast.TypeOf(test); t != ast.TypeBoolean && t != ast.TypeAny {
		s.ctx.Errorf(diag.CodeTypeCondition, test.GetSpan(),
			"%s condition is %s, not boolean", form, t)
	}
}
