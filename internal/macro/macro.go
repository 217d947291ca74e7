// Package macro implements the lingual macro expansion engine.
//
// Expansion runs in two phases. First every MacroDefinition is collected
// into the compile context and removed from the tree. Then expansion
// passes replace MacroCall nodes until a pass finds none left: block
// macros by positional, non-hygienic substitution of their body, inline
// macros by eager evaluation of their text transform. A pass cap guards
// against mutually recursive macros, which cannot terminate and are a
// caller error.
package macro

import (
	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/diag"
)

// maxExpansionPasses bounds the fixpoint loop. Prevents infinite recursion.
const maxExpansionPasses = 100

// Expander expands macros in a program against one compile context.
type Expander struct {
	ctx       *diag.Context
	inline    map[string]InlineFunc
	maxPasses int
}

// NewExpander creates an expander with the built-in inline transforms
// registered. Block macro definitions land in ctx.Macros as they are
// collected.
func NewExpander(ctx *diag.Context) *Expander {
	e := &Expander{
		ctx:       ctx,
		inline:    make(map[string]InlineFunc),
		maxPasses: maxExpansionPasses,
	}
	e.registerBuiltins()
	return e
}

// RegisterInline adds a caller-supplied inline macro. Registering an
// existing name replaces it.
func (e *Expander) RegisterInline(name string, fn InlineFunc) {
	e.inline[name] = fn
}

// ExpandProgram returns the program with all macro definitions removed
// and all macro calls expanded. The input tree is never mutated.
// Diagnostics for bad calls accumulate on the context; the offending
// call sites are dropped and expansion continues around them.
func (e *Expander) ExpandProgram(prog *ast.Program) *ast.Program {
	prog = e.collectDefinitions(prog)

	for pass := 0; pass < e.maxPasses; pass++ {
		if countCalls(prog) == 0 {
			return prog
		}
		prog = &ast.Program{Span: prog.Span, Body: e.expandStmts(prog.Body)}
	}

	if remaining := countCalls(prog); remaining > 0 {
		e.ctx.Errorf(diag.CodeMacroDepth, prog.Span,
			"macro expansion did not finish after %d passes; %d calls remain (mutually recursive macros?)",
			e.maxPasses, remaining)
	}
	return prog
}

// collectDefinitions registers every macro definition on the context and
// strips the definitions out of the returned tree. An export wrapping
// only a macro definition is stripped with it.
func (e *Expander) collectDefinitions(prog *ast.Program) *ast.Program {
	return ast.RewriteProgram(prog, func(n ast.Node) ast.Node {
		switch node := n.(type) {
		case *ast.MacroDefinition:
			e.register(node)
			return nil
		case *ast.ExportStatement:
			if node.Declaration == nil && node.Name == nil {
				return nil
			}
		}
		return n
	})
}

func (e *Expander) register(def *ast.MacroDefinition) {
	name := def.Name.Name
	if _, exists := e.ctx.Macros[name]; exists {
		e.ctx.Warnf(diag.CodeMacroRedefined, def.Span, "macro %q redefined; the later definition wins", name)
	}
	e.ctx.Macros[name] = def
}

// Substitute returns a deep copy of body with every identifier reference
// bound in bindings replaced by a copy of its bound expression.
// Substitution is not hygienic: a binding the body itself declares under
// a parameter's name shadows the argument, because declared names are
// never rewrite targets.
func Substitute(body []ast.Statement, bindings map[string]ast.Expression) []ast.Statement {
	out := make([]ast.Statement, 0, len(body))
	for _, stmt := range body {
		rewritten := ast.RewriteStmt(stmt, func(n ast.Node) ast.Node {
			if id, ok := n.(*ast.Identifier); ok {
				if repl, bound := bindings[id.Name]; bound {
					return ast.CloneExpr(repl)
				}
			}
			return n
		})
		if rewritten != nil {
			out = append(out, rewritten)
		}
	}
	return out
}

// ====== Statement expansion (splicing) ======
//
// A macro call in statement position can expand to any number of
// statements, so the statement walk splices instead of mapping
// one-to-one. Expression positions go through the shared rewrite fold.

func (e *Expander) expandStmts(stmts []ast.Statement) []ast.Statement {
	out := make([]ast.Statement, 0, len(stmts))
	for _, stmt := range stmts {
		out = append(out, e.expandStmt(stmt)...)
	}
	return out
}

func (e *Expander) expandStmt(stmt ast.Statement) []ast.Statement {
	switch s := stmt.(type) {
	case *ast.MacroCall:
		return e.expandCallStatement(s)

	case *ast.BlockStatement:
		return []ast.Statement{e.expandBlock(s)}

	case *ast.FunctionDeclaration:
		n := ast.CloneStmt(s).(*ast.FunctionDeclaration)
		n.Body = e.expandBlock(s.Body)
		return []ast.Statement{n}

	case *ast.IfStatement:
		n := &ast.IfStatement{
			Span: s.Span,
			Test: e.expandExpr(s.Test),
			Then: e.expandBlock(s.Then),
		}
		if s.Else != nil {
			// The else branch is a block or a chained if; either way it
			// expands to exactly one statement.
			if expanded := e.expandStmt(s.Else); len(expanded) == 1 {
				n.Else = expanded[0]
			}
		}
		return []ast.Statement{n}

	case *ast.WhileStatement:
		return []ast.Statement{&ast.WhileStatement{
			Span: s.Span,
			Test: e.expandExpr(s.Test),
			Body: e.expandBlock(s.Body),
		}}

	case *ast.ForStatement:
		n := &ast.ForStatement{Span: s.Span, Body: e.expandBlock(s.Body)}
		if s.Init != nil {
			n.Init = ast.RewriteStmt(s.Init, e.rewriteExpressionCall)
		}
		if s.Test != nil {
			n.Test = e.expandExpr(s.Test)
		}
		if s.Update != nil {
			n.Update = e.expandExpr(s.Update)
		}
		return []ast.Statement{n}

	case *ast.ExportStatement:
		if s.Declaration == nil {
			return []ast.Statement{ast.CloneStmt(s)}
		}
		// A macro call under export expands to several declarations;
		// each one stays exported.
		expanded := e.expandStmt(s.Declaration)
		out := make([]ast.Statement, 0, len(expanded))
		for _, decl := range expanded {
			out = append(out, &ast.ExportStatement{Span: s.Span, Declaration: decl})
		}
		return out

	case *ast.MacroDefinition:
		// Definitions are stripped before expansion; one showing up here
		// is still registered and removed.
		e.register(s)
		return nil

	default:
		// Statements without nested statement lists: the shared fold
		// copies them and expands their expression positions.
		if rewritten := ast.RewriteStmt(stmt, e.rewriteExpressionCall); rewritten != nil {
			return []ast.Statement{rewritten}
		}
		return nil
	}
}

func (e *Expander) expandBlock(block *ast.BlockStatement) *ast.BlockStatement {
	if block == nil {
		return nil
	}
	return &ast.BlockStatement{Span: block.Span, Statements: e.expandStmts(block.Statements)}
}

// expandCallStatement expands one macro call in statement position.
// Returning nil drops the call site.
func (e *Expander) expandCallStatement(call *ast.MacroCall) []ast.Statement {
	name := call.Name.Name

	// Arguments expand first so nested calls resolve innermost-out.
	args := make([]ast.Expression, len(call.Args))
	for i, a := range call.Args {
		args[i] = e.expandExpr(a)
	}

	if def, ok := e.ctx.Macros[name]; ok {
		bindings, ok := e.bind(def, call, args)
		if !ok {
			return nil
		}
		return Substitute(def.Body, bindings)
	}

	if fn, ok := e.inline[name]; ok {
		result := e.evalInline(name, fn, call, args)
		if result == nil {
			return nil
		}
		return []ast.Statement{&ast.ExpressionStatement{Span: call.Span, Expression: result}}
	}

	e.ctx.Errorf(diag.CodeMacroUndefined, call.Span, "undefined macro %q", name)
	return nil
}

// rewriteExpressionCall is the RewriteFunc for macro calls in expression
// position. The fold has already expanded the call's arguments when this
// runs.
func (e *Expander) rewriteExpressionCall(n ast.Node) ast.Node {
	call, ok := n.(*ast.MacroCall)
	if !ok {
		return n
	}
	return e.expandExpressionCall(call)
}

func (e *Expander) expandExpr(expr ast.Expression) ast.Expression {
	return ast.RewriteExpr(expr, e.rewriteExpressionCall)
}

// expandExpressionCall expands one macro call in expression position. A
// block macro fits here only when its body is a single expression
// statement. Failed calls become null literals so the surrounding
// expression stays well formed.
func (e *Expander) expandExpressionCall(call *ast.MacroCall) ast.Expression {
	name := call.Name.Name

	if def, ok := e.ctx.Macros[name]; ok {
		bindings, ok := e.bind(def, call, call.Args)
		if !ok {
			return ast.NewLiteral(call.Span, nil)
		}
		body := Substitute(def.Body, bindings)
		if len(body) == 1 {
			if exprStmt, ok := body[0].(*ast.ExpressionStatement); ok {
				return exprStmt.Expression
			}
		}
		e.ctx.Errorf(diag.CodeMacroExpression, call.Span,
			"macro %q does not expand to a single expression", name)
		return ast.NewLiteral(call.Span, nil)
	}

	if fn, ok := e.inline[name]; ok {
		result := e.evalInline(name, fn, call, call.Args)
		if result == nil {
			return ast.NewLiteral(call.Span, nil)
		}
		return result
	}

	e.ctx.Errorf(diag.CodeMacroUndefined, call.Span, "undefined macro %q", name)
	return ast.NewLiteral(call.Span, nil)
}

// bind builds the positional parameter bindings for one call.
func (e *Expander) bind(def *ast.MacroDefinition, call *ast.MacroCall, args []ast.Expression) (map[string]ast.Expression, bool) {
	if len(args) != len(def.Params) {
		plural := "s"
		if len(def.Params) == 1 {
			plural = ""
		}
		e.ctx.Errorf(diag.CodeMacroArity, call.Span,
			"macro %q expects %d argument%s, got %d", def.Name.Name, len(def.Params), plural, len(args))
		return nil, false
	}
	bindings := make(map[string]ast.Expression, len(def.Params))
	for i, param := range def.Params {
		bindings[param.Name] = args[i]
	}
	return bindings, true
}

// evalInline applies an inline transform to literal text arguments.
// Returns nil (after recording a diagnostic) when evaluation is not
// possible.
func (e *Expander) evalInline(name string, fn InlineFunc, call *ast.MacroCall, args []ast.Expression) ast.Expression {
	text := make([]string, len(args))
	for i, a := range args {
		lit, ok := a.(*ast.Literal)
		if !ok {
			e.ctx.Errorf(diag.CodeMacroArgument, a.GetSpan(),
				"inline macro %q needs literal text arguments", name)
			return nil
		}
		s, ok := lit.Value.(string)
		if !ok {
			e.ctx.Errorf(diag.CodeMacroArgument, a.GetSpan(),
				"inline macro %q argument %d is not text", name, i+1)
			return nil
		}
		text[i] = s
	}

	result, err := fn(text)
	if err != nil {
		e.ctx.Errorf(diag.CodeMacroArgument, call.Span, "inline macro %q: %v", name, err)
		return nil
	}
	return ast.NewLiteral(call.Span, result)
}

func countCalls(prog *ast.Program) int {
	return ast.Count(prog, func(n ast.Node) bool {
		_, ok := n.(*ast.MacroCall)
		return ok
	})
}
