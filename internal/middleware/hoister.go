package middleware

import (
	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/diag"
)

// Hoister moves declarations to the front of their enclosing block.
// The partition is stable: declarations keep their order relative to
// each other, and so do the remaining statements. Nothing crosses a
// block boundary, so a nested function's locals stay in that function.
type Hoister struct{}

// NewHoister creates the hoisting pass.
func NewHoister() *Hoister { return &Hoister{} }

func (h *Hoister) Name() string { return "hoist" }

func (h *Hoister) Run(prog *ast.Program, ctx *diag.Context) *ast.Program {
	out := ast.RewriteProgram(prog, func(n ast.Node) ast.Node {
		if block, ok := n.(*ast.BlockStatement); ok {
			block.Statements = partition(block.Statements)
		}
		return n
	})
	out.Body = partition(out.Body)
	return out
}

func partition(stmts []ast.Statement) []ast.Statement {
	decls := make([]ast.Statement, 0, len(stmts))
	rest := make([]ast.Statement, 0, len(stmts))
	for _, stmt := range stmts {
		if ast.IsDeclaration(stmt) {
			decls = append(decls, stmt)
		} else {
			rest = append(rest, stmt)
		}
	}
	return append(decls, rest...)
}
