package middleware

import (
	"fmt"

	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/diag"
)

// Renamer rewrites every declared variable to a fresh globally-unique
// name `_<original>_<counter>` and rewrites later references to match.
// The name table is flat across the whole tree, not scope-partitioned:
// two declarations of one name collide into a single mapping, with the
// later declaration winning. Conventional loop-counter names are left
// alone, and function names and member property names are never touched.
type Renamer struct {
	exempt map[string]bool
}

// NewRenamer creates the renamer with the standard exempt set.
func NewRenamer() *Renamer {
	return &Renamer{exempt: map[string]bool{"i": true, "j": true, "k": true}}
}

func (r *Renamer) Name() string { return "rename" }

func (r *Renamer) Run(prog *ast.Program, ctx *diag.Context) *ast.Program {
	state := &renameState{
		exempt: r.exempt,
		table:  make(map[string]string),
		ctx:    ctx,
	}
	return ast.RewriteProgram(prog, state.rewrite)
}

// renameState is per-Run so one registered Renamer can serve concurrent
// compilations.
type renameState struct {
	exempt  map[string]bool
	table   map[string]string
	counter int
	ctx     *diag.Context
}

// rewrite runs bottom-up: a declaration's mapping takes effect after the
// declaration itself, so references inside its own initializer keep the
// original name while everything after it is rewritten.
func (s *renameState) rewrite(n ast.Node) ast.Node {
	switch node := n.(type) {
	case *ast.Identifier:
		if fresh, ok := s.table[node.Name]; ok {
			node.Name = fresh
		}
		return node

	case *ast.VariableDeclaration:
		name := node.Name.Name
		if s.exempt[name] {
			return node
		}
		s.counter++
		fresh := fmt.Sprintf("_%s_%d", name, s.counter)
		if _, redeclared := s.table[name]; redeclared {
			s.ctx.Warnf(diag.CodeRenameRedeclared, node.GetSpan(),
				"%q is declared more than once; later references resolve to the newest declaration", name)
		}
		s.table[name] = fresh
		node.Name = &ast.Identifier{Span: node.Name.Span, Name: fresh, InferredType: node.Name.InferredType}
		return node
	}
	return n
}
