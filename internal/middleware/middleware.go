// Package middleware runs the ordered AST passes between macro expansion
// and emission. A target language names the passes it needs; the chain
// threads the program and the compile context through them in order.
// Every pass is total: diagnostics accumulate on the context and never
// stop later passes from running.
package middleware

import (
	"fmt"
	"sort"

	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/diag"
)

// Pass transforms a program against a compile context. Run never mutates
// its input; it returns a rewritten program and pushes diagnostics onto
// the context.
type Pass interface {
	Name() string
	Run(prog *ast.Program, ctx *diag.Context) *ast.Program
}

var passes = make(map[string]Pass)

// Register installs a pass under its name. Registering an existing name
// replaces it, which lets callers swap a stock pass for a custom one.
func Register(p Pass) {
	passes[p.Name()] = p
}

// Lookup finds a registered pass by name.
func Lookup(name string) (Pass, bool) {
	p, ok := passes[name]
	return p, ok
}

// Names returns the registered pass names, sorted.
func Names() []string {
	names := make([]string, 0, len(passes))
	for name := range passes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunChain resolves names against the registry and runs each pass in
// order. An unknown pass name fails before anything runs: a half-applied
// chain would hand the emitter a tree in an unspecified state.
func RunChain(names []string, prog *ast.Program, ctx *diag.Context) (*ast.Program, error) {
	chain := make([]Pass, len(names))
	for i, name := range names {
		p, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown middleware pass %q", name)
		}
		chain[i] = p
	}

	for _, p := range chain {
		prog = p.Run(prog, ctx)
	}
	return prog, nil
}

func init() {
	Register(NewRenamer())
	Register(NewTypeChecker())
	Register(NewHoister())
}
