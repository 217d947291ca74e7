// Package compile runs the whole front end over one source file:
// tokenize, parse, expand macros, then the target's middleware chain.
// Each invocation owns its program and context; callers wanting
// concurrent builds run one Compile per file with no shared state.
package compile

import (
	"fmt"
	"strings"

	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/codegen"
	"github.com/Vantio-Games/lingual/internal/diag"
	"github.com/Vantio-Games/lingual/internal/lexer"
	"github.com/Vantio-Games/lingual/internal/macro"
	"github.com/Vantio-Games/lingual/internal/middleware"
	"github.com/Vantio-Games/lingual/internal/parser"
)

// DefaultTarget is used when Options.Target is empty.
const DefaultTarget = "javascript"

// Options selects the output target and any passes to run after the
// target's own chain.
type Options struct {
	Target      string
	ExtraPasses []string
}

// Result is a finished front-end run. The context carries every
// accumulated diagnostic; a non-nil Result with errors in the context
// means the pipeline completed but emission will refuse.
type Result struct {
	Program  *ast.Program
	Context  *diag.Context
	Target   codegen.Target
	Filename string
}

// Compile runs source through the pipeline. It fails fatally on parse
// errors and unknown target/pass names; everything later accumulates
// on the context.
func Compile(source, filename string, opts Options) (*Result, error) {
	targetName := opts.Target
	if targetName == "" {
		targetName = DefaultTarget
	}
	target := codegen.Lookup(targetName)
	if target == nil {
		return nil, fmt.Errorf("unknown target %q (available: %s)",
			targetName, strings.Join(codegen.Names(), ", "))
	}

	tokens := lexer.Tokenize(source)
	prog, err := parser.Parse(tokens)
	if err != nil {
		return nil, err
	}

	ctx := diag.NewContext(targetName)
	prog = macro.NewExpander(ctx).ExpandProgram(prog)

	passes := append(append([]string{}, target.Passes()...), opts.ExtraPasses...)
	prog, err = middleware.RunChain(passes, prog, ctx)
	if err != nil {
		return nil, err
	}

	return &Result{Program: prog, Context: ctx, Target: target, Filename: filename}, nil
}

// Emit renders the final program with the result's target.
func (r *Result) Emit() (string, error) {
	return r.Target.Emit(r.Program, r.Context)
}

// OutputName is the emitted filename for a given base name.
func (r *Result) OutputName(base string) string {
	return base + r.Target.FileExtension()
}
