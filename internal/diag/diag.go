// Package diag carries the diagnostics and the compile context threaded
// through every stage of the lingual pipeline. Stages accumulate and
// continue: a diagnostic never aborts a pass, it is recorded on the
// context and the pass keeps transforming whatever remains valid.
package diag

import (
	"fmt"
	"sort"

	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/position"
)

// Severity represents how impactful a diagnostic is
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Code is a stable identifier attached to every diagnostic so tooling can
// match on the class of problem instead of the message text.
type Code string

const (
	// Parse errors re-surfaced as diagnostics by the driver.
	CodeParse Code = "PARSE"

	// Macro expansion
	CodeMacroUndefined  Code = "MACRO_UNDEFINED"
	CodeMacroArity      Code = "MACRO_ARITY"
	CodeMacroDepth      Code = "MACRO_DEPTH"
	CodeMacroArgument   Code = "MACRO_ARGUMENT"
	CodeMacroRedefined  Code = "MACRO_REDEFINED"
	CodeMacroExpression Code = "MACRO_EXPRESSION"

	// Middleware passes
	CodeTypeOperand      Code = "TYPE_OPERAND"
	CodeTypeMismatch     Code = "TYPE_MISMATCH"
	CodeTypeCondition    Code = "TYPE_CONDITION"
	CodeRenameRedeclared Code = "RENAME_REDECLARED"

	// Emission
	CodeEmitBlocked     Code = "EMIT_BLOCKED"
	CodeEmitUnsupported Code = "EMIT_UNSUPPORTED"
)

// Diagnostic is a single problem report: a message, a stable code, and
// the source location it points at when one is known.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Span     position.Span
}

func (d Diagnostic) String() string {
	if d.Span.IsValid() {
		return fmt.Sprintf("%s: %s[%s]: %s", d.Span.Start, d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s[%s]: %s", d.Severity, d.Code, d.Message)
}

// Context is the state shared by every stage of one compilation: the
// emission target, the accumulated diagnostics, and the block macros
// collected out of the program.
type Context struct {
	Target   string
	Errors   []Diagnostic
	Warnings []Diagnostic
	Macros   map[string]*ast.MacroDefinition
}

// NewContext creates a compile context for the given target.
func NewContext(target string) *Context {
	return &Context{
		Target: target,
		Macros: make(map[string]*ast.MacroDefinition),
	}
}

// Errorf records an error diagnostic.
func (c *Context) Errorf(code Code, span position.Span, format string, args ...interface{}) {
	c.Errors = append(c.Errors, Diagnostic{
		Severity: SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	})
}

// Warnf records a warning diagnostic.
func (c *Context) Warnf(code Code, span position.Span, format string, args ...interface{}) {
	c.Warnings = append(c.Warnings, Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	})
}

// HasErrors reports whether any error has been recorded. Emitters check
// this before producing output.
func (c *Context) HasErrors() bool {
	return len(c.Errors) > 0
}

// All returns every diagnostic ordered by source position, errors before
// warnings at the same position. Diagnostics without a location sort last.
func (c *Context) All() []Diagnostic {
	all := make([]Diagnostic, 0, len(c.Errors)+len(c.Warnings))
	all = append(all, c.Errors...)
	all = append(all, c.Warnings...)

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Span.IsValid() != b.Span.IsValid() {
			return a.Span.IsValid()
		}
		if a.Span.IsValid() && a.Span.Start != b.Span.Start {
			return a.Span.Start.Before(b.Span.Start)
		}
		return a.Severity < b.Severity
	})
	return all
}
