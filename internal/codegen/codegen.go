// Package codegen holds the emitter boundary: each output language is a
// Target that names the middleware passes it needs, turns a finished
// program into source text, and writes the manifest files its ecosystem
// expects. Emission is mechanical template substitution over the final
// tree; targets never re-analyze the program.
package codegen

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/diag"
)

// ErrBlocked reports that emission was refused because the context
// already carries errors.
var ErrBlocked = errors.New("output suppressed while errors are present")

// ProjectInfo carries the manifest fields targets write out.
type ProjectInfo struct {
	Name        string
	Version     string
	Description string
}

// Target is one output language.
type Target interface {
	// Name is the identifier used on the command line and in lingual.json.
	Name() string

	// FileExtension is the emitted file suffix, dot included.
	FileExtension() string

	// Passes lists the middleware passes this target needs, in order.
	Passes() []string

	// Emit renders the program as target-language text. It refuses with
	// ErrBlocked when the context carries errors.
	Emit(prog *ast.Program, ctx *diag.Context) (string, error)

	// WriteProjectFiles writes the target ecosystem's manifest files
	// (package.json, requirements.txt, go.mod) into outDir.
	WriteProjectFiles(outDir, base string, info ProjectInfo) error

	// CallTemplates maps a call pattern ("print", "http.get") to a
	// template with {args} / {args[i]} placeholders.
	CallTemplates() map[string]string

	// PropertyTemplates maps a property name ("length") to a template
	// with an {object} placeholder.
	PropertyTemplates() map[string]string
}

var targets = make(map[string]Target)

// Register makes a target available by name. Registering a name twice
// replaces the earlier target.
func Register(t Target) { targets[t.Name()] = t }

// Lookup returns the named target, or nil.
func Lookup(name string) Target { return targets[name] }

// Names returns the registered target names, sorted.
func Names() []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// guard is the shared refuse-to-emit check.
func guard(t Target, ctx *diag.Context) error {
	if !ctx.HasErrors() {
		return nil
	}
	return fmt.Errorf("%s: %w (%d)", t.Name(), ErrBlocked, len(ctx.Errors))
}

// expandTemplate substitutes {object}, {args} and {args[i]} placeholders.
// Placeholders with no corresponding value are left in place.
func expandTemplate(tpl, object string, args []string) string {
	out := strings.ReplaceAll(tpl, "{object}", object)
	out = strings.ReplaceAll(out, "{args}", strings.Join(args, ", "))
	for i, arg := range args {
		out = strings.ReplaceAll(out, fmt.Sprintf("{args[%d]}", i), arg)
	}
	return out
}

// callPattern derives the lookup key for a call: the bare callee name
// for identifier callees, "object.property" for non-computed member
// callees rooted at an identifier. Anything else does not bridge.
func callPattern(call *ast.CallExpression) (string, ast.Expression) {
	switch callee := call.Callee.(type) {
	case *ast.Identifier:
		return callee.Name, nil
	case *ast.MemberExpression:
		if callee.Computed {
			return "", nil
		}
		obj, ok := callee.Object.(*ast.Identifier)
		if !ok {
			return "", nil
		}
		prop, ok := callee.Property.(*ast.Identifier)
		if !ok {
			return "", nil
		}
		return obj.Name + "." + prop.Name, callee.Object
	}
	return "", nil
}

// propertyName returns the name of a non-computed member access, or "".
func propertyName(m *ast.MemberExpression) string {
	if m.Computed {
		return ""
	}
	if prop, ok := m.Property.(*ast.Identifier); ok {
		return prop.Name
	}
	return ""
}

// formatNumber renders a literal number the shortest exact way, shared
// by every target.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// quoteString wraps raw literal text in double quotes. Escape sequences
// inside the text are stored verbatim, so only a bare double quote from
// a single-quoted source literal needs escaping here.
func quoteString(raw string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(raw); i++ {
		if raw[i] == '"' && (i == 0 || raw[i-1] != '\\') {
			b.WriteByte('\\')
		}
		b.WriteByte(raw[i])
	}
	b.WriteByte('"')
	return b.String()
}
