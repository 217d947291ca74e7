package codegen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/diag"
	"github.com/Vantio-Games/lingual/internal/macro"
)

// Python emits a module of top-level functions and statements plus
// requirements.txt and pyproject.toml. Python keeps original names, so
// the rename pass is not in its chain.
type Python struct{}

func init() { Register(&Python{}) }

func (t *Python) Name() string          { return "python" }
func (t *Python) FileExtension() string { return ".py" }

func (t *Python) Passes() []string { return []string{"typecheck", "hoist"} }

var pyCalls = map[string]string{
	"print":         "print({args})",
	"console.log":   "print({args})",
	"console.error": "print({args})",
	"http.get":      "requests.get({args[0]})",
	"http.post":     "requests.post({args[0]}, data={args[1]})",
	"math.floor":    "math.floor({args})",
	"math.ceil":     "math.ceil({args})",
	"math.abs":      "abs({args})",
	"math.sqrt":     "math.sqrt({args})",
	"math.random":   "random.random()",
}

// pyCallImports names the module each bridged pattern needs.
var pyCallImports = map[string]string{
	"http.get":    "requests",
	"http.post":   "requests",
	"math.floor":  "math",
	"math.ceil":   "math",
	"math.sqrt":   "math",
	"math.random": "random",
}

var pyProps = map[string]string{
	"length": "len({object})",
	"json":   "{object}.json()",
}

func (t *Python) CallTemplates() map[string]string     { return pyCalls }
func (t *Python) PropertyTemplates() map[string]string { return pyProps }

func (t *Python) Emit(prog *ast.Program, ctx *diag.Context) (string, error) {
	if err := guard(t, ctx); err != nil {
		return "", err
	}
	e := &pyEmitter{ctx: ctx, needs: make(map[string]bool)}
	for _, stmt := range prog.Body {
		e.stmt(stmt)
	}

	var out strings.Builder
	if len(e.needs) > 0 {
		mods := make([]string, 0, len(e.needs))
		for mod := range e.needs {
			mods = append(mods, mod)
		}
		sort.Strings(mods)
		for _, mod := range mods {
			fmt.Fprintf(&out, "import %s\n", mod)
		}
		out.WriteByte('\n')
	}
	out.WriteString(e.buf.String())
	return out.String(), nil
}

func (t *Python) WriteProjectFiles(outDir, base string, info ProjectInfo) error {
	name := info.Name
	if name == "" {
		name = base
	}
	version := info.Version
	if version == "" {
		version = "0.1.0"
	}

	requirements := "requests>=2.31\n"
	if err := os.WriteFile(filepath.Join(outDir, "requirements.txt"), []byte(requirements), 0o644); err != nil {
		return fmt.Errorf("write requirements.txt: %w", err)
	}

	var b strings.Builder
	b.WriteString("[project]\n")
	fmt.Fprintf(&b, "name = %q\n", name)
	fmt.Fprintf(&b, "version = %q\n", version)
	if info.Description != "" {
		fmt.Fprintf(&b, "description = %q\n", info.Description)
	}
	if err := os.WriteFile(filepath.Join(outDir, "pyproject.toml"), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write pyproject.toml: %w", err)
	}
	return nil
}

type pyEmitter struct {
	buf    strings.Builder
	indent int
	ctx    *diag.Context
	needs  map[string]bool
}

func (e *pyEmitter) linef(format string, args ...any) {
	e.buf.WriteString(strings.Repeat("    ", e.indent))
	fmt.Fprintf(&e.buf, format, args...)
	e.buf.WriteByte('\n')
}

// suite emits an indented statement list, with `pass` for an empty one.
func (e *pyEmitter) suite(stmts []ast.Statement, tail func()) {
	e.indent++
	emitted := len(stmts) > 0 || tail != nil
	for _, stmt := range stmts {
		e.stmt(stmt)
	}
	if tail != nil {
		tail()
	}
	if !emitted {
		e.linef("pass")
	}
	e.indent--
}

func (e *pyEmitter) stmt(s ast.Statement) {
	switch n := s.(type) {
	case *ast.FunctionDeclaration:
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.Name.Name
		}
		e.linef("def %s(%s):", n.Name.Name, strings.Join(params, ", "))
		e.suite(n.Body.Statements, nil)

	case *ast.VariableDeclaration:
		if n.Initializer != nil {
			e.linef("%s = %s", n.Name.Name, e.expr(n.Initializer))
		} else {
			e.linef("%s = None", n.Name.Name)
		}

	case *ast.ExpressionStatement:
		e.linef("%s", e.expr(n.Expression))

	case *ast.IfStatement:
		e.ifChain(n)

	case *ast.WhileStatement:
		e.linef("while %s:", e.expr(n.Test))
		e.suite(n.Body.Statements, nil)

	case *ast.ForStatement:
		// Python has no C-style for; lower it to init + while + update.
		if n.Init != nil {
			e.stmt(n.Init)
		}
		cond := "True"
		if n.Test != nil {
			cond = e.expr(n.Test)
		}
		e.linef("while %s:", cond)
		var tail func()
		if n.Update != nil {
			tail = func() { e.linef("%s", e.expr(n.Update)) }
		}
		e.suite(n.Body.Statements, tail)

	case *ast.ReturnStatement:
		if n.Value != nil {
			e.linef("return %s", e.expr(n.Value))
		} else {
			e.linef("return")
		}

	case *ast.BlockStatement:
		// No bare blocks in Python; inline the statements.
		for _, stmt := range n.Statements {
			e.stmt(stmt)
		}

	case *ast.TypeDeclaration:
		e.linef("class %s:", n.Name.Name)
		e.indent++
		if len(n.Fields) == 0 {
			e.linef("pass")
		}
		for _, f := range n.Fields {
			e.linef("%s: %s", f.Name.Name, pyTypeName(f.ValueType.Name))
		}
		e.indent--

	case *ast.ApiDefinition:
		e.linef("%s = [", strings.ToUpper(macro.SnakeCase(n.Name.Name)))
		e.indent++
		for _, r := range n.Routes {
			e.linef("(%q, %q, %s),", r.Method, r.Path, r.Handler.Name)
		}
		e.indent--
		e.linef("]")

	case *ast.ModuleDefinition:
		e.linef("# module %s", n.Name)

	case *ast.ImportStatement:
		names := make([]string, len(n.Names))
		for i, name := range n.Names {
			names[i] = name.Name
		}
		module := strings.ReplaceAll(n.From, "/", ".")
		e.linef("from %s import %s", module, strings.Join(names, ", "))

	case *ast.ExportStatement:
		// Python modules export everything importable; a bare export is
		// recorded as a note, a declaration is emitted as-is.
		if n.Declaration != nil {
			e.stmt(n.Declaration)
		} else if n.Name != nil {
			e.linef("# export: %s", n.Name.Name)
		}

	case *ast.MacroDefinition:
		e.ctx.Errorf(diag.CodeEmitUnsupported, n.GetSpan(),
			"macro %q reached the python emitter; expansion must run first", n.Name.Name)

	case *ast.MacroCall:
		e.ctx.Errorf(diag.CodeEmitUnsupported, n.GetSpan(),
			"unexpanded macro call %q reached the python emitter", n.Name.Name)
	}
}

func (e *pyEmitter) ifChain(n *ast.IfStatement) {
	e.linef("if %s:", e.expr(n.Test))
	e.suite(n.Then.Statements, nil)
	for n.Else != nil {
		if next, ok := n.Else.(*ast.IfStatement); ok {
			e.linef("elif %s:", e.expr(next.Test))
			e.suite(next.Then.Statements, nil)
			n = next
			continue
		}
		e.linef("else:")
		if blk, ok := n.Else.(*ast.BlockStatement); ok {
			e.suite(blk.Statements, nil)
		} else {
			e.suite([]ast.Statement{n.Else}, nil)
		}
		break
	}
}

func (e *pyEmitter) expr(x ast.Expression) string {
	switch n := x.(type) {
	case *ast.Identifier:
		return n.Name

	case *ast.Literal:
		return pyLiteral(n)

	case *ast.BinaryExpression:
		return fmt.Sprintf("%s %s %s", e.operand(n.Left), pyOperator(n.Operator), e.operand(n.Right))

	case *ast.UnaryExpression:
		if n.Operator == "!" {
			return "not " + e.operand(n.Operand)
		}
		return n.Operator + e.operand(n.Operand)

	case *ast.CallExpression:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = e.expr(a)
		}
		if pattern, obj := callPattern(n); pattern != "" {
			if tpl, ok := pyCalls[pattern]; ok {
				if mod, needs := pyCallImports[pattern]; needs {
					e.needs[mod] = true
				}
				objText := ""
				if obj != nil {
					objText = e.expr(obj)
				}
				return expandTemplate(tpl, objText, args)
			}
		}
		return fmt.Sprintf("%s(%s)", e.callee(n.Callee), strings.Join(args, ", "))

	case *ast.MemberExpression:
		objText := e.operand(n.Object)
		if n.Computed {
			return fmt.Sprintf("%s[%s]", objText, e.expr(n.Property))
		}
		name := propertyName(n)
		if tpl, ok := pyProps[name]; ok {
			return expandTemplate(tpl, objText, nil)
		}
		return fmt.Sprintf("%s.%s", objText, name)

	case *ast.ArrayLiteral:
		elems := make([]string, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = e.expr(el)
		}
		return "[" + strings.Join(elems, ", ") + "]"

	case *ast.MacroCall:
		e.ctx.Errorf(diag.CodeEmitUnsupported, n.GetSpan(),
			"unexpanded macro call %q reached the python emitter", n.Name.Name)
		return "None"
	}
	return ""
}

func (e *pyEmitter) operand(x ast.Expression) string {
	switch x.(type) {
	case *ast.BinaryExpression, *ast.UnaryExpression:
		return "(" + e.expr(x) + ")"
	}
	return e.expr(x)
}

// callee renders a call target without property bridging, which would
// otherwise stack a second argument list onto templates like json.
func (e *pyEmitter) callee(x ast.Expression) string {
	if m, ok := x.(*ast.MemberExpression); ok && !m.Computed {
		return fmt.Sprintf("%s.%s", e.operand(m.Object), propertyName(m))
	}
	return e.operand(x)
}

func pyOperator(op string) string {
	switch op {
	case "&&":
		return "and"
	case "||":
		return "or"
	}
	return op
}

func pyLiteral(l *ast.Literal) string {
	switch v := l.Value.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case float64:
		return formatNumber(v)
	case string:
		return quoteString(v)
	}
	return "None"
}

func pyTypeName(name string) string {
	switch name {
	case "string":
		return "str"
	case "number":
		return "float"
	case "boolean":
		return "bool"
	case "array":
		return "list"
	case "object":
		return "dict"
	case "any":
		return "object"
	case "void":
		return "None"
	}
	return name
}
