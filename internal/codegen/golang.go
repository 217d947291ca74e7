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

// Golang emits a single-package Go source file plus a go.mod. A module
// declaration in the source names the package; otherwise it is `main`.
type Golang struct{}

func init() { Register(&Golang{}) }

func (t *Golang) Name() string          { return "go" }
func (t *Golang) FileExtension() string { return ".go" }

func (t *Golang) Passes() []string { return []string{"rename", "typecheck", "hoist"} }

var goCalls = map[string]string{
	"print":         "fmt.Println({args})",
	"console.log":   "fmt.Println({args})",
	"console.error": "fmt.Fprintln(os.Stderr, {args})",
	"http.get":      "http.Get({args[0]})",
	"http.post":     "http.Post({args[0]}, \"application/json\", strings.NewReader({args[1]}))",
	"math.floor":    "math.Floor({args})",
	"math.ceil":     "math.Ceil({args})",
	"math.abs":      "math.Abs({args})",
	"math.sqrt":     "math.Sqrt({args})",
	"math.random":   "rand.Float64()",
}

var goCallImports = map[string][]string{
	"print":         {"fmt"},
	"console.log":   {"fmt"},
	"console.error": {"fmt", "os"},
	"http.get":      {"net/http"},
	"http.post":     {"net/http", "strings"},
	"math.floor":    {"math"},
	"math.ceil":     {"math"},
	"math.abs":      {"math"},
	"math.sqrt":     {"math"},
	"math.random":   {"math/rand"},
}

var goProps = map[string]string{
	"length": "len({object})",
}

func (t *Golang) CallTemplates() map[string]string     { return goCalls }
func (t *Golang) PropertyTemplates() map[string]string { return goProps }

func (t *Golang) Emit(prog *ast.Program, ctx *diag.Context) (string, error) {
	if err := guard(t, ctx); err != nil {
		return "", err
	}
	e := &goEmitter{ctx: ctx, pkg: "main", needs: make(map[string]bool)}

	// Declarations stay at the top level; loose imperative statements
	// are gathered into func main so the output is a legal Go shape.
	var deferred []ast.Statement
	for _, stmt := range prog.Body {
		if goTopLevel(stmt) {
			e.stmt(stmt)
		} else {
			deferred = append(deferred, stmt)
		}
	}
	if len(deferred) > 0 {
		e.linef("func main() {")
		e.indent++
		for _, stmt := range deferred {
			e.stmt(stmt)
		}
		e.indent--
		e.linef("}")
	}

	var out strings.Builder
	fmt.Fprintf(&out, "package %s\n\n", e.pkg)
	if len(e.needs) > 0 {
		paths := make([]string, 0, len(e.needs))
		for path := range e.needs {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		out.WriteString("import (\n")
		for _, path := range paths {
			fmt.Fprintf(&out, "\t%q\n", path)
		}
		out.WriteString(")\n\n")
	}
	if e.usesAPI {
		out.WriteString("type apiRoute struct {\n\tmethod  string\n\tpath    string\n\thandler any\n}\n\n")
	}
	out.WriteString(e.buf.String())
	return out.String(), nil
}

func (t *Golang) WriteProjectFiles(outDir, base string, info ProjectInfo) error {
	name := info.Name
	if name == "" {
		name = base
	}
	name = strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	content := fmt.Sprintf("module %s\n\ngo 1.23\n", name)
	if err := os.WriteFile(filepath.Join(outDir, "go.mod"), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write go.mod: %w", err)
	}
	return nil
}

type goEmitter struct {
	buf     strings.Builder
	indent  int
	ctx     *diag.Context
	pkg     string
	needs   map[string]bool
	usesAPI bool
}

// goTopLevel reports whether a statement may sit outside func main.
func goTopLevel(stmt ast.Statement) bool {
	switch s := stmt.(type) {
	case *ast.FunctionDeclaration, *ast.VariableDeclaration, *ast.TypeDeclaration,
		*ast.ApiDefinition, *ast.ModuleDefinition, *ast.ImportStatement, *ast.MacroDefinition:
		return true
	case *ast.ExportStatement:
		if s.Declaration != nil {
			return goTopLevel(s.Declaration)
		}
		return true
	}
	return false
}

func (e *goEmitter) linef(format string, args ...any) {
	e.buf.WriteString(strings.Repeat("\t", e.indent))
	fmt.Fprintf(&e.buf, format, args...)
	e.buf.WriteByte('\n')
}

func (e *goEmitter) block(b *ast.BlockStatement) {
	e.indent++
	for _, stmt := range b.Statements {
		e.stmt(stmt)
	}
	e.indent--
}

func (e *goEmitter) stmt(s ast.Statement) {
	switch n := s.(type) {
	case *ast.FunctionDeclaration:
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.Name.Name + " " + goTypeName(annotationName(p.TypeAnnotation))
		}
		ret := ""
		if n.ReturnType != nil && n.ReturnType.Name != "void" {
			ret = " " + goTypeName(n.ReturnType.Name)
		}
		e.linef("func %s(%s)%s {", n.Name.Name, strings.Join(params, ", "), ret)
		e.block(n.Body)
		e.linef("}")

	case *ast.VariableDeclaration:
		e.linef("%s", e.declaration(n))

	case *ast.ExpressionStatement:
		e.linef("%s", e.expr(n.Expression))

	case *ast.IfStatement:
		e.ifChain(n)

	case *ast.WhileStatement:
		e.linef("for %s {", e.expr(n.Test))
		e.block(n.Body)
		e.linef("}")

	case *ast.ForStatement:
		init := ""
		if n.Init != nil {
			init = e.forInit(n.Init)
		}
		e.linef("for %s; %s; %s {", init, e.optExpr(n.Test), e.optExpr(n.Update))
		e.block(n.Body)
		e.linef("}")

	case *ast.ReturnStatement:
		if n.Value != nil {
			e.linef("return %s", e.expr(n.Value))
		} else {
			e.linef("return")
		}

	case *ast.BlockStatement:
		e.linef("{")
		e.block(n)
		e.linef("}")

	case *ast.TypeDeclaration:
		e.linef("type %s struct {", n.Name.Name)
		e.indent++
		for _, f := range n.Fields {
			e.linef("%s %s", f.Name.Name, goTypeName(f.ValueType.Name))
		}
		e.indent--
		e.linef("}")

	case *ast.ApiDefinition:
		e.usesAPI = true
		e.linef("var %s = []apiRoute{", macro.CamelCase(n.Name.Name))
		e.indent++
		for _, r := range n.Routes {
			e.linef("{%q, %q, %s},", r.Method, r.Path, r.Handler.Name)
		}
		e.indent--
		e.linef("}")

	case *ast.ModuleDefinition:
		parts := strings.Split(n.Name, ".")
		e.pkg = macro.SnakeCase(parts[len(parts)-1])

	case *ast.ImportStatement:
		e.linef("// import %s from %q", importNames(n), n.From)

	case *ast.ExportStatement:
		// Go exports by capitalization; the declaration is emitted
		// unchanged and a bare export becomes a note.
		if n.Declaration != nil {
			e.stmt(n.Declaration)
		} else if n.Name != nil {
			e.linef("// export: %s", n.Name.Name)
		}

	case *ast.MacroDefinition:
		e.ctx.Errorf(diag.CodeEmitUnsupported, n.GetSpan(),
			"macro %q reached the go emitter; expansion must run first", n.Name.Name)

	case *ast.MacroCall:
		e.ctx.Errorf(diag.CodeEmitUnsupported, n.GetSpan(),
			"unexpanded macro call %q reached the go emitter", n.Name.Name)
	}
}

func (e *goEmitter) declaration(n *ast.VariableDeclaration) string {
	if n.Initializer == nil {
		return fmt.Sprintf("var %s %s", n.Name.Name, goTypeName(annotationName(n.TypeAnnotation)))
	}
	// const survives only for literal initializers; nil and computed
	// values are not Go constant expressions.
	if n.BindingKind == ast.BindConst {
		if lit, ok := n.Initializer.(*ast.Literal); ok && lit.Value != nil {
			return fmt.Sprintf("const %s = %s", n.Name.Name, e.expr(n.Initializer))
		}
	}
	if n.TypeAnnotation != nil {
		return fmt.Sprintf("var %s %s = %s", n.Name.Name, goTypeName(n.TypeAnnotation.Name), e.expr(n.Initializer))
	}
	// Short declarations are statement-level syntax; the top level
	// needs the var form.
	if e.indent == 0 {
		return fmt.Sprintf("var %s = %s", n.Name.Name, e.expr(n.Initializer))
	}
	return fmt.Sprintf("%s := %s", n.Name.Name, e.expr(n.Initializer))
}

func (e *goEmitter) ifChain(n *ast.IfStatement) {
	e.linef("if %s {", e.expr(n.Test))
	e.block(n.Then)
	for n.Else != nil {
		if next, ok := n.Else.(*ast.IfStatement); ok {
			e.linef("} else if %s {", e.expr(next.Test))
			e.block(next.Then)
			n = next
			continue
		}
		e.linef("} else {")
		if blk, ok := n.Else.(*ast.BlockStatement); ok {
			e.block(blk)
		} else {
			e.indent++
			e.stmt(n.Else)
			e.indent--
		}
		break
	}
	e.linef("}")
}

func (e *goEmitter) forInit(init ast.Statement) string {
	switch n := init.(type) {
	case *ast.VariableDeclaration:
		if n.Initializer != nil {
			return fmt.Sprintf("%s := %s", n.Name.Name, e.expr(n.Initializer))
		}
		return ""
	case *ast.ExpressionStatement:
		return e.expr(n.Expression)
	}
	return ""
}

func (e *goEmitter) optExpr(x ast.Expression) string {
	if x == nil {
		return ""
	}
	return e.expr(x)
}

func (e *goEmitter) expr(x ast.Expression) string {
	switch n := x.(type) {
	case *ast.Identifier:
		return n.Name

	case *ast.Literal:
		return goLiteral(n)

	case *ast.BinaryExpression:
		return fmt.Sprintf("%s %s %s", e.operand(n.Left), n.Operator, e.operand(n.Right))

	case *ast.UnaryExpression:
		return n.Operator + e.operand(n.Operand)

	case *ast.CallExpression:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = e.expr(a)
		}
		if pattern, obj := callPattern(n); pattern != "" {
			if tpl, ok := goCalls[pattern]; ok {
				for _, path := range goCallImports[pattern] {
					e.needs[path] = true
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
		if tpl, ok := goProps[name]; ok {
			return expandTemplate(tpl, objText, nil)
		}
		return fmt.Sprintf("%s.%s", objText, name)

	case *ast.ArrayLiteral:
		elems := make([]string, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = e.expr(el)
		}
		return "[]any{" + strings.Join(elems, ", ") + "}"

	case *ast.MacroCall:
		e.ctx.Errorf(diag.CodeEmitUnsupported, n.GetSpan(),
			"unexpanded macro call %q reached the go emitter", n.Name.Name)
		return "nil"
	}
	return ""
}

func (e *goEmitter) operand(x ast.Expression) string {
	switch x.(type) {
	case *ast.BinaryExpression, *ast.UnaryExpression:
		return "(" + e.expr(x) + ")"
	}
	return e.expr(x)
}

// callee renders a call target without property bridging, which would
// otherwise wrap a bridged property in a second argument list.
func (e *goEmitter) callee(x ast.Expression) string {
	if m, ok := x.(*ast.MemberExpression); ok && !m.Computed {
		return fmt.Sprintf("%s.%s", e.operand(m.Object), propertyName(m))
	}
	return e.operand(x)
}

func goLiteral(l *ast.Literal) string {
	switch v := l.Value.(type) {
	case nil:
		return "nil"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(v)
	case string:
		return quoteString(v)
	}
	return "nil"
}

func goTypeName(name string) string {
	switch name {
	case "number":
		return "float64"
	case "string":
		return "string"
	case "boolean":
		return "bool"
	case "array":
		return "[]any"
	case "object":
		return "map[string]any"
	case "any", "":
		return "any"
	}
	return name
}

func annotationName(t *ast.TypeAnnotation) string {
	if t == nil {
		return ""
	}
	return t.Name
}

func importNames(n *ast.ImportStatement) string {
	names := make([]string, len(n.Names))
	for i, name := range n.Names {
		names[i] = name.Name
	}
	return strings.Join(names, ", ")
}
