package codegen

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/diag"
)

// JavaScript emits ES module source plus a package.json manifest.
type JavaScript struct{}

func init() { Register(&JavaScript{}) }

func (t *JavaScript) Name() string          { return "javascript" }
func (t *JavaScript) FileExtension() string { return ".js" }

func (t *JavaScript) Passes() []string { return []string{"rename", "typecheck", "hoist"} }

var jsCalls = map[string]string{
	"print":         "console.log({args})",
	"console.log":   "console.log({args})",
	"console.error": "console.error({args})",
	"http.get":      "fetch({args[0]})",
	"http.post":     "fetch({args[0]}, { method: \"POST\", body: {args[1]} })",
	"math.floor":    "Math.floor({args})",
	"math.ceil":     "Math.ceil({args})",
	"math.abs":      "Math.abs({args})",
	"math.sqrt":     "Math.sqrt({args})",
	"math.random":   "Math.random()",
}

var jsProps = map[string]string{
	"length": "{object}.length",
	"json":   "{object}.json()",
}

func (t *JavaScript) CallTemplates() map[string]string     { return jsCalls }
func (t *JavaScript) PropertyTemplates() map[string]string { return jsProps }

func (t *JavaScript) Emit(prog *ast.Program, ctx *diag.Context) (string, error) {
	if err := guard(t, ctx); err != nil {
		return "", err
	}
	e := &jsEmitter{ctx: ctx}
	for _, stmt := range prog.Body {
		e.stmt(stmt)
	}
	return e.buf.String(), nil
}

type packageJSON struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Main        string `json:"main"`
}

func (t *JavaScript) WriteProjectFiles(outDir, base string, info ProjectInfo) error {
	manifest := packageJSON{
		Name:        info.Name,
		Version:     info.Version,
		Description: info.Description,
		Type:        "module",
		Main:        base + t.FileExtension(),
	}
	if manifest.Name == "" {
		manifest.Name = base
	}
	if manifest.Version == "" {
		manifest.Version = "0.1.0"
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode package.json: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(outDir, "package.json"), data, 0o644); err != nil {
		return fmt.Errorf("write package.json: %w", err)
	}
	return nil
}

type jsEmitter struct {
	buf    strings.Builder
	indent int
	prefix string
	ctx    *diag.Context
}

func (e *jsEmitter) linef(format string, args ...any) {
	e.buf.WriteString(strings.Repeat("  ", e.indent))
	if e.prefix != "" {
		e.buf.WriteString(e.prefix)
		e.prefix = ""
	}
	fmt.Fprintf(&e.buf, format, args...)
	e.buf.WriteByte('\n')
}

func (e *jsEmitter) block(b *ast.BlockStatement) {
	e.indent++
	for _, stmt := range b.Statements {
		e.stmt(stmt)
	}
	e.indent--
}

func (e *jsEmitter) stmt(s ast.Statement) {
	switch n := s.(type) {
	case *ast.FunctionDeclaration:
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.Name.Name
		}
		e.linef("function %s(%s) {", n.Name.Name, strings.Join(params, ", "))
		e.block(n.Body)
		e.linef("}")

	case *ast.VariableDeclaration:
		if n.Initializer != nil {
			e.linef("%s %s = %s;", n.BindingKind, n.Name.Name, e.expr(n.Initializer))
		} else {
			e.linef("%s %s;", n.BindingKind, n.Name.Name)
		}

	case *ast.ExpressionStatement:
		e.linef("%s;", e.expr(n.Expression))

	case *ast.IfStatement:
		e.ifChain(n)

	case *ast.WhileStatement:
		e.linef("while (%s) {", e.expr(n.Test))
		e.block(n.Body)
		e.linef("}")

	case *ast.ForStatement:
		e.linef("for (%s; %s; %s) {", e.forInit(n.Init), e.optExpr(n.Test), e.optExpr(n.Update))
		e.block(n.Body)
		e.linef("}")

	case *ast.ReturnStatement:
		if n.Value != nil {
			e.linef("return %s;", e.expr(n.Value))
		} else {
			e.linef("return;")
		}

	case *ast.BlockStatement:
		e.linef("{")
		e.block(n)
		e.linef("}")

	case *ast.TypeDeclaration:
		e.linef("/**")
		e.linef(" * @typedef {Object} %s", n.Name.Name)
		for _, f := range n.Fields {
			e.linef(" * @property {%s} %s", jsTypeName(f.ValueType.Name), f.Name.Name)
		}
		e.linef(" */")

	case *ast.ApiDefinition:
		e.linef("const %s = [", n.Name.Name)
		e.indent++
		for _, r := range n.Routes {
			e.linef("{ method: %q, path: %q, handler: %s },", r.Method, r.Path, r.Handler.Name)
		}
		e.indent--
		e.linef("];")

	case *ast.ModuleDefinition:
		e.linef("// module %s", n.Name)

	case *ast.ImportStatement:
		names := make([]string, len(n.Names))
		for i, name := range n.Names {
			names[i] = name.Name
		}
		e.linef("import { %s } from %q;", strings.Join(names, ", "), n.From)

	case *ast.ExportStatement:
		if n.Declaration != nil {
			e.prefix = "export "
			e.stmt(n.Declaration)
		} else if n.Name != nil {
			e.linef("export { %s };", n.Name.Name)
		}

	case *ast.MacroDefinition:
		e.ctx.Errorf(diag.CodeEmitUnsupported, n.GetSpan(),
			"macro %q reached the javascript emitter; expansion must run first", n.Name.Name)

	case *ast.MacroCall:
		e.ctx.Errorf(diag.CodeEmitUnsupported, n.GetSpan(),
			"unexpanded macro call %q reached the javascript emitter", n.Name.Name)
	}
}

func (e *jsEmitter) ifChain(n *ast.IfStatement) {
	e.linef("if (%s) {", e.expr(n.Test))
	e.block(n.Then)
	for n.Else != nil {
		if next, ok := n.Else.(*ast.IfStatement); ok {
			e.linef("} else if (%s) {", e.expr(next.Test))
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

// forInit renders a for-loop init clause inline, without a terminator.
func (e *jsEmitter) forInit(init ast.Statement) string {
	switch n := init.(type) {
	case nil:
		return ""
	case *ast.VariableDeclaration:
		if n.Initializer != nil {
			return fmt.Sprintf("%s %s = %s", n.BindingKind, n.Name.Name, e.expr(n.Initializer))
		}
		return fmt.Sprintf("%s %s", n.BindingKind, n.Name.Name)
	case *ast.ExpressionStatement:
		return e.expr(n.Expression)
	}
	return ""
}

func (e *jsEmitter) optExpr(x ast.Expression) string {
	if x == nil {
		return ""
	}
	return e.expr(x)
}

func (e *jsEmitter) expr(x ast.Expression) string {
	switch n := x.(type) {
	case *ast.Identifier:
		return n.Name

	case *ast.Literal:
		return jsLiteral(n)

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
			if tpl, ok := jsCalls[pattern]; ok {
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
		if tpl, ok := jsProps[name]; ok {
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
			"unexpanded macro call %q reached the javascript emitter", n.Name.Name)
		return "null"
	}
	return ""
}

// operand parenthesizes compound children so emitted nesting matches the
// tree regardless of target-language precedence.
func (e *jsEmitter) operand(x ast.Expression) string {
	switch x.(type) {
	case *ast.BinaryExpression, *ast.UnaryExpression:
		return "(" + e.expr(x) + ")"
	}
	return e.expr(x)
}

// callee renders a call target. Property templates must not apply here,
// or a bridged property like json would pick up a second argument list.
func (e *jsEmitter) callee(x ast.Expression) string {
	if m, ok := x.(*ast.MemberExpression); ok && !m.Computed {
		return fmt.Sprintf("%s.%s", e.operand(m.Object), propertyName(m))
	}
	return e.operand(x)
}

func jsLiteral(l *ast.Literal) string {
	switch v := l.Value.(type) {
	case nil:
		return "null"
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
	return "null"
}

func jsTypeName(name string) string {
	switch name {
	case "number", "string", "boolean", "void":
		return name
	case "array":
		return "Array"
	case "object":
		return "Object"
	case "any":
		return "*"
	}
	return name
}
