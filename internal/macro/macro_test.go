package macro

import (
	"strings"
	"testing"

	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/diag"
	"github.com/Vantio-Games/lingual/internal/parser"
)

func expand(t *testing.T, source string) (*ast.Program, *diag.Context) {
	t.Helper()
	prog, err := parser.ParseSource(source)
	if err != nil {
		t.Fatalf("ParseSource error: %v", err)
	}
	ctx := diag.NewContext("javascript")
	return NewExpander(ctx).ExpandProgram(prog), ctx
}

func countKind(prog *ast.Program, kind ast.NodeKind) int {
	return ast.Count(prog, func(n ast.Node) bool { return n.Kind() == kind })
}

func hasErrorCode(ctx *diag.Context, code diag.Code) bool {
	for _, d := range ctx.Errors {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestBlockMacroExpansion(t *testing.T) {
	source := `macro greet(name)
	print(name);
	print("---");
end
@greet("world");`

	prog, ctx := expand(t, source)
	if ctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}
	if countKind(prog, ast.KindMacroDefinition) != 0 {
		t.Error("macro definitions should be removed from the tree")
	}
	if countKind(prog, ast.KindMacroCall) != 0 {
		t.Error("macro calls should be fully expanded")
	}
	if len(prog.Body) != 2 {
		t.Fatalf("body statement count wrong. expected=2, got=%d", len(prog.Body))
	}

	first, ok := prog.Body[0].(*ast.ExpressionStatement)
	if !ok {
		t.Fatalf("body[0] is %T, want *ast.ExpressionStatement", prog.Body[0])
	}
	if got := first.Expression.String(); got != `print("world")` {
		t.Errorf("body[0] wrong. expected=%q, got=%q", `print("world")`, got)
	}
	if got := prog.Body[1].String(); got != `print("---")` {
		t.Errorf("body[1] wrong. expected=%q, got=%q", `print("---")`, got)
	}
	if _, registered := ctx.Macros["greet"]; !registered {
		t.Error("definition should be registered on the context")
	}
}

func TestSubstitutionReachesAllExpressionPositions(t *testing.T) {
	source := `macro touch(v)
	v = v + 1;
	use(v, v * 2);
	v.field(v[0]);
end
@touch(target);`

	prog, ctx := expand(t, source)
	if ctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}

	rendered := make([]string, len(prog.Body))
	for i, stmt := range prog.Body {
		rendered[i] = stmt.String()
	}
	expected := []string{
		"(target = (target + 1))",
		"use(target, (target * 2))",
		"target.field(target[0])",
	}
	for i, want := range expected {
		if rendered[i] != want {
			t.Errorf("body[%d] wrong. expected=%q, got=%q", i, want, rendered[i])
		}
	}
}

func TestSubstitutionIsNotHygienic(t *testing.T) {
	source := `macro swap(a, b)
	let tmp = a;
	a = b;
	b = tmp;
end
@swap(x, tmp);`

	prog, ctx := expand(t, source)
	if ctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}
	if len(prog.Body) != 3 {
		t.Fatalf("body statement count wrong. expected=3, got=%d", len(prog.Body))
	}

	// The body's `tmp` binding is not alpha-renamed, so the call-site
	// argument `tmp` collides with it.
	decl, ok := prog.Body[0].(*ast.VariableDeclaration)
	if !ok || decl.Name.Name != "tmp" {
		t.Fatalf("body[0] should declare tmp, got %s", prog.Body[0])
	}
	if got := prog.Body[2].String(); got != "(tmp = tmp)" {
		t.Errorf("body[2] wrong. expected=%q, got=%q", "(tmp = tmp)", got)
	}
}

func TestArityMismatchDropsCallSite(t *testing.T) {
	source := `macro pair(a, b)
	use(a, b);
end
before();
@pair(1);
after();`

	prog, ctx := expand(t, source)
	if !hasErrorCode(ctx, diag.CodeMacroArity) {
		t.Fatalf("expected MACRO_ARITY error, got %v", ctx.Errors)
	}
	if len(prog.Body) != 2 {
		t.Fatalf("call site should be dropped. expected=2 statements, got=%d", len(prog.Body))
	}
	if prog.Body[0].String() != "before()" || prog.Body[1].String() != "after()" {
		t.Errorf("surrounding statements should survive, got %s / %s", prog.Body[0], prog.Body[1])
	}
	if !strings.Contains(ctx.Errors[0].Message, "expects 2 arguments, got 1") {
		t.Errorf("arity message wrong: %q", ctx.Errors[0].Message)
	}
}

func TestUndefinedMacroDropsCallSite(t *testing.T) {
	prog, ctx := expand(t, "@missing(1);\nkeep();")
	if !hasErrorCode(ctx, diag.CodeMacroUndefined) {
		t.Fatalf("expected MACRO_UNDEFINED error, got %v", ctx.Errors)
	}
	if len(prog.Body) != 1 || prog.Body[0].String() != "keep()" {
		t.Fatalf("only the surrounding statement should survive, got %d statements", len(prog.Body))
	}
}

func TestMacroExpandingToMacro(t *testing.T) {
	source := `macro inner(x)
	print(x);
end
macro outer(y)
	@inner(y);
	@inner(y);
end
@outer("twice");`

	prog, ctx := expand(t, source)
	if ctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}
	if countKind(prog, ast.KindMacroCall) != 0 {
		t.Error("nested macro calls should expand to fixpoint")
	}
	if len(prog.Body) != 2 {
		t.Fatalf("body statement count wrong. expected=2, got=%d", len(prog.Body))
	}
	for i := range prog.Body {
		if got := prog.Body[i].String(); got != `print("twice")` {
			t.Errorf("body[%d] wrong. expected=%q, got=%q", i, `print("twice")`, got)
		}
	}
}

func TestRecursiveMacroHitsPassCap(t *testing.T) {
	source := `macro loop()
	@loop();
end
@loop();`

	_, ctx := expand(t, source)
	if !hasErrorCode(ctx, diag.CodeMacroDepth) {
		t.Fatalf("expected MACRO_DEPTH error, got %v", ctx.Errors)
	}
}

func TestInlineBuiltinInExpression(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{`let a = @uppercase("users");`, "USERS"},
		{`let b = @lowercase("USERS");`, "users"},
		{`let c = @camelCase("user_profile");`, "userProfile"},
		{`let d = @PascalCase("user_profile");`, "UserProfile"},
		{`let e = @snake_case("userProfile");`, "user_profile"},
		{`let f = @kebab_case("userProfile");`, "user-profile"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			prog, ctx := expand(t, tt.source)
			if ctx.HasErrors() {
				t.Fatalf("unexpected errors: %v", ctx.Errors)
			}
			decl := prog.Body[0].(*ast.VariableDeclaration)
			lit, ok := decl.Initializer.(*ast.Literal)
			if !ok {
				t.Fatalf("initializer is %T, want *ast.Literal", decl.Initializer)
			}
			if lit.Value != tt.expected {
				t.Errorf("value wrong. expected=%q, got=%v", tt.expected, lit.Value)
			}
		})
	}
}

func TestInlineBuiltinsCompose(t *testing.T) {
	prog, ctx := expand(t, `let x = @uppercase(@kebab_case("userProfile"));`)
	if ctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}
	decl := prog.Body[0].(*ast.VariableDeclaration)
	lit := decl.Initializer.(*ast.Literal)
	if lit.Value != "USER-PROFILE" {
		t.Errorf("value wrong. expected=%q, got=%v", "USER-PROFILE", lit.Value)
	}
}

func TestInlineNeedsLiteralText(t *testing.T) {
	_, ctx := expand(t, `let x = @uppercase(name);`)
	if !hasErrorCode(ctx, diag.CodeMacroArgument) {
		t.Fatalf("expected MACRO_ARGUMENT error, got %v", ctx.Errors)
	}

	_, ctx = expand(t, `let x = @uppercase(42);`)
	if !hasErrorCode(ctx, diag.CodeMacroArgument) {
		t.Fatalf("expected MACRO_ARGUMENT error for number, got %v", ctx.Errors)
	}

	_, ctx = expand(t, `let x = @uppercase("a", "b");`)
	if !hasErrorCode(ctx, diag.CodeMacroArgument) {
		t.Fatalf("expected MACRO_ARGUMENT error for extra args, got %v", ctx.Errors)
	}
}

func TestRegisterInline(t *testing.T) {
	prog, err := parser.ParseSource(`let greeting = @shout("hi");`)
	if err != nil {
		t.Fatalf("ParseSource error: %v", err)
	}
	ctx := diag.NewContext("javascript")
	exp := NewExpander(ctx)
	exp.RegisterInline("shout", func(args []string) (string, error) {
		return strings.ToUpper(args[0]) + "!", nil
	})

	result := exp.ExpandProgram(prog)
	if ctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}
	decl := result.Body[0].(*ast.VariableDeclaration)
	lit := decl.Initializer.(*ast.Literal)
	if lit.Value != "HI!" {
		t.Errorf("value wrong. expected=%q, got=%v", "HI!", lit.Value)
	}
}

func TestBlockMacroInExpressionPosition(t *testing.T) {
	source := `macro double(x)
	x * 2;
end
let y = @double(3) + 1;`

	prog, ctx := expand(t, source)
	if ctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}
	decl := prog.Body[0].(*ast.VariableDeclaration)
	if got := decl.Initializer.String(); got != "((3 * 2) + 1)" {
		t.Errorf("initializer wrong. expected=%q, got=%q", "((3 * 2) + 1)", got)
	}
}

func TestMultiStatementMacroInExpressionPosition(t *testing.T) {
	source := `macro two()
	first();
	second();
end
let y = @two();`

	_, ctx := expand(t, source)
	if !hasErrorCode(ctx, diag.CodeMacroExpression) {
		t.Fatalf("expected MACRO_EXPRESSION error, got %v", ctx.Errors)
	}
}

func TestMacroRedefinitionWarns(t *testing.T) {
	source := `macro m()
	old();
end
macro m()
	new_version();
end
@m();`

	prog, ctx := expand(t, source)
	if len(ctx.Warnings) == 0 || ctx.Warnings[0].Code != diag.CodeMacroRedefined {
		t.Fatalf("expected MACRO_REDEFINED warning, got %v", ctx.Warnings)
	}
	if len(prog.Body) != 1 || prog.Body[0].String() != "new_version()" {
		t.Errorf("later definition should win, got %v", prog.Body)
	}
}

func TestExportedMacroCallExpandsToExports(t *testing.T) {
	source := `macro decls()
	function a() { }
	function b() { }
end
export @decls();`

	prog, ctx := expand(t, source)
	if ctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}
	if len(prog.Body) != 2 {
		t.Fatalf("body statement count wrong. expected=2, got=%d", len(prog.Body))
	}
	for i, stmt := range prog.Body {
		exp, ok := stmt.(*ast.ExportStatement)
		if !ok {
			t.Fatalf("body[%d] is %T, want *ast.ExportStatement", i, stmt)
		}
		if _, ok := exp.Declaration.(*ast.FunctionDeclaration); !ok {
			t.Errorf("body[%d] export payload is %T", i, exp.Declaration)
		}
	}
}

func TestExpansionInsideNestedBlocks(t *testing.T) {
	source := `macro note(m)
	log(m);
end
function run() {
	if (ready) {
		@note("go");
	}
	while (busy) {
		@note("wait");
	}
}`

	prog, ctx := expand(t, source)
	if ctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}
	if countKind(prog, ast.KindMacroCall) != 0 {
		t.Error("nested macro calls should be expanded")
	}
	calls := ast.Count(prog, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpression)
		if !ok {
			return false
		}
		callee, ok := call.Callee.(*ast.Identifier)
		return ok && callee.Name == "log"
	})
	if calls != 2 {
		t.Errorf("expected 2 expanded log calls, got %d", calls)
	}
}

func TestInputTreeIsNotMutated(t *testing.T) {
	source := `macro greet(name)
	print(name);
end
@greet("world");`

	prog, err := parser.ParseSource(source)
	if err != nil {
		t.Fatalf("ParseSource error: %v", err)
	}
	before := countKind(prog, ast.KindMacroDefinition)

	NewExpander(diag.NewContext("javascript")).ExpandProgram(prog)

	if got := countKind(prog, ast.KindMacroDefinition); got != before {
		t.Errorf("input tree changed: definitions %d -> %d", before, got)
	}
	if len(prog.Body) != 2 {
		t.Errorf("input body length changed: %d", len(prog.Body))
	}
}
