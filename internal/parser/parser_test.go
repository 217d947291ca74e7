package parser

import (
	"strings"
	"testing"

	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/lexer"
)

func parseOne(t *testing.T, source string) ast.Statement {
	t.Helper()
	prog, err := ParseSource(source)
	if err != nil {
		t.Fatalf("ParseSource(%q) error: %v", source, err)
	}
	if len(prog.Body) != 1 {
		t.Fatalf("program has %d statements, want 1", len(prog.Body))
	}
	return prog.Body[0]
}

func exprOf(t *testing.T, source string) ast.Expression {
	t.Helper()
	first := parseOne(t, source)
	stmt, ok := first.(*ast.ExpressionStatement)
	if !ok {
		t.Fatalf("statement is %T, want *ast.ExpressionStatement", first)
	}
	return stmt.Expression
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1 + 2 * 3;", "(1 + (2 * 3))"},
		{"1 * 2 + 3;", "((1 * 2) + 3)"},
		{"1 + 2 + 3;", "((1 + 2) + 3)"},
		{"1 - 2 - 3;", "((1 - 2) - 3)"},
		{"1 + 2 == 3 * 1;", "((1 + 2) == (3 * 1))"},
		{"a || b && c;", "(a || (b && c))"},
		{"a == b || c != d;", "((a == b) || (c != d))"},
		{"1 < 2 == true;", "((1 < 2) == true)"},
		{"-a * b;", "((-a) * b)"},
		{"!a && b;", "((!a) && b)"},
		{"!!ok;", "(!(!ok))"},
		{"-(1 + 2);", "(-(1 + 2))"},
		{"a + b % c;", "(a + (b % c))"},
		{"1 <= 2 && 3 >= 2;", "((1 <= 2) && (3 >= 2))"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr := exprOf(t, tt.input)
			if got := expr.String(); got != tt.expected {
				t.Errorf("expression wrong. expected=%q, got=%q", tt.expected, got)
			}
		})
	}
}

func TestAssignmentIsRightAssociative(t *testing.T) {
	expr := exprOf(t, "a = b = 1;")
	if got := expr.String(); got != "(a = (b = 1))" {
		t.Fatalf("expression wrong. expected=%q, got=%q", "(a = (b = 1))", got)
	}

	compound := exprOf(t, "total += x * 2;")
	bin, ok := compound.(*ast.BinaryExpression)
	if !ok {
		t.Fatalf("expression is %T, want *ast.BinaryExpression", compound)
	}
	if bin.Operator != "+=" {
		t.Errorf("operator wrong. expected=%q, got=%q", "+=", bin.Operator)
	}
}

func TestFunctionDeclaration(t *testing.T) {
	source := `function add(a: number, b: number): number { return a + b; }`

	first := parseOne(t, source)
	fn, ok := first.(*ast.FunctionDeclaration)
	if !ok {
		t.Fatalf("statement is %T, want *ast.FunctionDeclaration", first)
	}

	if fn.Name.Name != "add" {
		t.Errorf("name wrong. expected=%q, got=%q", "add", fn.Name.Name)
	}
	if len(fn.Params) != 2 {
		t.Fatalf("param count wrong. expected=2, got=%d", len(fn.Params))
	}
	for i, want := range []string{"a", "b"} {
		param := fn.Params[i]
		if param.Name.Name != want {
			t.Errorf("params[%d] name wrong. expected=%q, got=%q", i, want, param.Name.Name)
		}
		if param.TypeAnnotation == nil || param.TypeAnnotation.Name != "number" {
			t.Errorf("params[%d] type annotation wrong, got %v", i, param.TypeAnnotation)
		}
	}
	if fn.ReturnType == nil || fn.ReturnType.Name != "number" {
		t.Fatalf("return type wrong, got %v", fn.ReturnType)
	}
	if len(fn.Body.Statements) != 1 {
		t.Fatalf("body statement count wrong. expected=1, got=%d", len(fn.Body.Statements))
	}

	ret, ok := fn.Body.Statements[0].(*ast.ReturnStatement)
	if !ok {
		t.Fatalf("body statement is %T, want *ast.ReturnStatement", fn.Body.Statements[0])
	}
	bin, ok := ret.Value.(*ast.BinaryExpression)
	if !ok {
		t.Fatalf("return value is %T, want *ast.BinaryExpression", ret.Value)
	}
	if bin.Operator != "+" {
		t.Errorf("operator wrong. expected=%q, got=%q", "+", bin.Operator)
	}
	if left, ok := bin.Left.(*ast.Identifier); !ok || left.Name != "a" {
		t.Errorf("left operand wrong, got %s", bin.Left)
	}
	if right, ok := bin.Right.(*ast.Identifier); !ok || right.Name != "b" {
		t.Errorf("right operand wrong, got %s", bin.Right)
	}
}

func TestFnKeywordAlias(t *testing.T) {
	fn, ok := parseOne(t, "fn main() { }").(*ast.FunctionDeclaration)
	if !ok || fn.Name.Name != "main" {
		t.Fatalf("fn alias not parsed, got %v", fn)
	}
	if fn.ReturnType != nil {
		t.Errorf("return type should be nil, got %v", fn.ReturnType)
	}
}

func TestVariableDeclarations(t *testing.T) {
	tests := []struct {
		input       string
		bindingKind ast.BindingKind
		name        string
		hasType     bool
		hasInit     bool
	}{
		{"var a;", ast.BindVar, "a", false, false},
		{"let x = 1 + 2;", ast.BindLet, "x", false, true},
		{"const msg: string = \"hi\";", ast.BindConst, "msg", true, true},
		{"let n: number;", ast.BindLet, "n", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			decl, ok := parseOne(t, tt.input).(*ast.VariableDeclaration)
			if !ok {
				t.Fatalf("statement is not a variable declaration")
			}
			if decl.BindingKind != tt.bindingKind {
				t.Errorf("binding kind wrong. expected=%v, got=%v", tt.bindingKind, decl.BindingKind)
			}
			if decl.Name.Name != tt.name {
				t.Errorf("name wrong. expected=%q, got=%q", tt.name, decl.Name.Name)
			}
			if (decl.TypeAnnotation != nil) != tt.hasType {
				t.Errorf("type annotation presence wrong. expected=%v", tt.hasType)
			}
			if (decl.Initializer != nil) != tt.hasInit {
				t.Errorf("initializer presence wrong. expected=%v", tt.hasInit)
			}
		})
	}
}

func TestIfElseChain(t *testing.T) {
	source := `if (a < b) { return a; } else if (a > b) { return b; } else { return 0; }`

	stmt, ok := parseOne(t, source).(*ast.IfStatement)
	if !ok {
		t.Fatal("statement is not an if statement")
	}
	if stmt.Then == nil || len(stmt.Then.Statements) != 1 {
		t.Fatal("then branch wrong")
	}

	elseIf, ok := stmt.Else.(*ast.IfStatement)
	if !ok {
		t.Fatalf("else branch is %T, want *ast.IfStatement", stmt.Else)
	}
	if _, ok := elseIf.Else.(*ast.BlockStatement); !ok {
		t.Fatalf("final else is %T, want *ast.BlockStatement", elseIf.Else)
	}
}

func TestLoops(t *testing.T) {
	while, ok := parseOne(t, "while (i < 10) { i = i + 1; }").(*ast.WhileStatement)
	if !ok {
		t.Fatal("while statement not parsed")
	}
	if while.Test.String() != "(i < 10)" {
		t.Errorf("while test wrong, got %q", while.Test.String())
	}

	forStmt, ok := parseOne(t, "for (let i = 0; i < 10; i += 1) { sum += i; }").(*ast.ForStatement)
	if !ok {
		t.Fatal("for statement not parsed")
	}
	if _, ok := forStmt.Init.(*ast.VariableDeclaration); !ok {
		t.Errorf("for init is %T, want *ast.VariableDeclaration", forStmt.Init)
	}
	if forStmt.Test == nil || forStmt.Update == nil {
		t.Error("for test/update missing")
	}

	empty, ok := parseOne(t, "for (;;) { }").(*ast.ForStatement)
	if !ok {
		t.Fatal("empty for statement not parsed")
	}
	if empty.Init != nil || empty.Test != nil || empty.Update != nil {
		t.Error("empty for clauses should all be nil")
	}
}

func TestPostfixChains(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"user.name;", "user.name"},
		{"a.b.c;", "a.b.c"},
		{"items[0];", "items[0]"},
		{"rows[i + 1];", "rows[(i + 1)]"},
		{"f(1, 2);", "f(1, 2)"},
		{"obj.method(x)(y);", "obj.method(x)(y)"},
		{"list[0].name;", "list[0].name"},
		{"console.log(\"hi\");", `console.log("hi")`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr := exprOf(t, tt.input)
			if got := expr.String(); got != tt.expected {
				t.Errorf("expression wrong. expected=%q, got=%q", tt.expected, got)
			}
		})
	}
}

func TestArrayLiterals(t *testing.T) {
	arr, ok := exprOf(t, "[1, 2, 3];").(*ast.ArrayLiteral)
	if !ok {
		t.Fatal("array literal not parsed")
	}
	if len(arr.Elements) != 3 {
		t.Fatalf("element count wrong. expected=3, got=%d", len(arr.Elements))
	}

	empty, ok := exprOf(t, "[];").(*ast.ArrayLiteral)
	if !ok || len(empty.Elements) != 0 {
		t.Fatal("empty array literal not parsed")
	}
}

func TestLiteralValues(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{"42;", 42.0},
		{"3.14;", 3.14},
		{`"text";`, "text"},
		{"true;", true},
		{"false;", false},
		{"null;", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lit, ok := exprOf(t, tt.input).(*ast.Literal)
			if !ok {
				t.Fatal("literal not parsed")
			}
			if lit.Value != tt.expected {
				t.Errorf("value wrong. expected=%v, got=%v", tt.expected, lit.Value)
			}
		})
	}
}

func TestTypeDeclaration(t *testing.T) {
	source := `type User { name: string; age: number }`

	decl, ok := parseOne(t, source).(*ast.TypeDeclaration)
	if !ok {
		t.Fatal("type declaration not parsed")
	}
	if decl.Name.Name != "User" {
		t.Errorf("name wrong. expected=%q, got=%q", "User", decl.Name.Name)
	}
	if len(decl.Fields) != 2 {
		t.Fatalf("field count wrong. expected=2, got=%d", len(decl.Fields))
	}
	if decl.Fields[0].Name.Name != "name" || decl.Fields[0].ValueType.Name != "string" {
		t.Errorf("fields[0] wrong, got %s", decl.Fields[0])
	}
	if decl.Fields[1].Name.Name != "age" || decl.Fields[1].ValueType.Name != "number" {
		t.Errorf("fields[1] wrong, got %s", decl.Fields[1])
	}
}

func TestMacroDefinitionAndCall(t *testing.T) {
	source := `macro log_twice(msg)
	print(msg);
	print(msg);
end`

	def, ok := parseOne(t, source).(*ast.MacroDefinition)
	if !ok {
		t.Fatal("macro definition not parsed")
	}
	if def.Name.Name != "log_twice" {
		t.Errorf("name wrong. expected=%q, got=%q", "log_twice", def.Name.Name)
	}
	if len(def.Params) != 1 || def.Params[0].Name != "msg" {
		t.Fatalf("params wrong, got %v", def.Params)
	}
	if len(def.Body) != 2 {
		t.Fatalf("body statement count wrong. expected=2, got=%d", len(def.Body))
	}

	call, ok := parseOne(t, `@log_twice("hello");`).(*ast.MacroCall)
	if !ok {
		t.Fatal("macro call statement not parsed")
	}
	if call.Name.Name != "log_twice" {
		t.Errorf("call name wrong. expected=%q, got=%q", "log_twice", call.Name.Name)
	}
	if len(call.Args) != 1 {
		t.Fatalf("arg count wrong. expected=1, got=%d", len(call.Args))
	}
}

func TestMacroCallInExpression(t *testing.T) {
	decl, ok := parseOne(t, `let label = @uppercase("users");`).(*ast.VariableDeclaration)
	if !ok {
		t.Fatal("declaration not parsed")
	}
	call, ok := decl.Initializer.(*ast.MacroCall)
	if !ok {
		t.Fatalf("initializer is %T, want *ast.MacroCall", decl.Initializer)
	}
	if call.Name.Name != "uppercase" {
		t.Errorf("name wrong. expected=%q, got=%q", "uppercase", call.Name.Name)
	}
}

func TestModuleImportExport(t *testing.T) {
	mod, ok := parseOne(t, "module app.services.auth;").(*ast.ModuleDefinition)
	if !ok {
		t.Fatal("module definition not parsed")
	}
	if mod.Name != "app.services.auth" {
		t.Errorf("module name wrong. expected=%q, got=%q", "app.services.auth", mod.Name)
	}

	imp, ok := parseOne(t, `import encode, decode from "codec";`).(*ast.ImportStatement)
	if !ok {
		t.Fatal("import statement not parsed")
	}
	if len(imp.Names) != 2 || imp.Names[0].Name != "encode" || imp.Names[1].Name != "decode" {
		t.Fatalf("import names wrong, got %v", imp.Names)
	}
	if imp.From != "codec" {
		t.Errorf("import source wrong. expected=%q, got=%q", "codec", imp.From)
	}

	exp, ok := parseOne(t, "export function greet() { }").(*ast.ExportStatement)
	if !ok {
		t.Fatal("export statement not parsed")
	}
	if _, ok := exp.Declaration.(*ast.FunctionDeclaration); !ok {
		t.Fatalf("export declaration is %T, want *ast.FunctionDeclaration", exp.Declaration)
	}

	named, ok := parseOne(t, "export greet;").(*ast.ExportStatement)
	if !ok || named.Name == nil || named.Name.Name != "greet" {
		t.Fatal("named export not parsed")
	}
}

func TestApiDefinition(t *testing.T) {
	source := `api Users {
	get "/users" -> listUsers;
	post "/users" -> createUser;
}`

	def, ok := parseOne(t, source).(*ast.ApiDefinition)
	if !ok {
		t.Fatal("api definition not parsed")
	}
	if def.Name.Name != "Users" {
		t.Errorf("name wrong. expected=%q, got=%q", "Users", def.Name.Name)
	}
	if len(def.Routes) != 2 {
		t.Fatalf("route count wrong. expected=2, got=%d", len(def.Routes))
	}

	first := def.Routes[0]
	if first.Method != "get" || first.Path != "/users" || first.Handler.Name != "listUsers" {
		t.Errorf("routes[0] wrong, got %s", first)
	}
	second := def.Routes[1]
	if second.Method != "post" || second.Handler.Name != "createUser" {
		t.Errorf("routes[1] wrong, got %s", second)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"missing semicolon", "let x = 1", `";"`},
		{"missing paren", "if (a { }", `")"`},
		{"missing expression", "let x = ;", "expression"},
		{"missing macro end", "macro m()\nprint(1);", `keyword "end"`},
		{"unclosed block", "function f() { let a = 1;", `"}"`},
		{"bad import", `import from "x";`, "import name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := ParseSource(tt.input)
			if err == nil {
				t.Fatalf("expected parse error, got program with %d statements", len(prog.Body))
			}
			parseErr, ok := err.(*ParseError)
			if !ok {
				t.Fatalf("error is %T, want *ParseError", err)
			}
			if !strings.Contains(parseErr.Error(), tt.expected) {
				t.Errorf("error %q does not mention %q", parseErr.Error(), tt.expected)
			}
			if !parseErr.Pos.IsValid() {
				t.Errorf("error position invalid: %v", parseErr.Pos)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := ParseSource("let x = 1\nlet y = 2;")
	parseErr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("error is %T, want *ParseError", err)
	}
	// The missing semicolon is noticed at the second `let`.
	if parseErr.Pos.Line != 2 || parseErr.Pos.Column != 1 {
		t.Errorf("position wrong. expected=2:1, got=%s", parseErr.Pos)
	}
}

func TestSpanContainment(t *testing.T) {
	source := `module app;
function add(a: number, b: number): number {
	let total = a + b;
	return total;
}
api Users { get "/users" -> listUsers; }
let xs = [1, 2, 3];
if (xs[0] > 1) { print("big"); } else { print("small"); }`

	prog, err := ParseSource(source)
	if err != nil {
		t.Fatalf("ParseSource error: %v", err)
	}

	type parented struct {
		parent ast.Node
		child  ast.Node
	}
	var violations []parented

	var check func(parent ast.Node)
	check = func(parent ast.Node) {
		parentSpan := parent.GetSpan()
		ast.Walk(parent, func(n ast.Node) bool {
			if n == parent {
				return true
			}
			childSpan := n.GetSpan()
			if childSpan.Start.Before(parentSpan.Start) || parentSpan.End.Before(childSpan.End) {
				violations = append(violations, parented{parent, n})
			}
			return true
		})
	}

	ast.Walk(prog, func(n ast.Node) bool {
		check(n)
		return true
	})

	for _, v := range violations {
		t.Errorf("span of %s (%s) not contained in %s (%s)",
			v.child, v.child.GetSpan(), v.parent, v.parent.GetSpan())
	}
}

func TestTokenizeThenParseMatchesParseSource(t *testing.T) {
	source := "let x = 1 + 2;"
	fromTokens, err := Parse(lexer.Tokenize(source))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	direct, err := ParseSource(source)
	if err != nil {
		t.Fatalf("ParseSource error: %v", err)
	}
	if len(fromTokens.Body) != len(direct.Body) {
		t.Fatalf("statement counts differ: %d vs %d", len(fromTokens.Body), len(direct.Body))
	}
}
