package codegen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGoStatements(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			"function with typed signature",
			"function add(a: number, b: number): number { return a + b; }",
			"package main\n\nfunc add(a float64, b float64) float64 {\n\treturn a + b\n}\n",
		},
		{
			"untyped parameter becomes any",
			"function id(x) { return x; }",
			"package main\n\nfunc id(x any) {\n\treturn x\n}\n",
		},
		{
			"top level declarations",
			"let x = 1; const PI = 3.14; let s: string;",
			"package main\n\nvar x = 1\nconst PI = 3.14\nvar s string\n",
		},
		{
			"short declaration inside function",
			"function f() { let x = 1; use(x); }",
			"package main\n\nfunc f() {\n\tx := 1\n\tuse(x)\n}\n",
		},
		{
			"while becomes for",
			"while (ok) { step(); }",
			"package main\n\nfunc main() {\n\tfor ok {\n\t\tstep()\n\t}\n}\n",
		},
		{
			"c style for",
			"for (let i = 0; i < 3; i = i + 1) { use(i); }",
			"package main\n\nfunc main() {\n\tfor i := 0; i < 3; i = (i + 1) {\n\t\tuse(i)\n\t}\n}\n",
		},
		{
			"struct from type declaration",
			"type User { name: string; age: number; }",
			"package main\n\ntype User struct {\n\tname string\n\tage float64\n}\n",
		},
		{
			"array literal",
			"let xs = [1, 2];",
			"package main\n\nvar xs = []any{1, 2}\n",
		},
		{
			"module names the package",
			"module app.core; function f() {}",
			"package core\n\nfunc f() {\n}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := emitRaw(t, "go", tt.source)
			if got != tt.want {
				t.Errorf("output wrong. expected=%q, got=%q", tt.want, got)
			}
		})
	}
}

func TestGoApiDefinition(t *testing.T) {
	got := emitRaw(t, "go", `api UserApi { get "/users" -> listUsers; }`)
	want := "package main\n\n" +
		"type apiRoute struct {\n\tmethod  string\n\tpath    string\n\thandler any\n}\n\n" +
		"var userApi = []apiRoute{\n\t{\"get\", \"/users\", listUsers},\n}\n"
	if got != want {
		t.Errorf("output wrong. expected=%q, got=%q", want, got)
	}
}

func TestGoCollectsImports(t *testing.T) {
	got := emitRaw(t, "go", `function greet() { print("hi"); let n = math.floor(x); use(n); }`)
	wantHeader := "package main\n\nimport (\n\t\"fmt\"\n\t\"math\"\n)\n\n"
	if !strings.HasPrefix(got, wantHeader) {
		t.Errorf("header wrong.\nexpected prefix=%q\ngot=%q", wantHeader, got)
	}
	if !strings.Contains(got, "fmt.Println(\"hi\")") {
		t.Errorf("print not bridged:\n%s", got)
	}
	if !strings.Contains(got, "n := math.Floor(x)") {
		t.Errorf("math.floor not bridged:\n%s", got)
	}
}

func TestGoLengthBridge(t *testing.T) {
	got := emitRaw(t, "go", "function f(v: array): number { return v.length; }")
	if !strings.Contains(got, "return len(v)") {
		t.Errorf("length not bridged:\n%s", got)
	}
}

func TestGoProjectFiles(t *testing.T) {
	dir := t.TempDir()
	info := ProjectInfo{Name: "My App", Version: "0.3.0"}
	if err := Lookup("go").WriteProjectFiles(dir, "app", info); err != nil {
		t.Fatalf("WriteProjectFiles failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		t.Fatalf("go.mod not written: %v", err)
	}
	want := "module my-app\n\ngo 1.23\n"
	if string(data) != want {
		t.Errorf("go.mod wrong. expected=%q, got=%q", want, string(data))
	}
}
