package compile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/codegen"
	"github.com/Vantio-Games/lingual/internal/diag"
	"github.com/Vantio-Games/lingual/internal/middleware"
	"github.com/Vantio-Games/lingual/internal/parser"
)

func TestCompileDefaultsToJavaScript(t *testing.T) {
	result, err := Compile(`let greeting = "hello"; print(greeting);`, "main.lin", Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if result.Target.Name() != "javascript" {
		t.Errorf("target is %q, want %q", result.Target.Name(), "javascript")
	}
	if result.Context.HasErrors() {
		t.Fatalf("unexpected errors: %v", result.Context.Errors)
	}

	text, err := result.Emit()
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	want := "let _greeting_1 = \"hello\";\nconsole.log(_greeting_1);\n"
	if text != want {
		t.Errorf("output wrong. expected=%q, got=%q", want, text)
	}
	if got := result.OutputName("main"); got != "main.js" {
		t.Errorf("output name is %q, want %q", got, "main.js")
	}
}

func TestCompileUnknownTarget(t *testing.T) {
	_, err := Compile("let x = 1;", "main.lin", Options{Target: "fortran"})
	if err == nil {
		t.Fatalf("Compile accepted an unknown target")
	}
	if !strings.Contains(err.Error(), "fortran") {
		t.Errorf("error does not name the target: %v", err)
	}
}

func TestCompileParseErrorIsFatal(t *testing.T) {
	_, err := Compile("let x = ;", "main.lin", Options{})
	if err == nil {
		t.Fatalf("Compile accepted a malformed program")
	}
	var parseErr *parser.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error is %T, want *parser.ParseError", err)
	}
}

func TestCompileAccumulatesTypeErrors(t *testing.T) {
	result, err := Compile(`let x = "a" - 1;`, "main.lin", Options{})
	if err != nil {
		t.Fatalf("Compile failed fatally on a recoverable error: %v", err)
	}
	if !result.Context.HasErrors() {
		t.Fatalf("no errors accumulated")
	}
	if _, err := result.Emit(); err == nil {
		t.Errorf("Emit ran despite errors")
	}
}

func TestCompileRunsTargetPassList(t *testing.T) {
	source := "let count = 1; use(count);"

	js, err := Compile(source, "main.lin", Options{Target: "javascript"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	decl := js.Program.Body[0].(*ast.VariableDeclaration)
	if decl.Name.Name != "_count_1" {
		t.Errorf("javascript chain did not rename: %q", decl.Name.Name)
	}

	py, err := Compile(source, "main.lin", Options{Target: "python"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	decl = py.Program.Body[0].(*ast.VariableDeclaration)
	if decl.Name.Name != "count" {
		t.Errorf("python chain renamed: %q", decl.Name.Name)
	}
}

func TestCompileExpandsMacrosBeforePasses(t *testing.T) {
	source := `
macro inc(x)
	x = x + 1;
end
let n = 0;
@inc(n);
`
	result, err := Compile(source, "main.lin", Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if result.Context.HasErrors() {
		t.Fatalf("unexpected errors: %v", result.Context.Errors)
	}
	left := ast.Count(result.Program, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.MacroCall, *ast.MacroDefinition:
			return true
		}
		return false
	})
	if left != 0 {
		t.Errorf("%d macro nodes survived the pipeline", left)
	}
	if _, ok := result.Context.Macros["inc"]; !ok {
		t.Errorf("macro definition not recorded in the context")
	}
}

type markerPass struct{ ran *bool }

func (p *markerPass) Name() string { return "marker" }
func (p *markerPass) Run(prog *ast.Program, ctx *diag.Context) *ast.Program {
	*p.ran = true
	return prog
}

func TestCompileExtraPasses(t *testing.T) {
	ran := false
	middleware.Register(&markerPass{ran: &ran})

	_, err := Compile("let x = 1;", "main.lin", Options{ExtraPasses: []string{"marker"}})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !ran {
		t.Errorf("extra pass did not run")
	}

	_, err = Compile("let x = 1;", "main.lin", Options{ExtraPasses: []string{"missing"}})
	if err == nil {
		t.Errorf("Compile accepted an unknown extra pass")
	}
}

// TestCompileExamples compiles every program under examples/ for every
// registered target, so the shipped samples stay valid.
func TestCompileExamples(t *testing.T) {
	dir := filepath.Join("..", "..", "examples")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read examples dir: %v", err)
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".lin") {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		for _, target := range codegen.Names() {
			t.Run(entry.Name()+"/"+target, func(t *testing.T) {
				result, err := Compile(string(src), entry.Name(), Options{Target: target})
				if err != nil {
					t.Fatalf("Compile failed: %v", err)
				}
				if result.Context.HasErrors() {
					t.Fatalf("unexpected errors: %v", result.Context.Errors)
				}
				text, err := result.Emit()
				if err != nil {
					t.Fatalf("Emit failed: %v", err)
				}
				if text == "" {
					t.Errorf("empty output for %s", target)
				}
			})
		}
	}
}
