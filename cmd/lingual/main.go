// Package main provides the main entry point for the lingual CLI tool.
// It routes subcommands, resolves project configuration, and runs one
// front-end pipeline per source file, in parallel for project builds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/cli"
	"github.com/Vantio-Games/lingual/internal/codegen"
	"github.com/Vantio-Games/lingual/internal/compile"
	"github.com/Vantio-Games/lingual/internal/config"
	"github.com/Vantio-Games/lingual/internal/diag"
	"github.com/Vantio-Games/lingual/internal/lexer"
	"github.com/Vantio-Games/lingual/internal/macro"
	"github.com/Vantio-Games/lingual/internal/parser"
	"github.com/Vantio-Games/lingual/internal/position"
	"github.com/Vantio-Games/lingual/internal/watch"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	sub := os.Args[1]
	args := os.Args[2:]

	switch sub {
	case "help", "-h", "--help":
		usage()
	case "version", "-v", "--version":
		jsonOutput := false
		for _, arg := range args {
			if arg == "--json" || arg == "-j" {
				jsonOutput = true
				break
			}
		}
		cli.PrintVersion("Lingual CLI", jsonOutput)
	case "build":
		runBuild("build", args, false)
	case "check":
		runBuild("check", args, true)
	case "targets":
		for _, name := range codegen.Names() {
			fmt.Println(name)
		}
	case "tokens":
		runTokens(args)
	case "ast":
		runAst(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", sub)
		usage()
		os.Exit(2)
	}
}

func usage() {
	commands := []cli.CommandInfo{
		{Name: "build", Description: "Compile .lin sources to the configured target"},
		{Name: "check", Description: "Run diagnostics without writing output"},
		{Name: "targets", Description: "List available output targets"},
		{Name: "tokens", Description: "Dump the token stream of a source file"},
		{Name: "ast", Description: "Dump the parsed syntax tree of a source file"},
		{Name: "version", Description: "Show version information"},
	}
	cli.PrintUsage("lingual", commands)
}

// build is one resolved build invocation: where sources come from,
// which target emits, and where output lands.
type build struct {
	path       string // the argument the user gave, kept for reloads
	flagTarget string
	flagOut    string
	checkOnly  bool
	logger     *cli.Logger
	colored    bool

	root    string // project directory
	srcRoot string // directory scanned for .lin files
	single  string // set when building one explicit file
	cfg     *config.Config
	target  string
	outDir  string
}

type fileResult struct {
	path string
	src  string
	res  *compile.Result
	err  error
}

func runBuild(name string, args []string, checkOnly bool) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	target := fs.String("target", "", "output target (overrides lingual.json)")
	out := fs.String("out", "", "output directory, relative to the project (overrides lingual.json)")
	watchMode := fs.Bool("watch", false, "stay running and rebuild when sources change")
	verbose := fs.Bool("verbose", false, "verbose output")
	_ = fs.Parse(args)

	logger := cli.NewLogger(*verbose, false)

	path := "."
	if rest := fs.Args(); len(rest) > 0 {
		path = rest[0]
	}

	b, err := newBuild(path, *target, *out, checkOnly, logger)
	if err != nil {
		cli.ExitWithError("%v", err)
	}

	if *watchMode {
		if err := b.watchLoop(); err != nil {
			cli.ExitWithError("%v", err)
		}
		return
	}

	failed, err := b.run()
	if err != nil {
		cli.ExitWithError("%v", err)
	}
	if failed {
		os.Exit(1)
	}
}

func newBuild(path, flagTarget, flagOut string, checkOnly bool, logger *cli.Logger) (*build, error) {
	b := &build{
		path:       path,
		flagTarget: flagTarget,
		flagOut:    flagOut,
		checkOnly:  checkOnly,
		logger:     logger,
		colored:    cli.ColorEnabled(os.Stderr),
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	switch {
	case info.IsDir():
		b.root = path
		if config.Exists(path) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			b.cfg = cfg
		} else {
			abs, err := filepath.Abs(path)
			if err != nil {
				return nil, err
			}
			b.cfg = config.Default(filepath.Base(abs))
			logger.Info("no %s found, using defaults", config.FileName)
		}
		b.srcRoot = filepath.Join(b.root, b.cfg.SourceDir)
	case strings.HasSuffix(path, ".lin"):
		b.single = path
		b.root = filepath.Dir(path)
		b.srcRoot = b.root
		if config.Exists(b.root) {
			cfg, err := config.Load(b.root)
			if err != nil {
				return nil, err
			}
			b.cfg = cfg
		} else {
			b.cfg = config.Default(strings.TrimSuffix(filepath.Base(path), ".lin"))
		}
	default:
		return nil, fmt.Errorf("%s is not a directory or a .lin file", path)
	}

	if ok, err := b.cfg.CheckTool(cli.Version); err == nil && !ok {
		fmt.Fprintf(os.Stderr, "warning: lingual %s does not satisfy the project constraint %q\n",
			cli.Version, b.cfg.Requires[config.ToolName])
	}

	b.target = b.cfg.Target
	if flagTarget != "" {
		b.target = flagTarget
	}
	if b.target == "" {
		b.target = compile.DefaultTarget
	}
	if codegen.Lookup(b.target) == nil {
		return nil, fmt.Errorf("unknown target %q (available: %s)",
			b.target, strings.Join(codegen.Names(), ", "))
	}

	out := b.cfg.OutDir
	if flagOut != "" {
		out = flagOut
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(b.root, out)
	}
	b.outDir = out

	return b, nil
}

func (b *build) collectSources() ([]string, error) {
	if b.single != "" {
		return []string{b.single}, nil
	}

	var sources []string
	err := filepath.WalkDir(b.srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".lin") {
			return nil
		}
		sources = append(sources, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", b.srcRoot, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no .lin sources under %s", b.srcRoot)
	}
	sort.Strings(sources)
	return sources, nil
}

// projectBase picks the base name the target manifests point at:
// main.lin when present, otherwise the first source file.
func projectBase(sources []string) string {
	for _, path := range sources {
		if filepath.Base(path) == "main.lin" {
			return "main"
		}
	}
	return strings.TrimSuffix(filepath.Base(sources[0]), ".lin")
}

// run compiles every source once. The returned bool reports whether any
// file failed; the error is reserved for I/O problems.
func (b *build) run() (bool, error) {
	sources, err := b.collectSources()
	if err != nil {
		return false, err
	}

	results := make([]fileResult, len(sources))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range sources {
		i, path := i, path
		g.Go(func() error {
			results[i] = b.compileOne(path)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	emitted := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.path, r.err)
			continue
		}
		if all := r.res.Context.All(); len(all) > 0 {
			f := diag.NewFormatter(position.NewSourceFile(r.path, r.src), b.colored)
			f.Write(os.Stderr, all)
		}
		if r.res.Context.HasErrors() {
			failed++
			continue
		}
		if b.checkOnly {
			continue
		}
		if err := b.emit(r); err != nil {
			return false, err
		}
		emitted++
	}

	if b.checkOnly {
		if failed > 0 {
			fmt.Fprintf(os.Stderr, "%d of %d files failed\n", failed, len(sources))
			return true, nil
		}
		fmt.Printf("checked %d file(s), no errors\n", len(sources))
		return false, nil
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed\n", failed, len(sources))
		return true, nil
	}

	target := codegen.Lookup(b.target)
	info := codegen.ProjectInfo{Name: b.cfg.Name, Version: b.cfg.Version, Description: b.cfg.Description}
	if err := target.WriteProjectFiles(b.outDir, projectBase(sources), info); err != nil {
		return false, err
	}
	fmt.Printf("compiled %d file(s) to %s\n", emitted, b.outDir)
	return false, nil
}

func (b *build) compileOne(path string) fileResult {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileResult{path: path, err: err}
	}
	src := string(raw)
	res, err := compile.Compile(src, path, compile.Options{Target: b.target})
	return fileResult{path: path, src: src, res: res, err: err}
}

func (b *build) emit(r fileResult) error {
	code, err := r.res.Emit()
	if err != nil {
		return fmt.Errorf("%s: %w", r.path, err)
	}

	rel, err := filepath.Rel(b.srcRoot, r.path)
	if err != nil {
		rel = filepath.Base(r.path)
	}
	dest := filepath.Join(b.outDir, r.res.OutputName(strings.TrimSuffix(rel, ".lin")))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dest, []byte(code), 0o644); err != nil {
		return err
	}
	b.logger.Info("emitted %s", dest)
	return nil
}

// watchLoop builds once, then rebuilds on every debounced batch of
// source changes until interrupted.
func (b *build) watchLoop() error {
	if _, err := b.run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	fmt.Printf("watching %s for changes\n", b.root)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	w, err := watch.New(b.root, watch.DefaultDebounce, nil)
	if err != nil {
		return err
	}
	defer w.Close()

	err = w.Run(ctx, func(paths []string) {
		b.logger.Info("changed: %s", strings.Join(paths, ", "))
		// Re-resolve configuration in case lingual.json was the change.
		if fresh, err := newBuild(b.path, b.flagTarget, b.flagOut, b.checkOnly, b.logger); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		} else {
			*b = *fresh
		}
		if _, err := b.run(); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runTokens(args []string) {
	if err := cli.ValidateArgs(args, 1, "lingual tokens <file.lin>"); err != nil {
		cli.ExitWithError("%v", err)
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		cli.ExitWithError("%v", err)
	}

	for _, tok := range lexer.Tokenize(string(raw)) {
		fmt.Printf("%-14s | %-24q | %d:%d\n", tok.Kind, tok.Text, tok.Line, tok.Column)
	}
}

func runAst(args []string) {
	fs := flag.NewFlagSet("ast", flag.ExitOnError)
	expand := fs.Bool("expand", false, "expand macros before dumping")
	_ = fs.Parse(args)

	rest := fs.Args()
	if err := cli.ValidateArgs(rest, 1, "lingual ast [--expand] <file.lin>"); err != nil {
		cli.ExitWithError("%v", err)
	}
	raw, err := os.ReadFile(rest[0])
	if err != nil {
		cli.ExitWithError("%v", err)
	}
	src := string(raw)

	prog, err := parser.Parse(lexer.Tokenize(src))
	if err != nil {
		cli.ExitWithError("%v", err)
	}

	if *expand {
		ctx := diag.NewContext(compile.DefaultTarget)
		prog = macro.NewExpander(ctx).ExpandProgram(prog)
		if all := ctx.All(); len(all) > 0 {
			f := diag.NewFormatter(position.NewSourceFile(rest[0], src), cli.ColorEnabled(os.Stderr))
			f.Write(os.Stderr, all)
		}
	}

	if err := ast.Fprint(os.Stdout, prog); err != nil {
		cli.ExitWithError("%v", err)
	}
}
