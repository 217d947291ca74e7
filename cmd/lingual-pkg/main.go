// Package main provides the lingual package manager CLI. Every remote
// operation talks to a registry over HTTP through the registry client;
// the registry URL comes from --registry, LINGUAL_REGISTRY, or the
// project's lingual.json, in that order.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	semver "github.com/Masterminds/semver/v3"

	"github.com/Vantio-Games/lingual/internal/cli"
	"github.com/Vantio-Games/lingual/internal/config"
	"github.com/Vantio-Games/lingual/internal/registry"
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
		cli.PrintVersion("Lingual Package Manager", jsonOutput)
	case "init":
		runInit(args)
	case "add":
		runAdd(args)
	case "login":
		runLogin(args)
	case "publish":
		runPublish(args)
	case "fetch":
		runFetch(args)
	case "resolve":
		runResolve(args)
	case "lock":
		runLock(args)
	case "verify":
		runVerify(args)
	case "list":
		runList(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", sub)
		usage()
		os.Exit(2)
	}
}

func usage() {
	commands := []cli.CommandInfo{
		{Name: "init", Description: "Create a lingual.json manifest"},
		{Name: "add", Description: "Add a dependency to lingual.json"},
		{Name: "login", Description: "Store a registry token in .lingual/credentials.json"},
		{Name: "publish", Description: "Publish a package payload to the registry"},
		{Name: "fetch", Description: "Download the best matching version of a package"},
		{Name: "resolve", Description: "Resolve the dependency closure and print the plan"},
		{Name: "lock", Description: "Resolve and write lingual.lock"},
		{Name: "verify", Description: "Check lingual.lock against registry content"},
		{Name: "list", Description: "List every package the registry knows"},
	}
	cli.PrintUsage("lingual-pkg", commands)
}

// registryFlag registers the shared --registry flag, defaulting to the
// LINGUAL_REGISTRY environment variable.
func registryFlag(fs *flag.FlagSet) *string {
	return fs.String("registry", os.Getenv("LINGUAL_REGISTRY"), "registry base URL")
}

// newClient resolves the registry URL, falling back to lingual.json.
func newClient(flagURL string) *registry.Client {
	url := strings.TrimSpace(flagURL)
	if url == "" && config.Exists(".") {
		if cfg, err := config.Load("."); err == nil {
			url = cfg.Registry
		}
	}
	if url == "" {
		fmt.Fprintln(os.Stderr, "no registry configured: pass --registry, set LINGUAL_REGISTRY, or add \"registry\" to lingual.json")
		os.Exit(2)
	}
	return registry.NewClient(url)
}

// splitAt splits "name@constraint"; a bare name returns an empty
// constraint.
func splitAt(s string) (string, string) {
	if i := strings.Index(s, "@"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// requirements converts the manifest dependency map, sorted by name so
// output and resolution order stay stable.
func requirements(cfg *config.Config) []registry.Requirement {
	deps := cfg.Dependencies()
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	reqs := make([]registry.Requirement, 0, len(names))
	for _, name := range names {
		reqs = append(reqs, registry.Requirement{Name: registry.PackageID(name), Constraint: deps[name]})
	}
	return reqs
}

func loadProject() *config.Config {
	cfg, err := config.Load(".")
	if err != nil {
		cli.ExitWithError("%v", err)
	}
	return cfg
}

func runInit(args []string) {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		abs, err := filepath.Abs(".")
		if err != nil {
			cli.ExitWithError("%v", err)
		}
		name = filepath.Base(abs)
	}

	if config.Exists(".") {
		fmt.Printf("%s exists\n", config.FileName)
		return
	}
	if err := config.Default(name).Save("."); err != nil {
		cli.ExitWithError("%v", err)
	}
	fmt.Printf("created %s\n", config.FileName)
}

func runAdd(args []string) {
	if err := cli.ValidateArgs(args, 1, "lingual-pkg add <name>@<constraint>"); err != nil {
		cli.ExitWithError("%v", err)
	}

	name, constraint := splitAt(args[0])
	if name == "" || constraint == "" {
		fmt.Fprintln(os.Stderr, "usage: lingual-pkg add <name>@<constraint> (e.g. utils@^1.2.0)")
		os.Exit(2)
	}
	if _, err := semver.NewConstraint(constraint); err != nil {
		cli.ExitWithError("constraint %q: %v", constraint, err)
	}

	cfg := loadProject()
	if cfg.Requires == nil {
		cfg.Requires = map[string]string{}
	}
	cfg.Requires[name] = constraint
	if err := cfg.Save("."); err != nil {
		cli.ExitWithError("%v", err)
	}
	fmt.Printf("added %s -> %s\n", name, constraint)
}

func runLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	regURL := registryFlag(fs)
	token := fs.String("token", "", "bearer token")
	_ = fs.Parse(args)

	if strings.TrimSpace(*regURL) == "" || strings.TrimSpace(*token) == "" {
		fmt.Fprintln(os.Stderr, "--registry and --token required")
		os.Exit(2)
	}
	if err := registry.SaveCredentials(*regURL, *token); err != nil {
		cli.ExitWithError("%v", err)
	}
	fmt.Println("credentials updated")
}

func runPublish(args []string) {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	regURL := registryFlag(fs)
	name := fs.String("name", "", "package name (defaults to lingual.json)")
	ver := fs.String("version", "", "package version (defaults to lingual.json)")
	desc := fs.String("description", "", "package description")
	file := fs.String("file", "", "payload file to publish")
	_ = fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: lingual-pkg publish --file <path> [--name <id> --version <semver>]")
		os.Exit(2)
	}

	man := registry.Manifest{
		Name:        registry.PackageID(*name),
		Version:     registry.Version(*ver),
		Description: *desc,
	}
	if *name == "" || *ver == "" {
		cfg := loadProject()
		man.Name = registry.PackageID(cfg.Name)
		man.Version = registry.Version(cfg.Version)
		if man.Description == "" {
			man.Description = cfg.Description
		}
		for _, req := range requirements(cfg) {
			man.Dependencies = append(man.Dependencies, registry.Dependency{
				Name:       req.Name,
				Constraint: req.Constraint,
			})
		}
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		cli.ExitWithError("read payload: %v", err)
	}

	client := newClient(*regURL)
	cid, err := client.Publish(context.Background(), registry.Blob{Manifest: man, Data: data})
	if err != nil {
		cli.ExitWithError("publish: %v", err)
	}
	fmt.Printf("published %s@%s cid=%s\n", man.Name, man.Version, cid)
}

func runFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	regURL := registryFlag(fs)
	out := fs.String("out", "", "output path (defaults to .lingual/cache/<cid>)")
	_ = fs.Parse(args)

	rest := fs.Args()
	if err := cli.ValidateArgs(rest, 1, "lingual-pkg fetch <name>[@<constraint>]"); err != nil {
		cli.ExitWithError("%v", err)
	}

	name, conStr := splitAt(rest[0])
	var constraint *semver.Constraints
	if conStr != "" {
		var err error
		constraint, err = semver.NewConstraint(conStr)
		if err != nil {
			cli.ExitWithError("constraint %q: %v", conStr, err)
		}
	}

	client := newClient(*regURL)
	ctx := context.Background()

	cid, man, err := client.Find(ctx, registry.PackageID(name), constraint)
	if err != nil {
		cli.ExitWithError("find: %v", err)
	}
	blob, err := client.Fetch(ctx, cid)
	if err != nil {
		cli.ExitWithError("fetch: %v", err)
	}

	dest := *out
	if dest == "" {
		dest = filepath.Join(".lingual", "cache", string(cid))
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		cli.ExitWithError("%v", err)
	}
	if err := os.WriteFile(dest, blob.Data, 0o644); err != nil {
		cli.ExitWithError("%v", err)
	}
	fmt.Printf("fetched %s@%s -> %s\n", man.Name, man.Version, dest)
}

func resolveProject(regURL string) (*registry.Client, registry.Resolution) {
	cfg := loadProject()
	reqs := requirements(cfg)
	if len(reqs) == 0 {
		fmt.Println("no dependencies in " + config.FileName)
		os.Exit(0)
	}

	client := newClient(regURL)
	res, err := registry.Resolve(context.Background(), client, reqs)
	if err != nil {
		cli.ExitWithError("resolve: %v", err)
	}
	return client, res
}

func runResolve(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	regURL := registryFlag(fs)
	_ = fs.Parse(args)

	client, res := resolveProject(*regURL)

	// Attach the CID for every pinned version to make the plan
	// actionable as-is.
	type pin struct {
		Version string `json:"version"`
		CID     string `json:"cid"`
	}
	plan := make(map[string]pin, len(res))
	ctx := context.Background()
	for name, version := range res {
		constraint, err := semver.NewConstraint("=" + string(version))
		if err != nil {
			cli.ExitWithError("%v", err)
		}
		cid, _, err := client.Find(ctx, name, constraint)
		if err != nil {
			cli.ExitWithError("find %s@%s: %v", name, version, err)
		}
		plan[string(name)] = pin{Version: string(version), CID: string(cid)}
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		cli.ExitWithError("%v", err)
	}
	os.Stdout.Write(data)
	fmt.Println()
}

func runLock(args []string) {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	regURL := registryFlag(fs)
	_ = fs.Parse(args)

	client, res := resolveProject(*regURL)

	lock, data, err := registry.GenerateLockfile(context.Background(), client, res)
	if err != nil {
		cli.ExitWithError("lock: %v", err)
	}
	if err := registry.WriteLockfile(".", data); err != nil {
		cli.ExitWithError("%v", err)
	}
	fmt.Printf("%s written (%d entries)\n", registry.LockFileName, len(lock.Entries))
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	regURL := registryFlag(fs)
	_ = fs.Parse(args)

	lock, err := registry.ReadLockfile(".")
	if err != nil {
		cli.ExitWithError("%v", err)
	}
	client := newClient(*regURL)
	if err := registry.VerifyLockfile(context.Background(), client, lock); err != nil {
		cli.ExitWithError("verify: %v", err)
	}
	fmt.Println("lockfile verified")
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	regURL := registryFlag(fs)
	_ = fs.Parse(args)

	client := newClient(*regURL)
	mans, err := client.All(context.Background())
	if err != nil {
		cli.ExitWithError("list: %v", err)
	}
	for _, man := range mans {
		fmt.Printf("%s@%s\n", man.Name, man.Version)
	}
}
