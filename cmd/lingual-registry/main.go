// Package main provides the standalone lingual registry daemon. It
// serves the same HTTP API the package manager client speaks, backed
// by a content-addressed blob store on disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Vantio-Games/lingual/internal/cli"
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
		cli.PrintVersion("Lingual Registry", jsonOutput)
	case "serve":
		runServe(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", sub)
		usage()
		os.Exit(2)
	}
}

func usage() {
	commands := []cli.CommandInfo{
		{Name: "serve", Description: "Serve the registry API over HTTP, HTTPS, or HTTP/3"},
	}
	cli.PrintUsage("lingual-registry", commands)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":9321", "listen address")
	root := fs.String("root", ".lingual/registry", "blob store directory")
	token := fs.String("token", "", "require this bearer token on mutating requests")
	certFile := fs.String("tls-cert", "", "TLS certificate file (enables HTTPS)")
	keyFile := fs.String("tls-key", "", "TLS key file")
	useHTTP3 := fs.String("http3", "", "also serve HTTP/3 on this UDP address (requires TLS)")
	_ = fs.Parse(args)

	if *token != "" {
		// The handler reads the token from the environment so the
		// HTTP and HTTP/3 servers agree on it.
		os.Setenv(registry.TokenEnv, *token)
	}
	auth := os.Getenv(registry.TokenEnv) != ""

	store, err := registry.OpenFileStore(*root)
	if err != nil {
		cli.ExitWithError("open store: %v", err)
	}

	tlsEnabled := *certFile != "" || *keyFile != ""
	if tlsEnabled && (*certFile == "" || *keyFile == "") {
		fmt.Fprintln(os.Stderr, "--tls-cert and --tls-key must be set together")
		os.Exit(2)
	}
	if *useHTTP3 != "" && !tlsEnabled {
		fmt.Fprintln(os.Stderr, "--http3 requires --tls-cert and --tls-key")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *useHTTP3 != "" {
		tlsCfg, err := registry.LoadServerTLS(*certFile, *keyFile)
		if err != nil {
			cli.ExitWithError("load TLS: %v", err)
		}
		h3 := registry.NewHTTP3Server(store, *useHTTP3, tlsCfg)
		realAddr, err := h3.Start()
		if err != nil {
			cli.ExitWithError("http3: %v", err)
		}
		defer h3.Stop()
		fmt.Printf("serving registry on https://%s via HTTP/3 (root=%s) auth=%v\n", realAddr, *root, auth)
	}

	if tlsEnabled {
		fmt.Printf("serving registry on https://%s (root=%s) auth=%v\n", *addr, *root, auth)
		errCh := make(chan error, 1)
		go func() { errCh <- registry.ServeTLS(store, *addr, *certFile, *keyFile) }()
		select {
		case err := <-errCh:
			cli.ExitWithError("serve: %v", err)
		case <-ctx.Done():
		}
		return
	}

	fmt.Printf("serving registry on http://%s (root=%s) auth=%v\n", *addr, *root, auth)
	if err := registry.ServeGraceful(ctx, store, *addr); err != nil {
		cli.ExitWithError("serve: %v", err)
	}
}
