package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// version is set by goreleaser at build time.
var version = "dev"

const usage = `usage: ast2vec <command> [flags]

commands:
  train       tokenize sources, build the vocabulary and train embeddings
  neighbors   print the nearest tokens of a token
  export      write projector TSV files or a JSON summary
  cluster     assign k-means clusters (or print an elbow table)
  diagram     print a Mermaid diagram of a persisted neighbor index
  serve-mcp   serve embedding queries over MCP (stdio or HTTP)
  status      show which project steps are complete
  init        write ast2vec.yml and register the MCP server in .mcp.json
  version     print the version
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "train":
		return runTrain(ctx, rest, stdout, stderr)
	case "neighbors":
		return runNeighbors(rest, stdout, stderr)
	case "export":
		return runExport(ctx, rest, stdout, stderr)
	case "cluster":
		return runCluster(ctx, rest, stdout, stderr)
	case "diagram":
		return runDiagram(ctx, rest, stdout, stderr)
	case "serve-mcp":
		return runServeMCP(ctx, rest, stderr)
	case "status":
		return runStatus(rest, stdout, stderr)
	case "init":
		return runInit(rest, stdout, stderr)
	case "version", "--version", "-version":
		fmt.Fprintln(stdout, version)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}
