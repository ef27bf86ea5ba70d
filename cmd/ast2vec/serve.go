package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/dusk-indust/ast2vec/internal/embedding"
	"github.com/dusk-indust/ast2vec/internal/logging"
	"github.com/dusk-indust/ast2vec/internal/mcptools"
)

func runServeMCP(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve-mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	model := fs.String("model", "", "embeddings artifact to load at startup")
	addr := fs.String("http", "", "serve streamable HTTP on this address instead of stdio")
	configPath := fs.String("config", "", "config file (default: ast2vec.yml in the working directory)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	// stdout carries the stdio transport; logs go to stderr only.
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Output: stderr})
	if err != nil {
		return err
	}

	svc := mcptools.NewEmbeddingService(cfg, nil, log)
	defer svc.Close()

	if *model != "" {
		emb, err := embedding.Load(*model)
		if err != nil {
			return err
		}
		if err := svc.Load(ctx, emb); err != nil {
			return fmt.Errorf("index %s: %w", *model, err)
		}
		log.WithField("run_id", emb.RunID).WithField("tokens", emb.Len()).Info("embeddings loaded")
	}

	if *addr != "" {
		log.WithField("addr", *addr).Info("serving MCP over HTTP")
		return mcptools.RunMCPServer(ctx, svc, *addr)
	}
	return mcptools.RunMCPServerStdio(ctx, svc)
}
