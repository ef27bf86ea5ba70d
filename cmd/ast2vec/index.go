//go:build cgo

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dusk-indust/ast2vec/internal/export"
	"github.com/dusk-indust/ast2vec/internal/index"
)

func openIndex(path string) (index.Store, error) {
	store, err := index.NewKuzuFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return store, nil
}

func runDiagram(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("diagram", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("index", "", "kuzu database written by train --index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("usage: ast2vec diagram --index <dir>")
	}
	if _, err := os.Stat(*path); err != nil {
		return fmt.Errorf("no index found at %s\nRun 'ast2vec train --index %s' first", *path, *path)
	}

	store, err := openIndex(*path)
	if err != nil {
		return err
	}
	defer store.Close()

	mermaid, err := export.GenerateMermaid(ctx, store)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, mermaid)
	return nil
}
