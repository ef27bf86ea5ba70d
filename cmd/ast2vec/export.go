package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dusk-indust/ast2vec/internal/embedding"
	"github.com/dusk-indust/ast2vec/internal/export"
	"github.com/dusk-indust/ast2vec/internal/index"
)

func runExport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	model := fs.String("model", "embeddings.json", "embeddings artifact")
	vectors := fs.String("vectors", "", "write projector vectors TSV to this path")
	metadata := fs.String("metadata", "", "write projector metadata TSV to this path")
	summary := fs.String("summary", "", "write a JSON summary to this path (- for stdout)")
	k := fs.Int("k", 5, "neighbors per token in the summary")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *vectors == "" && *metadata == "" && *summary == "" {
		return fmt.Errorf("usage: ast2vec export --model <file> [--vectors f.tsv] [--metadata f.tsv] [--summary f.json]")
	}

	emb, err := embedding.Load(*model)
	if err != nil {
		return err
	}

	if *vectors != "" {
		if err := writeFile(*vectors, func(w io.Writer) error { return export.WriteVectorsTSV(w, emb) }); err != nil {
			return fmt.Errorf("export vectors: %w", err)
		}
	}
	if *metadata != "" {
		if err := writeFile(*metadata, func(w io.Writer) error { return export.WriteMetadataTSV(w, emb) }); err != nil {
			return fmt.Errorf("export metadata: %w", err)
		}
	}
	if *summary != "" {
		store := index.NewMemStore()
		defer store.Close()
		tokens, err := index.BuildNeighborGraph(ctx, store, emb, *k, 0)
		if err != nil {
			return err
		}
		if _, err := index.ComputeClusters(ctx, store, tokens); err != nil {
			return err
		}
		s, err := export.ExportSummary(ctx, emb, store, *k)
		if err != nil {
			return fmt.Errorf("export summary: %w", err)
		}
		if *summary == "-" {
			return export.WriteJSON(stdout, s)
		}
		if err := writeFile(*summary, func(w io.Writer) error { return export.WriteJSON(w, s) }); err != nil {
			return fmt.Errorf("export summary: %w", err)
		}
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}
