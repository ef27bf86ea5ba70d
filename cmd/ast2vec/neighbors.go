package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dusk-indust/ast2vec/internal/embedding"
)

func runNeighbors(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("neighbors", flag.ContinueOnError)
	fs.SetOutput(stderr)
	model := fs.String("model", "embeddings.json", "embeddings artifact")
	token := fs.String("token", "", "token to query")
	k := fs.Int("k", 10, "number of neighbors")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" && fs.NArg() > 0 {
		*token = fs.Arg(0)
	}
	if *token == "" {
		return fmt.Errorf("usage: ast2vec neighbors --model <file> --token <token> [-k n]")
	}

	emb, err := embedding.Load(*model)
	if err != nil {
		return err
	}
	neighbors, err := emb.Nearest(*token, *k)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tSIMILARITY\tCOUNT")
	for _, n := range neighbors {
		fmt.Fprintf(tw, "%s\t%.4f\t%d\n", n.Token, n.Similarity, n.Count)
	}
	return tw.Flush()
}
