package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dusk-indust/ast2vec/internal/embedding"
	"github.com/dusk-indust/ast2vec/internal/export"
)

// runCluster assigns k-means clusters to the embeddings, or with --elbow
// prints the inertia for each k so a cluster count can be chosen.
func runCluster(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("cluster", flag.ContinueOnError)
	fs.SetOutput(stderr)
	model := fs.String("model", "embeddings.json", "embeddings artifact")
	k := fs.Int("k", embedding.DefaultClusterCount, "number of clusters")
	maxIter := fs.Int("max-iter", embedding.DefaultKMeansIterations, "maximum k-means iterations")
	seed := fs.Uint64("seed", 1, "seed for centroid initialization")
	sanitize := fs.Float64("sanitize", 2, "drop vectors whose norm is more than this many standard deviations from the mean (0 keeps all)")
	out := fs.String("out", "-", "write Name/Count/Cluster TSV to this path (- for stdout)")
	elbow := fs.Int("elbow", 0, "print inertia for k = 1..N-1 instead of assigning clusters")
	if err := fs.Parse(args); err != nil {
		return err
	}

	emb, err := embedding.Load(*model)
	if err != nil {
		return err
	}

	var ids []int
	if *sanitize > 0 {
		ids = emb.Sanitize(*sanitize)
	} else {
		ids = make([]int, emb.Len())
		for i := range ids {
			ids[i] = i
		}
	}
	opts := embedding.KMeansOptions{K: *k, MaxIter: *maxIter, Seed: *seed}

	if *elbow > 0 {
		scores, err := emb.Elbow(ctx, ids, *elbow, opts)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "K\tINERTIA")
		for i, s := range scores {
			fmt.Fprintf(tw, "%d\t%.6f\n", i+1, s)
		}
		return tw.Flush()
	}

	res, err := emb.KMeans(ctx, ids, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "clustered %d of %d tokens into %d clusters (inertia %.4f, %d iterations)\n",
		len(ids), emb.Len(), len(res.Centroids), res.Inertia, res.Iterations)

	if *out == "-" {
		return export.WriteClustersTSV(stdout, emb, res)
	}
	if err := writeFile(*out, func(w io.Writer) error { return export.WriteClustersTSV(w, emb, res) }); err != nil {
		return fmt.Errorf("export clusters: %w", err)
	}
	return nil
}
