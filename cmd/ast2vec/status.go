package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/dusk-indust/ast2vec/internal/status"
)

func runStatus(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	projectRoot := fs.String("project-root", ".", "path to the target project")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ps, err := status.GetProjectStatus(*projectRoot)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Project: %s\n\n", ps.Root)
	printStepTable(stdout, ps)

	if e := ps.Embeddings; e != nil {
		fmt.Fprintf(stdout, "\nRun %s (created %s, policy %s)\n", e.RunID, e.CreatedAt, e.Policy)
	}
	return nil
}

func printStepTable(w io.Writer, ps status.ProjectStatus) {
	for _, si := range ps.Steps {
		marker := "  "
		label := "pending"
		if si.Complete {
			label = "complete"
		}
		if si.Step == ps.NextStep {
			marker = "->"
			label = "next"
		}

		fmt.Fprintf(w, "  %s Step %d: %-16s [%s]", marker, si.Step, si.Name, label)
		if si.Detail != "" {
			fmt.Fprintf(w, " %s", si.Detail)
		}
		fmt.Fprintln(w)
	}

	if ps.NextStep == -1 {
		fmt.Fprintln(w, "  All steps complete.")
	}
}
