//go:build !cgo

package main

import (
	"context"
	"errors"
	"io"

	"github.com/dusk-indust/ast2vec/internal/index"
)

var errNoKuzu = errors.New("persistent index requires a cgo build")

func openIndex(string) (index.Store, error) { return nil, errNoKuzu }

func runDiagram(context.Context, []string, io.Writer, io.Writer) error { return errNoKuzu }
