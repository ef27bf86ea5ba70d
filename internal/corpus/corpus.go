// Package corpus encodes token files into id sequences through a frozen
// vocabulary and streams subsampled skip-gram windows from them.
package corpus

import (
	"fmt"

	"github.com/dusk-indust/ast2vec/internal/config"
	"github.com/dusk-indust/ast2vec/internal/tokensource"
	"github.com/dusk-indust/ast2vec/internal/vocab"
)

// UnknownTokenPolicyViolation is returned by Encode under the reject policy
// when a file contains a token the vocabulary builder never saw.
type UnknownTokenPolicyViolation struct {
	File     string
	Token    string
	Position int
}

func (e *UnknownTokenPolicyViolation) Error() string {
	return fmt.Sprintf("unknown token %q in %s at position %d", e.Token, e.File, e.Position)
}

// Document is one encoded file.
type Document struct {
	Name string
	IDs  []int32
}

// Diagnostic records a file that contributes no training pairs.
type Diagnostic struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Corpus is the read-only training input.
type Corpus struct {
	Documents   []Document
	Diagnostics []Diagnostic

	vocab  *vocab.Vocabulary
	tokens int64
}

// Encode maps every file through v. Files with fewer than two encoded ids
// are skipped and reported as diagnostics.
func Encode(v *vocab.Vocabulary, files []tokensource.File) (*Corpus, error) {
	c := &Corpus{vocab: v}
	unk, mapUnknown := v.UnknownID()

	for _, f := range files {
		ids := make([]int32, 0, len(f.Tokens))
		for pos, tok := range f.Tokens {
			if id, ok := v.ID(tok); ok {
				ids = append(ids, int32(id))
				continue
			}
			switch {
			case mapUnknown:
				ids = append(ids, int32(unk))
			case v.Policy() == config.UnknownReject && !v.Discarded(tok):
				return nil, &UnknownTokenPolicyViolation{File: f.Name, Token: tok, Position: pos}
			}
		}

		if len(ids) < 2 {
			c.Diagnostics = append(c.Diagnostics, Diagnostic{
				File:   f.Name,
				Reason: fmt.Sprintf("%d of %d tokens encoded, need at least 2", len(ids), len(f.Tokens)),
			})
			continue
		}
		c.Documents = append(c.Documents, Document{Name: f.Name, IDs: ids})
		c.tokens += int64(len(ids))
	}
	return c, nil
}

// Vocabulary returns the vocabulary the corpus was encoded with.
func (c *Corpus) Vocabulary() *vocab.Vocabulary { return c.vocab }

// TotalTokens returns the number of encoded ids before subsampling.
func (c *Corpus) TotalTokens() int64 { return c.tokens }

// Shard returns the documents i, i+n, i+2n, ... as a corpus sharing the same
// vocabulary. Diagnostics stay with the parent.
func (c *Corpus) Shard(i, n int) *Corpus {
	s := &Corpus{vocab: c.vocab}
	for d := i; d < len(c.Documents); d += n {
		s.Documents = append(s.Documents, c.Documents[d])
		s.tokens += int64(len(c.Documents[d].IDs))
	}
	return s
}
