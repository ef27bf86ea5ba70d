package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dusk-indust/ast2vec/internal/embedding"
)

// tsvEscaper keeps literal token values on a single TSV cell.
var tsvEscaper = strings.NewReplacer("\\", `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)

// WriteVectorsTSV writes one tab-separated row of components per token, in
// id order. The layout matches the embedding projector's tensor file.
func WriteVectorsTSV(w io.Writer, emb *embedding.Embeddings) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 16)
	for id := 0; id < emb.Len(); id++ {
		for j, x := range emb.VectorByID(id) {
			if j > 0 {
				bw.WriteByte('\t')
			}
			buf = strconv.AppendFloat(buf[:0], float64(x), 'g', -1, 32)
			bw.Write(buf)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteMetadataTSV writes a "Name\tCount" header followed by one row per
// token, aligned with WriteVectorsTSV.
func WriteMetadataTSV(w io.Writer, emb *embedding.Embeddings) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("Name\tCount\n")
	for id := 0; id < emb.Len(); id++ {
		bw.WriteString(tsvEscaper.Replace(emb.Vocab.Token(id)))
		bw.WriteByte('\t')
		bw.WriteString(strconv.FormatInt(emb.Vocab.Count(id), 10))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteClustersTSV writes a "Name\tCount\tCluster" header followed by one
// row per clustered id, in the order k-means received them. Ids left out
// of the fit (for example by Sanitize) have no row.
func WriteClustersTSV(w io.Writer, emb *embedding.Embeddings, res *embedding.KMeansResult) error {
	if len(res.IDs) != len(res.Labels) {
		return fmt.Errorf("write clusters: %d ids but %d labels", len(res.IDs), len(res.Labels))
	}
	bw := bufio.NewWriter(w)
	bw.WriteString("Name\tCount\tCluster\n")
	for i, id := range res.IDs {
		bw.WriteString(tsvEscaper.Replace(emb.Vocab.Token(id)))
		bw.WriteByte('\t')
		bw.WriteString(strconv.FormatInt(emb.Vocab.Count(id), 10))
		bw.WriteByte('\t')
		bw.WriteString(strconv.Itoa(res.Labels[i]))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
