package embedding

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/blas/blas32"
)

const (
	// DefaultClusterCount is the k used when none is requested.
	DefaultClusterCount = 6
	// DefaultMaxClusters bounds the elbow scan.
	DefaultMaxClusters = 10
	// DefaultKMeansIterations caps Lloyd iterations per run.
	DefaultKMeansIterations = 300
)

// KMeansOptions configures a k-means run.
type KMeansOptions struct {
	K       int
	MaxIter int
	Seed    uint64
}

func (o KMeansOptions) withDefaults() KMeansOptions {
	if o.K == 0 {
		o.K = DefaultClusterCount
	}
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultKMeansIterations
	}
	return o
}

// KMeansResult assigns every requested id to one of K centroids.
// Labels[i] is the cluster of IDs[i].
type KMeansResult struct {
	IDs        []int
	Labels     []int
	Centroids  [][]float32
	Sizes      []int
	Inertia    float64 // sum of squared distances to the assigned centroid
	Iterations int
	Converged  bool
}

// KMeans partitions the vectors of ids into opts.K clusters with Lloyd's
// algorithm and k-means++ seeding. Runs are deterministic for a fixed Seed.
// Pass the output of Sanitize to leave norm outliers out of the fit.
func (e *Embeddings) KMeans(ctx context.Context, ids []int, opts KMeansOptions) (*KMeansResult, error) {
	opts = opts.withDefaults()
	switch {
	case len(ids) == 0:
		return nil, fmt.Errorf("kmeans: no ids")
	case opts.K < 1:
		return nil, fmt.Errorf("kmeans: k must be positive, got %d", opts.K)
	case opts.K > len(ids):
		return nil, fmt.Errorf("kmeans: k=%d exceeds %d points", opts.K, len(ids))
	}
	for _, id := range ids {
		if id < 0 || id >= e.Len() {
			return nil, fmt.Errorf("kmeans: id %d out of range", id)
		}
	}

	rng := rand.New(rand.NewPCG(opts.Seed, uint64(opts.K)))
	centroids := e.seedCentroids(ids, opts.K, rng)

	res := &KMeansResult{
		IDs:    append([]int(nil), ids...),
		Labels: make([]int, len(ids)),
		Sizes:  make([]int, opts.K),
	}
	for i := range res.Labels {
		res.Labels[i] = -1
	}

	for iter := 1; iter <= opts.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Iterations = iter

		changed := false
		for i, id := range ids {
			best, _ := nearestCentroid(e.vec(id), centroids)
			if res.Labels[i] != best {
				res.Labels[i] = best
				changed = true
			}
		}
		if !changed {
			res.Converged = true
			break
		}

		// Empty clusters keep their previous centroid.
		sums := make([]blas32.Vector, opts.K)
		clear(res.Sizes)
		for c := range sums {
			sums[c] = blas32.Vector{N: e.Dimension, Inc: 1, Data: make([]float32, e.Dimension)}
		}
		for i, id := range ids {
			c := res.Labels[i]
			blas32.Axpy(1, e.vec(id), sums[c])
			res.Sizes[c]++
		}
		for c, n := range res.Sizes {
			if n == 0 {
				continue
			}
			blas32.Scal(1/float32(n), sums[c])
			centroids[c] = sums[c]
		}
	}

	clear(res.Sizes)
	res.Centroids = make([][]float32, opts.K)
	for c := range centroids {
		res.Centroids[c] = centroids[c].Data
	}
	for i, id := range ids {
		res.Sizes[res.Labels[i]]++
		res.Inertia += sqDist(e.vec(id), centroids[res.Labels[i]])
	}
	return res, nil
}

// Elbow runs KMeans for k = 1..maxClusters-1 and returns the inertia of
// each run; scores[i] belongs to k = i+1. Plotting the curve and picking
// the bend is left to the caller. k values above len(ids) are skipped.
func (e *Embeddings) Elbow(ctx context.Context, ids []int, maxClusters int, opts KMeansOptions) ([]float64, error) {
	if maxClusters <= 0 {
		maxClusters = DefaultMaxClusters
	}
	var scores []float64
	for k := 1; k < maxClusters && k <= len(ids); k++ {
		opts.K = k
		res, err := e.KMeans(ctx, ids, opts)
		if err != nil {
			return nil, err
		}
		scores = append(scores, res.Inertia)
	}
	return scores, nil
}

// seedCentroids picks k starting centroids with k-means++: each next
// centroid is drawn with probability proportional to its squared distance
// from the closest centroid already chosen.
func (e *Embeddings) seedCentroids(ids []int, k int, rng *rand.Rand) []blas32.Vector {
	centroids := make([]blas32.Vector, 0, k)
	pick := func(id int) {
		data := append([]float32(nil), e.VectorByID(id)...)
		centroids = append(centroids, blas32.Vector{N: e.Dimension, Inc: 1, Data: data})
	}
	pick(ids[rng.IntN(len(ids))])

	dist := make([]float64, len(ids))
	for len(centroids) < k {
		var total float64
		for i, id := range ids {
			_, d := nearestCentroid(e.vec(id), centroids)
			dist[i] = d
			total += d
		}
		if total == 0 {
			// Every point coincides with a centroid.
			pick(ids[rng.IntN(len(ids))])
			continue
		}
		r := rng.Float64() * total
		chosen := len(ids) - 1
		for i, d := range dist {
			r -= d
			if r < 0 {
				chosen = i
				break
			}
		}
		pick(ids[chosen])
	}
	return centroids
}

func nearestCentroid(x blas32.Vector, centroids []blas32.Vector) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, cv := range centroids {
		if d := sqDist(x, cv); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// sqDist is |x|^2 + |y|^2 - 2x.y, clamped at zero against rounding.
func sqDist(x, y blas32.Vector) float64 {
	d := float64(blas32.Dot(x, x)) + float64(blas32.Dot(y, y)) - 2*float64(blas32.Dot(x, y))
	return max(0, d)
}
