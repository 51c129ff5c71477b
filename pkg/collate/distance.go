package collate

import (
	"context"
	"runtime"
	"sync"

	"github.com/textcritica/collate/pkg/align"
	"github.com/textcritica/collate/pkg/witness"
)

// pairJob is one pairwise distance computation between two witnesses.
type pairJob struct {
	a, b int // witness ingestion indices
}

type pairResult struct {
	a, b int
	d    float64
}

// distanceMatrix computes normalized pairwise alignment distances for
// the active witnesses on a worker pool. The matrix is indexed by
// witness ingestion index and symmetric; inactive rows stay zero.
//
// Distances are normalized by the longer sequence length so values fall
// in [0, 1] under unit costs.
func distanceMatrix(ctx context.Context, witnesses []*witness.Witness, active []int, o Options) ([][]float64, error) {
	dist := make([][]float64, len(witnesses))
	for i := range dist {
		dist[i] = make([]float64, len(witnesses))
	}

	var pairs []pairJob
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			pairs = append(pairs, pairJob{a: active[i], b: active[j]})
		}
	}
	if len(pairs) == 0 {
		return dist, nil
	}

	workers := o.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}

	seqs := make(map[int][]string, len(active))
	for _, i := range active {
		seqs[i] = witnesses[i].Normalized()
	}

	jobs := make(chan pairJob, workers*2)
	results := make(chan pairResult, workers*2)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				a, b := seqs[job.a], seqs[job.b]
				d := align.Distance(a, b, *o.Costs)
				if longer := max(len(a), len(b)); longer > 0 {
					d /= float64(longer)
				}
				results <- pairResult{a: job.a, b: job.b, d: d}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range pairs {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		dist[r.a][r.b] = r.d
		dist[r.b][r.a] = r.d
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return dist, nil
}
