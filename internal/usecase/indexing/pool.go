package indexing

import (
	"context"
	"sync"

	"github.com/kailas-cloud/docrag/internal/domain"
)

// embedded is the result for one segment, keyed by its sequence index.
type embedded struct {
	seq    int
	vector []float32
	err    error
}

// embedAll vectorizes segments with a fixed pool of workers.
// The returned slice is indexed by sequence; failures are per segment.
func embedAll(ctx context.Context, emb Embedder, segments []string, workers int) []embedded {
	if workers < 1 {
		workers = 1
	}
	if workers > len(segments) {
		workers = len(segments)
	}

	jobs := make(chan int, len(segments))
	for i := range segments {
		jobs <- i
	}
	close(jobs)

	results := make([]embedded, len(segments))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seq := range jobs {
				results[seq] = embedOne(ctx, emb, seq, segments[seq])
			}
		}()
	}
	wg.Wait()
	return results
}

func embedOne(ctx context.Context, emb Embedder, seq int, text string) embedded {
	if err := ctx.Err(); err != nil {
		return embedded{seq: seq, err: err}
	}
	res, err := emb.Embed(ctx, text)
	if err != nil {
		return embedded{seq: seq, err: err}
	}
	if len(res.Embedding) == 0 {
		return embedded{seq: seq, err: domain.ErrEmbedding}
	}
	return embedded{seq: seq, vector: res.Embedding}
}
