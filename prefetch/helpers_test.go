package prefetch

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Noofbiz/superres/datasets"
	"github.com/Noofbiz/superres/imgproc"
	"github.com/stretchr/testify/require"
)

// countingSeq yields 0..n-1 (forever when n < 0) and counts how many items
// it has handed out.
type countingSeq struct {
	n       int
	failAt  int
	handed  atomic.Int64
	failErr error
}

func newCountingSeq(n int) *countingSeq { return &countingSeq{n: n, failAt: -1} }

func (s *countingSeq) Next(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	i := int(s.handed.Load())
	if i == s.failAt {
		return 0, s.failErr
	}
	if s.n >= 0 && i >= s.n {
		return 0, io.EOF
	}
	s.handed.Add(1)
	return i, nil
}

func startQueue(t *testing.T, capacity int, seq Sequence[int], opts ...Option) *Queue[int] {
	t.Helper()
	q, err := NewQueue[int](capacity, opts...)
	require.NoError(t, err)
	require.NoError(t, q.Start(context.Background(), seq))
	t.Cleanup(q.Close)
	return q
}

func drainQueue[T any](t *testing.T, q *Queue[T]) []T {
	t.Helper()
	var out []T
	for {
		v, err := q.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, v)
	}
}

// sampleSource is an in-memory datasets.Source of n pairs, lr h×w and hr
// scaled by two, with pixel values in [0,1] unique to the sample.
type sampleSource struct {
	samples []datasets.Sample
	failAt  int
}

func newSampleSource(n, h, w int) *sampleSource {
	s := &sampleSource{failAt: -1}
	for i := range n {
		lr := imgproc.NewImage(h, w)
		hr := imgproc.NewImage(2*h, 2*w)
		for j := range lr.Pix {
			lr.Pix[j] = float32(i*1000+j) / 1e5
		}
		for j := range hr.Pix {
			hr.Pix[j] = 1 - float32(i*1000+j)/1e5
		}
		s.samples = append(s.samples, datasets.Sample{LR: lr, HR: hr})
	}
	return s
}

func (s *sampleSource) Len() int { return len(s.samples) }

func (s *sampleSource) Get(i int) (datasets.Sample, error) {
	if i == s.failAt {
		return datasets.Sample{}, errors.Join(datasets.ErrUpstreamDecode, errors.New("truncated file"))
	}
	return s.samples[i], nil
}

func newTestLoader(t *testing.T, src datasets.Source, batchSize, capacity int, opts ...Option) *Loader {
	t.Helper()
	batcher, err := datasets.NewBatcher(src, datasets.BatcherOptions{BatchSize: batchSize})
	require.NoError(t, err)
	l, err := NewLoader(batcher, capacity, opts...)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}

// hostEpoch collects the batches of a full epoch.
func hostEpoch(t *testing.T, p *HostPrefetcher) []*datasets.Batch {
	t.Helper()
	var out []*datasets.Batch
	for {
		b, err := p.Next()
		require.NoError(t, err)
		if b == nil {
			return out
		}
		out = append(out, b)
	}
}

// recordingObserver counts events by kind.
type recordingObserver struct {
	mu          sync.Mutex
	produced    int
	consumed    int
	transferred int
	failed      []error
	maxDepth    int
	elapsed     time.Duration
}

func (r *recordingObserver) Produced(_ string, _ time.Duration, depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.produced++
	r.maxDepth = max(r.maxDepth, depth)
}

func (r *recordingObserver) Consumed(string, time.Duration, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumed++
}

func (r *recordingObserver) Transferred(_ string, elapsed time.Duration, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transferred++
	r.elapsed += elapsed
}

func (r *recordingObserver) Failed(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
}
