package prefetch

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewQueueInvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		_, err := NewQueue[int](c)
		require.ErrorIs(t, err, ErrInvalidCapacity)
	}
}

func TestQueuePreservesOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 60).Draw(rt, "n")
		capacity := rapid.IntRange(1, 8).Draw(rt, "capacity")
		q, err := NewQueue[int](capacity)
		require.NoError(rt, err)
		defer q.Close()
		require.NoError(rt, q.Start(context.Background(), newCountingSeq(n)))

		got := []int{}
		for {
			v, err := q.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(rt, err)
			got = append(got, v)
		}
		want := make([]int, n)
		for i := range want {
			want[i] = i
		}
		require.Equal(rt, want, got)
	})
}

func TestQueueBoundsBufferedItems(t *testing.T) {
	for _, capacity := range []int{1, 2, 3, 8} {
		seq := newCountingSeq(-1)
		q := startQueue(t, capacity, seq)

		// With nobody consuming, the producer fills the buffer and holds one
		// more item while blocked.
		require.Eventually(t, func() bool { return seq.handed.Load() == int64(capacity+1) },
			time.Second, time.Millisecond)
		require.Never(t, func() bool { return seq.handed.Load() > int64(capacity+1) || q.Len() > capacity },
			50*time.Millisecond, 5*time.Millisecond)

		v, err := q.Next()
		require.NoError(t, err)
		assert.Equal(t, 0, v)
		require.Eventually(t, func() bool { return seq.handed.Load() == int64(capacity+2) },
			time.Second, time.Millisecond)
		assert.LessOrEqual(t, q.Len(), capacity)
	}
}

func TestQueueFiveItemsCapacityTwo(t *testing.T) {
	obs := &recordingObserver{}
	q := startQueue(t, 2, newCountingSeq(5), WithObserver(obs))

	for i := range 5 {
		v, err := q.Next()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	for range 3 {
		_, err := q.Next()
		require.ErrorIs(t, err, io.EOF)
	}
	assert.Equal(t, StateClosed, q.State())
	<-q.Done()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 6, obs.produced, "five items and the end marker")
	assert.Equal(t, 6, obs.consumed)
	assert.LessOrEqual(t, obs.maxDepth, 2)
}

func TestQueueEmptySequence(t *testing.T) {
	q := startQueue(t, 1, newCountingSeq(0))
	_, err := q.Next()
	require.ErrorIs(t, err, io.EOF)
	_, err = q.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestQueueStates(t *testing.T) {
	q, err := NewQueue[int](4)
	require.NoError(t, err)
	defer q.Close()
	assert.Equal(t, StateIdle, q.State())
	_, err = q.Next()
	require.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, q.Start(context.Background(), newCountingSeq(2)))
	<-q.Done()
	assert.Equal(t, StateDraining, q.State())
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, []int{0, 1}, drainQueue(t, q))
	assert.Equal(t, StateClosed, q.State())
	assert.Equal(t, "Draining", StateDraining.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestQueueIsSingleUse(t *testing.T) {
	q := startQueue(t, 1, newCountingSeq(1))
	require.ErrorIs(t, q.Start(context.Background(), newCountingSeq(1)), ErrQueueReused)

	closed, err := NewQueue[int](1)
	require.NoError(t, err)
	closed.Close()
	require.ErrorIs(t, closed.Start(context.Background(), newCountingSeq(1)), ErrQueueReused)
	_, err = closed.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestQueueDeliversProducerErrorInOrder(t *testing.T) {
	boom := errors.New("decode failed")
	seq := newCountingSeq(10)
	seq.failAt, seq.failErr = 3, boom
	obs := &recordingObserver{}
	q := startQueue(t, 2, seq, WithObserver(obs))

	var got []int
	var err error
	for {
		var v int
		v, err = q.Next()
		if err != nil {
			break
		}
		got = append(got, v)
	}
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, StateClosed, q.State())

	_, err = q.Next()
	require.ErrorIs(t, err, io.EOF)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.failed, 1)
	assert.ErrorIs(t, obs.failed[0], boom)
}

func TestQueueCloseJoinsBlockedProducer(t *testing.T) {
	seq := newCountingSeq(-1)
	q, err := NewQueue[int](1)
	require.NoError(t, err)
	require.NoError(t, q.Start(context.Background(), seq))
	require.Eventually(t, func() bool { return seq.handed.Load() == 2 }, time.Second, time.Millisecond)

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return while the producer was blocked")
	}
	select {
	case <-q.Done():
	default:
		t.Fatal("producer still running after Close")
	}
	_, err = q.Next()
	require.ErrorIs(t, err, io.EOF)
	q.Close()
}

func TestQueueCloseUnblocksConsumer(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	q := startQueue(t, 1, SequenceFunc[int](func(ctx context.Context) (int, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return 0, ctx.Err()
	}))

	got := make(chan error, 1)
	go func() {
		_, err := q.Next()
		got <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case err := <-got:
		require.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("Next stayed blocked after Close")
	}
}

func TestQueueContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q, err := NewQueue[int](2)
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.Start(ctx, newCountingSeq(-1)))

	v, err := q.Next()
	require.NoError(t, err)
	require.Equal(t, 0, v)
	cancel()

	var seen []int
	for {
		v, err = q.Next()
		if err != nil {
			break
		}
		seen = append(seen, v)
	}
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, slices.IsSorted(seen))
	<-q.Done()
}
