package prefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"
)

// State is the lifecycle stage of a Queue.
type State int32

const (
	// StateIdle is a queue that was created but not started.
	StateIdle State = iota
	// StateRunning is a queue whose producer is still pulling items.
	StateRunning
	// StateDraining is a queue whose producer has finished; items and the
	// end marker are still waiting for the consumer.
	StateDraining
	// StateClosed is a queue that delivered its end marker or an error, or
	// was closed explicitly.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateClosed:
		return "Closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Sequence is a finite, pull-based source of items. Next returns io.EOF
// once there are no more items.
type Sequence[T any] interface {
	Next(ctx context.Context) (T, error)
}

// SequenceFunc adapts a function to a Sequence.
type SequenceFunc[T any] func(ctx context.Context) (T, error)

func (f SequenceFunc[T]) Next(ctx context.Context) (T, error) { return f(ctx) }

type slot[T any] struct {
	item T
	err  error
	eos  bool
}

// Queue is a bounded single-producer, single-consumer buffer fed by a
// background goroutine. It is single use: once started it runs to the end
// of its sequence (or until closed) and cannot be restarted.
type Queue[T any] struct {
	opts     options
	capacity int
	items    chan slot[T]
	quit     chan struct{}
	done     chan struct{}
	state    atomic.Int32

	mu        sync.Mutex
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewQueue creates an idle queue holding at most capacity items.
func NewQueue[T any](capacity int, opts ...Option) (*Queue[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Queue[T]{
		opts:     buildOptions("queue", opts),
		capacity: capacity,
		items:    make(chan slot[T], capacity),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the producer goroutine over seq. The worker stops when seq
// is exhausted, returns an error, ctx is canceled or the queue is closed.
func (q *Queue[T]) Start(ctx context.Context, seq Sequence[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrQueueReused
	}
	wctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	go q.run(wctx, seq)
	return nil
}

func (q *Queue[T]) run(ctx context.Context, seq Sequence[T]) {
	defer close(q.done)
	klog.V(2).Infof("%s: producer started, capacity %d", q.opts.name, q.capacity)
	produced := 0
	for {
		item, err := seq.Next(ctx)
		switch {
		case err == nil:
			if !q.push(slot[T]{item: item}) {
				klog.V(2).Infof("%s: producer stopped after %d items", q.opts.name, produced)
				return
			}
			produced++
		case errors.Is(err, io.EOF):
			if q.push(slot[T]{eos: true}) {
				q.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
			}
			klog.V(2).Infof("%s: producer finished, %d items", q.opts.name, produced)
			return
		default:
			if q.stopping() {
				return
			}
			klog.Errorf("%s: producer failed after %d items: %v", q.opts.name, produced, err)
			q.opts.observer.Failed(q.opts.name, err)
			if q.push(slot[T]{err: err}) {
				q.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
			}
			return
		}
	}
}

// push blocks until there is room for s or the queue is closed.
func (q *Queue[T]) push(s slot[T]) bool {
	start := time.Now()
	select {
	case q.items <- s:
		q.opts.observer.Produced(q.opts.name, time.Since(start), len(q.items))
		return true
	case <-q.quit:
		return false
	}
}

func (q *Queue[T]) stopping() bool {
	select {
	case <-q.quit:
		return true
	default:
		return false
	}
}

// Next blocks until an item is available and returns it. It returns io.EOF
// once the sequence is exhausted or the queue was closed, and keeps
// returning io.EOF on later calls. A producer error is returned once, in
// order, after which the queue is closed.
func (q *Queue[T]) Next() (T, error) {
	var zero T
	switch q.State() {
	case StateIdle:
		return zero, ErrNotStarted
	case StateClosed:
		return zero, io.EOF
	}
	start := time.Now()
	var s slot[T]
	select {
	case s = <-q.items:
	case <-q.quit:
		return zero, io.EOF
	}
	q.opts.observer.Consumed(q.opts.name, time.Since(start), len(q.items))
	switch {
	case s.eos:
		q.state.Store(int32(StateClosed))
		return zero, io.EOF
	case s.err != nil:
		q.state.Store(int32(StateClosed))
		return zero, s.err
	}
	return s.item, nil
}

// Close stops the producer and waits for it to exit, even when it is
// blocked on a full queue. It is safe to call more than once and from a
// goroutine other than the consumer.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		close(q.quit)
		if q.cancel != nil {
			q.cancel()
		}
		prev := State(q.state.Swap(int32(StateClosed)))
		q.mu.Unlock()
		if prev != StateIdle {
			<-q.done
		}
	})
}

// State reports the lifecycle stage.
func (q *Queue[T]) State() State { return State(q.state.Load()) }

// Len is the number of items currently buffered, end marker included.
func (q *Queue[T]) Len() int { return len(q.items) }

// Cap is the maximum number of buffered items.
func (q *Queue[T]) Cap() int { return q.capacity }

// Done is closed when the producer goroutine has exited. It never closes
// for a queue that was not started.
func (q *Queue[T]) Done() <-chan struct{} { return q.done }
