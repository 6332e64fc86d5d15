package prefetch

import (
	"sync"

	"k8s.io/klog/v2"
)

// Event marks the completion of an operation submitted to a Stream.
type Event struct {
	done chan struct{}
	err  error
}

func newEvent() *Event { return &Event{done: make(chan struct{})} }

func (e *Event) complete(err error) {
	e.err = err
	close(e.done)
}

// Wait blocks until the operation has finished and returns its error.
func (e *Event) Wait() error {
	<-e.done
	return e.err
}

// Done is closed when the operation has finished.
func (e *Event) Done() <-chan struct{} { return e.done }

// Ready reports whether the operation has finished without blocking.
func (e *Event) Ready() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

type streamOp struct {
	fn    func() error
	event *Event
}

// Stream executes submitted operations one at a time, in submission order,
// on its own goroutine.
type Stream struct {
	name      string
	ops       chan streamOp
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewStream starts a stream.
func NewStream(name string) *Stream {
	s := &Stream{
		name: name,
		ops:  make(chan streamOp),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Stream) run() {
	defer close(s.done)
	klog.V(2).Infof("%s: stream started", s.name)
	for {
		select {
		case op := <-s.ops:
			op.event.complete(op.fn())
		case <-s.quit:
			klog.V(2).Infof("%s: stream stopped", s.name)
			return
		}
	}
}

// Submit queues fn behind any earlier operation. Submit blocks while the
// stream is busy; the returned Event completes with fn's error, or with
// ErrClosed if the stream shut down first.
func (s *Stream) Submit(fn func() error) *Event {
	ev := newEvent()
	select {
	case s.ops <- streamOp{fn: fn, event: ev}:
	case <-s.quit:
		ev.complete(ErrClosed)
	}
	return ev
}

// Close stops the stream after the running operation, if any, finishes.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.done
	})
}
