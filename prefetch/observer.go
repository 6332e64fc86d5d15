package prefetch

import "time"

// Observer receives pipeline events. Implementations must be safe for
// concurrent use: producer, consumer and copy stream report from different
// goroutines.
type Observer interface {
	// Produced is called after the producer pushed an item. blocked is how
	// long it waited for room.
	Produced(queue string, blocked time.Duration, depth int)
	// Consumed is called after the consumer took an item. waited is how long
	// it waited for one to be available.
	Consumed(queue string, waited time.Duration, depth int)
	// Transferred is called on the copy stream after a batch reached the device.
	Transferred(device string, elapsed time.Duration, bytes int)
	// Failed is called when the producer stops on an error.
	Failed(queue string, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) Produced(string, time.Duration, int)    {}
func (NopObserver) Consumed(string, time.Duration, int)    {}
func (NopObserver) Transferred(string, time.Duration, int) {}
func (NopObserver) Failed(string, error)                   {}

type options struct {
	name     string
	observer Observer
}

// Option configures queues, loaders and prefetchers.
type Option func(*options)

// WithName labels the component in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithObserver reports pipeline events to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func buildOptions(defaultName string, opts []Option) options {
	o := options{name: defaultName, observer: NopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
