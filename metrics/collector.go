// Package metrics exports prefetch pipeline statistics to Prometheus.
package metrics

import (
	"time"

	"github.com/Noofbiz/superres/prefetch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records pipeline events. It implements prefetch.Observer.
type Collector struct {
	produced       *prometheus.CounterVec
	consumed       *prometheus.CounterVec
	producerBlock  *prometheus.HistogramVec
	consumerWait   *prometheus.HistogramVec
	queueDepth     *prometheus.GaugeVec
	failures       *prometheus.CounterVec
	transferTime   *prometheus.HistogramVec
	transferBytes  *prometheus.CounterVec
	datasetBytes   *prometheus.GaugeVec
	datasetSamples *prometheus.GaugeVec
}

var _ prefetch.Observer = (*Collector)(nil)

// waitBuckets spans 10µs to ~10s.
var waitBuckets = prometheus.ExponentialBuckets(1e-5, 4, 11)

// NewCollector registers the pipeline metrics on reg under namespace.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		produced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "items_produced_total",
			Help:      "Items pushed into prefetch queues, end markers included.",
		}, []string{"queue"}),
		consumed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "items_consumed_total",
			Help:      "Items taken from prefetch queues, end markers included.",
		}, []string{"queue"}),
		producerBlock: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "producer_blocked_seconds",
			Help:      "Time the producer waited for room in a full queue.",
			Buckets:   waitBuckets,
		}, []string{"queue"}),
		consumerWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "consumer_wait_seconds",
			Help:      "Time the consumer waited for a batch to become available.",
			Buckets:   waitBuckets,
		}, []string{"queue"}),
		queueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "queue_depth",
			Help:      "Items buffered in the queue after the last push or pop.",
		}, []string{"queue"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "producer_failures_total",
			Help:      "Producers that stopped on an error.",
		}, []string{"queue"}),
		transferTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "transfer_seconds",
			Help:      "Time to copy one batch to the device.",
			Buckets:   waitBuckets,
		}, []string{"device"}),
		transferBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "transfer_bytes_total",
			Help:      "Host bytes copied to the device.",
		}, []string{"device"}),
		datasetBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "store_bytes",
			Help:      "Memory held by a preloaded sample store.",
		}, []string{"dataset"}),
		datasetSamples: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "samples",
			Help:      "Samples in a preloaded store.",
		}, []string{"dataset"}),
	}
}

func (c *Collector) Produced(queue string, blocked time.Duration, depth int) {
	c.produced.WithLabelValues(queue).Inc()
	c.producerBlock.WithLabelValues(queue).Observe(blocked.Seconds())
	c.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func (c *Collector) Consumed(queue string, waited time.Duration, depth int) {
	c.consumed.WithLabelValues(queue).Inc()
	c.consumerWait.WithLabelValues(queue).Observe(waited.Seconds())
	c.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func (c *Collector) Transferred(device string, elapsed time.Duration, bytes int) {
	c.transferTime.WithLabelValues(device).Observe(elapsed.Seconds())
	c.transferBytes.WithLabelValues(device).Add(float64(bytes))
}

func (c *Collector) Failed(queue string, _ error) {
	c.failures.WithLabelValues(queue).Inc()
}

// RecordDataset publishes the size of a preloaded dataset.
func (c *Collector) RecordDataset(name string, samples, bytes int) {
	c.datasetSamples.WithLabelValues(name).Set(float64(samples))
	c.datasetBytes.WithLabelValues(name).Set(float64(bytes))
}
