// Package bus provides the bounded, backpressured channel each pipeline
// stage publishes onto and subscribes from (spec.md §5: "Each component owns
// a bounded task queue"). It is a thin generic wrapper over a buffered
// channel plus a Prometheus depth gauge — no broker, no persistence; when
// SPEC_FULL.md's optional Redis pub/sub fan-out is configured, a
// RedisMirror wraps a Topic to additionally publish onto a shared channel
// for other processes.
package bus

import (
	"context"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Topic is a single bounded, multi-consumer-unsafe (single consumer, per
// spec.md §5's "single producer, single consumer") channel of T. Publish
// blocks when the channel is full, giving the producer natural backpressure
// instead of an unbounded queue.
type Topic[T any] struct {
	ch      chan T
	depth   atomic.Int64
	gauge   prometheus.Gauge
}

// New builds a Topic with the given buffer capacity. gauge, if non-nil, is
// kept in sync with the channel's current depth so internal/telemetry's
// MempoolQueueDepth-style collectors can observe backpressure.
func New[T any](capacity int, gauge prometheus.Gauge) *Topic[T] {
	return &Topic[T]{ch: make(chan T, capacity), gauge: gauge}
}

// Publish blocks until there is room in the topic or ctx is cancelled.
func (t *Topic[T]) Publish(ctx context.Context, v T) error {
	select {
	case t.ch <- v:
		d := t.depth.Add(1)
		if t.gauge != nil {
			t.gauge.Set(float64(d))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns the read side of the topic. Only the single designated
// consumer for this Topic should range over it.
func (t *Topic[T]) Subscribe() <-chan T {
	return t.ch
}

// Ack signals the consumer has finished processing one item, so the depth
// gauge reflects outstanding (not yet processed) items rather than merely
// published ones.
func (t *Topic[T]) Ack() {
	d := t.depth.Add(-1)
	if t.gauge != nil {
		t.gauge.Set(float64(d))
	}
}

// Close closes the underlying channel. Callers must stop publishing before
// calling Close; a Publish after Close panics, matching stdlib channel
// semantics rather than masking the bug with a guard.
func (t *Topic[T]) Close() {
	close(t.ch)
}
