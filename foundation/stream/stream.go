// Package stream provides the bounded single consumer channel that carries
// transaction batches from producers to the aggregator.
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/ardanlabs/blockgraph/foundation/graph"
)

// DefaultCapacity is the number of batches held for a slow consumer.
const DefaultCapacity = 16

// Stats reports what happened to published batches.
type Stats struct {
	Accepted      uint64 `json:"accepted"`
	DroppedPaused uint64 `json:"dropped_paused"`
	DroppedFull   uint64 `json:"dropped_full"`
	Paused        bool   `json:"paused"`
}

// Stream is a bounded channel with one consumer. Any number of producers
// may publish. A full stream drops the newest batch and a paused stream
// drops everything; nothing is replayed on resume.
type Stream struct {
	ch chan graph.Batch
	mu sync.Mutex

	paused        atomic.Bool
	accepted      atomic.Uint64
	droppedPaused atomic.Uint64
	droppedFull   atomic.Uint64
}

// New constructs a stream that holds up to capacity batches.
func New(capacity int) *Stream {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Stream{
		ch: make(chan graph.Batch, capacity),
	}
}

// Publish offers a batch to the consumer without blocking. It reports
// whether the batch was accepted.
func (s *Stream) Publish(b graph.Batch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused.Load() {
		s.droppedPaused.Add(1)
		return false
	}

	select {
	case s.ch <- b:
		s.accepted.Add(1)
		return true
	default:
		s.droppedFull.Add(1)
		return false
	}
}

// Batches returns the channel the single consumer reads from. The channel
// is never closed; consumers stop on their own context.
func (s *Stream) Batches() <-chan graph.Batch {
	return s.ch
}

// Pause stops accepting batches and discards anything still queued.
func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused.Store(true)

	for {
		select {
		case <-s.ch:
			s.droppedPaused.Add(1)
		default:
			return
		}
	}
}

// Resume starts accepting batches again.
func (s *Stream) Resume() {
	s.paused.Store(false)
}

// Paused reports whether the stream is discarding batches.
func (s *Stream) Paused() bool {
	return s.paused.Load()
}

// Len returns the number of queued batches.
func (s *Stream) Len() int {
	return len(s.ch)
}

// Stats returns the publish counters.
func (s *Stream) Stats() Stats {
	return Stats{
		Accepted:      s.accepted.Load(),
		DroppedPaused: s.droppedPaused.Load(),
		DroppedFull:   s.droppedFull.Load(),
		Paused:        s.paused.Load(),
	}
}
