// Package wsfeed reads transaction envelopes from a producer websocket.
package wsfeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/retry"
	"github.com/ardanlabs/blockgraph/foundation/stream"
	"github.com/gorilla/websocket"
)

// EventHandler defines a function that is called when events
// occur while reading the feed.
type EventHandler func(v string, args ...any)

// Sink receives each decoded batch. It returns false when the batch was
// dropped.
type Sink func(b graph.Batch) bool

// Config represents the configuration required to read a feed.
type Config struct {
	URL       string
	Sink      Sink
	Backoff   retry.Policy
	EvHandler EventHandler
}

// Run dials the feed and reads frames until the context is cancelled. A
// broken connection is redialled after a backoff that grows with every
// consecutive failure.
func Run(ctx context.Context, cfg Config) error {
	if cfg.URL == "" {
		return errors.New("url is required")
	}
	if cfg.Sink == nil {
		return errors.New("sink is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Backoff.BaseDelay <= 0 {
		cfg.Backoff = retry.Policy{
			BaseDelay: 250 * time.Millisecond,
			MaxDelay:  10 * time.Second,
			Jitter:    100 * time.Millisecond,
		}
	}

	ev("wsfeed: Run: started: url[%s]", cfg.URL)
	defer ev("wsfeed: Run: completed")

	var failures int
	for {
		delivered, err := read(ctx, cfg.URL, cfg.Sink, ev)
		if ctx.Err() != nil {
			return nil
		}

		if delivered > 0 {
			failures = 0
		}
		failures++

		wait := retry.Backoff(cfg.Backoff, failures)
		ev("wsfeed: Run: disconnected: delivered[%d] wait[%v]: %v", delivered, wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// read handles one connection and returns the number of batches delivered.
func read(ctx context.Context, url string, sink Sink, ev EventHandler) (int, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return 0, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	var delivered int
	for {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			return delivered, fmt.Errorf("read: %w", err)
		}

		if kind != websocket.TextMessage {
			continue
		}

		m, err := stream.DecodeFrame(frame)
		if err != nil {
			ev("wsfeed: read: decode: ERROR: %s", err)
			continue
		}

		b, ok := m.Batch()
		if !ok {
			continue
		}

		if sink(b) {
			delivered++
		}
	}
}
