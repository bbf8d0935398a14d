// Package graphview owns the live graph. A single goroutine ingests batches,
// steps the layout and fits the viewport. Readers see immutable published
// state and never block the loop.
package graphview

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/blockgraph/business/sys/metrics"
	"github.com/ardanlabs/blockgraph/foundation/events"
	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/graph/layout"
	"github.com/ardanlabs/blockgraph/foundation/graph/present"
	"github.com/ardanlabs/blockgraph/foundation/graph/viewport"
	"github.com/ardanlabs/blockgraph/foundation/stream"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r2"
)

// Set of default engine values.
const (
	DefaultTickInterval  = 16 * time.Millisecond
	DefaultFitDelay      = 500 * time.Millisecond
	DefaultFrameInterval = 100 * time.Millisecond
)

// ErrInvalidSize is returned when a canvas has no area or is not finite.
var ErrInvalidSize = errors.New("canvas width and height must be positive and finite")

// Config represents the systems and settings the engine needs.
type Config struct {
	Log           *zap.SugaredLogger
	Stream        *stream.Stream
	Events        *events.Events
	Labels        present.Labeler
	Graph         graph.Config
	Layout        layout.Config
	Viewport      viewport.Config
	Canvas        viewport.Size
	TickInterval  time.Duration
	FitDelay      time.Duration
	FrameInterval time.Duration
}

// state is what readers see. A new value is published after every change
// and never mutated afterwards.
type state struct {
	snap      graph.Snapshot
	positions map[string]r2.Vec
	canvas    viewport.Size
	alpha     float64
	fit       viewport.Transform
	fitted    bool
}

// Engine drives the aggregator, the layout stepper and the fitter.
type Engine struct {
	log           *zap.SugaredLogger
	stream        *stream.Stream
	events        *events.Events
	agg           *graph.Aggregator
	stepper       *layout.Stepper
	fitter        viewport.Fitter
	adapter       present.Adapter
	tickInterval  time.Duration
	fitDelay      time.Duration
	frameInterval time.Duration

	resize  chan struct{}
	pending atomic.Pointer[viewport.Size]
	current atomic.Pointer[state]
}

// New constructs an engine. Events may be nil when nobody watches frames.
func New(cfg Config) (*Engine, error) {
	if cfg.Log == nil {
		return nil, errors.New("log is required")
	}
	if cfg.Stream == nil {
		return nil, errors.New("stream is required")
	}
	if !validSize(cfg.Canvas) {
		return nil, ErrInvalidSize
	}

	if cfg.Graph == (graph.Config{}) {
		cfg.Graph = graph.DefaultConfig()
	}
	if cfg.Layout == (layout.Config{}) {
		cfg.Layout = layout.DefaultConfig(cfg.Canvas.Width, cfg.Canvas.Height)
	}
	if cfg.Viewport == (viewport.Config{}) {
		cfg.Viewport = viewport.DefaultConfig()
	}

	agg, err := graph.New(cfg.Graph)
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}

	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.FitDelay <= 0 {
		cfg.FitDelay = DefaultFitDelay
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}

	stepper := layout.New(cfg.Layout)
	stepper.SetCenter(cfg.Canvas.Width/2, cfg.Canvas.Height/2)

	e := Engine{
		log:           cfg.Log,
		stream:        cfg.Stream,
		events:        cfg.Events,
		agg:           agg,
		stepper:       stepper,
		fitter:        viewport.New(cfg.Viewport),
		adapter:       present.New(cfg.Graph, cfg.Labels),
		tickInterval:  cfg.TickInterval,
		fitDelay:      cfg.FitDelay,
		frameInterval: cfg.FrameInterval,
		resize:        make(chan struct{}, 1),
	}

	e.current.Store(&state{
		snap:      agg.Snapshot(),
		positions: map[string]r2.Vec{},
		canvas:    cfg.Canvas,
	})

	return &e, nil
}

// Run processes batches, ticks and resizes until the context is cancelled.
// All mutation of the graph and the layout happens on this goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Infow("graphview", "status", "engine started", "tick", e.tickInterval, "fitdelay", e.fitDelay)
	defer e.log.Infow("graphview", "status", "engine stopped")

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	var fitC <-chan time.Time
	var lastFrame time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case b := <-e.stream.Batches():
			if !e.ingest(b) {
				continue
			}

			// A burst fits once, at most fitDelay after its first batch.
			if fitC == nil {
				fitC = time.After(e.fitDelay)
			}
			lastFrame = e.frame(time.Time{})

		case <-ticker.C:
			if !e.stepper.Tick() {
				continue
			}
			e.publish(func(s *state) {
				s.positions = e.stepper.Positions()
				s.alpha = e.stepper.Alpha()
			})
			lastFrame = e.frame(lastFrame)

		case <-fitC:
			fitC = nil
			e.fit()
			lastFrame = e.frame(time.Time{})

		case <-e.resize:
			size := e.pending.Load()
			if size == nil {
				continue
			}
			e.stepper.SetCenter(size.Width/2, size.Height/2)
			e.publish(func(s *state) {
				s.canvas = *size
			})
			e.fit()
			lastFrame = e.frame(time.Time{})
		}
	}
}

// ingest merges one batch and reseeds the stepper. Rejected batches are
// logged and leave everything unchanged.
func (e *Engine) ingest(b graph.Batch) bool {
	snap, err := e.agg.Ingest(b)
	if err != nil {
		metrics.AddBatch(false)
		e.log.Errorw("graphview", "status", "batch rejected", "chainblock", b.ChainBlock, "txs", len(b.Transactions), "ERROR", err)
		return false
	}
	metrics.AddBatch(true)

	e.stepper.Reseed(snap)
	e.publish(func(s *state) {
		s.snap = snap
		s.positions = e.stepper.Positions()
		s.alpha = e.stepper.Alpha()
	})

	return true
}

// fit recomputes the transform for the current canvas. A no-op fit keeps
// the previous transform.
func (e *Engine) fit() {
	cur := e.current.Load()

	t, ok := e.fitter.Fit(cur.positions, cur.canvas)
	if !ok {
		return
	}

	e.publish(func(s *state) {
		s.fit = t
		s.fitted = true
	})
}

// publish copies the current state, applies fn and stores the result.
func (e *Engine) publish(fn func(s *state)) {
	next := *e.current.Load()
	fn(&next)
	e.current.Store(&next)
}

// frame sends the current scene to viewers. A zero last forces the frame,
// otherwise frames are limited to one per frame interval.
func (e *Engine) frame(last time.Time) time.Time {
	if e.events == nil || e.events.Len() == 0 {
		return last
	}

	now := time.Now()
	if !last.IsZero() && now.Sub(last) < e.frameInterval {
		return last
	}

	data, err := json.Marshal(e.Scene())
	if err != nil {
		e.log.Errorw("graphview", "status", "encoding frame", "ERROR", err)
		return last
	}
	e.events.Send(data)

	return now
}

// =============================================================================

// Publish offers a batch to the stream. It reports whether it was accepted.
func (e *Engine) Publish(b graph.Batch) bool {
	return e.stream.Publish(b)
}

// Pause stops accepting batches. Queued batches are discarded.
func (e *Engine) Pause() {
	e.stream.Pause()
}

// Resume accepts batches again.
func (e *Engine) Resume() {
	e.stream.Resume()
}

// Paused reports whether batches are being dropped.
func (e *Engine) Paused() bool {
	return e.stream.Paused()
}

// Resize changes the canvas. The layout is recentred and refitted without
// being reseeded.
func (e *Engine) Resize(size viewport.Size) error {
	if !validSize(size) {
		return ErrInvalidSize
	}

	e.pending.Store(&size)

	select {
	case e.resize <- struct{}{}:
	default:
	}

	return nil
}

// Snapshot returns the latest graph snapshot.
func (e *Engine) Snapshot() graph.Snapshot {
	return e.current.Load().snap
}

// Positions returns the latest layout positions. The map must not be
// modified.
func (e *Engine) Positions() map[string]r2.Vec {
	return e.current.Load().positions
}

// Canvas returns the current canvas size.
func (e *Engine) Canvas() viewport.Size {
	return e.current.Load().canvas
}

// Fit computes a transform for the latest positions on the specified
// canvas. It reports false when there is nothing to fit.
func (e *Engine) Fit(size viewport.Size) (viewport.Transform, bool) {
	return e.fitter.Fit(e.current.Load().positions, size)
}

// LastFit returns the transform applied after the last change.
func (e *Engine) LastFit() (viewport.Transform, bool) {
	cur := e.current.Load()
	return cur.fit, cur.fitted
}

// Scene builds the drawable frame for the latest state.
func (e *Engine) Scene() Frame {
	cur := e.current.Load()

	f := Frame{
		Scene:  e.adapter.Scene(cur.snap, cur.positions),
		Canvas: cur.canvas,
		Alpha:  cur.alpha,
	}
	if cur.fitted {
		fit := cur.fit
		f.Fit = &fit
	}

	return f
}

// Stats returns the stats panel with the stream counters.
func (e *Engine) Stats() Stats {
	cur := e.current.Load()

	return Stats{
		Stats:  present.StatsOf(cur.snap),
		Stream: e.stream.Stats(),
		Queued: e.stream.Len(),
		Alpha:  cur.alpha,
	}
}

func validSize(s viewport.Size) bool {
	return s.Width > 0 && s.Height > 0 && !math.IsInf(s.Width, 0) && !math.IsInf(s.Height, 0)
}
