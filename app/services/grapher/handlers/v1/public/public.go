// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/blockgraph/business/core/graphview"
	"github.com/ardanlabs/blockgraph/business/web/errs"
	"github.com/ardanlabs/blockgraph/foundation/events"
	"github.com/ardanlabs/blockgraph/foundation/graph/viewport"
	"github.com/ardanlabs/blockgraph/foundation/stream"
	"github.com/ardanlabs/blockgraph/foundation/validate"
	"github.com/ardanlabs/blockgraph/foundation/web"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of graph endpoints.
type Handlers struct {
	Log    *zap.SugaredLogger
	Engine *graphview.Engine
	WS     websocket.Upgrader
	Evts   *events.Events
}

// Events handles a web socket to stream scene frames to a viewer. The
// current scene is sent as soon as the socket opens.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	first, err := json.Marshal(h.Engine.Scene())
	if err != nil {
		return err
	}
	if err := c.WriteMessage(websocket.TextMessage, first); err != nil {
		return nil
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Graph returns the latest snapshot.
func (h Handlers) Graph(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Engine.Snapshot(), http.StatusOK)
}

// Node returns a single node of the latest snapshot.
func (h Handlers) Node(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "id")

	n, exists := h.Engine.Snapshot().Node(id)
	if !exists {
		return errs.NewTrusted(fmt.Errorf("node %q not found", id), http.StatusNotFound)
	}

	return web.Respond(ctx, w, n, http.StatusOK)
}

// Layout returns the latest positions by node id.
func (h Handlers) Layout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := layout{
		Version:   h.Engine.Snapshot().Version,
		Alpha:     h.Engine.Stats().Alpha,
		Positions: toPoints(h.Engine.Positions()),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Fit computes the transform that fits the latest positions into the
// requested canvas. The current canvas is used for missing dimensions.
func (h Handlers) Fit(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	canvas := h.Engine.Canvas()

	width, err := web.QueryFloat(r, "width", canvas.Width)
	if err != nil {
		return errs.NewBadRequest(err)
	}
	height, err := web.QueryFloat(r, "height", canvas.Height)
	if err != nil {
		return errs.NewBadRequest(err)
	}

	size := viewport.Size{Width: width, Height: height}

	t, ok := h.Engine.Fit(size)
	if !ok {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, fit{Transform: t, Canvas: size}, http.StatusOK)
}

// Scene returns the drawable frame for the latest state.
func (h Handlers) Scene(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Engine.Scene(), http.StatusOK)
}

// Stats returns the stats panel.
func (h Handlers) Stats(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Engine.Stats(), http.StatusOK)
}

// SubmitBatch accepts a producer envelope and queues its batch.
func (h Handlers) SubmitBatch(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var msg stream.Message
	if err := web.Decode(r, &msg); err != nil {
		return errs.NewBadRequest(fmt.Errorf("unable to decode payload: %w", err))
	}

	batch, ok := msg.Batch()
	if !ok {
		return errs.NewBadRequest(fmt.Errorf("unsupported message type %q", msg.Type))
	}

	if err := validate.Check(batch); err != nil {
		return err
	}

	if !h.Engine.Publish(batch) {
		return errs.NewTrusted(errors.New("batch dropped: stream paused or full"), http.StatusServiceUnavailable)
	}

	h.Log.Infow("submit batch", "traceid", v.TraceID, "txs", len(batch.Transactions), "chainblock", batch.ChainBlock)

	return web.Respond(ctx, w, status{Status: "accepted", Paused: h.Engine.Paused()}, http.StatusAccepted)
}

// Pause stops accepting batches.
func (h Handlers) Pause(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Engine.Pause()
	return web.Respond(ctx, w, status{Status: "paused", Paused: true}, http.StatusOK)
}

// Resume accepts batches again.
func (h Handlers) Resume(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Engine.Resume()
	return web.Respond(ctx, w, status{Status: "running", Paused: false}, http.StatusOK)
}

// Viewport changes the canvas the layout is centred and fitted on.
func (h Handlers) Viewport(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var size viewport.Size
	if err := web.Decode(r, &size); err != nil {
		return errs.NewBadRequest(fmt.Errorf("unable to decode payload: %w", err))
	}

	if err := h.Engine.Resize(size); err != nil {
		return errs.NewBadRequest(err)
	}

	return web.Respond(ctx, w, size, http.StatusAccepted)
}
