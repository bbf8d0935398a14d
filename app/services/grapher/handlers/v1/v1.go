// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/blockgraph/app/services/grapher/handlers/v1/public"
	"github.com/ardanlabs/blockgraph/business/core/graphview"
	"github.com/ardanlabs/blockgraph/foundation/events"
	"github.com/ardanlabs/blockgraph/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log    *zap.SugaredLogger
	Engine *graphview.Engine
	Evts   *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:    cfg.Log,
		Engine: cfg.Engine,
		WS:     websocket.Upgrader{},
		Evts:   cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/graph", pbl.Graph)
	app.Handle(http.MethodGet, version, "/graph/nodes/:id", pbl.Node)
	app.Handle(http.MethodGet, version, "/layout", pbl.Layout)
	app.Handle(http.MethodGet, version, "/fit", pbl.Fit)
	app.Handle(http.MethodGet, version, "/scene", pbl.Scene)
	app.Handle(http.MethodGet, version, "/stats", pbl.Stats)
	app.Handle(http.MethodPost, version, "/batches", pbl.SubmitBatch)
	app.Handle(http.MethodPost, version, "/pause", pbl.Pause)
	app.Handle(http.MethodPost, version, "/resume", pbl.Resume)
	app.Handle(http.MethodPost, version, "/viewport", pbl.Viewport)
}
