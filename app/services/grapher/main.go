package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ardanlabs/blockgraph/app/services/grapher/handlers"
	"github.com/ardanlabs/blockgraph/business/core/graphview"
	"github.com/ardanlabs/blockgraph/foundation/chain"
	"github.com/ardanlabs/blockgraph/foundation/events"
	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/graph/layout"
	"github.com/ardanlabs/blockgraph/foundation/graph/viewport"
	"github.com/ardanlabs/blockgraph/foundation/kafka"
	"github.com/ardanlabs/blockgraph/foundation/logger"
	"github.com/ardanlabs/blockgraph/foundation/nameservice"
	"github.com/ardanlabs/blockgraph/foundation/stream"
	"github.com/ardanlabs/blockgraph/foundation/wsfeed"
	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r2"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("GRAPHER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			CORSOrigin      string        `conf:"default:*"`
		}
		Graph struct {
			StaleBlockThreshold int64  `conf:"default:10"`
			LinkRetentionBlocks int64  `conf:"default:5"`
			ActivityThreshold   int    `conf:"default:5"`
			BurnAddress         string `conf:"default:0x0"`
		}
		Layout struct {
			LinkDistance   float64 `conf:"default:100"`
			ChargeStrength float64 `conf:"default:50"`
			AlphaDecay     float64 `conf:"default:0.05"`
			AlphaMin       float64 `conf:"default:0.001"`
			VelocityDecay  float64 `conf:"default:0.4"`
			InitialRadius  float64 `conf:"default:10"`
			Seed           uint64  `conf:"default:1"`
		}
		Viewport struct {
			Width      float64       `conf:"default:960"`
			Height     float64       `conf:"default:600"`
			Padding    float64       `conf:"default:20"`
			Transition time.Duration `conf:"default:750ms"`
		}
		Engine struct {
			TickInterval  time.Duration `conf:"default:16ms"`
			FitDelay      time.Duration `conf:"default:500ms"`
			FrameInterval time.Duration `conf:"default:100ms"`
			Buffer        int           `conf:"default:16"`
		}
		Source struct {
			Kind         string        `conf:"default:http,help:rpc|kafka|ws|http"`
			RPCURL       string        `conf:"default:http://localhost:8545"`
			PollInterval time.Duration `conf:"default:2s"`
			MaxCatchUp   uint64        `conf:"default:16"`
			Brokers      string        `conf:"default:localhost:9092"`
			Topic        string        `conf:"default:blockgraph.batches"`
			Group        string        `conf:"default:grapher"`
			FeedURL      string        `conf:"default:ws://localhost:3001/events"`
		}
		Labels struct {
			Root string
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "live transaction graph",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "GRAPHER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides display names for addresses in the
	// tooltips. The burn address is always known.
	ns, err := nameservice.New(cfg.Labels.Root, cfg.Graph.BurnAddress)
	if err != nil {
		return fmt.Errorf("unable to load name service: %w", err)
	}
	log.Infow("startup", "status", "nameservice", "names", ns.Len())

	// =========================================================================
	// Engine Support

	strm := stream.New(cfg.Engine.Buffer)
	evts := events.New()

	eng, err := graphview.New(graphview.Config{
		Log:    log,
		Stream: strm,
		Events: evts,
		Labels: ns,
		Graph: graph.Config{
			StaleBlockThreshold: cfg.Graph.StaleBlockThreshold,
			LinkRetentionBlocks: cfg.Graph.LinkRetentionBlocks,
			ActivityThreshold:   cfg.Graph.ActivityThreshold,
			BurnAddress:         cfg.Graph.BurnAddress,
		},
		Layout: layout.Config{
			LinkDistance:   cfg.Layout.LinkDistance,
			ChargeStrength: cfg.Layout.ChargeStrength,
			AlphaDecay:     cfg.Layout.AlphaDecay,
			AlphaMin:       cfg.Layout.AlphaMin,
			VelocityDecay:  cfg.Layout.VelocityDecay,
			InitialRadius:  cfg.Layout.InitialRadius,
			Center:         r2.Vec{X: cfg.Viewport.Width / 2, Y: cfg.Viewport.Height / 2},
			Seed:           cfg.Layout.Seed,
		},
		Viewport: viewport.Config{
			Padding:    cfg.Viewport.Padding,
			Transition: cfg.Viewport.Transition,
		},
		Canvas:        viewport.Size{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height},
		TickInterval:  cfg.Engine.TickInterval,
		FitDelay:      cfg.Engine.FitDelay,
		FrameInterval: cfg.Engine.FrameInterval,
	})
	if err != nil {
		return fmt.Errorf("constructing engine: %w", err)
	}

	// The transports accept a function of this signature to allow the
	// application to log.
	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	var running atomic.Bool
	g.Go(func() error {
		running.Store(true)
		defer running.Store(false)
		return eng.Run(ctx)
	})

	if err := startSource(ctx, g, cfg.Source.Kind, sourceConfig{
		rpcURL:       cfg.Source.RPCURL,
		pollInterval: cfg.Source.PollInterval,
		maxCatchUp:   cfg.Source.MaxCatchUp,
		brokers:      cfg.Source.Brokers,
		topic:        cfg.Source.Topic,
		group:        cfg.Source.Group,
		feedURL:      cfg.Source.FeedURL,
	}, eng, log, ev); err != nil {
		cancel()
		g.Wait()
		return err
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, running.Load)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:   shutdown,
		Log:        log,
		Engine:     eng,
		Evts:       evts,
		CORSOrigin: cfg.Web.CORSOrigin,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// Report a failing engine or source the same way as a failing server.
	go func() {
		<-ctx.Done()
		if err := g.Wait(); err != nil {
			serverErrors <- fmt.Errorf("engine: %w", err)
		}
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		cancel()
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Stop the sources and the engine loop.
		cancel()
		if err := g.Wait(); err != nil {
			log.Errorw("shutdown", "status", "engine stopped", "ERROR", err)
		}

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// =============================================================================

type sourceConfig struct {
	rpcURL       string
	pollInterval time.Duration
	maxCatchUp   uint64
	brokers      string
	topic        string
	group        string
	feedURL      string
}

// startSource launches the producer selected by kind. The http kind has no
// producer of its own; batches arrive through POST /v1/batches.
func startSource(ctx context.Context, g *errgroup.Group, kind string, cfg sourceConfig, eng *graphview.Engine, log *zap.SugaredLogger, ev func(string, ...any)) error {
	publish := func(b graph.Batch) bool {
		if !eng.Publish(b) {
			log.Infow("source", "status", "batch dropped", "chainblock", b.ChainBlock, "paused", eng.Paused())
			return false
		}
		return true
	}

	switch kind {
	case "http":
		log.Infow("startup", "status", "source", "kind", kind)
		return nil

	case "rpc":
		client, err := chain.Dial(ctx, cfg.rpcURL)
		if err != nil {
			return err
		}

		w, err := chain.New(chain.Config{
			Client:       client,
			Sink:         func(b graph.Batch) { publish(b) },
			PollInterval: cfg.pollInterval,
			MaxCatchUp:   cfg.maxCatchUp,
			EvHandler:    ev,
		})
		if err != nil {
			client.Close()
			return err
		}

		log.Infow("startup", "status", "source", "kind", kind, "url", cfg.rpcURL)
		g.Go(func() error {
			defer client.Close()
			return w.Run(ctx)
		})
		return nil

	case "kafka":
		c, err := kafka.NewConsumer(kafka.SplitBrokers(cfg.brokers), cfg.group, cfg.topic, publish, ev)
		if err != nil {
			return err
		}

		log.Infow("startup", "status", "source", "kind", kind, "brokers", cfg.brokers, "topic", cfg.topic)
		g.Go(func() error {
			go func() {
				<-ctx.Done()
				c.Close()
			}()
			return c.Run(ctx)
		})
		return nil

	case "ws":
		log.Infow("startup", "status", "source", "kind", kind, "url", cfg.feedURL)
		g.Go(func() error {
			return wsfeed.Run(ctx, wsfeed.Config{
				URL:       cfg.feedURL,
				Sink:      publish,
				EvHandler: ev,
			})
		})
		return nil
	}

	return fmt.Errorf("unknown source kind %q", kind)
}
