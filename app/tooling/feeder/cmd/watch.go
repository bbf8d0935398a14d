package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ardanlabs/blockgraph/foundation/chain"
	"github.com/ardanlabs/blockgraph/foundation/events"
	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/kafka"
	"github.com/ardanlabs/blockgraph/foundation/stream"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	rpcURL     string
	interval   time.Duration
	maxCatchUp uint64
	out        string
	brokers    string
	topic      string
	listen     string
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a chain over JSON-RPC and emit one batch per block",
	RunE: func(cmd *cobra.Command, args []string) error {
		return watch(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&rpcURL, "rpc", "r", "http://localhost:8545", "JSON-RPC url of the chain.")
	watchCmd.Flags().DurationVarP(&interval, "interval", "i", chain.DefaultPollInterval, "Block poll interval.")
	watchCmd.Flags().Uint64Var(&maxCatchUp, "max-catch-up", chain.DefaultMaxCatchUp, "Most blocks emitted per poll.")
	watchCmd.Flags().StringVarP(&out, "out", "o", "stdout", "Destination: stdout, kafka or ws.")
	watchCmd.Flags().StringVar(&brokers, "brokers", "localhost:9092", "Kafka brokers, comma separated.")
	watchCmd.Flags().StringVar(&topic, "topic", "blockgraph.batches", "Kafka topic.")
	watchCmd.Flags().StringVar(&listen, "listen", "0.0.0.0:3001", "Address serving the /events websocket.")
}

func watch(ctx context.Context) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	g, ctx := errgroup.WithContext(ctx)

	var sink func(b graph.Batch) error
	switch out {
	case "stdout":
		sink = func(b graph.Batch) error {
			data, err := stream.Encode(stream.NewMessage(b))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(os.Stdout, "%s\n", data)
			return err
		}

	case "kafka":
		pub, err := kafka.NewPublisher(kafka.SplitBrokers(brokers), topic)
		if err != nil {
			return err
		}
		defer pub.Close()

		sink = func(b graph.Batch) error {
			return pub.Publish(ctx, b)
		}

	case "ws":
		evts := events.New()
		srv := http.Server{
			Addr:              listen,
			Handler:           feedMux(evts),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Infow("watch", "status", "feed started", "host", listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			evts.Shutdown()
			return srv.Close()
		})

		sink = func(b graph.Batch) error {
			frame, err := sseFrame(stream.NewMessage(b))
			if err != nil {
				return err
			}
			evts.Send(frame)
			return nil
		}

	default:
		return fmt.Errorf("unknown destination %q", out)
	}

	client, err := chain.Dial(ctx, rpcURL)
	if err != nil {
		return err
	}
	defer client.Close()

	w, err := chain.New(chain.Config{
		Client:       client,
		PollInterval: interval,
		MaxCatchUp:   maxCatchUp,
		EvHandler:    evHandler(log),
		Sink: func(b graph.Batch) {
			if err := sink(b); err != nil {
				log.Errorw("watch", "status", "emit", "chainblock", b.ChainBlock, "ERROR", err)
			}
		},
	})
	if err != nil {
		return err
	}

	log.Infow("watch", "status", "started", "rpc", rpcURL, "out", out)
	g.Go(func() error {
		return w.Run(ctx)
	})

	return g.Wait()
}

// sseFrame formats an envelope as a server sent event frame.
func sseFrame(m stream.Message) ([]byte, error) {
	data, err := stream.Encode(m)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "data: %s\n\n", data), nil
}

// feedMux serves the /events websocket. Every viewer gets the greeting and
// then every frame sent to evts.
func feedMux(evts *events.Events) http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		id := uuid.NewString()
		ch := evts.Acquire(id)
		defer evts.Release(id)

		if err := c.WriteMessage(websocket.TextMessage, []byte("data: {\"message\": \"Connected to SSE\"}\n\n")); err != nil {
			return
		}

		for frame := range ch {
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	})

	return mux
}
