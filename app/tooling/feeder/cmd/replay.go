package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/graph/layout"
	"github.com/ardanlabs/blockgraph/foundation/graph/present"
	"github.com/ardanlabs/blockgraph/foundation/graph/viewport"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	width      float64
	height     float64
	sceneOut   bool
	staleAfter int64
	linkAfter  int64
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Aggregate and lay out envelopes offline and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := openInput(inputFile)
		if err != nil {
			return err
		}
		defer in.Close()

		return replay(in, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Float64Var(&width, "width", 960, "Canvas width.")
	replayCmd.Flags().Float64Var(&height, "height", 600, "Canvas height.")
	replayCmd.Flags().BoolVar(&sceneOut, "scene", false, "Print the full scene instead of the stats.")
	replayCmd.Flags().Int64Var(&staleAfter, "stale", graph.DefaultStaleBlockThreshold, "Blocks before an idle node is evicted.")
	replayCmd.Flags().Int64Var(&linkAfter, "links", graph.DefaultLinkRetentionBlocks, "Blocks a link is retained.")
}

// replayResult is what replay prints.
type replayResult struct {
	Batches  int                 `json:"batches"`
	Rejected int                 `json:"rejected"`
	Stats    present.Stats       `json:"stats"`
	Fit      *viewport.Transform `json:"fit,omitempty"`
	Scene    *present.Scene      `json:"scene,omitempty"`
}

// replay runs every batch through the aggregator and settles the layout
// after each one, as the live engine would given enough time.
func replay(in io.Reader, w io.Writer) error {
	cfg := graph.DefaultConfig()
	cfg.StaleBlockThreshold = staleAfter
	cfg.LinkRetentionBlocks = linkAfter

	agg, err := graph.New(cfg)
	if err != nil {
		return err
	}

	stepper := layout.New(layout.DefaultConfig(width, height))

	var res replayResult
	err = readBatches(in, func(b graph.Batch) error {
		res.Batches++

		snap, err := agg.Ingest(b)
		if err != nil {
			res.Rejected++
			fmt.Fprintf(os.Stderr, "batch %d rejected: %s\n", res.Batches, err)
			return nil
		}

		stepper.Reseed(snap)
		for stepper.Tick() {
		}

		return nil
	})
	if err != nil {
		return err
	}

	snap := agg.Snapshot()
	positions := stepper.Positions()

	res.Stats = present.StatsOf(snap)
	if t, ok := viewport.New(viewport.DefaultConfig()).Fit(positions, viewport.Size{Width: width, Height: height}); ok {
		res.Fit = &t
	}
	if sceneOut {
		scene := present.New(cfg, nil).Scene(snap, positions)
		res.Scene = &scene
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
