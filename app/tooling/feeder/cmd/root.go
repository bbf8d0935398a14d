// Package cmd contains the feeder app that produces transaction batches for
// the grapher.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/blockgraph/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	inputFile string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "feeder",
	Short: "Produce transaction batches for the grapher",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Interrupts cancel the context the commands run with.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "-", "File of envelopes, one per line. Use - for stdin.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log transport events.")
}

func newLogger() (*zap.SugaredLogger, error) {
	log, err := logger.New("FEEDER")
	if err != nil {
		return nil, fmt.Errorf("constructing logger: %w", err)
	}
	return log, nil
}

// evHandler returns a transport event handler that logs when verbose.
func evHandler(log *zap.SugaredLogger) func(v string, args ...any) {
	return func(v string, args ...any) {
		if verbose {
			log.Infow(fmt.Sprintf(v, args...))
		}
	}
}
