package cmd

import (
	"context"

	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/kafka"
	"github.com/spf13/cobra"
)

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish envelopes from a file to a Kafka topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		return publish(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&brokers, "brokers", "localhost:9092", "Kafka brokers, comma separated.")
	publishCmd.Flags().StringVar(&topic, "topic", "blockgraph.batches", "Kafka topic.")
}

func publish(ctx context.Context) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	in, err := openInput(inputFile)
	if err != nil {
		return err
	}
	defer in.Close()

	pub, err := kafka.NewPublisher(kafka.SplitBrokers(brokers), topic)
	if err != nil {
		return err
	}
	defer pub.Close()

	var sent int
	err = readBatches(in, func(b graph.Batch) error {
		if err := pub.Publish(ctx, b); err != nil {
			return err
		}
		sent++
		return nil
	})

	log.Infow("publish", "status", "completed", "topic", topic, "batches", sent)
	return err
}
