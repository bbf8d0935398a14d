package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/stream"
	"github.com/spf13/cobra"
)

var (
	url   string
	delay time.Duration
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Post envelopes from a file to a running grapher",
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the grapher.")
	sendCmd.Flags().DurationVarP(&delay, "delay", "d", 2*time.Second, "Pause between batches, roughly one block time.")
}

func send(ctx context.Context) error {
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

	client := http.Client{Timeout: 10 * time.Second}
	endpoint := fmt.Sprintf("%s/v1/batches", url)

	var sent, dropped int
	err = readBatches(in, func(b graph.Batch) error {
		if sent+dropped > 0 && delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		ok, err := postBatch(ctx, &client, endpoint, b)
		if err != nil {
			return err
		}
		if !ok {
			dropped++
			log.Infow("send", "status", "dropped by grapher", "chainblock", b.ChainBlock)
			return nil
		}
		sent++
		return nil
	})

	log.Infow("send", "status", "completed", "url", url, "sent", sent, "dropped", dropped)
	return err
}

// postBatch submits one envelope. It reports false when the grapher dropped
// the batch because it is paused or full.
func postBatch(ctx context.Context, client *http.Client, endpoint string, b graph.Batch) (bool, error) {
	data, err := stream.Encode(stream.NewMessage(b))
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		return true, nil
	case http.StatusServiceUnavailable:
		return false, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return false, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}
