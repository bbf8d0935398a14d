package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/stream"
)

// maxLine bounds a single envelope line.
const maxLine = 16 << 20

// openInput opens the input file or stdin.
func openInput(name string) (io.ReadCloser, error) {
	if name == "" || name == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return f, nil
}

// readBatches calls fn for every batch in r. Each line holds a JSON
// envelope or an SSE data line. Lines without a batch are skipped.
func readBatches(r io.Reader, fn func(b graph.Batch) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var line int
	for scanner.Scan() {
		line++

		frame := bytes.TrimSpace(scanner.Bytes())
		if len(frame) == 0 {
			continue
		}

		m, err := stream.DecodeFrame(frame)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		b, ok := m.Batch()
		if !ok {
			continue
		}

		if err := fn(b); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}

	return scanner.Err()
}
