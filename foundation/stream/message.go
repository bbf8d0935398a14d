package stream

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/goccy/go-json"
)

// TypeNewTransactions marks an envelope carrying one batch.
const TypeNewTransactions = "new_transactions"

// ErrNoData is returned when an SSE frame carries no data line.
var ErrNoData = errors.New("frame has no data")

// Message is the envelope producers send for every batch. Envelopes of any
// other type, such as a connection greeting, carry no batch.
type Message struct {
	Type  string     `json:"type"`
	Data  []graph.Tx `json:"data"`
	Block uint64     `json:"block,omitempty"`
}

// NewMessage wraps a batch in an envelope.
func NewMessage(b graph.Batch) Message {
	return Message{
		Type:  TypeNewTransactions,
		Data:  b.Transactions,
		Block: b.ChainBlock,
	}
}

// Batch returns the batch carried by the envelope.
func (m Message) Batch() (graph.Batch, bool) {
	if m.Type != TypeNewTransactions {
		return graph.Batch{}, false
	}

	b := graph.Batch{
		Transactions: m.Data,
		ChainBlock:   m.Block,
	}

	return b, true
}

// Encode marshals the envelope.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return data, nil
}

// Decode unmarshals an envelope.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decoding message: %w", err)
	}
	return m, nil
}

// DecodeSSE unmarshals the envelope from a server sent event frame. Multiple
// data lines are joined with newlines as the SSE format requires.
func DecodeSSE(frame []byte) (Message, error) {
	var data [][]byte
	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if v, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			data = append(data, bytes.TrimPrefix(v, []byte(" ")))
		}
	}

	if len(data) == 0 {
		return Message{}, ErrNoData
	}

	return Decode(bytes.Join(data, []byte("\n")))
}

// DecodeFrame accepts either a bare JSON envelope or an SSE frame.
func DecodeFrame(frame []byte) (Message, error) {
	trimmed := bytes.TrimSpace(frame)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		return Decode(trimmed)
	}
	return DecodeSSE(trimmed)
}
