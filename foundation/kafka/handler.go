package kafka

import (
	"github.com/IBM/sarama"
	"github.com/ardanlabs/blockgraph/foundation/stream"
)

// Handler implements sarama.ConsumerGroupHandler for batch envelopes.
type Handler struct {
	sink Sink
	ev   EventHandler
}

// NewHandler constructs a handler that hands batches to the sink.
func NewHandler(sink Sink, ev EventHandler) *Handler {

	// Build a safe event handler function for use.
	safe := func(v string, args ...any) {
		if ev != nil {
			ev(v, args...)
		}
	}

	return &Handler{
		sink: sink,
		ev:   safe,
	}
}

// Setup is run at the beginning of a new session.
func (h *Handler) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup is run at the end of a session.
func (h *Handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim processes the messages of one partition claim.
func (h *Handler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.Handle(msg)
			sess.MarkMessage(msg, "")

		case <-sess.Context().Done():
			return nil
		}
	}
}

// Handle decodes one message and hands its batch to the sink. Undecodable
// messages and envelopes without a batch are skipped. It reports whether a
// batch was delivered.
func (h *Handler) Handle(msg *sarama.ConsumerMessage) bool {
	m, err := stream.Decode(msg.Value)
	if err != nil {
		h.ev("kafka: handle: partition[%d] offset[%d]: ERROR: %s", msg.Partition, msg.Offset, err)
		return false
	}

	b, ok := m.Batch()
	if !ok {
		return false
	}

	if !h.sink(b) {
		h.ev("kafka: handle: partition[%d] offset[%d]: batch dropped", msg.Partition, msg.Offset)
		return false
	}

	return true
}
