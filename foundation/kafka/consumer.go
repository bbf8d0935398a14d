package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/ardanlabs/blockgraph/foundation/graph"
)

// Sink receives each decoded batch. It returns false when the batch was
// dropped.
type Sink func(b graph.Batch) bool

// Consumer reads batches from a topic as part of a consumer group.
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler *Handler
}

// NewConsumer joins the consumer group on the brokers.
func NewConsumer(brokers []string, groupID string, topic string, sink Sink, ev EventHandler) (*Consumer, error) {
	if len(brokers) == 0 || groupID == "" || topic == "" {
		return nil, errors.New("brokers, group and topic are required")
	}

	cg, err := sarama.NewConsumerGroup(brokers, groupID, ConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("new consumer group: %w", err)
	}

	c := Consumer{
		group:   cg,
		topic:   topic,
		handler: NewHandler(sink, ev),
	}

	return &c, nil
}

// Run consumes until the context is cancelled. Consume returns on every
// rebalance so it is called in a loop.
func (c *Consumer) Run(ctx context.Context) error {
	c.handler.ev("kafka: Run: started: topic[%s]", c.topic)
	defer c.handler.ev("kafka: Run: completed")

	go func() {
		for err := range c.group.Errors() {
			c.handler.ev("kafka: Run: group: ERROR: %s", err)
		}
	}()

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.handler.ev("kafka: Run: consume: ERROR: %s", err)

			select {
			case <-time.After(300 * time.Millisecond):
			case <-ctx.Done():
			}
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}
