package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/stream"
)

// Publisher writes batches to a topic and waits for the broker ack.
type Publisher struct {
	topic    string
	producer sarama.SyncProducer
}

// NewPublisher connects a synchronous producer to the brokers.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no brokers")
	}

	sp, err := sarama.NewSyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("new producer: %w", err)
	}

	return NewPublisherFromProducer(sp, topic)
}

// NewPublisherFromProducer wraps an existing producer.
func NewPublisherFromProducer(sp sarama.SyncProducer, topic string) (*Publisher, error) {
	if topic == "" {
		return nil, errors.New("topic empty")
	}

	p := Publisher{
		topic:    topic,
		producer: sp,
	}

	return &p, nil
}

// Publish sends one batch keyed by its chain block.
func (p *Publisher) Publish(ctx context.Context, b graph.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := stream.Encode(stream.NewMessage(b))
	if err != nil {
		return err
	}

	msg := sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(b.ChainBlock, 10)),
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := p.producer.SendMessage(&msg); err != nil {
		return fmt.Errorf("send block %d: %w", b.ChainBlock, err)
	}

	return nil
}

// Close shuts the producer down.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
