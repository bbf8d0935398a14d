// Package kafka carries transaction batches over a Kafka topic so the watcher
// and the grapher can run as separate processes.
package kafka

import (
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// Version is the broker protocol version both sides negotiate.
var Version = sarama.V2_1_0_0

// EventHandler defines a function that is called when events
// occur while producing or consuming.
type EventHandler func(v string, args ...any)

// SplitBrokers turns a comma separated broker list into addresses.
func SplitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ProducerConfig returns the sarama settings used for publishing.
func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = Version
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 10
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	return cfg
}

// ConsumerConfig returns the sarama settings used for consuming.
func ConsumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = Version
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true
	return cfg
}
