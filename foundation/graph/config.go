package graph

import (
	"errors"
	"fmt"
)

// Set of default retention values.
const (
	DefaultStaleBlockThreshold = 10
	DefaultLinkRetentionBlocks = 5
	DefaultActivityThreshold   = 5
	DefaultBurnAddress         = "0x0"
)

// Config represents the retention rules the aggregator applies.
type Config struct {

	// StaleBlockThreshold is how many blocks a node survives after the last
	// block it appeared in.
	StaleBlockThreshold int64

	// LinkRetentionBlocks is how many blocks a link survives after the block
	// that created it. It must be smaller than StaleBlockThreshold so a link
	// never references an evicted node.
	LinkRetentionBlocks int64

	// ActivityThreshold is the transaction count at which a node is
	// highlighted. It is not an eviction rule.
	ActivityThreshold int

	// BurnAddress replaces the recipient of transactions that have none.
	BurnAddress string
}

// DefaultConfig returns the default retention rules.
func DefaultConfig() Config {
	return Config{
		StaleBlockThreshold: DefaultStaleBlockThreshold,
		LinkRetentionBlocks: DefaultLinkRetentionBlocks,
		ActivityThreshold:   DefaultActivityThreshold,
		BurnAddress:         DefaultBurnAddress,
	}
}

// Validate checks the retention windows are usable.
func (c Config) Validate() error {
	if c.StaleBlockThreshold < 0 || c.LinkRetentionBlocks < 0 {
		return errors.New("retention windows must not be negative")
	}

	if c.LinkRetentionBlocks >= c.StaleBlockThreshold {
		return fmt.Errorf("link retention %d must be less than stale threshold %d", c.LinkRetentionBlocks, c.StaleBlockThreshold)
	}

	if c.BurnAddress == "" {
		return errors.New("burn address must be set")
	}

	return nil
}
