package graph

import (
	"fmt"

	"github.com/ardanlabs/blockgraph/foundation/validate"
)

// Aggregator owns the node and link state and applies the merge and
// eviction rules for every batch. It is not safe for concurrent use; the
// owner serializes calls to Ingest.
type Aggregator struct {
	cfg      Config
	block    int64
	version  uint64
	totalTxs int

	nodes map[string]*Node
	order []string
	links []Link

	snap Snapshot
}

// New constructs an aggregator with the specified retention rules.
func New(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	agg := Aggregator{
		cfg:   cfg,
		nodes: make(map[string]*Node),
		snap: Snapshot{
			Nodes: []Node{},
			Links: []Link{},
		},
	}

	return &agg, nil
}

// Config returns the retention rules in use.
func (a *Aggregator) Config() Config {
	return a.cfg
}

// Block returns the local block counter. It counts ingested batches and is
// not the chain's block number.
func (a *Aggregator) Block() int64 {
	return a.block
}

// Snapshot returns the snapshot produced by the last successful ingest.
func (a *Aggregator) Snapshot() Snapshot {
	return a.snap
}

// Ingest applies a batch to the graph and returns the new snapshot. A batch
// with an invalid transaction is rejected whole and leaves the state as it
// was, including the block counter.
func (a *Aggregator) Ingest(b Batch) (Snapshot, error) {
	if err := validate.Check(b); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}

	a.block++
	block := a.block

	for _, tx := range b.Transactions {
		to := tx.To
		if to == "" {
			to = a.cfg.BurnAddress
		}

		// A self transfer touches the same node twice.
		a.touch(tx.From, block).IsSender = true
		a.touch(to, block).IsReceiver = true

		a.links = append(a.links, Link{
			Source: tx.From,
			Target: to,
			Value:  tx.Value,
			Hash:   tx.Hash,
			Block:  block,
		})
	}
	a.totalTxs += len(b.Transactions)

	a.evictNodes(block)
	a.evictLinks(block)

	a.version++
	a.snap = a.build(block, b.ChainBlock)

	return a.snap, nil
}

// =============================================================================

// touch fetches or creates the node for the address and records activity.
func (a *Aggregator) touch(id string, block int64) *Node {
	n, exists := a.nodes[id]
	if !exists {
		n = &Node{ID: id}
		a.nodes[id] = n
		a.order = append(a.order, id)
	}

	n.TxCount++
	n.LastActiveBlock = block

	return n
}

// evictNodes drops every node that has been idle for longer than the stale
// threshold.
func (a *Aggregator) evictNodes(block int64) {
	kept := a.order[:0]
	for _, id := range a.order {
		if block-a.nodes[id].LastActiveBlock <= a.cfg.StaleBlockThreshold {
			kept = append(kept, id)
			continue
		}
		delete(a.nodes, id)
	}
	a.order = kept
}

// evictLinks drops every link older than the link retention window.
func (a *Aggregator) evictLinks(block int64) {
	kept := make([]Link, 0, len(a.links))
	for _, l := range a.links {
		if block-l.Block <= a.cfg.LinkRetentionBlocks {
			kept = append(kept, l)
		}
	}
	a.links = kept
}

// build copies the internal state into a new snapshot value.
func (a *Aggregator) build(block int64, chainBlock uint64) Snapshot {
	degree := make(map[string]int, len(a.order))
	for _, l := range a.links {
		degree[l.Source]++
		if l.Target != l.Source {
			degree[l.Target]++
		}
	}

	nodes := make([]Node, len(a.order))
	for i, id := range a.order {
		n := *a.nodes[id]
		n.LinkCount = degree[id]
		nodes[i] = n
	}

	links := make([]Link, len(a.links))
	copy(links, a.links)

	return Snapshot{
		Version:    a.version,
		Block:      block,
		ChainBlock: chainBlock,
		TotalTxs:   a.totalTxs,
		Nodes:      nodes,
		Links:      links,
	}
}
