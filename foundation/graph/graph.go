// Package graph aggregates a stream of transaction batches into a graph of
// addresses and transfers with bounded retention.
package graph

import "errors"

// ErrInvalidTransaction is returned when a batch contains a transaction
// without a hash or a sender.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Tx is a single transfer as delivered by the producer. Value is an opaque
// decimal string.
type Tx struct {
	Hash  string `json:"hash" validate:"required"`
	From  string `json:"from" validate:"required"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// Batch is one delivery of transactions, logically one block.
type Batch struct {
	Transactions []Tx `json:"transactions" validate:"dive"`

	// ChainBlock is the block number the producer read the transactions
	// from, zero when unknown. It is informational only.
	ChainBlock uint64 `json:"chain_block"`
}

// Node is an address seen in the stream.
type Node struct {
	ID              string `json:"id"`
	TxCount         int    `json:"tx_count"`
	LinkCount       int    `json:"link_count"`
	IsSender        bool   `json:"is_sender"`
	IsReceiver      bool   `json:"is_receiver"`
	LastActiveBlock int64  `json:"last_active_block"`
}

// Link is a transaction between two nodes. Hash identifies the link.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  string `json:"value"`
	Hash   string `json:"hash"`
	Block  int64  `json:"block"`
}

// Snapshot is the immutable state of the graph after one ingest.
type Snapshot struct {
	Version    uint64 `json:"version"`
	Block      int64  `json:"block"`
	ChainBlock uint64 `json:"chain_block"`
	TotalTxs   int    `json:"total_txs"`
	Nodes      []Node `json:"nodes"`
	Links      []Link `json:"links"`
}

// Node returns the node with the specified id.
func (s Snapshot) Node(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Link returns the link with the specified hash.
func (s Snapshot) Link(hash string) (Link, bool) {
	for _, l := range s.Links {
		if l.Hash == hash {
			return l, true
		}
	}
	return Link{}, false
}
