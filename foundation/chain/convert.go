package chain

import (
	"github.com/ardanlabs/blockgraph/foundation/graph"
)

// Convert turns a block into a batch. Transactions without a sender are
// skipped and reported. Contract creations keep an empty recipient so the
// aggregator routes them to the burn address.
func Convert(block *Block, ev EventHandler) graph.Batch {
	batch := graph.Batch{
		Transactions: make([]graph.Tx, 0, len(block.Transactions)),
		ChainBlock:   uint64(block.Number),
	}

	for _, tx := range block.Transactions {
		if tx.From == nil {
			if ev != nil {
				ev("chain: convert: block[%d] tx[%s] type[%d]: no sender", uint64(block.Number), tx.Hash.Hex(), uint64(tx.Type))
			}
			continue
		}

		var to string
		if tx.To != nil {
			to = tx.To.Hex()
		}

		value := "0"
		if tx.Value != nil {
			value = tx.Value.ToInt().String()
		}

		batch.Transactions = append(batch.Transactions, graph.Tx{
			Hash:  tx.Hash.Hex(),
			From:  tx.From.Hex(),
			To:    to,
			Value: value,
		})
	}

	return batch
}
