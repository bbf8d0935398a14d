package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrBlockNotFound is returned when the node has no block at the height.
var ErrBlockNotFound = errors.New("block not found")

// Block is the part of an eth_getBlockByNumber result the watcher reads.
type Block struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         common.Hash    `json:"hash"`
	Transactions []Tx           `json:"transactions"`
}

// Tx is one transaction of a block as returned by the node. The node
// reports the sender for every type it serves, including deposit types
// the go-ethereum transaction decoder does not know.
type Tx struct {
	Hash  common.Hash     `json:"hash"`
	Type  hexutil.Uint64  `json:"type"`
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
}

// RPCClient reads blocks over JSON-RPC.
type RPCClient struct {
	rpc *rpc.Client
}

// Dial connects to the RPC endpoint at the specified url.
func Dial(ctx context.Context, url string) (*RPCClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return NewRPCClient(c), nil
}

// NewRPCClient wraps an existing connection.
func NewRPCClient(c *rpc.Client) *RPCClient {
	return &RPCClient{rpc: c}
}

// BlockNumber returns the height of the latest block.
func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.rpc.CallContext(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// BlockByNumber returns the block at the specified height with its full
// transactions.
func (c *RPCClient) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	var b *Block
	if err := c.rpc.CallContext(ctx, &b, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true); err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%d: %w", number, ErrBlockNotFound)
	}
	return b, nil
}

// Close releases the connection.
func (c *RPCClient) Close() {
	c.rpc.Close()
}
