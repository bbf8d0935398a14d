package chain_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ardanlabs/blockgraph/foundation/chain"
	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/retry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

type fakeClient struct {
	mu       sync.Mutex
	latest   uint64
	blocks   map[uint64]*chain.Block
	failNext int
}

func (c *fakeClient) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failNext > 0 {
		c.failNext--
		return 0, errors.New("connection reset")
	}
	return c.latest, nil
}

func (c *fakeClient) BlockByNumber(_ context.Context, n uint64) (*chain.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, exists := c.blocks[n]
	if !exists {
		return nil, chain.ErrBlockNotFound
	}
	return b, nil
}

func (c *fakeClient) add(number uint64, txs ...chain.Tx) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocks[number] = &chain.Block{
		Number:       hexutil.Uint64(number),
		Hash:         common.BigToHash(new(big.Int).SetUint64(number)),
		Transactions: txs,
	}
	if number > c.latest {
		c.latest = number
	}
}

func transfer(nonce uint64, from common.Address, to *common.Address, value int64) chain.Tx {
	return chain.Tx{
		Hash:  common.BigToHash(new(big.Int).SetUint64(1_000_000 + nonce)),
		Type:  2,
		From:  &from,
		To:    to,
		Value: (*hexutil.Big)(big.NewInt(value)),
	}
}

type collector struct {
	mu      sync.Mutex
	batches []graph.Batch
}

func (c *collector) sink(b graph.Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, b)
}

func TestConvert(t *testing.T) {
	from := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	t.Log("Given the need to convert a block into a batch.")
	{
		t.Logf("\tTest 0:\tWhen handling a transfer, a contract creation and a tx without sender.")
		{
			send := transfer(0, from, &to, 42)
			create := transfer(1, from, nil, 0)
			create.Value = nil
			orphan := chain.Tx{Hash: common.HexToHash("0x01"), Type: 0x7f}

			block := chain.Block{
				Number:       77,
				Transactions: []chain.Tx{send, create, orphan},
			}

			var events int
			batch := chain.Convert(&block, func(string, ...any) { events++ })

			if batch.ChainBlock != 77 || len(batch.Transactions) != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould carry block 77 with 2 txs, got %d/%d.", failed, batch.ChainBlock, len(batch.Transactions))
			}
			t.Logf("\t%s\tTest 0:\tShould carry block 77 with 2 txs.", success)

			got := batch.Transactions[0]
			if got.From != from.Hex() || got.To != to.Hex() || got.Value != "42" || got.Hash != send.Hash.Hex() {
				t.Fatalf("\t%s\tTest 0:\tShould keep the transfer fields, got %+v.", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould keep the transfer fields.", success)

			if batch.Transactions[1].To != "" || batch.Transactions[1].Value != "0" {
				t.Fatalf("\t%s\tTest 0:\tShould leave the recipient of a creation empty with zero value, got %+v.", failed, batch.Transactions[1])
			}
			t.Logf("\t%s\tTest 0:\tShould leave the recipient of a creation empty with zero value.", success)

			if events != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould report the skipped tx once, got %d.", failed, events)
			}
			t.Logf("\t%s\tTest 0:\tShould report the skipped tx once.", success)
		}
	}
}

func TestPoll(t *testing.T) {
	from := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	to := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	t.Log("Given the need to follow the head of the chain.")
	{
		client := fakeClient{blocks: make(map[uint64]*chain.Block)}
		client.add(10, transfer(0, from, &to, 1))

		var col collector
		w, err := chain.New(chain.Config{
			Client:     &client,
			Sink:       col.sink,
			MaxCatchUp: 3,
			Retry:      retry.Policy{MaxAttempts: 3, BaseDelay: 1, MaxDelay: 1},
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a watcher: %s", failed, err)
		}

		t.Logf("\tTest 0:\tWhen polling for the first time.")
		{
			if err := w.Poll(context.Background()); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould poll without error: %s", failed, err)
			}
			if len(col.batches) != 1 || col.batches[0].ChainBlock != 10 {
				t.Fatalf("\t%s\tTest 0:\tShould emit only the latest block, got %+v.", failed, col.batches)
			}
			t.Logf("\t%s\tTest 0:\tShould emit only the latest block.", success)
		}

		t.Logf("\tTest 1:\tWhen nothing new was produced.")
		{
			if err := w.Poll(context.Background()); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould poll without error: %s", failed, err)
			}
			if len(col.batches) != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould not emit again, got %d batches.", failed, len(col.batches))
			}
			t.Logf("\t%s\tTest 1:\tShould not emit again.", success)
		}

		t.Logf("\tTest 2:\tWhen the watcher falls far behind and the RPC flakes.")
		{
			for n := uint64(11); n <= 20; n++ {
				client.add(n, transfer(n, from, &to, int64(n)))
			}
			client.failNext = 2

			if err := w.Poll(context.Background()); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould recover through retries: %s", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould recover through retries.", success)

			if len(col.batches) != 4 || col.batches[1].ChainBlock != 18 || col.batches[3].ChainBlock != 20 {
				t.Fatalf("\t%s\tTest 2:\tShould catch up on the last 3 blocks only, got %d batches.", failed, len(col.batches))
			}
			t.Logf("\t%s\tTest 2:\tShould catch up on the last 3 blocks only.", success)
		}
	}
}

// =============================================================================

// ethService serves raw block JSON the way an OP stack node does.
type ethService struct {
	latest uint64
}

func (s *ethService) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(s.latest)
}

func (s *ethService) GetBlockByNumber(number hexutil.Uint64, full bool) (json.RawMessage, error) {
	if uint64(number) != s.latest || !full {
		return nil, nil
	}

	block := fmt.Sprintf(`{
		"number": %q,
		"hash": "0x3f2c5b7e9d1a4c6e8f0b2d4a6c8e0f1a3b5d7f9e1c3a5b7d9f1e3c5a7b9d1f3e",
		"transactions": [
			{
				"type": "0x7e",
				"hash": "0x8b1e0f6a4c2d9e7b5a3f1c8d6e4b2a0f9c7e5d3b1a8f6e4c2d0b9a7f5e3c1d0a",
				"sourceHash": "0x1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f5a6b7c8d9e0f1a2b",
				"from": "0xdeaddeaddeaddeaddeaddeaddeaddeaddead0001",
				"to": "0x4200000000000000000000000000000000000015",
				"mint": "0x0",
				"value": "0x0",
				"gas": "0xf4240",
				"isSystemTx": false,
				"input": "0x440a5e20"
			},
			{
				"type": "0x2",
				"hash": "0x5c0d3e7a9b1f2c4e6a8d0b3f5e7c9a1d2b4f6e8a0c3d5b7f9e1a2c4d6b8f0e2a",
				"from": "0x00000000000000000000000000000000000000a1",
				"to": "0x00000000000000000000000000000000000000bb",
				"value": "0xde0b6b3a7640000",
				"nonce": "0x1",
				"gas": "0x5208",
				"maxFeePerGas": "0x3b9aca00",
				"maxPriorityFeePerGas": "0x1",
				"input": "0x",
				"v": "0x1",
				"r": "0x1",
				"s": "0x1"
			}
		]
	}`, hexutil.EncodeUint64(s.latest))

	return json.RawMessage(block), nil
}

func TestRPCClient(t *testing.T) {
	t.Log("Given the need to read blocks that carry deposit transactions.")
	{
		server := rpc.NewServer()
		defer server.Stop()

		if err := server.RegisterName("eth", &ethService{latest: 5}); err != nil {
			t.Fatalf("\t%s\tShould be able to register the service: %s", failed, err)
		}

		client := chain.NewRPCClient(rpc.DialInProc(server))
		defer client.Close()

		var col collector
		w, err := chain.New(chain.Config{
			Client: client,
			Sink:   col.sink,
			Retry:  retry.Policy{MaxAttempts: 1},
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a watcher: %s", failed, err)
		}

		t.Logf("\tTest 0:\tWhen the head block starts with a type 0x7e deposit.")
		{
			if err := w.Poll(context.Background()); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould poll without error: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould poll without error.", success)

			if len(col.batches) != 1 || col.batches[0].ChainBlock != 5 || len(col.batches[0].Transactions) != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould emit block 5 with both txs, got %+v.", failed, col.batches)
			}
			t.Logf("\t%s\tTest 0:\tShould emit block 5 with both txs.", success)

			deposit := col.batches[0].Transactions[0]
			if deposit.From != common.HexToAddress("0xdeaddeaddeaddeaddeaddeaddeaddeaddead0001").Hex() || deposit.Value != "0" {
				t.Fatalf("\t%s\tTest 0:\tShould keep the deposit sender, got %+v.", failed, deposit)
			}
			t.Logf("\t%s\tTest 0:\tShould keep the deposit sender.", success)

			if got := col.batches[0].Transactions[1].Value; got != "1000000000000000000" {
				t.Fatalf("\t%s\tTest 0:\tShould decode the value in wei, got %s.", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould decode the value in wei.", success)
		}

		t.Logf("\tTest 1:\tWhen the block does not exist.")
		{
			_, err := client.BlockByNumber(context.Background(), 99)
			if !errors.Is(err, chain.ErrBlockNotFound) {
				t.Fatalf("\t%s\tTest 1:\tShould return ErrBlockNotFound, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould return ErrBlockNotFound.", success)
		}
	}
}

func TestNew(t *testing.T) {
	t.Log("Given the need to validate watcher configuration.")
	{
		t.Logf("\tTest 0:\tWhen the client or sink is missing.")
		{
			if _, err := chain.New(chain.Config{Sink: func(graph.Batch) {}}); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould reject a missing client.", failed)
			}
			if _, err := chain.New(chain.Config{Client: &fakeClient{}}); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould reject a missing sink.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould reject an incomplete config.", success)
		}
	}
}
