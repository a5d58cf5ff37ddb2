package adapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// weiPerToken converts the node's wei-denominated balances to whole base
// asset units.
var weiPerToken = new(big.Float).SetFloat64(1e18)

// ChainClient reads on-chain state over RPC. The engine only needs one
// read: a recommender's stake balance, which feeds virtualConfidence.
type ChainClient struct {
	client *ethclient.Client
	rpcURL string
}

// NewChainClient dials the configured RPC endpoint
func NewChainClient(ctx context.Context, rpcURL string) (*ChainClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain RPC: %w", err)
	}
	return &ChainClient{client: client, rpcURL: rpcURL}, nil
}

// Close closes the RPC connection
func (c *ChainClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// GetStakeBalance returns the current balance of a recommender's stake
// address in whole base asset units.
func (c *ChainClient) GetStakeBalance(ctx context.Context, stakeAddress string) (float64, error) {
	if !common.IsHexAddress(stakeAddress) {
		return 0, fmt.Errorf("invalid stake address: %s", stakeAddress)
	}

	balance, err := c.client.BalanceAt(ctx, common.HexToAddress(stakeAddress), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch stake balance: %w", err)
	}

	units, _ := new(big.Float).Quo(new(big.Float).SetInt(balance), weiPerToken).Float64()
	return units, nil
}
