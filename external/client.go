package external

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/bnb-chain/blob-stats/config"
)

type IClient interface {
	GetBlockHeader(ctx context.Context, height uint64) (*types.Header, error)
	GetLatestBlockNum(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

type Client struct {
	ethClient *ethclient.Client
	endpoint  string
}

func NewClient(cfg *config.SyncerConfig) IClient {
	ethClient, err := ethclient.Dial(cfg.RPCAddrs[0])
	if err != nil {
		panic("new eth client error")
	}
	return &Client{
		ethClient: ethClient,
		endpoint:  cfg.RPCAddrs[0],
	}
}

func (c *Client) GetBlockHeader(ctx context.Context, height uint64) (*types.Header, error) {
	header, err := c.ethClient.HeaderByNumber(ctx, new(big.Int).SetUint64(height))
	if err != nil {
		return nil, err
	}
	return header, nil
}

func (c *Client) GetLatestBlockNum(ctx context.Context) (uint64, error) {
	head, err := c.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	if head == nil || head.Number == nil {
		return 0, ethereum.NotFound
	}
	return head.Number.Uint64(), nil
}

func (c *Client) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	return c.ethClient.BlockByNumber(ctx, number)
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}
