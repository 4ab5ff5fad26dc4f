package chain

import (
	"context"
	"errors"
	"io"
	"math"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus/misc/eip4844"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/blob-stats/db"
)

func makeBlock(number uint64, parent common.Hash, fork byte) *types.Block {
	return types.NewBlockWithHeader(&types.Header{
		Number:     new(big.Int).SetUint64(number),
		ParentHash: parent,
		Time:       1700000000 + number*12,
		Difficulty: common.Big0,
		Extra:      []byte{fork},
	})
}

func makeChain(from *types.Block, count int, fork byte) []*types.Block {
	blocks := make([]*types.Block, 0, count)
	parent := from
	for i := 0; i < count; i++ {
		b := makeBlock(parent.NumberU64()+1, parent.Hash(), fork)
		blocks = append(blocks, b)
		parent = b
	}
	return blocks
}

type fakeClient struct {
	mu     sync.Mutex
	blocks map[uint64]*types.Block
	latest uint64
}

func newFakeClient(blocks ...*types.Block) *fakeClient {
	c := &fakeClient{blocks: make(map[uint64]*types.Block)}
	c.set(blocks...)
	return c
}

func (c *fakeClient) set(blocks ...*types.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range blocks {
		c.blocks[b.NumberU64()] = b
		if b.NumberU64() > c.latest {
			c.latest = b.NumberU64()
		}
	}
}

func (c *fakeClient) GetBlockHeader(_ context.Context, height uint64) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.blocks[height]
	if !ok {
		return nil, ethereum.NotFound
	}
	return b.Header(), nil
}

func (c *fakeClient) GetLatestBlockNum(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, nil
}

func (c *fakeClient) BlockByNumber(_ context.Context, number *big.Int) (*types.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.blocks[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return b, nil
}

func (c *fakeClient) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

type memCheckpoints struct {
	cps    map[string]*db.Checkpoint
	blocks map[uint64]*db.Block
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{cps: make(map[string]*db.Checkpoint), blocks: make(map[uint64]*db.Block)}
}

// applied records blocks as stored rows, the way the syncer leaves them.
func (m *memCheckpoints) applied(blocks ...*types.Block) {
	for _, b := range blocks {
		m.blocks[b.NumberU64()] = &db.Block{BlockNumber: b.NumberU64(), BlockHash: b.Hash().Hex(), BlockTimestamp: b.Time()}
	}
}

func (m *memCheckpoints) GetBlock(blockNumber uint64) (*db.Block, error) {
	return m.blocks[blockNumber], nil
}

func (m *memCheckpoints) SaveCheckpoint(name string, blockNumber uint64, blockHash string) error {
	m.cps[name] = &db.Checkpoint{Name: name, BlockNumber: blockNumber, BlockHash: blockHash}
	return nil
}

func (m *memCheckpoints) GetCheckpoint(name string) (*db.Checkpoint, error) {
	return m.cps[name], nil
}

func blockNumbers(s *Segment) []uint64 {
	nums := make([]uint64, 0, s.Len())
	for _, b := range s.Blocks {
		nums = append(nums, b.NumberU64())
	}
	return nums
}

func TestSegment(t *testing.T) {
	genesis := makeBlock(0, common.Hash{}, 0)
	blocks := makeChain(genesis, 3, 0)
	seg := NewSegment(blocks[2], blocks[0], blocks[1])
	require.Equal(t, []uint64{1, 2, 3}, blockNumbers(seg))
	require.Equal(t, blocks[2].Hash(), seg.Tip().Hash())
	first, last := seg.Range()
	require.Equal(t, uint64(1), first)
	require.Equal(t, uint64(3), last)

	var empty *Segment
	require.Nil(t, empty.Tip())
	require.Equal(t, 0, empty.Len())
}

func TestNotificationChains(t *testing.T) {
	genesis := makeBlock(0, common.Hash{}, 0)
	oldSeg := NewSegment(makeChain(genesis, 1, 1)...)
	newSeg := NewSegment(makeChain(genesis, 1, 2)...)

	committed := NewCommitted(newSeg)
	require.Equal(t, newSeg, committed.CommittedChain())
	require.Nil(t, committed.RevertedChain())

	reorged := NewReorged(oldSeg, newSeg)
	require.Equal(t, newSeg, reorged.CommittedChain())
	require.Equal(t, oldSeg, reorged.RevertedChain())

	reverted := NewReverted(oldSeg)
	require.Nil(t, reverted.CommittedChain())
	require.Equal(t, oldSeg, reverted.RevertedChain())
	require.Equal(t, "reverted", reverted.Kind.String())
}

func TestBlobParamsByName(t *testing.T) {
	p, err := BlobParamsByName("BPO2")
	require.NoError(t, err)
	require.Equal(t, BPO2BlobParams, p)

	_, err = BlobParamsByName("frontier")
	require.ErrorIs(t, err, ErrUnknownParams)
}

func TestBlobFee(t *testing.T) {
	require.Equal(t, int64(1), CancunBlobParams.BlobFee(0).Int64())
	require.Equal(t, int64(1), BPO2BlobParams.BlobFee(0).Int64())

	for _, excess := range []uint64{0, 131072, 10 * 1 << 20, 400_000_000} {
		assert.Equal(t, eip4844.CalcBlobFee(excess).String(),
			fakeExponential(big.NewInt(1), new(big.Int).SetUint64(excess), big.NewInt(3338477)).String())
	}

	// a larger update fraction prices the same excess lower
	excess := uint64(100_000_000)
	require.Equal(t, -1, BPO2BlobParams.BlobFee(excess).Cmp(PragueBlobParams.BlobFee(excess)))
}

func TestHeaderBlobFee(t *testing.T) {
	fee, excess := CancunBlobParams.HeaderBlobFee(&types.Header{})
	require.Zero(t, fee)
	require.Zero(t, excess)

	e := uint64(131072 * 100)
	fee, excess = CancunBlobParams.HeaderBlobFee(&types.Header{ExcessBlobGas: &e})
	require.Equal(t, e, excess)
	require.Equal(t, eip4844.CalcBlobFee(e).Uint64(), fee)

	huge := uint64(44 * 3338477)
	fee, _ = CancunBlobParams.HeaderBlobFee(&types.Header{ExcessBlobGas: &huge})
	require.Equal(t, uint64(math.MaxInt64), fee)
}

func TestChannelSource(t *testing.T) {
	ctx := context.Background()
	src := NewChannelSource(2)
	genesis := makeBlock(0, common.Hash{}, 0)
	n := NewCommitted(NewSegment(makeChain(genesis, 1, 0)...))
	require.NoError(t, src.Send(ctx, n))
	src.Close()
	src.Close()

	got, err := src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, n, got)
	_, err = src.Next(ctx)
	require.ErrorIs(t, err, io.EOF)

	_, _, acked := src.Finished()
	require.False(t, acked)
	require.NoError(t, src.FinishedHeight(ctx, 1, got.New.Tip().Hash()))
	require.NoError(t, src.FinishedHeight(ctx, 2, common.Hash{}))
	height, _, acked := src.Finished()
	require.True(t, acked)
	require.Equal(t, uint64(2), height)
	require.Equal(t, []uint64{1, 2}, src.Acks())
}

func TestChannelSource_ContextCancel(t *testing.T) {
	src := NewChannelSource(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRPCSource_LinearCommits(t *testing.T) {
	ctx := context.Background()
	genesis := makeBlock(0, common.Hash{}, 0)
	blocks := append([]*types.Block{genesis}, makeChain(genesis, 3, 0)...)
	cli := newFakeClient(blocks...)
	cps := newMemCheckpoints()

	src, err := NewRPCSource(ctx, cli, cps, "test", 0, time.Millisecond)
	require.NoError(t, err)
	for i := uint64(0); i <= 3; i++ {
		n, err := src.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, Committed, n.Kind)
		require.Equal(t, []uint64{i}, blockNumbers(n.New))
	}

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = src.Next(tctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, src.FinishedHeight(ctx, 3, blocks[3].Hash()))
	require.Equal(t, blocks[3].Hash().Hex(), cps.cps["test"].BlockHash)
}

func TestRPCSource_DetectsReorg(t *testing.T) {
	ctx := context.Background()
	genesis := makeBlock(0, common.Hash{}, 0)
	canonical := append([]*types.Block{genesis}, makeChain(genesis, 3, 0)...)
	cli := newFakeClient(canonical...)

	src, err := NewRPCSource(ctx, cli, newMemCheckpoints(), "test", 0, time.Millisecond)
	require.NoError(t, err)
	for i := 0; i < len(canonical); i++ {
		_, err := src.Next(ctx)
		require.NoError(t, err)
	}

	fork := makeChain(canonical[1], 3, 1)
	cli.set(fork...)

	n, err := src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, Reorged, n.Kind)
	require.Equal(t, []uint64{2, 3}, blockNumbers(n.Old))
	require.Equal(t, canonical[3].Hash(), n.Old.Tip().Hash())
	require.Equal(t, []uint64{2, 3, 4}, blockNumbers(n.New))
	require.Equal(t, fork[2].Hash(), n.New.Tip().Hash())

	cli.set(makeChain(fork[2], 1, 1)...)
	n, err = src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, Committed, n.Kind)
	require.Equal(t, []uint64{5}, blockNumbers(n.New))
}

func TestRPCSource_ResumeFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	genesis := makeBlock(0, common.Hash{}, 0)
	blocks := append([]*types.Block{genesis}, makeChain(genesis, 4, 0)...)
	cli := newFakeClient(blocks...)

	cps := newMemCheckpoints()
	cps.applied(blocks[:3]...)
	require.NoError(t, cps.SaveCheckpoint("test", 2, blocks[2].Hash().Hex()))
	src, err := NewRPCSource(ctx, cli, cps, "test", 0, time.Millisecond)
	require.NoError(t, err)
	n, err := src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, Committed, n.Kind)
	require.Equal(t, []uint64{3}, blockNumbers(n.New))
}

func TestRPCSource_ResumeReplacesCheckpointBlock(t *testing.T) {
	ctx := context.Background()
	genesis := makeBlock(0, common.Hash{}, 0)
	blocks := append([]*types.Block{genesis}, makeChain(genesis, 4, 0)...)
	cli := newFakeClient(blocks...)

	cps := newMemCheckpoints()
	cps.applied(blocks[:2]...)
	require.NoError(t, cps.SaveCheckpoint("test", 2, common.HexToHash("0xdead").Hex()))
	src, err := NewRPCSource(ctx, cli, cps, "test", 0, time.Millisecond)
	require.NoError(t, err)

	n, err := src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, Reorged, n.Kind)
	require.Equal(t, []uint64{2}, blockNumbers(n.Old))
	require.Equal(t, []uint64{2}, blockNumbers(n.New))
	require.Equal(t, blocks[2].Hash(), n.New.Tip().Hash())

	n, err = src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, Committed, n.Kind)
	require.Equal(t, []uint64{3}, blockNumbers(n.New))
}

func TestRPCSource_ResumeForkBelowCheckpoint(t *testing.T) {
	ctx := context.Background()
	genesis := makeBlock(0, common.Hash{}, 0)
	forkA := makeChain(genesis, 2, 1)
	forkB := makeChain(genesis, 3, 2)
	cli := newFakeClient(append([]*types.Block{genesis}, forkB...)...)

	cps := newMemCheckpoints()
	cps.applied(genesis)
	cps.applied(forkA...)
	require.NoError(t, cps.SaveCheckpoint("test", 2, forkA[1].Hash().Hex()))

	src, err := NewRPCSource(ctx, cli, cps, "test", 0, time.Millisecond)
	require.NoError(t, err)

	n, err := src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, Reorged, n.Kind)
	require.Equal(t, []uint64{1, 2}, blockNumbers(n.Old))
	require.Equal(t, forkA[1].Time(), n.Old.Tip().Time())
	require.Equal(t, []uint64{1, 2}, blockNumbers(n.New))
	require.Equal(t, forkB[0].Hash(), n.New.Blocks[0].Hash())
	require.Equal(t, forkB[1].Hash(), n.New.Tip().Hash())

	n, err = src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, Committed, n.Kind)
	require.Equal(t, []uint64{3}, blockNumbers(n.New))
	require.Equal(t, forkB[2].Hash(), n.New.Tip().Hash())
}

func TestRPCSource_ResumeReorgTooDeep(t *testing.T) {
	ctx := context.Background()
	genesis := makeBlock(0, common.Hash{}, 0)
	depth := MaxReorgDepth + 2
	forkA := makeChain(genesis, depth, 1)
	forkB := makeChain(genesis, depth, 2)
	cli := newFakeClient(append([]*types.Block{genesis}, forkB...)...)

	cps := newMemCheckpoints()
	cps.applied(genesis)
	cps.applied(forkA...)
	tip := forkA[len(forkA)-1]
	require.NoError(t, cps.SaveCheckpoint("test", tip.NumberU64(), tip.Hash().Hex()))

	_, err := NewRPCSource(ctx, cli, cps, "test", 0, time.Millisecond)
	require.ErrorIs(t, err, ErrReorgTooDeep)
}

func TestRPCSource_Close(t *testing.T) {
	ctx := context.Background()
	cli := newFakeClient(makeBlock(0, common.Hash{}, 0))
	src, err := NewRPCSource(ctx, cli, newMemCheckpoints(), "test", 5, time.Hour)

	require.NoError(t, err)
	go func() {
		time.Sleep(10 * time.Millisecond)
		src.Close()
	}()
	_, err = src.Next(ctx)
	require.True(t, errors.Is(err, ErrSourceClosed))
}

func TestVerifyChainID(t *testing.T) {
	cli := newFakeClient(makeBlock(0, common.Hash{}, 0))
	require.NoError(t, VerifyChainID(context.Background(), cli, 1))

	err := VerifyChainID(context.Background(), cli, 5)
	require.ErrorIs(t, err, ErrChainMismatch)
}
