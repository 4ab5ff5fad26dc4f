package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bnb-chain/blob-stats/db"
	"github.com/bnb-chain/blob-stats/external"
	"github.com/bnb-chain/blob-stats/logging"
)

const (
	RPCTimeout    = 20 * time.Second
	MaxReorgDepth = 64
)

// RPCSource polls an execution node and turns the canonical chain into notifications.
// Reorgs are detected by parent hash mismatch against the recently emitted blocks.
type RPCSource struct {
	client       external.IClient
	checkpoints  CheckpointStore
	name         string
	pollInterval time.Duration

	next    uint64
	window  []*types.Block
	pending *Notification

	closed    chan struct{}
	closeOnce sync.Once
}

func NewRPCSource(
	ctx context.Context,
	client external.IClient,
	checkpoints CheckpointStore,
	name string,
	startBlock uint64,
	pollInterval time.Duration,
) (*RPCSource, error) {
	s := &RPCSource{
		client:       client,
		checkpoints:  checkpoints,
		name:         name,
		pollInterval: pollInterval,
		next:         startBlock,
		closed:       make(chan struct{}),
	}
	cp, err := checkpoints.GetCheckpoint(name)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", name, err)
	}
	if cp == nil {
		logging.Logger.Infof("no checkpoint found, start from block %d", startBlock)
		return s, nil
	}
	s.next = cp.BlockNumber + 1

	rctx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()
	header, err := client.GetBlockHeader(rctx, cp.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("get checkpoint header %d: %w", cp.BlockNumber, err)
	}
	if header.Hash().Hex() != cp.BlockHash {
		logging.Logger.Warningf("checkpoint block %d hash %s is no longer canonical",
			cp.BlockNumber, cp.BlockHash)
		if s.pending, err = s.resumeReorg(ctx, cp); err != nil {
			return nil, err
		}
	} else {
		parent, err := s.blockByNumber(ctx, cp.BlockNumber)
		if err != nil {
			return nil, err
		}
		s.push(parent)
	}
	logging.Logger.Infof("resume from checkpoint, name=%s, next block=%d", name, s.next)
	return s, nil
}

// resumeReorg walks back from a checkpoint that left the canonical chain until the stored
// block hash matches the node again, and returns the reorg covering the diverged range.
// Reverted blocks are rebuilt from the stored rows and only carry number and timestamp.
// A height with no stored row, or a row without a hash, ends the walk.
func (s *RPCSource) resumeReorg(ctx context.Context, cp *db.Checkpoint) (*Notification, error) {
	oldBlocks := make([]*types.Block, 0)
	newBlocks := make([]*types.Block, 0)
	var ancestor *types.Block
	for number := cp.BlockNumber; ; number-- {
		canonical, err := s.blockByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		stored, err := s.checkpoints.GetBlock(number)
		if err != nil {
			return nil, fmt.Errorf("get stored block %d: %w", number, err)
		}
		storedHash := cp.BlockHash
		if number != cp.BlockNumber {
			if stored == nil || stored.BlockHash == "" || stored.BlockHash == canonical.Hash().Hex() {
				ancestor = canonical
				break
			}
			storedHash = stored.BlockHash
		}
		if len(newBlocks) == MaxReorgDepth {
			return nil, fmt.Errorf("%w: checkpoint %d diverged for more than %d blocks",
				ErrReorgTooDeep, cp.BlockNumber, MaxReorgDepth)
		}
		logging.Logger.Infof("stored block %d hash %s replaced by %s", number, storedHash, canonical.Hash().Hex())
		oldBlocks = append(oldBlocks, storedBlock(number, stored))
		newBlocks = append(newBlocks, canonical)
		if number == 0 {
			break
		}
	}

	if ancestor != nil {
		s.push(ancestor)
	}
	newChain := NewSegment(newBlocks...)
	for _, b := range newChain.Blocks {
		s.push(b)
	}
	first, last := newChain.Range()
	logging.Logger.Infof("reorg detected on resume, replacing blocks %d-%d", first, last)
	return NewReorged(NewSegment(oldBlocks...), newChain), nil
}

func storedBlock(number uint64, stored *db.Block) *types.Block {
	header := &types.Header{Number: new(big.Int).SetUint64(number)}
	if stored != nil {
		header.Time = stored.BlockTimestamp
	}
	return types.NewBlockWithHeader(header)
}

// VerifyChainID fails when the node serves a chain other than expected. Senders of blob txs
// signed for another chain cannot be recovered.
func VerifyChainID(ctx context.Context, client external.IClient, expected uint64) error {
	rctx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()
	id, err := client.ChainID(rctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !id.IsUint64() || id.Uint64() != expected {
		return fmt.Errorf("%w: node=%s, config=%d", ErrChainMismatch, id.String(), expected)
	}
	return nil
}

func (s *RPCSource) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *RPCSource) Next(ctx context.Context) (*Notification, error) {
	if s.pending != nil {
		n := s.pending
		s.pending = nil
		return n, nil
	}
	for {
		select {
		case <-s.closed:
			return nil, ErrSourceClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rctx, cancel := context.WithTimeout(ctx, RPCTimeout)
		latest, err := s.client.GetLatestBlockNum(rctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("get latest block number: %w", err)
		}
		if s.next > latest {
			if err := s.wait(ctx); err != nil {
				return nil, err
			}
			continue
		}

		block, err := s.blockByNumber(ctx, s.next)
		if err != nil {
			return nil, err
		}
		if len(s.window) == 0 || s.window[len(s.window)-1].Hash() == block.ParentHash() {
			s.push(block)
			return NewCommitted(NewSegment(block)), nil
		}
		return s.reorg(ctx, block)
	}
}

// reorg walks back from block until its ancestry meets the tracked window.
func (s *RPCSource) reorg(ctx context.Context, block *types.Block) (*Notification, error) {
	oldBlocks := make([]*types.Block, 0)
	newBlocks := []*types.Block{block}
	for {
		if len(s.window) == 0 {
			return nil, fmt.Errorf("%w: at block %d", ErrReorgTooDeep, block.NumberU64())
		}
		tip := s.window[len(s.window)-1]
		if tip.Hash() == newBlocks[0].ParentHash() {
			break
		}
		oldBlocks = append(oldBlocks, tip)
		s.window = s.window[:len(s.window)-1]
		replacement, err := s.blockByNumber(ctx, tip.NumberU64())
		if err != nil {
			return nil, err
		}
		newBlocks = append([]*types.Block{replacement}, newBlocks...)
	}
	for _, b := range newBlocks {
		s.push(b)
	}
	first, last := NewSegment(oldBlocks...).Range()
	logging.Logger.Infof("reorg detected, reverted blocks %d-%d, new tip=%d", first, last, block.NumberU64())
	return NewReorged(NewSegment(oldBlocks...), NewSegment(newBlocks...)), nil
}

func (s *RPCSource) push(block *types.Block) {
	s.window = append(s.window, block)
	if len(s.window) > MaxReorgDepth {
		s.window = s.window[len(s.window)-MaxReorgDepth:]
	}
	s.next = block.NumberU64() + 1
}

func (s *RPCSource) wait(ctx context.Context) error {
	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-s.closed:
		return ErrSourceClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RPCSource) blockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	rctx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()
	block, err := s.client.BlockByNumber(rctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", number, err)
	}
	return block, nil
}

func (s *RPCSource) FinishedHeight(_ context.Context, height uint64, hash common.Hash) error {
	if err := s.checkpoints.SaveCheckpoint(s.name, height, hash.Hex()); err != nil {
		return fmt.Errorf("save checkpoint %d: %w", height, err)
	}
	return nil
}
