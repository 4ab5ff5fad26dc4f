package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bnb-chain/blob-stats/chain"
	"github.com/bnb-chain/blob-stats/db"
	"github.com/bnb-chain/blob-stats/logging"
	"github.com/bnb-chain/blob-stats/metrics"
)

// FeeCalculator prices the blob gas of a block header. chain.BlobParams implements it.
type FeeCalculator interface {
	HeaderBlobFee(header *types.Header) (fee uint64, excess uint64)
}

type BlobSyncer struct {
	blobDao db.BlobDao
	source  chain.NotificationSource
	signer  types.Signer
	fees    FeeCalculator
}

func NewBlobSyncer(
	blobDao db.BlobDao,
	source chain.NotificationSource,
	signer types.Signer,
	fees FeeCalculator,
) *BlobSyncer {
	return &BlobSyncer{
		blobDao: blobDao,
		source:  source,
		signer:  signer,
		fees:    fees,
	}
}

// StartLoop applies notifications one at a time until the stream ends, ctx is cancelled, or
// an error occurs. Errors are fatal to the loop.
func (s *BlobSyncer) StartLoop(ctx context.Context) error {
	for {
		n, err := s.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logging.Logger.Info("notification stream ended")
				return nil
			}
			if ctx.Err() != nil {
				logging.Logger.Infof("syncer stopped, err=%s", ctx.Err().Error())
				return nil
			}
			metrics.IncError(metrics.ErrTypeSource)
			logging.Logger.Errorf("failed to read notification, err=%s", err.Error())
			return fmt.Errorf("read notification: %w", err)
		}
		if err = s.Process(ctx, n); err != nil {
			logging.Logger.Errorf("failed to process %s notification, err=%s", n.Kind, err.Error())
			return err
		}
	}
}

// Process applies one notification: reverted blocks first, then committed ones, then the
// acknowledgment of the committed tip. Nothing is acknowledged when any step fails.
func (s *BlobSyncer) Process(ctx context.Context, n *chain.Notification) error {
	start := time.Now()
	defer func() {
		metrics.NotificationDurationHistogram.WithLabelValues(n.Kind.String()).Observe(time.Since(start).Seconds())
	}()

	if old := n.RevertedChain(); old.Len() > 0 {
		for i := len(old.Blocks) - 1; i >= 0; i-- {
			if err := s.revertBlock(old.Blocks[i]); err != nil {
				return err
			}
		}
		first, last := old.Range()
		logging.Logger.Infof("reverted blocks %d-%d", first, last)
	}

	committed := n.CommittedChain()
	if committed.Len() == 0 {
		return nil
	}
	for _, block := range committed.Blocks {
		if err := s.applyBlock(block); err != nil {
			return err
		}
	}

	tip := committed.Tip()
	if err := s.source.FinishedHeight(ctx, tip.NumberU64(), tip.Hash()); err != nil {
		metrics.IncError(metrics.ErrTypeAck)
		return fmt.Errorf("ack finished height %d: %w", tip.NumberU64(), err)
	}
	metrics.FinishedHeightGauge.Set(float64(tip.NumberU64()))
	return nil
}

func (s *BlobSyncer) applyBlock(block *types.Block) error {
	batch := s.toBlockBatch(block)
	if err := s.blobDao.ApplyBlock(batch); err != nil {
		metrics.IncError(metrics.ErrTypeStore)
		return fmt.Errorf("apply block %d: %w", block.NumberU64(), err)
	}
	metrics.SyncedBlockGauge.Set(float64(block.NumberU64()))
	metrics.BlocksProcessedCounter.Inc()
	metrics.BlobTxsProcessedCounter.Add(float64(batch.Block.TxCount))
	metrics.BlobsProcessedCounter.Add(float64(batch.Block.TotalBlobs))
	logging.Logger.Infof("processed block=%d, txs=%d, blobs=%d", block.NumberU64(),
		batch.Block.TxCount, batch.Block.TotalBlobs)
	return nil
}

func (s *BlobSyncer) revertBlock(block *types.Block) error {
	if err := s.blobDao.RevertBlock(block.NumberU64()); err != nil {
		metrics.IncError(metrics.ErrTypeStore)
		return fmt.Errorf("revert block %d: %w", block.NumberU64(), err)
	}
	metrics.BlocksRevertedCounter.Inc()
	return nil
}
