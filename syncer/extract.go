package syncer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bnb-chain/blob-stats/chain"
	"github.com/bnb-chain/blob-stats/db"
	"github.com/bnb-chain/blob-stats/logging"
	"github.com/bnb-chain/blob-stats/metrics"
)

var ErrSenderRecovery = errors.New("sender recovery failed")

// toBlockBatch collects the blob transactions of a block. Transactions whose sender cannot be
// recovered are left out of both the detail rows and the block totals.
func (s *BlobSyncer) toBlockBatch(block *types.Block) *db.BlockBatch {
	fee, excess := s.fees.HeaderBlobFee(block.Header())
	batch := &db.BlockBatch{
		Block: &db.Block{
			BlockNumber:    block.NumberU64(),
			BlockHash:      block.Hash().Hex(),
			BlockTimestamp: block.Time(),
			GasPrice:       fee,
			ExcessBlobGas:  excess,
		},
		Transactions: make([]*db.BlobTxRecord, 0),
	}
	for _, tx := range block.Transactions() {
		if tx.Type() != types.BlobTxType {
			continue
		}
		rec, err := s.extractBlobTx(block, tx, fee)
		if err != nil {
			metrics.SenderRecoveryFailuresCounter.Inc()
			logging.Logger.Warningf("skip blob tx in block %d, err=%s", block.NumberU64(), err.Error())
			continue
		}
		batch.Transactions = append(batch.Transactions, rec)
		batch.Block.TxCount++
		batch.Block.TotalBlobs += rec.Tx.BlobCount
		batch.Block.GasUsed += rec.Tx.BlobCount * chain.BlobGasPerBlob
	}
	return batch
}

func (s *BlobSyncer) extractBlobTx(block *types.Block, tx *types.Transaction, fee uint64) (*db.BlobTxRecord, error) {
	sender, err := types.Sender(s.signer, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: tx=%s: %v", ErrSenderRecovery, tx.Hash().Hex(), err)
	}
	blobHashes := tx.BlobHashes()
	hashes := make([]string, 0, len(blobHashes))
	for _, h := range blobHashes {
		hashes = append(hashes, h.Hex())
	}
	return &db.BlobTxRecord{
		Tx: &db.BlobTransaction{
			TxHash:      tx.Hash().Hex(),
			BlockNumber: block.NumberU64(),
			Sender:      strings.ToLower(sender.Hex()),
			BlobCount:   uint64(len(blobHashes)),
			GasPrice:    fee,
			Timestamp:   block.Time(),
		},
		Hashes: hashes,
	}, nil
}
