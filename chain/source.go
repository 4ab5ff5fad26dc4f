package chain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bnb-chain/blob-stats/db"
)

var (
	ErrSourceClosed  = errors.New("notification source closed")
	ErrReorgTooDeep  = errors.New("reorg deeper than tracked window")
	ErrUnknownParams = errors.New("unknown blob params")
	ErrChainMismatch = errors.New("node chain id does not match config")
)

// NotificationSource produces chain lifecycle events in order. Next blocks until a notification
// is available; io.EOF signals a clean end of the stream. FinishedHeight acknowledges that every
// block up to height has been applied.
type NotificationSource interface {
	Next(ctx context.Context) (*Notification, error)
	FinishedHeight(ctx context.Context, height uint64, hash common.Hash) error
}

// CheckpointStore persists acknowledgments. GetBlock exposes the stored block rows so a
// resuming source can find where the stored chain and the node's chain diverged.
type CheckpointStore interface {
	SaveCheckpoint(name string, blockNumber uint64, blockHash string) error
	GetCheckpoint(name string) (*db.Checkpoint, error)
	GetBlock(blockNumber uint64) (*db.Block, error)
}
