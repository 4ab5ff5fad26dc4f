package db

type RevertMode int

const (
	// RevertCascade removes a block together with its transactions and blob hashes, and
	// subtracts the removed transactions from the sender aggregates.
	RevertCascade RevertMode = 0
	// RevertBlockOnly removes only the block row. Transactions, blob hashes and sender
	// aggregates of the reverted block stay in place.
	RevertBlockOnly RevertMode = 1
)

// BlobTxRecord is a blob transaction together with its versioned hashes in index order.
type BlobTxRecord struct {
	Tx     *BlobTransaction
	Hashes []string
}

// BlockBatch is everything extracted from one block; it is applied as a single unit.
type BlockBatch struct {
	Block        *Block
	Transactions []*BlobTxRecord
}

type Stats struct {
	TotalBlocks       uint64
	TotalBlobs        uint64
	TotalTransactions uint64
	EarliestBlock     *uint64
	LatestBlock       *uint64
	LatestGasPrice    uint64
}
