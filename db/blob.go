package db

type BlobTransaction struct {
	TxHash      string `gorm:"primaryKey;size:66"`
	BlockNumber uint64 `gorm:"NOT NULL;index:idx_blob_txs_block"`
	Sender      string `gorm:"NOT NULL;size:42;index:idx_blob_txs_sender"`
	BlobCount   uint64 `gorm:"NOT NULL"`
	GasPrice    uint64 `gorm:"NOT NULL"`
	Timestamp   uint64 `gorm:"column:created_at;NOT NULL;index:idx_blob_txs_created"` // timestamp of the including block
}

func (*BlobTransaction) TableName() string {
	return "blob_transactions"
}

type BlobHash struct {
	Id        int64  `gorm:"primaryKey;autoIncrement"`
	TxHash    string `gorm:"NOT NULL;size:66;index:idx_blob_hashes_tx"`
	BlobHash  string `gorm:"NOT NULL;size:66"`
	BlobIndex int    `gorm:"NOT NULL"`
}

func (*BlobHash) TableName() string {
	return "blob_hashes"
}
