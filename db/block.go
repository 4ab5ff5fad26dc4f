package db

// Block holds the blob aggregates of one canonical block.
type Block struct {
	BlockNumber    uint64 `gorm:"primaryKey;autoIncrement:false"`
	BlockHash      string `gorm:"size:66;NOT NULL;default:''"`
	BlockTimestamp uint64 `gorm:"NOT NULL;index:idx_blocks_timestamp"`
	TxCount        uint64 `gorm:"NOT NULL"`
	TotalBlobs     uint64 `gorm:"NOT NULL"`
	GasUsed        uint64 `gorm:"NOT NULL"` // blob gas used
	GasPrice       uint64 `gorm:"NOT NULL"` // blob base fee in wei
	ExcessBlobGas  uint64 `gorm:"NOT NULL"`
}

func (*Block) TableName() string {
	return "blocks"
}
