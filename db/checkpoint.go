package db

// Checkpoint records the last height acknowledged to a notification source.
type Checkpoint struct {
	Name        string `gorm:"primaryKey;size:64"`
	BlockNumber uint64 `gorm:"NOT NULL"`
	BlockHash   string `gorm:"NOT NULL;size:66"`
	UpdatedTime int64  `gorm:"NOT NULL"`
}

func (*Checkpoint) TableName() string {
	return "checkpoints"
}
