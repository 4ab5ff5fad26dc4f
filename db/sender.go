package db

type Sender struct {
	Address    string `gorm:"primaryKey;size:42"`
	TxCount    uint64 `gorm:"NOT NULL"`
	TotalBlobs uint64 `gorm:"NOT NULL"`
}

func (*Sender) TableName() string {
	return "senders"
}
