package db

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BlobDao interface {
	BlockDB
	SenderDB
	TxDB
	CheckpointDB
	// ApplyBlock writes a block, its transactions, blob hashes and sender increments in one
	// DB transaction.
	ApplyBlock(batch *BlockBatch) error
	// RevertBlock removes a block in one DB transaction, honouring the RevertMode.
	RevertBlock(blockNumber uint64) error
	// ReadSnapshot runs fn against a single read transaction so that all reads observe the
	// same state.
	ReadSnapshot(fn func(BlobDao) error) error
}

type BlobSvcDB struct {
	db         *gorm.DB
	revertMode RevertMode
}

func NewBlobSvcDB(db *gorm.DB, revertMode RevertMode) BlobDao {
	return &BlobSvcDB{
		db:         db,
		revertMode: revertMode,
	}
}

func (d *BlobSvcDB) withDB(db *gorm.DB) *BlobSvcDB {
	return &BlobSvcDB{db: db, revertMode: d.revertMode}
}

type BlockDB interface {
	UpsertBlock(block *Block) error
	DeleteBlock(blockNumber uint64) error
	GetBlock(blockNumber uint64) (*Block, error)
	GetRecentBlocks(limit int) ([]*Block, error)
	GetBlocksInRange(from, to uint64) ([]*Block, error)
	GetBlocksInTimeRange(from, to uint64) ([]*Block, error)
	GetAllBlocks() ([]*Block, error)
	GetBlockRange() (min uint64, max uint64, found bool, err error)
	GetStats() (*Stats, error)
}

func (d *BlobSvcDB) UpsertBlock(block *Block) error {
	return d.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(block).Error
}

func (d *BlobSvcDB) DeleteBlock(blockNumber uint64) error {
	return d.db.Where("block_number = ?", blockNumber).Delete(&Block{}).Error
}

func (d *BlobSvcDB) GetBlock(blockNumber uint64) (*Block, error) {
	block := Block{}
	err := d.db.Model(Block{}).Where("block_number = ?", blockNumber).Take(&block).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &block, nil
}

func (d *BlobSvcDB) GetRecentBlocks(limit int) ([]*Block, error) {
	blocks := make([]*Block, 0)
	err := d.db.Order("block_number desc").Limit(limit).Find(&blocks).Error
	return blocks, err
}

func (d *BlobSvcDB) GetBlocksInRange(from, to uint64) ([]*Block, error) {
	blocks := make([]*Block, 0)
	err := d.db.Where("block_number >= ? AND block_number <= ?", from, to).
		Order("block_number asc").Find(&blocks).Error
	return blocks, err
}

func (d *BlobSvcDB) GetBlocksInTimeRange(from, to uint64) ([]*Block, error) {
	blocks := make([]*Block, 0)
	err := d.db.Where("block_timestamp >= ? AND block_timestamp <= ?", from, to).
		Order("block_number asc").Find(&blocks).Error
	return blocks, err
}

func (d *BlobSvcDB) GetAllBlocks() ([]*Block, error) {
	blocks := make([]*Block, 0)
	err := d.db.Select("block_number", "block_timestamp", "total_blobs", "gas_price").
		Order("block_number asc").Find(&blocks).Error
	return blocks, err
}

func (d *BlobSvcDB) GetBlockRange() (uint64, uint64, bool, error) {
	var r struct {
		MinBlock *uint64
		MaxBlock *uint64
	}
	err := d.db.Model(&Block{}).
		Select("MIN(block_number) AS min_block, MAX(block_number) AS max_block").
		Scan(&r).Error
	if err != nil {
		return 0, 0, false, err
	}
	if r.MinBlock == nil || r.MaxBlock == nil {
		return 0, 0, false, nil
	}
	return *r.MinBlock, *r.MaxBlock, true, nil
}

func (d *BlobSvcDB) GetStats() (*Stats, error) {
	stats := &Stats{}
	err := d.ReadSnapshot(func(dao BlobDao) error {
		tx := dao.(*BlobSvcDB).db
		var totalBlocks int64
		if err := tx.Model(&Block{}).Count(&totalBlocks).Error; err != nil {
			return err
		}
		stats.TotalBlocks = uint64(totalBlocks)
		if err := tx.Model(&BlobTransaction{}).Select("COALESCE(SUM(blob_count), 0)").
			Scan(&stats.TotalBlobs).Error; err != nil {
			return err
		}
		if err := tx.Model(&Block{}).Select("COALESCE(SUM(tx_count), 0)").
			Scan(&stats.TotalTransactions).Error; err != nil {
			return err
		}
		min, max, found, err := dao.GetBlockRange()
		if err != nil {
			return err
		}
		if found {
			stats.EarliestBlock, stats.LatestBlock = &min, &max
		}
		var prices []uint64
		if err = tx.Model(&Block{}).Order("block_number desc").Limit(1).
			Pluck("gas_price", &prices).Error; err != nil {
			return err
		}
		if len(prices) > 0 {
			stats.LatestGasPrice = prices[0]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

type SenderDB interface {
	IncrementSender(address string, blobDelta uint64) error
	GetTopSenders(limit int) ([]*Sender, error)
}

func (d *BlobSvcDB) IncrementSender(address string, blobDelta uint64) error {
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"tx_count":    gorm.Expr("tx_count + ?", 1),
			"total_blobs": gorm.Expr("total_blobs + ?", blobDelta),
		}),
	}).Create(&Sender{Address: address, TxCount: 1, TotalBlobs: blobDelta}).Error
}

func (d *BlobSvcDB) decrementSender(address string, txCount, blobDelta uint64) error {
	err := d.db.Model(&Sender{}).Where("address = ?", address).Updates(map[string]interface{}{
		"tx_count":    gorm.Expr("tx_count - ?", txCount),
		"total_blobs": gorm.Expr("total_blobs - ?", blobDelta),
	}).Error
	if err != nil {
		return err
	}
	return d.db.Where("address = ? AND tx_count <= 0", address).Delete(&Sender{}).Error
}

func (d *BlobSvcDB) GetTopSenders(limit int) ([]*Sender, error) {
	senders := make([]*Sender, 0)
	err := d.db.Order("total_blobs desc").Order("address asc").Limit(limit).Find(&senders).Error
	return senders, err
}

type TxDB interface {
	UpsertBlobTransaction(tx *BlobTransaction) error
	AppendBlobHash(txHash, blobHash string, index int) error
	GetTransactionsByBlocks(blockNumbers []uint64) ([]*BlobTransaction, error)
	GetRecentBlobTransactions(limit int) ([]*BlobTransaction, error)
	GetTransactionsSince(timestamp uint64) ([]*BlobTransaction, error)
	GetBlobHashes(txHashes []string) (map[string][]string, error)
}

func (d *BlobSvcDB) UpsertBlobTransaction(tx *BlobTransaction) error {
	return d.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(tx).Error
}

func (d *BlobSvcDB) AppendBlobHash(txHash, blobHash string, index int) error {
	return d.db.Create(&BlobHash{TxHash: txHash, BlobHash: blobHash, BlobIndex: index}).Error
}

func (d *BlobSvcDB) GetTransactionsByBlocks(blockNumbers []uint64) ([]*BlobTransaction, error) {
	txs := make([]*BlobTransaction, 0)
	if len(blockNumbers) == 0 {
		return txs, nil
	}
	err := d.db.Where("block_number IN ?", blockNumbers).
		Order("block_number desc").Order("tx_hash asc").Find(&txs).Error
	return txs, err
}

func (d *BlobSvcDB) GetRecentBlobTransactions(limit int) ([]*BlobTransaction, error) {
	txs := make([]*BlobTransaction, 0)
	err := d.db.Order("created_at desc").Order("block_number desc").Order("tx_hash asc").
		Limit(limit).Find(&txs).Error
	return txs, err
}

func (d *BlobSvcDB) GetTransactionsSince(timestamp uint64) ([]*BlobTransaction, error) {
	txs := make([]*BlobTransaction, 0)
	err := d.db.Where("created_at >= ?", timestamp).
		Order("sender asc").Order("created_at asc").Find(&txs).Error
	return txs, err
}

func (d *BlobSvcDB) GetBlobHashes(txHashes []string) (map[string][]string, error) {
	result := make(map[string][]string, len(txHashes))
	if len(txHashes) == 0 {
		return result, nil
	}
	hashes := make([]*BlobHash, 0)
	err := d.db.Where("tx_hash IN ?", txHashes).
		Order("tx_hash asc").Order("blob_index asc").Order("id asc").Find(&hashes).Error
	if err != nil {
		return nil, err
	}
	for _, h := range hashes {
		result[h.TxHash] = append(result[h.TxHash], h.BlobHash)
	}
	return result, nil
}

type CheckpointDB interface {
	SaveCheckpoint(name string, blockNumber uint64, blockHash string) error
	GetCheckpoint(name string) (*Checkpoint, error)
}

func (d *BlobSvcDB) SaveCheckpoint(name string, blockNumber uint64, blockHash string) error {
	return d.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&Checkpoint{
		Name:        name,
		BlockNumber: blockNumber,
		BlockHash:   blockHash,
		UpdatedTime: time.Now().Unix(),
	}).Error
}

func (d *BlobSvcDB) GetCheckpoint(name string) (*Checkpoint, error) {
	cp := Checkpoint{}
	err := d.db.Where("name = ?", name).Take(&cp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

func (d *BlobSvcDB) ApplyBlock(batch *BlockBatch) error {
	return d.db.Transaction(func(dbTx *gorm.DB) error {
		txDao := d.withDB(dbTx)
		if d.revertMode == RevertCascade {
			hashes := make([]string, 0, len(batch.Transactions))
			for _, rec := range batch.Transactions {
				hashes = append(hashes, rec.Tx.TxHash)
			}
			if err := txDao.purgeTransactions(batch.Block.BlockNumber, hashes); err != nil {
				return err
			}
		}
		for _, rec := range batch.Transactions {
			if err := txDao.UpsertBlobTransaction(rec.Tx); err != nil {
				return err
			}
			for idx, h := range rec.Hashes {
				if err := txDao.AppendBlobHash(rec.Tx.TxHash, h, idx); err != nil {
					return err
				}
			}
			if err := txDao.IncrementSender(rec.Tx.Sender, rec.Tx.BlobCount); err != nil {
				return err
			}
		}
		return txDao.UpsertBlock(batch.Block)
	})
}

func (d *BlobSvcDB) RevertBlock(blockNumber uint64) error {
	return d.db.Transaction(func(dbTx *gorm.DB) error {
		txDao := d.withDB(dbTx)
		if d.revertMode == RevertCascade {
			if err := txDao.purgeTransactions(blockNumber, nil); err != nil {
				return err
			}
		}
		return txDao.DeleteBlock(blockNumber)
	})
}

// purgeTransactions removes the stored transactions of a block, plus any rows for the given
// tx hashes wherever they were stored, and takes them back out of the sender aggregates.
func (d *BlobSvcDB) purgeTransactions(blockNumber uint64, txHashes []string) error {
	stale := make([]*BlobTransaction, 0)
	query := d.db.Where("block_number = ?", blockNumber)
	if len(txHashes) > 0 {
		query = d.db.Where("block_number = ? OR tx_hash IN ?", blockNumber, txHashes)
	}
	if err := query.Find(&stale).Error; err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	type contribution struct{ txs, blobs uint64 }
	bySender := make(map[string]*contribution)
	senders := make([]string, 0)
	staleHashes := make([]string, 0, len(stale))
	for _, tx := range stale {
		staleHashes = append(staleHashes, tx.TxHash)
		c, ok := bySender[tx.Sender]
		if !ok {
			c = &contribution{}
			bySender[tx.Sender] = c
			senders = append(senders, tx.Sender)
		}
		c.txs++
		c.blobs += tx.BlobCount
	}
	for _, sender := range senders {
		c := bySender[sender]
		if err := d.decrementSender(sender, c.txs, c.blobs); err != nil {
			return err
		}
	}
	if err := d.db.Where("tx_hash IN ?", staleHashes).Delete(&BlobHash{}).Error; err != nil {
		return err
	}
	return d.db.Where("tx_hash IN ?", staleHashes).Delete(&BlobTransaction{}).Error
}

func (d *BlobSvcDB) ReadSnapshot(fn func(BlobDao) error) error {
	return d.db.Transaction(func(dbTx *gorm.DB) error {
		return fn(d.withDB(dbTx))
	})
}

func AutoMigrateDB(db *gorm.DB) {
	var err error
	if err = db.AutoMigrate(&Block{}); err != nil {
		panic(err)
	}
	if err = db.AutoMigrate(&Sender{}); err != nil {
		panic(err)
	}
	if err = db.AutoMigrate(&BlobTransaction{}); err != nil {
		panic(err)
	}
	if err = db.AutoMigrate(&BlobHash{}); err != nil {
		panic(err)
	}
	if err = db.AutoMigrate(&Checkpoint{}); err != nil {
		panic(err)
	}
}
