package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bnb-chain/blob-stats/cache"
	"github.com/bnb-chain/blob-stats/chain"
	"github.com/bnb-chain/blob-stats/config"
	"github.com/bnb-chain/blob-stats/db"
	"github.com/bnb-chain/blob-stats/label"
	"github.com/bnb-chain/blob-stats/logging"
)

const (
	DefaultRecentLimit  = 50
	DefaultSenderLimit  = 20
	DefaultChartWindow  = 100
	DefaultChartPoints  = 500
	DefaultProfileHours = 24
	DefaultHeatmapDays  = 7

	MaxRecentLimit  = 1000
	MaxChartWindow  = 10000
	MaxChartPoints  = 5000
	MaxProfileHours = 24 * 30
	MaxHeatmapDays  = 90
)

type Analytics interface {
	GetStats() (*Stats, error)
	GetRecentBlocks(limit int) ([]*BlockView, error)
	GetBlock(blockNumber uint64) (*BlockView, error)
	GetTopSenders(limit int) ([]*SenderView, error)
	GetChart(windowSize uint64) (*ChartData, error)
	GetAllTimeChart(targetPoints, upgradeTimestamp uint64) (*AllTimeChartData, error)
	GetRecentBlobTransactions(limit int) ([]*TransactionView, error)
	GetRollingComparison() (*RollingComparison, error)
	GetChainProfiles(hours uint64) ([]*ChainProfile, error)
	GetCongestionHeatmap(days uint64) (*Heatmap, error)
}

type AnalyticsService struct {
	blobDao      db.BlobDao
	labels       *label.Table
	cacheService cache.Cache
	cacheTTL     time.Duration
	params       config.AnalyticsConfig
	now          func() time.Time
}

type Option func(*AnalyticsService)

// WithClock replaces the wall clock used for time-window queries.
func WithClock(now func() time.Time) Option {
	return func(s *AnalyticsService) {
		s.now = now
	}
}

// WithCache caches query results keyed by the query and the latest stored block. Queries over
// a window ending now are also keyed by the clock truncated to ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *AnalyticsService) {
		s.cacheService = c
		s.cacheTTL = ttl
	}
}

func NewAnalyticsService(blobDao db.BlobDao, labels *label.Table, cfg config.AnalyticsConfig, opts ...Option) *AnalyticsService {
	if labels == nil {
		labels = label.Default()
	}
	s := &AnalyticsService{
		blobDao: blobDao,
		labels:  labels,
		params:  cfg.WithDefaults(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// cached runs load unless an entry for key at the current chain tip is cached.
func cached[T any](s *AnalyticsService, key string, load func() (T, error)) (T, error) {
	if s.cacheService == nil {
		return load()
	}
	tip, err := s.blobDao.GetRecentBlocks(1)
	if err != nil {
		var zero T
		return zero, err
	}
	fullKey := key + ":empty"
	if len(tip) > 0 {
		// a same-height reorg changes the hash, not the number
		fullKey = fmt.Sprintf("%s:%d:%s", key, tip[0].BlockNumber, tip[0].BlockHash)
	}
	if raw, found := s.cacheService.Get(fullKey); found {
		var value T
		if err = json.Unmarshal(raw, &value); err == nil {
			return value, nil
		}
		logging.Logger.Warningf("drop undecodable cache entry, key=%s, err=%s", fullKey, err.Error())
	}
	value, err := load()
	if err != nil {
		return value, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return value, nil
	}
	if err = s.cacheService.Set(fullKey, raw); err != nil {
		logging.Logger.Warningf("failed to set cache, key=%s, err=%s", fullKey, err.Error())
	}
	return value, nil
}

func (s *AnalyticsService) GetStats() (*Stats, error) {
	return cached(s, "stats", func() (*Stats, error) {
		st, err := s.blobDao.GetStats()
		if err != nil {
			return nil, fmt.Errorf("get stats: %w", err)
		}
		stats := &Stats{
			TotalBlocks:       st.TotalBlocks,
			TotalBlobs:        st.TotalBlobs,
			TotalTransactions: st.TotalTransactions,
			LatestBlock:       st.LatestBlock,
			EarliestBlock:     st.EarliestBlock,
			LatestGasPrice:    st.LatestGasPrice,
		}
		if st.TotalBlocks > 0 {
			stats.AvgBlobsPerBlock = float64(st.TotalBlobs) / float64(st.TotalBlocks)
		}
		return stats, nil
	})
}

func (s *AnalyticsService) GetRecentBlocks(limit int) ([]*BlockView, error) {
	limit = clampLimit(limit, DefaultRecentLimit)
	return cached(s, fmt.Sprintf("blocks:%d", limit), func() ([]*BlockView, error) {
		var views []*BlockView
		err := s.blobDao.ReadSnapshot(func(dao db.BlobDao) error {
			blocks, err := dao.GetRecentBlocks(limit)
			if err != nil {
				return err
			}
			views, err = s.toBlockViews(dao, blocks)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("get recent blocks: %w", err)
		}
		return views, nil
	})
}

func (s *AnalyticsService) GetBlock(blockNumber uint64) (*BlockView, error) {
	var view *BlockView
	err := s.blobDao.ReadSnapshot(func(dao db.BlobDao) error {
		block, err := dao.GetBlock(blockNumber)
		if err != nil || block == nil {
			return err
		}
		views, err := s.toBlockViews(dao, []*db.Block{block})
		if err != nil {
			return err
		}
		view = views[0]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", blockNumber, err)
	}
	return view, nil
}

func (s *AnalyticsService) toBlockViews(dao db.BlobDao, blocks []*db.Block) ([]*BlockView, error) {
	numbers := make([]uint64, 0, len(blocks))
	for _, b := range blocks {
		numbers = append(numbers, b.BlockNumber)
	}
	txs, err := dao.GetTransactionsByBlocks(numbers)
	if err != nil {
		return nil, err
	}
	txHashes := make([]string, 0, len(txs))
	for _, tx := range txs {
		txHashes = append(txHashes, tx.TxHash)
	}
	hashes, err := dao.GetBlobHashes(txHashes)
	if err != nil {
		return nil, err
	}
	byBlock := make(map[uint64][]*BlockTransaction, len(blocks))
	for _, tx := range txs {
		byBlock[tx.BlockNumber] = append(byBlock[tx.BlockNumber], &BlockTransaction{
			TxHash:     tx.TxHash,
			Sender:     tx.Sender,
			BlobCount:  tx.BlobCount,
			BlobSize:   tx.BlobCount * chain.BlobSizeBytes,
			Chain:      s.labels.Lookup(tx.Sender),
			BlobHashes: nonNil(hashes[tx.TxHash]),
		})
	}

	views := make([]*BlockView, 0, len(blocks))
	for _, b := range blocks {
		txViews := byBlock[b.BlockNumber]
		if txViews == nil {
			txViews = make([]*BlockTransaction, 0)
		}
		views = append(views, &BlockView{
			BlockNumber:       b.BlockNumber,
			BlockTimestamp:    b.BlockTimestamp,
			TxCount:           b.TxCount,
			TotalBlobs:        b.TotalBlobs,
			TotalBlobSize:     b.TotalBlobs * chain.BlobSizeBytes,
			GasUsed:           b.GasUsed,
			GasPrice:          b.GasPrice,
			ExcessBlobGas:     b.ExcessBlobGas,
			Transactions:      txViews,
			TargetUtilization: Utilization(b.TotalBlobs, s.params.BlobTarget),
			SaturationIndex:   Saturation(b.TotalBlobs, s.params.BlobMax),
			Regime:            ClassifyRegime(b.TotalBlobs, s.params.BlobTarget),
		})
	}
	return views, nil
}

func (s *AnalyticsService) GetTopSenders(limit int) ([]*SenderView, error) {
	limit = clampLimit(limit, DefaultSenderLimit)
	return cached(s, fmt.Sprintf("senders:%d", limit), func() ([]*SenderView, error) {
		senders, err := s.blobDao.GetTopSenders(limit)
		if err != nil {
			return nil, fmt.Errorf("get top senders: %w", err)
		}
		views := make([]*SenderView, 0, len(senders))
		for _, sender := range senders {
			views = append(views, &SenderView{
				Address:       sender.Address,
				TxCount:       sender.TxCount,
				TotalBlobs:    sender.TotalBlobs,
				TotalBlobSize: sender.TotalBlobs * chain.BlobSizeBytes,
				Chain:         s.labels.Lookup(sender.Address),
			})
		}
		return views, nil
	})
}

func (s *AnalyticsService) GetRecentBlobTransactions(limit int) ([]*TransactionView, error) {
	limit = clampLimit(limit, DefaultRecentLimit)
	return cached(s, fmt.Sprintf("blob-txs:%d", limit), func() ([]*TransactionView, error) {
		views := make([]*TransactionView, 0)
		err := s.blobDao.ReadSnapshot(func(dao db.BlobDao) error {
			txs, err := dao.GetRecentBlobTransactions(limit)
			if err != nil {
				return err
			}
			txHashes := make([]string, 0, len(txs))
			for _, tx := range txs {
				txHashes = append(txHashes, tx.TxHash)
			}
			hashes, err := dao.GetBlobHashes(txHashes)
			if err != nil {
				return err
			}
			for _, tx := range txs {
				views = append(views, &TransactionView{
					TxHash:      tx.TxHash,
					BlockNumber: tx.BlockNumber,
					Sender:      tx.Sender,
					BlobCount:   tx.BlobCount,
					BlobSize:    tx.BlobCount * chain.BlobSizeBytes,
					GasPrice:    tx.GasPrice,
					Chain:       s.labels.Lookup(tx.Sender),
					BlobHashes:  nonNil(hashes[tx.TxHash]),
				})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("get recent blob transactions: %w", err)
		}
		return views, nil
	})
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}

func clampUint(v, def, max uint64) uint64 {
	if v == 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return make([]string, 0)
	}
	return s
}

// clockBucket is the current unix time truncated to the cache TTL.
func (s *AnalyticsService) clockBucket() int64 {
	ttl := s.cacheTTL
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.now().Truncate(ttl).Unix()
}

func (s *AnalyticsService) unixNow() uint64 {
	now := s.now().Unix()
	if now < 0 {
		return 0
	}
	return uint64(now)
}
