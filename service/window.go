package service

import (
	"fmt"
	"time"

	"github.com/bnb-chain/blob-stats/db"
)

const (
	secondsPerHour = 3600
	secondsPerDay  = 24 * secondsPerHour
	heatmapCells   = 7 * 24
)

var rollingWindows = []struct {
	name    string
	seconds uint64
}{
	{"1h", secondsPerHour},
	{"24h", secondsPerDay},
	{"7d", 7 * secondsPerDay},
}

// GetRollingComparison aggregates the trailing 1h, 24h and 7d windows ending now. All windows
// are computed from one read of the widest window.
func (s *AnalyticsService) GetRollingComparison() (*RollingComparison, error) {
	return cached(s, fmt.Sprintf("rolling:%d", s.clockBucket()), func() (*RollingComparison, error) {
		now := s.unixNow()
		widest := rollingWindows[len(rollingWindows)-1].seconds
		blocks, err := s.blobDao.GetBlocksInTimeRange(saturatingSub(now, widest), now)
		if err != nil {
			return nil, fmt.Errorf("get blocks since %d: %w", saturatingSub(now, widest), err)
		}
		result := &RollingComparison{
			Timestamp: now,
			Windows:   make([]*WindowStats, 0, len(rollingWindows)),
		}
		for _, w := range rollingWindows {
			from := saturatingSub(now, w.seconds)
			stats := &WindowStats{
				Window:       w.name,
				Seconds:      w.seconds,
				RegimeCounts: newRegimeCounts(),
			}
			var gasSum, utilSum, satSum float64
			for _, b := range blocks {
				if b.BlockTimestamp < from {
					continue
				}
				stats.BlockCount++
				stats.TotalBlobs += b.TotalBlobs
				stats.TotalTransactions += b.TxCount
				gasSum += toGwei(b.GasPrice)
				utilSum += Utilization(b.TotalBlobs, s.params.BlobTarget)
				satSum += Saturation(b.TotalBlobs, s.params.BlobMax)
				stats.RegimeCounts[ClassifyRegime(b.TotalBlobs, s.params.BlobTarget)]++
			}
			if stats.BlockCount > 0 {
				n := float64(stats.BlockCount)
				stats.AvgBlobsPerBlock = float64(stats.TotalBlobs) / n
				stats.AvgGasPrice = gasSum / n
				stats.AvgUtilization = utilSum / n
				stats.AvgSaturation = satSum / n
			}
			result.Windows = append(result.Windows, stats)
		}
		return result, nil
	})
}

// GetCongestionHeatmap buckets the blocks of the last days into 168 (weekday, hour) cells in UTC,
// with Sunday as day 0. Cells without blocks are present and zeroed.
func (s *AnalyticsService) GetCongestionHeatmap(days uint64) (*Heatmap, error) {
	days = clampUint(days, DefaultHeatmapDays, MaxHeatmapDays)
	return cached(s, fmt.Sprintf("heatmap:%d:%d", days, s.clockBucket()), func() (*Heatmap, error) {
		now := s.unixNow()
		from := saturatingSub(now, days*secondsPerDay)
		blocks, err := s.blobDao.GetBlocksInTimeRange(from, now)
		if err != nil {
			return nil, fmt.Errorf("get blocks %d-%d: %w", from, now, err)
		}
		return s.buildHeatmap(days, from, now, blocks), nil
	})
}

func (s *AnalyticsService) buildHeatmap(days, from, to uint64, blocks []*db.Block) *Heatmap {
	type acc struct {
		count                uint64
		util, sat, gasPrices float64
	}
	var cells [heatmapCells]acc
	for _, b := range blocks {
		t := time.Unix(int64(b.BlockTimestamp), 0).UTC()
		c := &cells[int(t.Weekday())*24+t.Hour()]
		c.count++
		c.util += Utilization(b.TotalBlobs, s.params.BlobTarget)
		c.sat += Saturation(b.TotalBlobs, s.params.BlobMax)
		c.gasPrices += toGwei(b.GasPrice)
	}

	heatmap := &Heatmap{
		Days:  days,
		From:  from,
		To:    to,
		Cells: make([]*HeatmapCell, 0, heatmapCells),
	}
	for i, c := range cells {
		cell := &HeatmapCell{Day: i / 24, Hour: i % 24, BlockCount: c.count}
		if c.count > 0 {
			n := float64(c.count)
			cell.AvgUtilization = c.util / n
			cell.AvgSaturation = c.sat / n
			cell.AvgGasPrice = c.gasPrices / n
		}
		heatmap.Cells = append(heatmap.Cells, cell)
	}
	return heatmap
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
