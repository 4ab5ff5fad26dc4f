package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/bnb-chain/blob-stats/db"
)

// MinCorrelationSamples is the fewest transactions a profile needs before price sensitivity
// is computed.
const MinCorrelationSamples = 11

// GetChainProfiles groups the blob transactions of the last hours by chain label.
func (s *AnalyticsService) GetChainProfiles(hours uint64) ([]*ChainProfile, error) {
	hours = clampUint(hours, DefaultProfileHours, MaxProfileHours)
	return cached(s, fmt.Sprintf("chain-profiles:%d:%d", hours, s.clockBucket()), func() ([]*ChainProfile, error) {
		since := saturatingSub(s.unixNow(), hours*secondsPerHour)
		txs, err := s.blobDao.GetTransactionsSince(since)
		if err != nil {
			return nil, fmt.Errorf("get transactions since %d: %w", since, err)
		}
		return s.buildProfiles(txs), nil
	})
}

func (s *AnalyticsService) buildProfiles(txs []*db.BlobTransaction) []*ChainProfile {
	groups := make(map[string][]*db.BlobTransaction)
	var grandTotal uint64
	for _, tx := range txs {
		chainName := s.labels.Lookup(tx.Sender)
		groups[chainName] = append(groups[chainName], tx)
		grandTotal += tx.BlobCount
	}

	profiles := make([]*ChainProfile, 0, len(groups))
	for chainName, group := range groups {
		p := &ChainProfile{
			Chain:             chainName,
			TotalTransactions: uint64(len(group)),
			HourlyActivity:    make([]float64, 24),
		}
		timestamps := make([]uint64, 0, len(group))
		prices := make([]float64, 0, len(group))
		blobs := make([]float64, 0, len(group))
		var hourly [24]uint64
		for _, tx := range group {
			p.TotalBlobs += tx.BlobCount
			timestamps = append(timestamps, tx.Timestamp)
			prices = append(prices, float64(tx.GasPrice))
			blobs = append(blobs, float64(tx.BlobCount))
			hourly[tx.Timestamp%secondsPerDay/secondsPerHour]++
		}
		p.AvgBlobsPerTx = float64(p.TotalBlobs) / float64(p.TotalTransactions)
		if grandTotal > 0 {
			p.Percentage = float64(p.TotalBlobs) / float64(grandTotal) * 100
		}
		p.AvgPostingIntervalSecs = meanInterval(timestamps)

		var busiest uint64
		for _, c := range hourly {
			if c > busiest {
				busiest = c
			}
		}
		if busiest > 0 {
			for h, c := range hourly {
				p.HourlyActivity[h] = float64(c) / float64(busiest)
			}
		}
		if len(group) >= MinCorrelationSamples {
			p.PriceSensitivity = pearson(prices, blobs)
		}
		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].TotalBlobs != profiles[j].TotalBlobs {
			return profiles[i].TotalBlobs > profiles[j].TotalBlobs
		}
		return profiles[i].Chain < profiles[j].Chain
	})
	return profiles
}

// meanInterval is the mean gap between consecutive sorted timestamps, 0 with fewer than two.
func meanInterval(timestamps []uint64) float64 {
	if len(timestamps) < 2 {
		return 0
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	span := timestamps[len(timestamps)-1] - timestamps[0]
	return float64(span) / float64(len(timestamps)-1)
}

// pearson returns the correlation coefficient of xs and ys, 0 when either has no variance.
func pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return 0
	}
	var meanX, meanY float64
	for i := 0; i < n; i++ {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	r := cov / math.Sqrt(varX*varY)
	return math.Max(-1, math.Min(1, r))
}
