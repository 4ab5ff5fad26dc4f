package service

import (
	"fmt"
)

// GetChart returns one point per block number in [latest-windowSize+1, latest]. Blocks that
// are not stored report zero blobs and the last gas price seen earlier in the window.
func (s *AnalyticsService) GetChart(windowSize uint64) (*ChartData, error) {
	windowSize = clampUint(windowSize, DefaultChartWindow, MaxChartWindow)
	return cached(s, fmt.Sprintf("chart:%d", windowSize), func() (*ChartData, error) {
		data := &ChartData{
			Labels:    make([]uint64, 0, windowSize),
			Blobs:     make([]uint64, 0, windowSize),
			GasPrices: make([]float64, 0, windowSize),
		}
		_, latest, found, err := s.blobDao.GetBlockRange()
		if err != nil {
			return nil, fmt.Errorf("get block range: %w", err)
		}
		if !found {
			return data, nil
		}
		var start uint64
		if latest+1 > windowSize {
			start = latest + 1 - windowSize
		}
		blocks, err := s.blobDao.GetBlocksInRange(start, latest)
		if err != nil {
			return nil, fmt.Errorf("get blocks %d-%d: %w", start, latest, err)
		}

		var (
			idx      int
			gasPrice uint64
		)
		for number := start; number <= latest; number++ {
			data.Labels = append(data.Labels, number)
			if idx < len(blocks) && blocks[idx].BlockNumber == number {
				gasPrice = blocks[idx].GasPrice
				data.Blobs = append(data.Blobs, blocks[idx].TotalBlobs)
				idx++
			} else {
				data.Blobs = append(data.Blobs, 0)
			}
			data.GasPrices = append(data.GasPrices, toGwei(gasPrice))
		}
		return data, nil
	})
}

// GetAllTimeChart smooths the whole stored history into about targetPoints points. Each point
// averages a run of consecutive stored blocks and is placed at the run's middle block.
func (s *AnalyticsService) GetAllTimeChart(targetPoints, upgradeTimestamp uint64) (*AllTimeChartData, error) {
	targetPoints = clampUint(targetPoints, DefaultChartPoints, MaxChartPoints)
	if upgradeTimestamp == 0 {
		upgradeTimestamp = s.params.UpgradeTimestamp
	}
	key := fmt.Sprintf("all-time-chart:%d:%d", targetPoints, upgradeTimestamp)
	return cached(s, key, func() (*AllTimeChartData, error) {
		data := &AllTimeChartData{
			Labels:     make([]uint64, 0),
			Blobs:      make([]float64, 0),
			GasPrices:  make([]float64, 0),
			Timestamps: make([]uint64, 0),
			Targets:    make([]uint64, 0),
			Maxes:      make([]uint64, 0),
		}
		blocks, err := s.blobDao.GetAllBlocks()
		if err != nil {
			return nil, fmt.Errorf("get all blocks: %w", err)
		}
		if len(blocks) == 0 {
			return data, nil
		}

		for _, b := range blocks {
			if b.BlockTimestamp >= upgradeTimestamp {
				number := b.BlockNumber
				data.UpgradeBlock = &number
				break
			}
		}

		span := blocks[len(blocks)-1].BlockNumber - blocks[0].BlockNumber + 1
		chunk := span / targetPoints
		if chunk < 1 {
			chunk = 1
		}
		for i := 0; i < len(blocks); i += int(chunk) {
			end := i + int(chunk)
			if end > len(blocks) {
				end = len(blocks)
			}
			run := blocks[i:end]
			mid := run[len(run)/2]

			var blobSum, gasSum float64
			for _, b := range run {
				blobSum += float64(b.TotalBlobs)
				gasSum += toGwei(b.GasPrice)
			}
			target, max := s.params.PreUpgradeTarget, s.params.PreUpgradeMax
			if mid.BlockTimestamp >= upgradeTimestamp {
				target, max = s.params.BlobTarget, s.params.BlobMax
			}
			data.Labels = append(data.Labels, mid.BlockNumber)
			data.Timestamps = append(data.Timestamps, mid.BlockTimestamp)
			data.Blobs = append(data.Blobs, blobSum/float64(len(run)))
			data.GasPrices = append(data.GasPrices, gasSum/float64(len(run)))
			data.Targets = append(data.Targets, target)
			data.Maxes = append(data.Maxes, max)
		}
		return data, nil
	})
}
