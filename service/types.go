package service

type Stats struct {
	TotalBlocks       uint64  `json:"total_blocks"`
	TotalBlobs        uint64  `json:"total_blobs"`
	TotalTransactions uint64  `json:"total_transactions"`
	AvgBlobsPerBlock  float64 `json:"avg_blobs_per_block"`
	LatestBlock       *uint64 `json:"latest_block"`
	EarliestBlock     *uint64 `json:"earliest_block"`
	LatestGasPrice    uint64  `json:"latest_gas_price"`
}

type BlockTransaction struct {
	TxHash     string   `json:"tx_hash"`
	Sender     string   `json:"sender"`
	BlobCount  uint64   `json:"blob_count"`
	BlobSize   uint64   `json:"blob_size"`
	Chain      string   `json:"chain"`
	BlobHashes []string `json:"blob_hashes"`
}

type BlockView struct {
	BlockNumber       uint64              `json:"block_number"`
	BlockTimestamp    uint64              `json:"block_timestamp"`
	TxCount           uint64              `json:"tx_count"`
	TotalBlobs        uint64              `json:"total_blobs"`
	TotalBlobSize     uint64              `json:"total_blob_size"`
	GasUsed           uint64              `json:"gas_used"`
	GasPrice          uint64              `json:"gas_price"`
	ExcessBlobGas     uint64              `json:"excess_blob_gas"`
	Transactions      []*BlockTransaction `json:"transactions"`
	TargetUtilization float64             `json:"target_utilization"`
	SaturationIndex   float64             `json:"saturation_index"`
	Regime            Regime              `json:"regime"`
}

type SenderView struct {
	Address       string `json:"address"`
	TxCount       uint64 `json:"tx_count"`
	TotalBlobs    uint64 `json:"total_blobs"`
	TotalBlobSize uint64 `json:"total_blob_size"`
	Chain         string `json:"chain"`
}

type TransactionView struct {
	TxHash      string   `json:"tx_hash"`
	BlockNumber uint64   `json:"block_number"`
	Sender      string   `json:"sender"`
	BlobCount   uint64   `json:"blob_count"`
	BlobSize    uint64   `json:"blob_size"`
	GasPrice    uint64   `json:"gas_price"`
	Chain       string   `json:"chain"`
	BlobHashes  []string `json:"blob_hashes"`
}

// ChartData is one point per block number; gas prices are in gwei.
type ChartData struct {
	Labels    []uint64  `json:"labels"`
	Blobs     []uint64  `json:"blobs"`
	GasPrices []float64 `json:"gas_prices"`
}

type AllTimeChartData struct {
	Labels       []uint64  `json:"labels"`
	Blobs        []float64 `json:"blobs"`
	GasPrices    []float64 `json:"gas_prices"`
	Timestamps   []uint64  `json:"timestamps"`
	Targets      []uint64  `json:"targets"`
	Maxes        []uint64  `json:"maxes"`
	UpgradeBlock *uint64   `json:"upgrade_block"`
}

type WindowStats struct {
	Window            string            `json:"window"`
	Seconds           uint64            `json:"seconds"`
	BlockCount        uint64            `json:"block_count"`
	TotalBlobs        uint64            `json:"total_blobs"`
	TotalTransactions uint64            `json:"total_transactions"`
	AvgBlobsPerBlock  float64           `json:"avg_blobs_per_block"`
	AvgGasPrice       float64           `json:"avg_gas_price"`
	AvgUtilization    float64           `json:"avg_utilization"`
	AvgSaturation     float64           `json:"avg_saturation"`
	RegimeCounts      map[Regime]uint64 `json:"regime_counts"`
}

type RollingComparison struct {
	Timestamp uint64         `json:"timestamp"`
	Windows   []*WindowStats `json:"windows"`
}

type ChainProfile struct {
	Chain                  string    `json:"chain"`
	TotalTransactions      uint64    `json:"total_transactions"`
	TotalBlobs             uint64    `json:"total_blobs"`
	Percentage             float64   `json:"percentage"`
	AvgBlobsPerTx          float64   `json:"avg_blobs_per_tx"`
	AvgPostingIntervalSecs float64   `json:"avg_posting_interval_secs"`
	HourlyActivity         []float64 `json:"hourly_activity"`
	PriceSensitivity       float64   `json:"price_sensitivity"`
}

type HeatmapCell struct {
	Day            int     `json:"day"`
	Hour           int     `json:"hour"`
	BlockCount     uint64  `json:"block_count"`
	AvgUtilization float64 `json:"avg_utilization"`
	AvgSaturation  float64 `json:"avg_saturation"`
	AvgGasPrice    float64 `json:"avg_gas_price"`
}

type Heatmap struct {
	Days  uint64         `json:"days"`
	From  uint64         `json:"from"`
	To    uint64         `json:"to"`
	Cells []*HeatmapCell `json:"cells"`
}
