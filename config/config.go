package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bnb-chain/blob-stats/cache"
)

type Config struct {
	LogConfig       LogConfig       `json:"log_config"`
	DBConfig        DBConfig        `json:"db_config"`
	SyncerConfig    SyncerConfig    `json:"syncer_config"`
	ServerConfig    ServerConfig    `json:"server_config"`
	CacheConfig     CacheConfig     `json:"cache_config"`
	MetricsConfig   MetricsConfig   `json:"metrics_config"`
	AnalyticsConfig AnalyticsConfig `json:"analytics_config"`
}

func (cfg *Config) Validate() {
	cfg.LogConfig.Validate()
	cfg.DBConfig.Validate()
	cfg.CacheConfig.Validate()
	cfg.AnalyticsConfig.Validate()
}

type SyncerConfig struct {
	Source         string   `json:"source"`          // Source selects the notification source adapter, only "rpc" for now
	RPCAddrs       []string `json:"rpc_addrs"`       // RPCAddrs is a list of execution layer JSON-RPC endpoints
	ChainID        uint64   `json:"chain_id"`        // ChainID is used to build the signer that recovers blob tx senders
	StartBlock     uint64   `json:"start_block"`     // StartBlock is where the rpc source starts when no checkpoint exists
	PollIntervalMs int64    `json:"poll_interval_ms"`
	BlobParams     string   `json:"blob_params"`     // BlobParams names the fee-market parameter version used to price blob gas
	RevertMode     string   `json:"revert_mode"`     // RevertMode is either "cascade" or "block_only"
	CheckpointName string   `json:"checkpoint_name"`
}

func (cfg *SyncerConfig) Validate() {
	if cfg.Source != SourceRPC {
		panic(fmt.Sprintf("only %s source supported", SourceRPC))
	}
	if len(cfg.RPCAddrs) == 0 {
		panic("rpc_addrs should not be empty")
	}
	if cfg.ChainID == 0 {
		panic("chain_id should be set")
	}
	if cfg.RevertMode != "" && cfg.RevertMode != RevertModeCascade && cfg.RevertMode != RevertModeBlockOnly {
		panic(fmt.Sprintf("revert_mode should be %s or %s", RevertModeCascade, RevertModeBlockOnly))
	}
}

func (cfg *SyncerConfig) GetPollInterval() time.Duration {
	if cfg.PollIntervalMs > 0 {
		return time.Duration(cfg.PollIntervalMs) * time.Millisecond
	}
	return DefaultPollIntervalMs * time.Millisecond
}

func (cfg *SyncerConfig) GetBlobParams() string {
	if cfg.BlobParams != "" {
		return cfg.BlobParams
	}
	return DefaultBlobParams
}

func (cfg *SyncerConfig) GetRevertMode() string {
	if cfg.RevertMode != "" {
		return cfg.RevertMode
	}
	return RevertModeCascade
}

func (cfg *SyncerConfig) GetCheckpointName() string {
	if cfg.CheckpointName != "" {
		return cfg.CheckpointName
	}
	return DefaultCheckpointName
}

type ServerConfig struct {
	Address string `json:"address"`
}

func (cfg *ServerConfig) GetAddress() string {
	if cfg.Address != "" {
		return cfg.Address
	}
	return DefaultServerAddress
}

type MetricsConfig struct {
	Enable  bool   `json:"enable"`
	Address string `json:"address"`
}

func (cfg *MetricsConfig) GetAddress() string {
	if cfg.Address != "" {
		return cfg.Address
	}
	return DefaultMetricsAddress
}

type CacheConfig struct {
	CacheType  string `json:"cache_type"`
	URL        string `json:"url"`
	CacheSize  uint64 `json:"cache_size"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

func (cfg *CacheConfig) Validate() {
	if cfg.CacheType != "" && cfg.CacheType != CacheTypeLocal && cfg.CacheType != CacheTypeRedis {
		panic(fmt.Sprintf("only %s and %s cache supported", CacheTypeLocal, CacheTypeRedis))
	}
	if cfg.CacheType == CacheTypeRedis && cfg.URL == "" {
		panic("url should not be empty if use redis cache")
	}
}

func (cfg *CacheConfig) GetCacheSize() uint64 {
	if cfg.CacheSize != 0 {
		return cfg.CacheSize
	}
	return cache.DefaultCacheSize
}

func (cfg *CacheConfig) GetTTL() time.Duration {
	if cfg.TTLSeconds > 0 {
		return time.Duration(cfg.TTLSeconds) * time.Second
	}
	return DefaultCacheTTLSeconds * time.Second
}

type AnalyticsConfig struct {
	BlobTarget       uint64 `json:"blob_target"`
	BlobMax          uint64 `json:"blob_max"`
	PreUpgradeTarget uint64 `json:"pre_upgrade_target"`
	PreUpgradeMax    uint64 `json:"pre_upgrade_max"`
	UpgradeTimestamp uint64 `json:"upgrade_timestamp"`
	LabelsFile       string `json:"labels_file"` // LabelsFile is an optional yaml file with extra address labels
}

func (cfg *AnalyticsConfig) Validate() {
	if cfg.BlobMax != 0 && cfg.BlobTarget > cfg.BlobMax {
		panic("blob_target should not be larger than blob_max")
	}
	if cfg.PreUpgradeMax != 0 && cfg.PreUpgradeTarget > cfg.PreUpgradeMax {
		panic("pre_upgrade_target should not be larger than pre_upgrade_max")
	}
}

// WithDefaults fills every unset field with the mainnet values.
func (cfg AnalyticsConfig) WithDefaults() AnalyticsConfig {
	if cfg.BlobTarget == 0 {
		cfg.BlobTarget = DefaultBlobTarget
	}
	if cfg.BlobMax == 0 {
		cfg.BlobMax = DefaultBlobMax
	}
	if cfg.PreUpgradeTarget == 0 {
		cfg.PreUpgradeTarget = DefaultPreUpgradeTarget
	}
	if cfg.PreUpgradeMax == 0 {
		cfg.PreUpgradeMax = DefaultPreUpgradeMax
	}
	if cfg.UpgradeTimestamp == 0 {
		cfg.UpgradeTimestamp = DefaultUpgradeTimestamp
	}
	return cfg
}

type DBConfig struct {
	Dialect      string `json:"dialect"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	Url          string `json:"url"`
	MaxIdleConns int    `json:"max_idle_conns"`
	MaxOpenConns int    `json:"max_open_conns"`
	BusyTimeout  int    `json:"busy_timeout_ms"`

	// AWSSecretName and AWSRegion locate a {"db_pass": "..."} secret used when no password
	// is passed by flag or env.
	AWSSecretName string `json:"aws_secret_name"`
	AWSRegion     string `json:"aws_region"`
}

func (cfg *DBConfig) Validate() {
	if cfg.Dialect != DBDialectMysql && cfg.Dialect != DBDialectSqlite3 && cfg.Dialect != DBDialectPostgres {
		panic(fmt.Sprintf("only %s, %s and %s supported", DBDialectMysql, DBDialectSqlite3, DBDialectPostgres))
	}
	if cfg.Dialect != DBDialectSqlite3 && (cfg.Username == "" || cfg.Url == "") {
		panic("db config is not correct, missing username and/or url")
	}
	if cfg.Dialect == DBDialectSqlite3 && cfg.Url == "" {
		panic("db config is not correct, missing sqlite file path")
	}
	if cfg.MaxIdleConns == 0 || cfg.MaxOpenConns == 0 {
		panic("db connections is not correct")
	}
}

type LogConfig struct {
	Level                        string `json:"level"`
	Filename                     string `json:"filename"`
	MaxFileSizeInMB              int    `json:"max_file_size_in_mb"`
	MaxBackupsOfLogFiles         int    `json:"max_backups_of_log_files"`
	MaxAgeToRetainLogFilesInDays int    `json:"max_age_to_retain_log_files_in_days"`
	UseConsoleLogger             bool   `json:"use_console_logger"`
	UseFileLogger                bool   `json:"use_file_logger"`
	Compress                     bool   `json:"compress"`
}

func (cfg *LogConfig) Validate() {
	if cfg.UseFileLogger {
		if cfg.Filename == "" {
			panic("filename should not be empty if use file logger")
		}
		if cfg.MaxFileSizeInMB <= 0 {
			panic("max_file_size_in_mb should be larger than 0 if use file logger")
		}
		if cfg.MaxBackupsOfLogFiles <= 0 {
			panic("max_backups_off_log_files should be larger than 0 if use file logger")
		}
	}
}

func ParseConfigFromJson(content string) *Config {
	var config Config
	if err := json.Unmarshal([]byte(content), &config); err != nil {
		panic(err)
	}
	config.Validate()
	return &config
}

func ParseConfigFromFile(filePath string) *Config {
	bz, err := os.ReadFile(filePath)
	if err != nil {
		panic(err)
	}
	return ParseConfigFromJson(string(bz))
}
