package config

const (
	FlagConfigPath         = "config-path"
	FlagConfigType         = "config-type"
	FlagConfigAwsRegion    = "aws-region"
	FlagConfigAwsSecretKey = "aws-secret-key"
	FlagConfigDbPass       = "db-pass"

	AWSConfig   = "aws"
	LocalConfig = "local"

	DBDialectMysql    = "mysql"
	DBDialectSqlite3  = "sqlite3"
	DBDialectPostgres = "postgres"

	SourceRPC = "rpc"

	RevertModeCascade   = "cascade"
	RevertModeBlockOnly = "block_only"

	CacheTypeLocal = "local"
	CacheTypeRedis = "redis"

	EnvVarConfigType     = "CONFIG_TYPE"
	EnvVarConfigFilePath = "CONFIG_FILE_PATH"
	EnvVarDBUserPass     = "DB_PASSWORD"

	DefaultBlobParams      = "bpo2"
	DefaultCheckpointName  = "blob-indexer"
	DefaultPollIntervalMs  = 2000
	DefaultServerAddress   = "0.0.0.0:3500"
	DefaultMetricsAddress  = "0.0.0.0:9090"
	DefaultCacheTTLSeconds = 12

	// BPO2 activation, 2026-01-06.
	DefaultUpgradeTimestamp = 1767747671
	DefaultBlobTarget       = 10
	DefaultBlobMax          = 15
	DefaultPreUpgradeTarget = 6
	DefaultPreUpgradeMax    = 9
)
