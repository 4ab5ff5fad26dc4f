package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSqliteBusyTimeoutMs = 5000

// SqliteDSN turns a sqlite file path into a DSN that opens the file in WAL mode, so readers
// never block on the single writer.
func SqliteDSN(path string, busyTimeoutMs int) string {
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = defaultSqliteBusyTimeoutMs
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=off", path, sep, busyTimeoutMs)
}

// MysqlDSN builds a mysql DSN from credentials and a "tcp(host:port)/dbname?params" url.
// Timestamps are parsed into time.Time.
func MysqlDSN(username, password, url string) (string, error) {
	dsnCfg, err := mysqldrv.ParseDSN(fmt.Sprintf("%s:%s@%s", username, password, url))
	if err != nil {
		return "", err
	}
	dsnCfg.ParseTime = true
	return dsnCfg.FormatDSN(), nil
}

func InitDBWithConfig(cfg *DBConfig, silent bool) *gorm.DB {
	var dialector gorm.Dialector

	switch cfg.Dialect {
	case DBDialectMysql:
		dsn, err := MysqlDSN(cfg.Username, cfg.Password, cfg.Url)
		if err != nil {
			panic(fmt.Sprintf("invalid mysql url, err=%s", err.Error()))
		}
		dialector = mysql.Open(dsn)
	case DBDialectPostgres:
		dialector = postgres.Open(fmt.Sprintf("postgres://%s:%s@%s", cfg.Username, cfg.Password, cfg.Url))
	case DBDialectSqlite3:
		dialector = sqlite.Open(SqliteDSN(cfg.Url, cfg.BusyTimeout))
	default:
		panic(fmt.Sprintf("unexpected DB dialect %s", cfg.Dialect))
	}
	logLevel := logger.Warn
	if silent {
		logLevel = logger.Silent
	}
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		panic(fmt.Sprintf("open db error, err=%s", err.Error()))
	}
	if cfg.Dialect == DBDialectSqlite3 {
		if err = db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			panic(fmt.Sprintf("enable sqlite wal error, err=%s", err.Error()))
		}
	}
	dbConfig, err := db.DB()
	if err != nil {
		panic(err)
	}

	dbConfig.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConfig.SetMaxOpenConns(cfg.MaxOpenConns)
	return db
}
