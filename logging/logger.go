package logging

import (
	"os"

	gologging "github.com/op/go-logging"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bnb-chain/blob-stats/config"
)

const module = "blob-stats"

var (
	// Logger is usable before InitLogger runs; it then writes to stderr at DEBUG.
	Logger = gologging.MustGetLogger(module)

	format = gologging.MustStringFormatter(
		`%{time:2006-01-02T15:04:05.000Z07:00} %{shortfile} %{level:.4s} %{message}`,
	)
)

func InitLogger(cfg *config.LogConfig) {
	var backends []gologging.Backend
	if cfg.UseConsoleLogger || !cfg.UseFileLogger {
		consoleBackend := gologging.NewLogBackend(os.Stdout, "", 0)
		backends = append(backends, gologging.NewBackendFormatter(consoleBackend, format))
	}
	if cfg.UseFileLogger {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxFileSizeInMB,
			MaxBackups: cfg.MaxBackupsOfLogFiles,
			MaxAge:     cfg.MaxAgeToRetainLogFilesInDays,
			Compress:   cfg.Compress,
		}
		fileBackend := gologging.NewLogBackend(fileWriter, "", 0)
		backends = append(backends, gologging.NewBackendFormatter(fileBackend, format))
	}

	level := gologging.INFO
	if cfg.Level != "" {
		var err error
		level, err = gologging.LogLevel(cfg.Level)
		if err != nil {
			panic(err)
		}
	}
	leveled := gologging.MultiLogger(backends...)
	leveled.SetLevel(level, module)
	Logger.SetBackend(leveled)
}
