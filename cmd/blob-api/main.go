package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/bnb-chain/blob-stats/cache"
	"github.com/bnb-chain/blob-stats/config"
	"github.com/bnb-chain/blob-stats/db"
	"github.com/bnb-chain/blob-stats/label"
	"github.com/bnb-chain/blob-stats/logging"
	"github.com/bnb-chain/blob-stats/metrics"
	"github.com/bnb-chain/blob-stats/restapi"
	"github.com/bnb-chain/blob-stats/service"
)

func initFlags() {
	flag.String(config.FlagConfigPath, "", "config file path")
	flag.String(config.FlagConfigType, "", "config type, local or aws")
	flag.String(config.FlagConfigAwsRegion, "", "aws region")
	flag.String(config.FlagConfigAwsSecretKey, "", "aws secret key")
	flag.String(config.FlagConfigDbPass, "", "blob-api db password")

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()
	err := viper.BindPFlags(pflag.CommandLine)
	if err != nil {
		panic(err)
	}
}

func printUsage() {
	fmt.Print("usage: ./blob-api --config-type local --config-path configFile\n")
	fmt.Print("usage: ./blob-api --config-type aws --aws-region awsRegion --aws-secret-key awsSecretKey\n")
}

func newCache(cfg *config.CacheConfig) cache.Cache {
	switch cfg.CacheType {
	case config.CacheTypeRedis:
		c, err := cache.NewRedisCache(cfg.URL, cfg.GetTTL())
		if err != nil {
			panic(fmt.Sprintf("new redis cache error, err=%s", err.Error()))
		}
		return c
	case config.CacheTypeLocal:
		c, err := cache.NewLocalCache(cfg.GetCacheSize(), cfg.GetTTL())
		if err != nil {
			panic(fmt.Sprintf("new local cache error, err=%s", err.Error()))
		}
		return c
	default:
		return nil
	}
}

func main() {
	initFlags()
	cfg := config.LoadConfig()
	if cfg == nil {
		printUsage()
		os.Exit(1)
	}
	logging.InitLogger(&cfg.LogConfig)

	cfg.DBConfig.Password = config.DBPassword(&cfg.DBConfig)
	gormDB := config.InitDBWithConfig(&cfg.DBConfig, true)
	db.AutoMigrateDB(gormDB)
	// the api never reverts, the mode only matters to the writer
	blobDB := db.NewBlobSvcDB(gormDB, db.RevertCascade)

	labels, err := label.LoadFile(cfg.AnalyticsConfig.LabelsFile)
	if err != nil {
		panic(err)
	}
	logging.Logger.Infof("loaded %d sender labels", labels.Len())

	var opts []service.Option
	if c := newCache(&cfg.CacheConfig); c != nil {
		opts = append(opts, service.WithCache(c, cfg.CacheConfig.GetTTL()))
	}
	svc := service.NewAnalyticsService(blobDB, labels, cfg.AnalyticsConfig, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	server := restapi.NewServer(cfg.ServerConfig.GetAddress(), svc)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if cfg.MetricsConfig.Enable {
		m := metrics.NewMetrics(cfg.MetricsConfig.GetAddress())
		g.Go(func() error {
			return m.Run(gctx)
		})
	}
	if err = g.Wait(); err != nil {
		logging.Logger.Errorf("blob api stopped, err=%s", err.Error())
		os.Exit(1)
	}
	logging.Logger.Info("blob api stopped")
}
