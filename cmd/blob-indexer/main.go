package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/bnb-chain/blob-stats/chain"
	"github.com/bnb-chain/blob-stats/config"
	"github.com/bnb-chain/blob-stats/db"
	"github.com/bnb-chain/blob-stats/external"
	"github.com/bnb-chain/blob-stats/logging"
	"github.com/bnb-chain/blob-stats/metrics"
	"github.com/bnb-chain/blob-stats/syncer"
)

func initFlags() {
	flag.String(config.FlagConfigPath, "", "config file path")
	flag.String(config.FlagConfigType, "", "config type, local or aws")
	flag.String(config.FlagConfigAwsRegion, "", "aws region")
	flag.String(config.FlagConfigAwsSecretKey, "", "aws secret key")
	flag.String(config.FlagConfigDbPass, "", "blob-indexer db password")

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()
	err := viper.BindPFlags(pflag.CommandLine)
	if err != nil {
		panic(err)
	}
}

func printUsage() {
	fmt.Print("usage: ./blob-indexer --config-type local --config-path configFile\n")
	fmt.Print("usage: ./blob-indexer --config-type aws --aws-region awsRegion --aws-secret-key awsSecretKey\n")
}

func revertMode(mode string) db.RevertMode {
	if mode == config.RevertModeBlockOnly {
		return db.RevertBlockOnly
	}
	return db.RevertCascade
}

func main() {
	initFlags()
	cfg := config.LoadConfig()
	if cfg == nil {
		printUsage()
		os.Exit(1)
	}
	cfg.SyncerConfig.Validate()
	logging.InitLogger(&cfg.LogConfig)

	cfg.DBConfig.Password = config.DBPassword(&cfg.DBConfig)
	gormDB := config.InitDBWithConfig(&cfg.DBConfig, true)
	db.AutoMigrateDB(gormDB)
	blobDB := db.NewBlobSvcDB(gormDB, revertMode(cfg.SyncerConfig.GetRevertMode()))

	params, err := chain.BlobParamsByName(cfg.SyncerConfig.GetBlobParams())
	if err != nil {
		panic(err)
	}
	signer := types.NewCancunSigner(new(big.Int).SetUint64(cfg.SyncerConfig.ChainID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := external.NewClient(&cfg.SyncerConfig)
	if err = chain.VerifyChainID(ctx, client, cfg.SyncerConfig.ChainID); err != nil {
		logging.Logger.Errorf("failed to verify chain id, err=%s", err.Error())
		os.Exit(1)
	}
	source, err := chain.NewRPCSource(
		ctx,
		client,
		blobDB,
		cfg.SyncerConfig.GetCheckpointName(),
		cfg.SyncerConfig.StartBlock,
		cfg.SyncerConfig.GetPollInterval(),
	)
	if err != nil {
		logging.Logger.Errorf("failed to create rpc source, err=%s", err.Error())
		os.Exit(1)
	}
	defer source.Close()

	logging.Logger.Infof("blob indexer starting, blob_params=%s, revert_mode=%s",
		params.Name, cfg.SyncerConfig.GetRevertMode())
	bs := syncer.NewBlobSyncer(blobDB, source, signer, params)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return bs.StartLoop(gctx)
	})
	if cfg.MetricsConfig.Enable {
		m := metrics.NewMetrics(cfg.MetricsConfig.GetAddress())
		g.Go(func() error {
			return m.Run(gctx)
		})
	}
	if err = g.Wait(); err != nil {
		logging.Logger.Errorf("blob indexer stopped, err=%s", err.Error())
		os.Exit(1)
	}
	logging.Logger.Info("blob indexer stopped")
}
