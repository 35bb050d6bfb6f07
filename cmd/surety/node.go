package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calehh/surety-app/agent"
	"github.com/calehh/surety-app/app"
	"github.com/calehh/surety-app/config"
	"github.com/calehh/surety-app/crypto"
	"github.com/calehh/surety-app/types"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/spf13/cobra"
)

var homeDir string

var nodeCmd = &cobra.Command{
	Use:   "surety",
	Short: "Surety is a flight delay insurance chain",
	Long: `Surety runs a CometBFT node whose application escrows flight insurance
premiums, admits airlines by vote and settles flight status through oracles.`,
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args)
	},
}

func init() {
	nodeCmd.Flags().StringVarP(&homeDir, "homedir", "d", "", "home directory")
}

func run(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadConfig(homeDir)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pv := privval.LoadFilePV(
		cfg.PrivValidatorKeyFile(),
		cfg.PrivValidatorStateFile(),
	)

	nodeKey, err := p2p.LoadNodeKey(cfg.NodeKeyFile())
	if err != nil {
		log.Fatalf("failed to load node's key: %v", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(cfg.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}

	suretyApp, err := app.NewSuretyApp(cfg.App, logger)
	if err != nil {
		log.Fatalf("new app err:%v", err)
	}

	node, err := nm.NewNode(
		cfg.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(suretyApp),
		nm.DefaultGenesisDocProviderFunc(cfg.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(cfg.Instrumentation),
		logger,
	)
	if err != nil {
		log.Fatalf("creating node: %v", err)
	}

	suretyApp.Start(node.BlockStore())
	if err = node.Start(); err != nil {
		log.Fatalf("start comet node err %s", err.Error())
	}

	time.Sleep(time.Second * 5)
	if !node.IsRunning() {
		log.Fatal("comet node unable to run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	indexer, err := startAgents(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("start agents err %s", err.Error())
	}

	defer func() {
		log.Println("shut down...")
		cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := node.Stop(); err != nil {
				log.Printf("stop comet node err %s", err.Error())
			}
			node.Wait()
			suretyApp.Stop()
			indexer.Close()
		}()
		timer := time.NewTimer(time.Second * 10)
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
			return
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// startAgents runs the event indexer against the local RPC, with the HTTP
// API and the oracle responder when configured.
func startAgents(ctx context.Context, cfg *config.Config, logger cmtlog.Logger) (*agent.ChainIndexer, error) {
	rpcUrl, err := url.Parse(cfg.RPC.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("parse rpc address: %w", err)
	}
	rpcUrl.Scheme = "http"
	cli, err := agent.NewHTTPChainClient(rpcUrl.String())
	if err != nil {
		return nil, err
	}
	indexer, err := agent.NewChainIndexer(logger, cfg.App.IndexerDBFile(), cli)
	if err != nil {
		return nil, err
	}

	if paths := cfg.App.OracleKeyPaths(); len(paths) > 0 {
		keys := make([]*crypto.Key, 0, len(paths))
		for _, p := range paths {
			k, err := crypto.LoadKey(p)
			if err != nil {
				indexer.Close()
				return nil, fmt.Errorf("load oracle key %s: %w", p, err)
			}
			keys = append(keys, k)
		}
		var source agent.StatusSource
		if cfg.App.StatusSourceURL != "" {
			source = agent.NewHTTPStatusSource(cfg.App.StatusSourceURL, logger)
		} else {
			logger.Info("no status source configured, oracles report on_time")
			source = agent.NewMockStatusSource(types.StatusOnTime)
		}
		indexer.Subscribe(agent.NewOracleResponder(logger, cli, source, keys).HandleEvent)
	}

	if cfg.App.APIListen != "" {
		svc := agent.NewService(cfg.App.APIListen, indexer, logger)
		go func() {
			if err := svc.Start(ctx); err != nil {
				logger.Error("api stopped", "err", err)
			}
		}()
	}
	go indexer.Start(ctx, cfg.App.PollInterval)
	return indexer, nil
}
