package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quotadex/quotadex/params"
	"github.com/quotadex/quotadex/pkg/api"
	"github.com/quotadex/quotadex/pkg/exchange"
	"github.com/quotadex/quotadex/pkg/gateway"
	"github.com/quotadex/quotadex/pkg/storage"
	"github.com/quotadex/quotadex/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, zapcore.InfoLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// ---- persistence ----
	var store exchange.Store
	if cfg.Node.DataDir != "" {
		ps, err := storage.Open(cfg.Node.DataDir)
		if err != nil {
			logger.Fatal("store_open_failed", zap.Error(err))
		}
		store = ps
	} else {
		logger.Warn("no_data_dir_configured_running_in_memory")
		store = exchange.NewMemStore()
	}

	// ---- gateways ----
	currency := gateway.NewLedger("currency")
	asset := gateway.NewLedger("quota")
	vault := gateway.NewEscrowVault(currency, asset)
	registry := gateway.NewStaticRegistry(cfg.Node.DevUsers...)
	compliance := gateway.NewRuleCompliance(cfg.Gateways.MaxTradeValue)
	oracle := gateway.NewThresholdOracle(cfg.Gateways.OracleThreshold, cfg.Gateways.OracleDefault)

	for _, u := range cfg.Node.DevUsers {
		currency.Mint(u, cfg.Node.DevCurrency)
		asset.Mint(u, cfg.Node.DevQuota)
	}

	clock := util.NewChainClock(cfg.Engine.StartHeight)

	// The sink fans out to the websocket hub (set below) and the vault, which
	// needs created-order prices to price currency settlements.
	var wsSink exchange.EventSink
	sink := exchange.EventSinkFunc(func(ev exchange.Event) {
		if ev.Type == exchange.EventOrderCreated && ev.Side == "buy" {
			vault.NoteOrder(ev.OrderID, ev.Price)
		}
		if wsSink != nil {
			wsSink.Publish(ev)
		}
	})

	engine, err := exchange.NewEngine(exchange.Options{
		Admin: cfg.Engine.Admin,
		Store: store,
		Gateways: exchange.Gateways{
			Registry:   registry,
			Compliance: compliance,
			Oracle:     oracle,
			Escrow:     vault,
			Asset:      asset,
			Currency:   currency,
		},
		Clock:            clock,
		Sink:             sink,
		Logger:           logger,
		AssetRef:         cfg.Engine.AssetRef,
		MaxOrdersPerUser: cfg.Engine.MaxOrdersPerUser,
	})
	if err != nil {
		logger.Fatal("engine_init_failed", zap.Error(err))
	}
	defer engine.Close()

	server := api.NewServer(engine, clock, logger)
	wsSink = server.Sink()

	// ---- logical clock loop ----
	stopTicker := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Node.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				clock.Advance()
			case <-stopTicker:
				return
			}
		}
	}()

	go func() {
		if err := server.Start(cfg.Node.ListenAddr); err != nil {
			logger.Fatal("api_server_failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	close(stopTicker)
	logger.Info("shutting_down")
}
