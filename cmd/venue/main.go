package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quanta-swap/crossbook/params"
	"github.com/quanta-swap/crossbook/pkg/api"
	"github.com/quanta-swap/crossbook/pkg/util"
	"github.com/quanta-swap/crossbook/pkg/venue/book"
	"github.com/quanta-swap/crossbook/pkg/venue/custody"
	"github.com/quanta-swap/crossbook/pkg/venue/engine"
	"github.com/quanta-swap/crossbook/pkg/venue/registry"
)

func main() {
	cfg := params.LoadFromEnv("") // "" loads .env from the current directory

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	logger, err := util.NewLoggerWithFile(cfg.Log.Path, level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("logger_initialized", zap.String("log_file", cfg.Log.Path))

	// ---- Custody ----
	// No probe hook wired at process level: every asset is treated as
	// transferable. External token integrations plug in here.
	ledger, err := custody.NewLedgerWithStore(nil, cfg.Storage.Path)
	if err != nil {
		logger.Fatal("custody_open_failed", zap.Error(err))
	}
	defer ledger.Close()
	logger.Info("custody_loaded", zap.String("path", cfg.Storage.Path))

	// ---- Venue ----
	arena := book.NewArena()
	reg := registry.New(arena, ledger, util.RealClock{}, logger)

	eng, err := engine.New(reg, engine.Config{
		InputFeePPM:      cfg.Fees.InputFeePPM,
		OutputFeePPM:     cfg.Fees.OutputFeePPM,
		ProtocolSharePPM: cfg.Fees.ProtocolSharePPM,
		ReferralCapPPM:   cfg.Fees.ReferralCapPPM,
		DiscountUnit:     cfg.Fees.DiscountUnit,
	}, logger)
	if err != nil {
		logger.Fatal("engine_config_invalid", zap.Error(err))
	}

	// ---- API ----
	server := api.NewServer(reg, eng, logger)
	go func() {
		if err := server.Start(cfg.API.Listen, cfg.API.AllowedOrigins); err != nil {
			logger.Fatal("api_server_failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting_down")
}
