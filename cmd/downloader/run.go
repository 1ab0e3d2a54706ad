package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastleaksdf/pipeline/internal/broker"
	"github.com/fastleaksdf/pipeline/internal/config"
	"github.com/fastleaksdf/pipeline/internal/logging"
	"github.com/fastleaksdf/pipeline/internal/pipeline/downloader"
	"github.com/fastleaksdf/pipeline/internal/storage"
	"github.com/fastleaksdf/pipeline/internal/store"
	"github.com/fastleaksdf/pipeline/internal/telegram"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the downloader stage.",
	Run:   runApp,
}

func runApp(cmd *cobra.Command, args []string) {
	logging.InitLogger("downloader", false, "info")
	log := logging.Logger
	mainLog := log.Named("main")

	if err := config.Load(log, cmd); err != nil {
		mainLog.Panic("failed to load configuration", zap.Error(err))
	}
	logging.InitLogger("downloader", false, config.ValueOf.LogLevel)
	log = logging.Logger
	mainLog = log.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	br, err := broker.Dial(ctx, config.ValueOf.RabbitMQURL, log)
	if err != nil {
		mainLog.Panic("failed to connect to broker", zap.Error(err))
	}
	defer br.Close()

	st, err := storage.New(config.ValueOf.StoragePath)
	if err != nil {
		mainLog.Panic("failed to initialize storage", zap.Error(err))
	}

	db, err := store.Open(config.ValueOf.DatabaseURL)
	if err != nil {
		mainLog.Panic("failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		mainLog.Panic("failed to ensure schema", zap.Error(err))
	}

	client := telegram.New(telegram.Options{
		APIID:       config.ValueOf.TelegramAPIID,
		APIHash:     config.ValueOf.TelegramAPIHash,
		SessionPath: config.ValueOf.TelegramSessionName + ".session",
	}, log)

	peers := telegram.NewPeerCache()
	stage := downloader.New(client, peers, st, db, br, log)

	mainLog.Info("starting downloader stage")
	if err := client.Run(ctx, func(ctx context.Context) error {
		return stage.Run(ctx)
	}); err != nil && ctx.Err() == nil {
		mainLog.Panic("downloader stage stopped unexpectedly", zap.Error(err))
	}
	mainLog.Info("downloader stage stopped")
}
