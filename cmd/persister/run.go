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
	"github.com/fastleaksdf/pipeline/internal/pipeline/persister"
	"github.com/fastleaksdf/pipeline/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the persister stage.",
	Run:   runApp,
}

func runApp(cmd *cobra.Command, args []string) {
	logging.InitLogger("persister", false, "info")
	log := logging.Logger
	mainLog := log.Named("main")

	if err := config.Load(log, cmd); err != nil {
		mainLog.Panic("failed to load configuration", zap.Error(err))
	}
	logging.InitLogger("persister", false, config.ValueOf.LogLevel)
	log = logging.Logger
	mainLog = log.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	br, err := broker.Dial(ctx, config.ValueOf.RabbitMQURL, log)
	if err != nil {
		mainLog.Panic("failed to connect to broker", zap.Error(err))
	}
	defer br.Close()

	db, err := store.Open(config.ValueOf.DatabaseURL)
	if err != nil {
		mainLog.Panic("failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		mainLog.Panic("failed to ensure schema", zap.Error(err))
	}

	stage := persister.New(db, br, log)

	mainLog.Info("starting persister stage")
	if err := stage.Run(ctx); err != nil && ctx.Err() == nil {
		mainLog.Panic("persister stage stopped unexpectedly", zap.Error(err))
	}
	mainLog.Info("persister stage stopped")
}
