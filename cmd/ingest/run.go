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
	"github.com/fastleaksdf/pipeline/internal/pipeline/ingest"
	"github.com/fastleaksdf/pipeline/internal/telegram"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingest stage.",
	Run:   runApp,
}

func runApp(cmd *cobra.Command, args []string) {
	logging.InitLogger("ingest", false, "info")
	log := logging.Logger
	mainLog := log.Named("main")

	if err := config.Load(log, cmd); err != nil {
		mainLog.Panic("failed to load configuration", zap.Error(err))
	}
	logging.InitLogger("ingest", false, config.ValueOf.LogLevel)
	log = logging.Logger
	mainLog = log.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	br, err := broker.Dial(ctx, config.ValueOf.RabbitMQURL, log)
	if err != nil {
		mainLog.Panic("failed to connect to broker", zap.Error(err))
	}
	defer br.Close()

	client := telegram.New(telegram.Options{
		APIID:       config.ValueOf.TelegramAPIID,
		APIHash:     config.ValueOf.TelegramAPIHash,
		SessionPath: config.ValueOf.TelegramSessionName + ".session",
	}, log)

	stage := ingest.New(client, br, config.ValueOf.TelegramChannelIDs, log)
	stage.Register()

	mainLog.Info("starting ingest stage")
	if err := client.Run(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}); err != nil && ctx.Err() == nil {
		mainLog.Panic("telegram client stopped unexpectedly", zap.Error(err))
	}
	mainLog.Info("ingest stage stopped")
}
