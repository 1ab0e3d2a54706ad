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
	"github.com/fastleaksdf/pipeline/internal/patterns"
	"github.com/fastleaksdf/pipeline/internal/pipeline/scanner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scanner stage.",
	Run:   runApp,
}

func runApp(cmd *cobra.Command, args []string) {
	logging.InitLogger("scanner", false, "info")
	log := logging.Logger
	mainLog := log.Named("main")

	if err := config.Load(log, cmd); err != nil {
		mainLog.Panic("failed to load configuration", zap.Error(err))
	}
	logging.InitLogger("scanner", false, config.ValueOf.LogLevel)
	log = logging.Logger
	mainLog = log.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	br, err := broker.Dial(ctx, config.ValueOf.RabbitMQURL, log)
	if err != nil {
		mainLog.Panic("failed to connect to broker", zap.Error(err))
	}
	defer br.Close()

	matcher, err := patterns.New(patterns.Config{
		CPF:        config.ValueOf.IOCPatternCPF,
		EmailGDF:   config.ValueOf.IOCPatternEmailGDF,
		DomainDF:   config.ValueOf.IOCPatternDomainDF,
		IPInternal: config.ValueOf.IOCPatternIPInternal,
	})
	if err != nil {
		mainLog.Panic("failed to compile ioc patterns", zap.Error(err))
	}

	stage := scanner.New(matcher, br, log)

	mainLog.Info("starting scanner stage")
	if err := stage.Run(ctx); err != nil && ctx.Err() == nil {
		mainLog.Panic("scanner stage stopped unexpectedly", zap.Error(err))
	}
	mainLog.Info("scanner stage stopped")
}
