package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/dprs_gateway/internal/app"
	"github.com/relabs-tech/dprs_gateway/internal/config"
	"github.com/relabs-tech/dprs_gateway/internal/logging"
)

func main() {
	configPath := flag.String("config", "dprs_gateway.yaml", "path to the YAML config file")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logFile, err := logging.Configure(config.Get())
	if err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	defer logFile.Close()

	log.Info("starting D-PRS console (MQTT subscriber)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
