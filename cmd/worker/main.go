package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"paperchat/internal/activities"
	"paperchat/internal/app"
	"paperchat/internal/config"
	"paperchat/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)

	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalAddress,
		Logger:   tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	svc, err := app.Open(context.Background(), cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(svc.Ingest))

	logger.Info("paperchat worker listening",
		"temporal", cfg.TemporalAddress,
		"queue", cfg.TemporalTaskQueue,
		"store", cfg.Store,
		"embed_providers", cfg.EmbedProviders,
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}
