package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"tbdash/internal"
	"tbdash/internal/config"
	"tbdash/internal/container"
	"tbdash/ui"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(cfg.LogLevel))

	ctx := context.Background()
	c, err := container.New(cfg)
	if err != nil {
		log.Fatal("Failed to create container:", err)
	}
	defer c.Shutdown(ctx)
	if err := c.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize dataset: %v", err)
	}

	dashboard, err := c.Dashboard(ui.AboutMarkdown())
	if err != nil {
		log.Fatalf("Failed to initialize dashboard: %v", err)
	}

	app, err := ui.NewApp(dashboard, ui.Config{
		Port:           cfg.Server.Port,
		MetricsEnabled: cfg.Metrics.Enabled,
	})
	if err != nil {
		log.Fatal("Failed to create UI app:", err)
	}

	log.Fatal(app.Start())
}
