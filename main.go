package main

import (
	"context"
	"log"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/joho/godotenv"

	"tbdash/internal"
	"tbdash/internal/config"
	"tbdash/internal/container"
	"tbdash/ui"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(appConfig.LogLevel))
	logger := internal.DefaultLogger.With("Main")

	ctx := context.Background()
	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(ctx)

	// Unreadable data, missing columns and catalog mismatches all stop here.
	if err := appContainer.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize dataset: %v", err)
	}

	dashboard, err := appContainer.Dashboard(ui.AboutMarkdown())
	if err != nil {
		log.Fatalf("Failed to initialize dashboard: %v", err)
	}

	// Render every feature in the background so first selections are instant.
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := appContainer.Maps.Warm(warmCtx); err != nil {
			logger.Warn("figure warm-up incomplete: %v", err)
		}
	}()

	// Start pprof server for performance profiling
	if appConfig.Profiling.Enabled {
		go func() {
			logger.Info("performance profiling server starting on :%s", appConfig.Profiling.Port)
			if err := http.ListenAndServe(":"+appConfig.Profiling.Port, nil); err != nil {
				logger.Error("pprof server failed: %v", err)
			}
		}()
	}

	server, err := ui.NewServer(dashboard, ui.ServerOptions{
		GinMode:        appConfig.Server.GinMode,
		MetricsEnabled: appConfig.Metrics.Enabled,
	})
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	log.Fatal(server.Start(appConfig.Addr()))
}
