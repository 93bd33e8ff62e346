package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/legal-insight/docintake/internal/api"
	"github.com/legal-insight/docintake/internal/config"
	"github.com/legal-insight/docintake/internal/logger"
	"github.com/legal-insight/docintake/internal/processing"
	"github.com/legal-insight/docintake/internal/status"
	"github.com/legal-insight/docintake/internal/storage"
	"github.com/legal-insight/docintake/internal/upload"
	"github.com/legal-insight/docintake/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to docintake.yaml (default: next to the binary)")
	flag.Parse()

	if *configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(exePath), "docintake.yaml")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := cfg.EnsureDirectories(); err != nil {
		log.Error("failed to create directories", "error", err)
		os.Exit(1)
	}

	maxBytes, _ := cfg.MaxUploadBytes()
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir(), maxBytes)
	if err != nil {
		log.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	policy := upload.DefaultPolicy()
	policy.MaxSize = maxBytes

	jobs := status.NewStore()
	engine := newEngine(cfg)
	trigger := processing.NewTrigger(jobs, engine, fileStore.Dir(), cfg.EngineTimeout(), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background job cleanup
	go func() {
		interval := cfg.CleanupInterval()
		if interval <= 0 {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := jobs.CleanupOldJobs(cfg.JobRetention()); n > 0 {
					log.Info("expired jobs removed", "count", n)
				}
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		BodyLimit:         cfg.Server.BodyLimit,
		AllowOrigins:      cfg.Server.AllowOrigins,
		EnableCompression: cfg.Server.EnableCompression,
		CompressionLevel:  cfg.Server.CompressionLevel,
		RequestLogging:    cfg.Log.RequestLogging,
		Logger:            log,
	})

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Store:      fileStore,
		Jobs:       jobs,
		Trigger:    trigger,
		Policy:     policy,
		NamePrefix: cfg.Storage.NamePrefix,
		Logger:     log,
		Version:    Version,
	}))

	if err := web.RegisterStaticRoutes(e); err != nil {
		log.Warn("failed to register upload page", "error", err)
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}

	// Print startup banner
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Document Intake Server                          ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Engine:     %-45s║\n", engine.Name())
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", *configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Uploads:   %-46s║\n", cfg.GetUploadDir())
	fmt.Printf("║  Max size:  %-46s║\n", humanize.IBytes(uint64(maxBytes)))
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func newEngine(cfg *config.AppConfig) processing.Engine {
	if cfg.Processing.Engine == config.EngineCommand {
		return processing.NewCommandEngine(cfg.Processing.Command, cfg.Processing.Args...)
	}
	return processing.NewHTTPEngine(cfg.Processing.Endpoint)
}

