package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/h3tiles/server/internal/api"
	"github.com/h3tiles/server/internal/cache"
	"github.com/h3tiles/server/internal/config"
	"github.com/h3tiles/server/internal/database"
	"github.com/h3tiles/server/internal/logger"
	"github.com/h3tiles/server/internal/query"
	"github.com/h3tiles/server/internal/service"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tile server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		log, err := logger.New(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Sync()

		return serve(cmd.Context(), cfg, log)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log.Info("Starting h3tiles server", zap.Int("port", cfg.Server.Port), zap.Strings("tables", cfg.TableNames()))

	gateway, err := database.Connect(ctx, database.Config{
		URL:            cfg.Database.URL,
		MaxConns:       cfg.Database.MaxConns,
		MinConns:       cfg.Database.MinConns,
		AcquireTimeout: time.Duration(cfg.Database.AcquireTimeoutSeconds) * time.Second,
		QueryTimeout:   time.Duration(cfg.Database.QueryTimeoutSeconds) * time.Second,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer gateway.Close()

	store, err := cache.NewStore(ctx, cache.Config{
		Type:        cfg.Cache.Type,
		MaxEntries:  cfg.Cache.MaxEntries,
		TTL:         time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
		SizeMB:      cfg.Cache.SizeMB,
		RedisAddr:   cfg.Cache.RedisAddr,
		RedisPrefix: cfg.Cache.RedisPrefix,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	tileCache := cache.New(store, log)
	defer tileCache.Close()

	registry := api.NewTableRegistry()
	for _, schema := range cfg.Schemas() {
		registry.Register(service.NewTileService(service.TileServiceConfig{
			Schema: schema,
			Cache:  tileCache,
			DB:     gateway,
			Logger: log,
		}))
		log.Info("Registered table",
			zap.String("table", schema.Table),
			zap.String("index_column", schema.IndexColumn),
			zap.Int("resolution", schema.IndexResolution),
			zap.Int("srid", schema.SRID),
		)
	}

	counter := service.NewCountService(service.CountServiceConfig{
		DB: gateway,
		Options: query.CountOptions{
			BandColumn:      cfg.Query.BandColumn,
			JoinTable:       cfg.Query.JoinTable,
			JoinIndexColumn: cfg.Query.JoinIndexColumn,
		},
		Logger: log,
	})

	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		Counter:     counter,
		Cache:       tileCache,
		Pool:        gateway,
		CORSOrigins: cfg.Server.CORSOrigins,
		TileDir:     cfg.Server.TileDir,
		Logger:      log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
	return nil
}
