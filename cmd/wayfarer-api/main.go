// README: Entry point; loads config, wires infra and modules, serves the chat API until SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wayfarer/internal/ai"
	"wayfarer/internal/config"
	httptransport "wayfarer/internal/http"
	"wayfarer/internal/http/handlers"
	"wayfarer/internal/infra"
	"wayfarer/internal/logger"
	"wayfarer/internal/maps"
	"wayfarer/internal/modules/aiusage"
	"wayfarer/internal/modules/session"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Log.Fatal("wayfarer-api stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config) error {
	completer, closeCompleter, err := ai.NewCompleter(ctx, ai.Settings{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		BaseURL:   cfg.LLM.BaseURL,
	})
	if err != nil {
		return err
	}
	defer closeCompleter()

	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return err
	}
	if verifier == nil {
		logger.Log.Warn("firebase not configured; trusting the X-User-ID header")
	}

	deps := session.Deps{Timeout: cfg.LLM.Timeout}
	var usageSvc *aiusage.Service

	if cfg.DB.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer dbPool.Close()
		if cfg.DB.Migrations != "" {
			if err := infra.ApplyMigrations(ctx, dbPool, cfg.DB.Migrations); err != nil {
				return err
			}
		}
		deps.Repo = session.NewStore(dbPool)
		if cfg.Quota.MonthlyTokens > 0 {
			usageSvc = aiusage.NewService(aiusage.NewStore(dbPool, cfg.Quota.MonthlyTokens))
			deps.Quota = usageSvc
		}
	} else {
		logger.Log.Warn("WAYFARER_DB_DSN not set; sessions live in memory only")
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		deps.Cache = session.NewCache(redisClient, cfg.Redis.LockTTL)
	}

	var places handlers.PlaceSearcher
	if cfg.Maps.APIKey != "" {
		geocoder, err := maps.NewGeocoder(cfg.Maps.APIKey)
		if err != nil {
			return err
		}
		deps.Locator = geocoder
		finder, err := maps.NewPlaceFinder(cfg.Maps.APIKey)
		if err != nil {
			return err
		}
		places = finder
	}

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Sessions: session.NewService(completer, deps),
		Usage:    usageSvc,
		Places:   places,
		Verifier: verifier,
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("provider", cfg.LLM.Provider),
			zap.Bool("postgres", deps.Repo != nil),
			zap.Bool("redis", deps.Cache != nil),
			zap.Bool("geocoding", deps.Locator != nil),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
