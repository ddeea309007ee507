package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/apiclient"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logger"
	"storefront/internal/router"
	"storefront/internal/services"
	"storefront/internal/session"
)

const staleClaimAfter = 2 * time.Minute

func main() {
	cfg := config.LoadConfig()

	log := logger.InitLogger(cfg.LogLevel)
	log.Info().Msg("Storefront starting")

	ctx := context.Background()

	var ledger services.Ledger = services.NewMemoryLedger()
	if cfg.DBUrl != "" {
		database := db.InitDB(cfg.DBUrl, log)
		defer database.Close()

		db.RunMigrations(database, log)
		ledger = db.NewLedger(database, staleClaimAfter, log)
	} else {
		log.Warn().Msg("DB_URL not set, settlements are tracked in memory only")
	}

	provider, err := session.NewFirebase(ctx, cfg.FirebaseCredentials, cfg.FirebaseAPIKey, cfg.APITimeout, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not initialise the identity provider")
	}
	cookies := session.NewCookieStore(session.CookieOptions{
		HashKey:  cfg.SessionKey,
		BlockKey: cfg.SessionBlockKey,
		Secure:   cfg.CookieSecure,
		Domain:   cfg.CookieDomain,
	})
	manager := session.NewManager(cookies, provider, log)
	backend := apiclient.NewBackend(cfg.BackendURL, cfg.APITimeout, log)

	deps := router.Deps{
		Manager: manager,
		Backend: backend,
		Ledger:  ledger,
	}
	if cfg.S3Bucket != "" {
		uploader, err := services.NewS3Uploader(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Image uploads disabled")
		} else {
			deps.Uploader = uploader
		}
	}

	r, err := router.SetupRouter(cfg, deps, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not build the router")
	}

	probeCtx, cancelProbe := context.WithTimeout(ctx, cfg.APITimeout)
	router.Warm(probeCtx, backend, log)
	cancelProbe()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.APITimeout + cfg.GuardWait + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Msgf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
