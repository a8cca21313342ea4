package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rentalmgmt/internal/app"
	"rentalmgmt/internal/config"
	"rentalmgmt/internal/server"
	"rentalmgmt/internal/util"
	"rentalmgmt/pkg/auth"
	"rentalmgmt/pkg/i18n"
	"rentalmgmt/pkg/storage"
	"rentalmgmt/pkg/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokenTTL, err := config.ParseTokenTTL(cfg.TokenTTL)
	if err != nil {
		log.Fatalf("failed to parse token ttl: %v", err)
	}
	trustedProxies, err := util.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	st, err := openStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	var blobs storage.BlobStore
	switch cfg.StorageBackend {
	case "minio":
		blobs, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		blobs, err = storage.NewFileStore(cfg.UploadDir)
	}
	if err != nil {
		log.Fatalf("failed to init blob storage: %v", err)
	}

	var revoker auth.TokenRevoker = auth.NewMemoryTokenRevoker()
	if cfg.RedisAddr != "" {
		revoker = auth.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
	}
	tokens, err := auth.NewTokenService(auth.TokenServiceOptions{
		Secret:  cfg.TokenSecret,
		TTL:     tokenTTL,
		Revoker: revoker,
	})
	if err != nil {
		log.Fatalf("failed to init token service: %v", err)
	}

	translator, err := i18n.Load(cfg.LocalesDir, cfg.DefaultLocale)
	if err != nil {
		log.Fatalf("failed to load locales: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:  st,
		Blobs:  blobs,
		Tokens: tokens,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		Translator:     translator,
		TrustedProxies: trustedProxies,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("rental server listening", "addr", addr, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}

// openStore picks the SQL driver from the DSN. Postgres URLs go through
// the postgres driver; anything else is treated as a SQLite path, which
// keeps local development free of external services.
func openStore(dsn string) (store.Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return store.NewGormStore(dsn)
	}
	return store.NewSQLiteStore(dsn)
}
