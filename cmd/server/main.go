package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"seatshare/internal/config"
	"seatshare/internal/domain"
	"seatshare/internal/httpserver"
	"seatshare/internal/logger"
	"seatshare/internal/notify"
	"seatshare/internal/objectstore"
	"seatshare/internal/security"
	"seatshare/internal/service"
	"seatshare/internal/store/postgres"
	"seatshare/internal/store/sqlite"
	"seatshare/internal/ws"
)

// @title           SeatShare API
// @version         1.0
// @description     Marketplace API for sharing seats in subscription plans.

// @host            localhost:8000
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Security components
	tokenSvc := security.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL())
	passwordHasher := security.NewPasswordHasher(cfg.BcryptCost)
	encryptor, err := security.NewEncryptor([]byte(cfg.EncryptKey), cfg.LegacyEncryptKeys)
	if err != nil {
		return fmt.Errorf("initialize encryptor: %w", err)
	}

	objects, err := openObjectStore(ctx, cfg)
	if err != nil {
		return err
	}

	// Notification fan-out
	hub := ws.NewHub(zlog)
	var sinks []notify.Sink
	if cfg.HasSink(config.SinkWS) {
		sinks = append(sinks, hub)
	}
	if cfg.HasSink(config.SinkRedis) {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zlog.Warn("redis unreachable, notifications will be retried per event", zap.Error(err))
		}
		sinks = append(sinks, notify.NewRedisSink(rdb, ""))
	}
	if cfg.HasSink(config.SinkAMQP) {
		amqpSink := notify.NewAMQPSink(cfg.AMQPURL, cfg.AMQPQueue)
		defer amqpSink.Close()
		sinks = append(sinks, amqpSink)
	}
	dispatcher := notify.NewDispatcher(zlog, cfg.NotifyBuffer, sinks...)

	// Services
	router := httpserver.NewRouter(httpserver.Deps{
		Config:   cfg,
		Log:      zlog,
		Hub:      hub,
		Tokens:   tokenSvc,
		Users:    store.Users(),
		Auth:     service.NewAuthService(store.Users(), tokenSvc, passwordHasher),
		Profiles: service.NewUserService(store.Users(), objects, zlog),
		Listings: service.NewListingService(store, zlog),
		Seats:    service.NewSeatService(store, dispatcher, zlog),
		Reviews:  service.NewReviewService(store, dispatcher, zlog),
		Conversations: service.NewConversationService(store, encryptor, dispatcher, zlog, service.ConversationConfig{
			MaxMessageLength: cfg.MaxMessageLength,
			HistoryLimit:     cfg.MaxMessagesPerConversation,
		}),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("starting server",
			zap.String("addr", cfg.HTTPAddr()),
			zap.String("store", cfg.StoreDriver),
			zap.Strings("sinks", cfg.NotifySinks),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	// Graceful shutdown
	zlog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		zlog.Warn("pending notifications dropped", zap.Error(err))
	}
	return nil
}

func openStore(cfg *config.Config) (domain.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return postgres.NewStore(db), nil
	default:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return sqlite.NewStore(db), nil
	}
}

func openObjectStore(ctx context.Context, cfg *config.Config) (objectstore.Storage, error) {
	if cfg.AvatarStorage == config.AvatarStorageS3 {
		return objectstore.NewS3(ctx, objectstore.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBaseURL,
		})
	}
	return objectstore.NewLocal(cfg.UploadDir, cfg.PublicBaseURL+"/uploads")
}
