package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/immxrtalbeast/chat_gateway/internal/api/http"
	"github.com/immxrtalbeast/chat_gateway/internal/auth"
	"github.com/immxrtalbeast/chat_gateway/internal/catalog"
	"github.com/immxrtalbeast/chat_gateway/internal/config"
	"github.com/immxrtalbeast/chat_gateway/internal/repository"
	"github.com/immxrtalbeast/chat_gateway/internal/service"
	"github.com/immxrtalbeast/chat_gateway/lib/logger/sl"
	"github.com/immxrtalbeast/chat_gateway/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("application stopped", sl.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Algorithm)
	if err != nil {
		return fmt.Errorf("token verifier: %w", err)
	}

	store, err := setupStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("message store: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	registry := service.NewRegistry()
	localBus := service.NewLocalBus(registry, log)
	var bus service.Bus = localBus
	if cfg.Bus.Driver == config.BusRedis {
		client, err := connectRedis(gctx, cfg.Bus.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()

		redisBus := service.NewRedisBus(client, localBus, cfg.Bus.Redis.ChannelPrefix, log)
		g.Go(func() error { return redisBus.Run(gctx) })
		bus = redisBus
	}

	opts := []service.RoomServiceOption{service.WithMaxMessageLength(cfg.Chat.MaxMessageLength)}
	if cfg.Catalog.BaseURL != "" {
		products := catalog.NewClient(catalog.Config{
			BaseURL:        cfg.Catalog.BaseURL,
			Timeout:        cfg.Catalog.Timeout,
			MaxRetries:     cfg.Catalog.MaxRetries,
			InitialBackoff: cfg.Catalog.InitialBackoff,
		}, log)
		opts = append(opts, service.WithProductLookup(products))
	}
	rooms := service.NewRoomService(store, registry, bus, log, opts...)

	sessionCfg := service.SessionConfig{
		HeartbeatInterval: cfg.Chat.HeartbeatInterval,
		WriteTimeout:      cfg.Chat.WriteTimeout,
		SendBuffer:        cfg.Chat.SendBuffer,
		MaxFrameBytes:     cfg.Chat.MaxFrameBytes,
		RatePerSecond:     cfg.Chat.RatePerSecond,
		RateBurst:         cfg.Chat.RateBurst,
	}
	roomController := httpapi.NewRoomController(gctx, rooms, verifier, sessionCfg, cfg.HTTP.AllowedOrigins, log)
	router := httpapi.SetupRouter(roomController, verifier, cfg.HTTP.AllowedOrigins)

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("starting application",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("storage", cfg.Storage.Driver),
			slog.String("bus", cfg.Bus.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := roomController.Wait(shutdownCtx); err != nil {
			log.Warn("chat sessions still closing at shutdown deadline", sl.Err(err))
		}
		return nil
	})

	return g.Wait()
}

func setupStore(cfg config.StorageConfig) (repository.MessageStore, error) {
	switch cfg.Driver {
	case config.StoragePostgres:
		db, err := connectDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresMessageStore(db), nil
	case config.StorageMemory, "":
		return repository.NewInMemoryMessageStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func connectDatabase(cfg config.StorageConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
