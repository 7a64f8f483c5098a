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

	"github.com/antonminaichev/cashback-ledger/internal/affiliate"
	"github.com/antonminaichev/cashback-ledger/internal/ledger"
	"github.com/antonminaichev/cashback-ledger/internal/link"
	"github.com/antonminaichev/cashback-ledger/internal/logger"
	"github.com/antonminaichev/cashback-ledger/internal/order"
	"github.com/antonminaichev/cashback-ledger/internal/ratelimit"
	"github.com/antonminaichev/cashback-ledger/internal/router"
	"github.com/antonminaichev/cashback-ledger/internal/storage"
	"github.com/antonminaichev/cashback-ledger/internal/storage/memory"
	pgstorage "github.com/antonminaichev/cashback-ledger/internal/storage/postgres"
	"github.com/antonminaichev/cashback-ledger/internal/user"
	"github.com/antonminaichev/cashback-ledger/internal/user/admin"
	"github.com/antonminaichev/cashback-ledger/internal/withdrawal"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		logger.Log.Fatal("server failed", zap.Error(err))
	}
}

func run() error {
	cfg, err := NewConfig()
	if err != nil {
		return err
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return err
	}
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Log.Warn("failed to close storage", zap.Error(err))
		}
	}()

	counters, closeCounters, err := openCounters(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCounters()
	limiter := ratelimit.New(counters, cfg.RateLimitWindow, cfg.RateLimitMax)

	var network affiliate.Network
	if cfg.AffiliateAddress != "" {
		network = affiliate.NewHTTPClient(cfg.AffiliateAddress, cfg.AffiliateRPS)
	} else {
		logger.Log.Info("AFFILIATE_ADDRESS not set, using stub affiliate network")
		network = affiliate.NewStub()
	}

	userSvc := user.NewService(store, []byte(cfg.JWTSecret), cfg.JWTTTL)
	if cfg.AdminLogin != "" {
		if _, err := userSvc.EnsureAdmin(ctx, cfg.AdminLogin, cfg.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	ledgerSvc := ledger.NewService(store)
	withdrawalSvc := withdrawal.NewService(store)
	linkSvc := link.NewService(store, network, cfg.PublicBaseURL)
	orderSvc := order.NewService(store, store)

	r := router.NewRouter(router.Handlers{
		User:       user.NewHandler(userSvc),
		Ledger:     ledger.NewHandler(ledgerSvc),
		Withdrawal: withdrawal.NewHandler(withdrawalSvc, withdrawal.NewGateway(withdrawalSvc)),
		Link:       link.NewHandler(linkSvc),
		Order:      order.NewHandler(orderSvc),
		Users:      admin.NewHandler(userSvc),
	}, limiter, []byte(cfg.JWTSecret), store)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go order.DispatcherLoop(ctx, network, orderSvc, cfg.ConversionWorkers, cfg.ConversionInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("starting server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}
	logger.Log.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Log.Info("server stopped gracefully")
	return nil
}

func openStorage(ctx context.Context, cfg *Config) (storage.Storage, error) {
	if cfg.DatabaseConnection == "" {
		logger.Log.Info("DATABASE_URI not set, using in-memory storage")
		return memory.New(), nil
	}
	store, err := pgstorage.NewPostgresStorage(cfg.DatabaseConnection)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres storage: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return store, nil
}

func openCounters(ctx context.Context, cfg *Config) (ratelimit.CounterStore, func(), error) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemoryStore(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Log.Info("rate limit counters in redis", zap.String("addr", cfg.RedisAddr))
	return ratelimit.NewRedisStore(client, "cashback:ratelimit:"), func() { client.Close() }, nil
}
