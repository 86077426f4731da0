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

	"auction-engine/internal/auction"
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/config"
	"auction-engine/internal/locker"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"auction-engine/internal/sweeper"
	"auction-engine/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "auction-engine: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	if err := utils.SetLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	lk, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	registry := auction.NewRegistry(repo, lk)
	biddingSvc := bidding.NewBiddingService(repo, registry, bidding.Config{
		RaiseIncrement:       cfg.RaiseIncrement,
		RetryMaxAttempts:     cfg.RetryMaxAttempts,
		RetryInitialInterval: cfg.RetryInitialInterval,
	})

	if cfg.SeedDemoData {
		if err := prepopulateItems(ctx, biddingSvc); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           server.SetupRouter(biddingSvc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		utils.Info("Starting auction server", map[string]any{
			"addr":  cfg.ServerAddr,
			"store": cfg.StoreDriver,
			"lock":  cfg.Lock.Driver,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sweeper.New(biddingSvc.Sweep, cfg.SweepInterval).Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		utils.Info("Shutting down", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore builds the ledger store selected by the store driver
func openStore(ctx context.Context, cfg config.Config) (repository.AuctionDB, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite, config.StorePostgres:
		open := func() (*repository.GormRepo, error) {
			if cfg.StoreDriver == config.StoreSQLite {
				db, err := repository.OpenSQLite(cfg.SQLitePath)
				if err != nil {
					return nil, err
				}
				return repository.NewGormRepo(db), nil
			}
			db, err := repository.OpenPostgres(cfg.DB.DSN())
			if err != nil {
				return nil, err
			}
			return repository.NewGormRepo(db), nil
		}

		repo, err := open()
		if err != nil {
			return nil, nil, err
		}
		if err := repo.AutoMigrate(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				utils.Warn("failed to close store", map[string]any{"error": err.Error()})
			}
		}, nil
	default:
		return repository.NewMemoryRepo(), func() {}, nil
	}
}

// openLocker builds the per-item lock manager
func openLocker(ctx context.Context, cfg config.Config) (locker.Locker, func(), error) {
	if cfg.Lock.Driver != config.LockRedis {
		return locker.NewLocalLocker(cfg.Lock.WaitTimeout), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}

	lk := locker.NewRedisLocker(client,
		locker.WithKeyPrefix(cfg.Redis.KeyPrefix),
		locker.WithExpiry(cfg.Lock.Expiry),
		locker.WithRetryDelay(cfg.Lock.RetryDelay),
		locker.WithWaitTimeout(cfg.Lock.WaitTimeout),
	)
	return lk, func() {
		if err := client.Close(); err != nil {
			utils.Warn("failed to close redis client", map[string]any{"error": err.Error()})
		}
	}, nil
}

// prepopulateItems registers a demo seller and lists a few sample items
func prepopulateItems(ctx context.Context, svc *bidding.BiddingService) error {
	seller, err := svc.RegisterUser(ctx, "demo-seller")
	if errors.Is(err, biddingerrors.ErrUserExists) {
		utils.Info("Demo data already present", nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed demo seller: %w", err)
	}

	items := []struct {
		title, description string
		startingPrice      int64
	}{
		{"title1", "description1", 100},
		{"title2", "description2", 200},
		{"title3", "description3", 150},
	}

	closeTime := time.Now().Add(24 * time.Hour)
	for _, it := range items {
		item, err := svc.CreateItem(ctx, seller.UserID, it.title, it.description, decimal.NewFromInt(it.startingPrice), closeTime)
		if err != nil {
			return fmt.Errorf("seed item %s: %w", it.title, err)
		}
		utils.Info("Demo item created", map[string]any{"item_id": item.ItemID, "title": item.Title})
	}
	return nil
}
