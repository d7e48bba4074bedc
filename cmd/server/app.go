package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/rl1809/digital-kanban/internal/adapter/notify"
	"github.com/rl1809/digital-kanban/internal/adapter/storage"
	"github.com/rl1809/digital-kanban/internal/config"
	"github.com/rl1809/digital-kanban/internal/core/service"
	"github.com/rl1809/digital-kanban/internal/port"
)

// app holds the wired services and the connections to close on shutdown.
type app struct {
	kanbans    *service.KanbanService
	containers *service.ContainerService
	workflows  *service.WorkflowService
	jobs       port.JobRepository
	orders     port.OrderRepository

	closers []func() error
}

func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}

func buildApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close())
		}
	}()

	mock := storage.NewMockData()

	var (
		inventory port.InventoryRepository
		locker    port.Locker
	)
	if cfg.Storage.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			PoolSize: cfg.Storage.Redis.PoolSize,
		})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		log.WithField("addr", cfg.Storage.Redis.Addr).Info("connected to redis")

		redisAdapter := storage.NewRedisAdapter(rdb)
		if cfg.Storage.SeedMockData {
			for _, inv := range mock.Inventory {
				if err := redisAdapter.SetInventory(ctx, inv); err != nil {
					return nil, fmt.Errorf("failed to seed inventory: %w", err)
				}
			}
		}
		inventory = redisAdapter
		locker = storage.NewRedisLocker(rdb, cfg.Storage.Redis.LockTTL)
	} else {
		memInventory := storage.NewMemoryInventory()
		if cfg.Storage.SeedMockData {
			for _, inv := range mock.Inventory {
				memInventory.AddInventory(inv)
			}
		}
		inventory = memInventory
		locker = storage.NewKeyedMutex()
	}

	var kanbans port.KanbanRepository
	if cfg.Storage.MySQL.DSN != "" {
		db, err := storage.OpenMySQL(ctx, cfg.Storage.MySQL.DSN,
			cfg.Storage.MySQL.MaxOpenConns, cfg.Storage.MySQL.MaxIdleConns, cfg.Storage.MySQL.ConnMaxLifetime)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		log.Info("connected to mysql")

		mysqlAdapter, err := openMySQLAdapter(ctx, db, cfg.Storage.SeedMockData, mock)
		if err != nil {
			return nil, err
		}
		kanbans, a.jobs, a.orders = mysqlAdapter, mysqlAdapter, mysqlAdapter
	} else {
		kanbans = storage.NewMemoryKanbans()
		if cfg.Storage.SeedMockData {
			a.jobs = storage.NewMemoryJobs(mock.Jobs, mock.WorkCenters)
			a.orders = storage.NewMemoryOrders(mock.Orders)
		} else {
			a.jobs = storage.NewMemoryJobs(nil, nil)
			a.orders = storage.NewMemoryOrders(nil)
		}
	}

	workflows, err := config.LoadWorkflows(cfg.Workflows.File)
	if err != nil {
		return nil, err
	}

	notifier := notify.NewLogNotifier(log.StandardLogger())
	a.kanbans = service.NewKanbanService(kanbans, inventory, a.jobs, locker, notifier)
	a.containers = service.NewContainerService(inventory, locker)
	a.workflows = service.NewWorkflowService(workflows, a.kanbans, a.containers, inventory, a.jobs, a.orders, notifier)

	log.WithField("workflows", len(workflows)).Info("services ready")
	return a, nil
}

func openMySQLAdapter(ctx context.Context, db *sql.DB, seed bool, mock storage.MockData) (*storage.MySQLAdapter, error) {
	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate mysql: %w", err)
	}
	if seed {
		if err := adapter.Seed(ctx, mock); err != nil {
			return nil, fmt.Errorf("failed to seed mysql: %w", err)
		}
	}
	return adapter, nil
}
