package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/config"
	"github.com/parlour-dev/parlour/backend/internal/repository"
	"github.com/parlour-dev/parlour/backend/internal/repository/memory"
	"github.com/parlour-dev/parlour/backend/internal/repository/mongo"
	"github.com/parlour-dev/parlour/backend/internal/repository/postgres"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open 根据配置中的 driver 创建对应的存储实现
func Open(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	queryTimeout := time.Duration(cfg.Database.QueryTimeout) * time.Second

	switch cfg.Database.Driver {
	case DriverMongo:
		store, err := mongo.New(ctx, cfg.Database.DSN, cfg.Database.Name, queryTimeout)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverPostgres:
		store, err := postgres.New(ctx, cfg.Database.DSN, postgres.Options{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			MaxIdleTime:  time.Duration(cfg.Database.MaxIdleTime) * time.Second,
			QueryTimeout: queryTimeout,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		slog.Warn("使用内存存储，进程退出后数据将丢失")
		return memory.New(), nil
	default:
		return nil, goerr.New("unknown database driver", goerr.V("driver", cfg.Database.Driver))
	}
}
