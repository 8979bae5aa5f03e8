package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema.sql
var schema string

type Store struct {
	dbpool       *sql.DB
	queryTimeout time.Duration
}

var _ repository.Repository = &Store{}

type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
	QueryTimeout time.Duration
}

// New 创建连接池并建表
func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	dbpool, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres pool")
	}

	dbpool.SetMaxOpenConns(opts.MaxOpenConns)
	dbpool.SetMaxIdleConns(opts.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(opts.MaxIdleTime)

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		dbpool.Close()
		return nil, goerr.Wrap(err, "failed to ping postgres")
	}

	if _, err := dbpool.ExecContext(ctx, schema); err != nil {
		dbpool.Close()
		return nil, goerr.Wrap(err, "failed to apply schema")
	}

	return &Store{dbpool: dbpool, queryTimeout: opts.QueryTimeout}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.dbpool.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// mapError 把驱动层错误转换为 repository 中的哨兵错误
func mapError(err error, msg string, values ...goerr.Option) error {
	if errors.Is(err, sql.ErrNoRows) {
		return goerr.Wrap(repository.ErrNotFound, msg, values...)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.ConstraintName {
		case "users_email_key", "employees_email_key":
			return goerr.Wrap(repository.ErrDuplicateEmail, msg, values...)
		}
	}

	return goerr.Wrap(err, msg, values...)
}

func expectAffected(result sql.Result, msg string, values ...goerr.Option) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, msg, values...)
	}
	if affected == 0 {
		return goerr.Wrap(repository.ErrNotFound, msg, values...)
	}
	return nil
}
