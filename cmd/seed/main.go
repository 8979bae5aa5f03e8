package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/parlour-dev/parlour/backend/internal/config"
	"github.com/parlour-dev/parlour/backend/internal/repository"
	"github.com/parlour-dev/parlour/backend/internal/repository/backend"
	"github.com/parlour-dev/parlour/backend/internal/seed"
	"github.com/urfave/cli/v3"
)

// withRepository 读取配置并打开存储，执行完 fn 后关闭
func withRepository(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, repo repository.Repository) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	repo, err := backend.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close(context.Background())

	return fn(ctx, cfg, repo)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var n int64

	app := &cli.Command{
		Name:  "seed",
		Usage: "向数据库中插入初始数据",
		Commands: []*cli.Command{
			{
				Name:  "users",
				Usage: "插入超级管理员和管理员账号",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withRepository(ctx, func(ctx context.Context, cfg *config.Config, repo repository.Repository) error {
						created, err := seed.SeedUsers(ctx, repo, cfg.Seed.Password)
						if err != nil {
							return err
						}
						slog.Info("插入用户成功", slog.Int("count", created))
						return nil
					})
				},
			},
			{
				Name:  "employees",
				Usage: "插入示例员工",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withRepository(ctx, func(ctx context.Context, cfg *config.Config, repo repository.Repository) error {
						created, err := seed.SeedEmployees(ctx, repo)
						if err != nil {
							return err
						}
						slog.Info("插入员工成功", slog.Int("count", created))
						return nil
					})
				},
			},
			{
				Name:  "random-employees",
				Usage: "插入随机员工",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "n",
						Usage:       "要插入的员工数量",
						Value:       5,
						Destination: &n,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withRepository(ctx, func(ctx context.Context, cfg *config.Config, repo repository.Repository) error {
						created, err := seed.SeedRandomEmployees(ctx, repo, int(n), cfg.Seed.EmailDomain)
						if err != nil {
							return err
						}
						slog.Info("插入随机员工成功", slog.Int("count", created))
						return nil
					})
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Error("执行失败", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
