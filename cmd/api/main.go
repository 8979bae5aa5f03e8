package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parlour-dev/parlour/backend/internal/auth"
	"github.com/parlour-dev/parlour/backend/internal/config"
	"github.com/parlour-dev/parlour/backend/internal/events"
	"github.com/parlour-dev/parlour/backend/internal/handler"
	"github.com/parlour-dev/parlour/backend/internal/ledger"
	"github.com/parlour-dev/parlour/backend/internal/realtime"
	"github.com/parlour-dev/parlour/backend/internal/repository/backend"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg != nil && cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func main() {
	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		newLogger(nil).Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	/**********************************************
	 * 连接数据库
	 **********************************************/
	repo, err := backend.Open(context.Background(), cfg)
	if err != nil {
		logger.Error("无法连接到数据库", "driver", cfg.Database.Driver, "error", err)
		return
	}
	defer repo.Close(context.Background())

	/**********************************************
	 * 连接 redis，用于注销令牌
	 **********************************************/
	var revoker auth.Revoker
	if cfg.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       0,
		})
		defer rdb.Close()

		revoker = auth.NewRedisRevoker(rdb, time.Duration(cfg.Redis.OperationExpiration)*time.Second)
	} else {
		logger.Warn("未配置 redis，令牌注销功能不可用")
	}

	/**********************************************
	 * 连接 rabbitmq，用于发送任务分配邮件
	 **********************************************/
	var mailChannel handler.MailPublisher
	if cfg.RabbitMQ.DSN != "" {
		conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
		if err != nil {
			logger.Error("无法连接到 rabbitmq", "error", err)
			return
		}
		defer conn.Close()

		// 建立通道
		ch, err := conn.Channel()
		if err != nil {
			logger.Error("无法建立通道", "error", err)
			return
		}
		defer ch.Close()

		// 声明队列
		_, err = ch.QueueDeclare(
			cfg.RabbitMQ.Queue,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			logger.Error("无法声明队列", "error", err)
			return
		}

		mailChannel = ch
	} else {
		logger.Warn("未配置 rabbitmq，任务分配邮件不会发送")
	}

	/**********************************************
	 * 创建 kafka 导出器
	 **********************************************/
	exporter := events.NewNoopExporter()
	if len(cfg.Kafka.Brokers) > 0 {
		exporter = events.NewKafkaExporter(cfg.Kafka.Brokers, cfg.Kafka.Topic, time.Duration(cfg.Kafka.WriteTimeout)*time.Second)
	}
	defer exporter.Close()

	/**********************************************
	 * 创建核心组件
	 **********************************************/
	issuer := auth.NewIssuer(cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Second)
	verifier := auth.NewVerifier(issuer, repo, revoker)
	broadcaster := realtime.NewBroadcaster(cfg.Realtime.SendBuffer, time.Duration(cfg.Realtime.WriteTimeout)*time.Second)

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(handler.Deps{
		Config:      cfg,
		Repository:  repo,
		Issuer:      issuer,
		Verifier:    verifier,
		Revoker:     revoker,
		Ledger:      ledger.New(repo),
		Broadcaster: broadcaster,
		Exporter:    exporter,
		MailChannel: mailChannel,
	})
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	// websocket 连接被 hijack 后不受 Shutdown 管理，需要主动断开
	srv.RegisterOnShutdown(broadcaster.Close)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}
