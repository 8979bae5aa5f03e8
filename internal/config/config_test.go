package config_test

import (
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/parlour-dev/parlour/backend/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")

		cfg, err := config.LoadConfig()
		gt.NoError(t, err).Required()

		gt.Value(t, cfg.JWT.Secret).Equal("secret")
		gt.Number(t, cfg.JWT.Expiration).Equal(604800)
		gt.Value(t, cfg.Server.Port).Equal("5000")
		gt.Value(t, cfg.Database.Driver).Equal("mongo")
		gt.Value(t, cfg.RabbitMQ.Queue).Equal("email_queue")
		gt.Array(t, cfg.CORS.AllowedOrigins).Length(1)
		gt.Bool(t, cfg.IsProduction()).False()
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("DATABASE_DRIVER", "postgres")
		t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,https://parlour.example")
		t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

		cfg, err := config.LoadConfig()
		gt.NoError(t, err).Required()

		gt.Bool(t, cfg.IsProduction()).True()
		gt.Value(t, cfg.Database.Driver).Equal("postgres")
		gt.Array(t, cfg.CORS.AllowedOrigins).Length(2)
		gt.Array(t, cfg.Kafka.Brokers).Length(2)
	})

	t.Run("secret is required", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		gt.NoError(t, os.Unsetenv("JWT_SECRET")).Required()

		_, err := config.LoadConfig()
		gt.Error(t, err)
	})
}
