package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "45")
	t.Setenv("LOGGER_DISABLE_CALLER", "true")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()

	assert.Equal(t, ":9999", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 45*time.Minute, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Logger.DisableCaller)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, "admin", cfg.Auth.AdminUsername)
}

func TestIsDevelopment(t *testing.T) {
	cfg := Config{Server: ServerConfig{AppEnv: "development"}}
	assert.True(t, cfg.IsDevelopment())

	cfg.Server.AppEnv = "production"
	assert.False(t, cfg.IsDevelopment())
}
