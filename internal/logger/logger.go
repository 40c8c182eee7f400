package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stockapp/m/internal/config"
)

// New builds the application logger. Development mode switches to a
// console encoder at debug level.
func New(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if cfg.IsDevelopment() && cfg.Logger.Level == "" {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.Logger.Encoding != "" {
		zc.Encoding = cfg.Logger.Encoding
	}
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableCaller = cfg.Logger.DisableCaller
	zc.DisableStacktrace = cfg.Logger.DisableStacktrace

	return zc.Build(zap.Fields(zap.String("service", cfg.Kafka.ServiceName)))
}
