package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 创建日志器
// env: production 输出 JSON，其余输出便于阅读的控制台格式
func New(level, env string) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(env, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("无效的日志级别 %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	return cfg.Build()
}

// Must 创建失败时回退到生产配置
func Must(level, env string) *zap.Logger {
	l, err := New(level, env)
	if err == nil {
		return l
	}
	fallback, _ := zap.NewProduction()
	fallback.Warn("日志配置无效，使用默认配置", zap.Error(err))
	return fallback
}
