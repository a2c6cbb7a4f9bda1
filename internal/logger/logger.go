package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 日志文件轮转参数，与旧版保持一致：10MB x 5 份
const (
	logMaxSizeMB  = 10
	logMaxBackups = 5
)

var log = zap.NewNop()

// Init 初始化全局日志。level 取 DEBUG/INFO/WARNING/ERROR/CRITICAL，
// file 非空时同时写入轮转日志文件。
func Init(level, file string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:       "time",
		LevelKey:      "level",
		NameKey:       "name",
		MessageKey:    "message",
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeName:    zapcore.FullNameEncoder,
		ConsoleSeparator: " - ",
	}

	console := zapcore.Lock(os.Stdout)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), console, lvl),
	}

	if file != "" {
		if dir := filepath.Dir(file); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("logger: create log dir: %w", err)
			}
		}
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			Compress:   false,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writer, lvl))
	}

	log = zap.New(zapcore.NewTee(cores...))
	return nil
}

// L 返回全局 logger；未 Init 时为 no-op，便于测试
func L() *zap.Logger {
	return log
}

// S 返回带组件名的 sugared logger，例如 S("homepage")
func S(name string) *zap.SugaredLogger {
	return log.Named(name).Sugar()
}

// Sync 进程退出前冲刷缓冲
func Sync() {
	_ = log.Sync()
}

// ParseLevel 解析配置/命令行里的日志级别。CRITICAL 映射到 zap 的 fatal。
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "INFO", "":
		return zapcore.InfoLevel, nil
	case "WARNING", "WARN":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	case "CRITICAL":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logger: unknown level %q", level)
	}
}
