package util

import (
	"io"
	"os"
	"path/filepath"
	"rbacgate/internal/rbac/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger *logrus.Logger

// InitLogger configures the process logger. With a file path set, output
// goes to stdout and a rotated file.
func InitLogger(cfg config.LogConfig) error {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return err
		}
		rotate := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotate))
	}

	Logger = logger
	return nil
}

func GetLogger() *logrus.Logger {
	if Logger == nil {
		_ = InitLogger(config.LogConfig{Level: "info", Format: "json"})
	}
	return Logger
}
