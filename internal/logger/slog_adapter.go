package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SlogLogger slog 實作
type SlogLogger struct {
	logger  *slog.Logger
	writers []io.WriteCloser // 需要關閉的 writers
}

// NewSlogLogger 建立新的 slog logger
func NewSlogLogger(config Config) (*SlogLogger, error) {
	var writers []io.Writer
	var closeableWriters []io.WriteCloser

	if config.Writer != nil {
		writers = append(writers, config.Writer)
	} else {
		writers = append(writers, os.Stderr)
	}

	if config.File.Enabled {
		fileWriter, err := createFileWriter(config.File)
		if err != nil {
			return nil, fmt.Errorf("failed to create file writer: %w", err)
		}
		writers = append(writers, fileWriter)
		closeableWriters = append(closeableWriters, fileWriter)
	}

	multiWriter := io.MultiWriter(writers...)

	opts := &slog.HandlerOptions{
		Level: convertLevel(config.Level),
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(multiWriter, opts)
	default:
		handler = slog.NewTextHandler(multiWriter, opts)
	}

	return &SlogLogger{
		logger:  slog.New(handler),
		writers: closeableWriters,
	}, nil
}

// createFileWriter 建立檔案 writer（使用 lumberjack 支援 rotation）
func createFileWriter(config FileConfig) (io.WriteCloser, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("log file path cannot be empty")
	}

	// 確保目錄存在
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMB,
		MaxAge:     config.MaxAgeDays,
		MaxBackups: config.MaxBackups,
		Compress:   config.Compress,
	}, nil
}

// convertLevel 轉換內部 Level 到 slog.Level
func convertLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug 記錄 debug 級別日誌
func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info 記錄 info 級別日誌
func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn 記錄 warn 級別日誌
func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error 記錄 error 級別日誌
func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// With 建立帶 context 的子 logger
// 子 logger 不擁有 writers，避免重複關閉
func (l *SlogLogger) With(args ...any) Logger {
	return &childLogger{logger: l.logger.With(args...)}
}

// Shutdown 優雅關閉，關閉所有 writers
func (l *SlogLogger) Shutdown() error {
	var lastErr error
	for _, w := range l.writers {
		if err := w.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// childLogger 子 logger，不擁有 writers，避免重複關閉
type childLogger struct {
	logger *slog.Logger
}

func (c *childLogger) Debug(msg string, args ...any) { c.logger.Debug(msg, args...) }
func (c *childLogger) Info(msg string, args ...any)  { c.logger.Info(msg, args...) }
func (c *childLogger) Warn(msg string, args ...any)  { c.logger.Warn(msg, args...) }
func (c *childLogger) Error(msg string, args ...any) { c.logger.Error(msg, args...) }

func (c *childLogger) With(args ...any) Logger {
	return &childLogger{logger: c.logger.With(args...)}
}

func (c *childLogger) Shutdown() error {
	// Child logger 不擁有 writers，不執行關閉
	return nil
}
