package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"schwer/internal/models"
)

var (
	mu           sync.RWMutex
	activeLogger *log.Logger
	logLevel     = "info"
	logCloser    io.Closer
)

// InitLogger 初始化日志系统。
func InitLogger(config *models.Config) error {
	logOutput, closer, err := buildLogWriter(config.LogFile, config.LogToStd == nil || *config.LogToStd)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	activeLogger = log.New(logOutput, "", log.LstdFlags|log.Lshortfile)
	logLevel = normalizeLevel(config.LogLevel)
	logCloser = closer
	return nil
}

func buildLogWriter(logFile string, toStd bool) (io.Writer, io.Closer, error) {
	if logFile == "" {
		return os.Stdout, nil, nil
	}

	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	logOutput, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	if !toStd {
		return logOutput, logOutput, nil
	}
	return io.MultiWriter(os.Stdout, logOutput), logOutput, nil
}

// Close 关闭日志文件句柄。
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

// Info 记录信息日志。
func Info(format string, v ...interface{}) {
	logWithLevel("INFO", format, v...)
}

// Error 记录错误日志。
func Error(format string, v ...interface{}) {
	logWithLevel("ERROR", format, v...)
}

// Warn 记录警告日志。
func Warn(format string, v ...interface{}) {
	logWithLevel("WARN", format, v...)
}

// Debug 记录调试日志。
func Debug(format string, v ...interface{}) {
	if Level() == "debug" {
		logWithLevel("DEBUG", format, v...)
	}
}

// SetLogLevel 设置日志级别。
func SetLogLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	logLevel = normalizeLevel(level)
}

// Level 返回当前日志级别。
func Level() string {
	mu.RLock()
	defer mu.RUnlock()
	return logLevel
}

// GetLogger 获取 logger 实例。
func GetLogger() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if activeLogger == nil {
		return log.Default()
	}
	return activeLogger
}

func normalizeLevel(level string) string {
	clean := strings.ToLower(strings.TrimSpace(level))
	if clean == "" {
		return "info"
	}
	return clean
}

func logWithLevel(level, format string, v ...interface{}) {
	prefix := "[" + level + "] "
	l := GetLogger()
	_ = l.Output(3, fmt.Sprintf(prefix+format, v...))
}
