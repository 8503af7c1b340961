package service

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel 日志级别
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug" // 调试
	LogLevelInfo  LogLevel = "info"  // 信息
	LogLevelWarn  LogLevel = "warn"  // 警告
	LogLevelError LogLevel = "error" // 错误
	LogLevelFatal LogLevel = "fatal" // 致命
)

var logLevels = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
	LogLevelFatal: 4,
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      LogLevel  // 日志级别
	Output     io.Writer // 输出目标
	TimeFormat string    // 时间格式
}

// Logger 日志器
type Logger struct {
	config *LoggerConfig
	mu     sync.Mutex
}

// NewLogger 创建日志器实例
func NewLogger(config *LoggerConfig) *Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.TimeFormat == "" {
		config.TimeFormat = "2006-01-02 15:04:05"
	}
	if _, ok := logLevels[config.Level]; !ok {
		config.Level = LogLevelInfo
	}
	return &Logger{config: config}
}

// log 记录日志
func (l *Logger) log(level LogLevel, message string, args ...interface{}) {
	if logLevels[level] < logLevels[l.config.Level] {
		return
	}

	line := fmt.Sprintf("%s [%s] %s\n",
		time.Now().Format(l.config.TimeFormat),
		level,
		fmt.Sprintf(message, args...),
	)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Output.Write([]byte(line))
}

// Debug 记录调试日志
func (l *Logger) Debug(message string, args ...interface{}) {
	l.log(LogLevelDebug, message, args...)
}

// Info 记录信息日志
func (l *Logger) Info(message string, args ...interface{}) {
	l.log(LogLevelInfo, message, args...)
}

// Warn 记录警告日志
func (l *Logger) Warn(message string, args ...interface{}) {
	l.log(LogLevelWarn, message, args...)
}

// Error 记录错误日志
func (l *Logger) Error(message string, args ...interface{}) {
	l.log(LogLevelError, message, args...)
}

// Fatal 记录致命日志
func (l *Logger) Fatal(message string, args ...interface{}) {
	l.log(LogLevelFatal, message, args...)
	os.Exit(1)
}
