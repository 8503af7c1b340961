package service

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig 重试配置
type RetryConfig struct {
	MaxAttempts int           // 最大尝试次数（含首次）
	Interval    time.Duration // 固定重试间隔，0表示立即重试
}

// Retry 固定间隔有界重试器
//
// 上传管线使用 MaxAttempts=2，即失败后恰好重试一次。
type Retry struct {
	config *RetryConfig
	logger *Logger
}

// NewRetry 创建重试器实例
func NewRetry(config *RetryConfig, logger *Logger) *Retry {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Retry{config: config, logger: logger}
}

// Do 执行重试，上下文取消后不再发起新的尝试
func (r *Retry) Do(ctx context.Context, key string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry aborted: %v", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < r.config.MaxAttempts {
			r.logger.Debug("attempt %d for %s failed, retrying: %v", attempt, key, lastErr)
			if r.config.Interval > 0 {
				select {
				case <-ctx.Done():
					return fmt.Errorf("retry aborted: %v", ctx.Err())
				case <-time.After(r.config.Interval):
				}
			}
		}
	}

	r.logger.Error("all %d attempts failed for %s: %v", r.config.MaxAttempts, key, lastErr)
	return lastErr
}
