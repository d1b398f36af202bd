// Package retry 以指数退避重试短暂失败的操作，用于建立后端连接
package retry

import (
	"context"
	"time"
)

// Config 重试参数
type Config struct {
	MaxAttempts   int // 包括首次
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
	// Retryable 返回 false 的错误立即返回；为 nil 时全部重试
	Retryable func(error) bool
	// OnRetry 每次等待前回调，attempt 从 1 开始
	OnRetry func(attempt int, err error)
}

// DefaultConfig 3 次尝试，100ms 起步翻倍，最长 2s
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      2 * time.Second,
	}
}

// Do 执行 op 直到成功、耗尽次数或 ctx 取消，返回最后一次的错误
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}
		timer := time.NewTimer(cfg.delay(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		}
	}
	return lastErr
}

// delay 第 attempt 次失败后的等待时间
func (c Config) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= c.BackoffFactor
	}
	if c.MaxDelay > 0 && time.Duration(d) > c.MaxDelay {
		return c.MaxDelay
	}
	return time.Duration(d)
}
