package engine

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrEmptyResponse 表示生成器返回了空文本，按失败处理。
var ErrEmptyResponse = errors.New("generator returned empty response")

// RetryPolicy 是固定次数的指数退避策略：第 n 次重试前等待 BaseDelay × 2^(n-1)。
// Sleep 可注入以便测试时不依赖真实计时器。
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

// Do 反复调用 fn 直到成功或次数耗尽，返回最后一次的错误。
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.BaseDelay * (1 << (attempt - 1))
			if err := sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		result, err := fn(ctx)
		if err == nil {
			if strings.TrimSpace(result) == "" {
				err = ErrEmptyResponse
			} else {
				return result, nil
			}
		}
		lastErr = err
	}
	return "", lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
