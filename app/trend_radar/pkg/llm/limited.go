package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/metrics"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 2 * time.Second
)

// Limited 为补全客户端加上限流与 429 重试
type Limited struct {
	next       Completer
	provider   string
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

var _ Completer = (*Limited)(nil)

// NewLimited 按并发配置包装补全客户端
func NewLimited(next Completer, provider string, cc config.ConcurrencyConfig) *Limited {
	limit := rate.Limit(float64(cc.RPM) / 60.0)
	burst := cc.QPS
	if burst <= 0 {
		burst = 1
	}
	if provider == "" {
		provider = ProviderAnthropic
	}
	return &Limited{
		next:       next,
		provider:   provider,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
	}
}

// Complete 实现 Completer 接口
func (l *Limited) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for i := 0; i <= l.maxRetries; i++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}

		start := time.Now()
		text, err := l.next.Complete(ctx, prompt)
		metrics.LLMRequestDuration.WithLabelValues(l.provider).Observe(time.Since(start).Seconds())
		metrics.LLMRequests.WithLabelValues(l.provider, metrics.Status(err)).Inc()
		if err == nil {
			return text, nil
		}

		lastErr = err
		if !isRateLimited(err) || i == l.maxRetries {
			break
		}
		delay := l.baseDelay * time.Duration(1<<i)
		logger.Log.Warnf("LLM 触发限流，%s 后重试 (%d/%d)", delay, i+1, l.maxRetries)
		if err := sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func isRateLimited(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
