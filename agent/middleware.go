package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryPolicy 定义执行器重试策略
type RetryPolicy struct {
	MaxRetries   int           // 最大重试次数（0 表示不重试）
	InitialDelay time.Duration // 初始延迟时间
	MaxDelay     time.Duration // 最大延迟时间
	Multiplier   float64       // 延迟时间倍增因子（指数退避）
	Jitter       bool          // 是否添加随机抖动（防止雪崩）
}

// DefaultRetryPolicy 返回默认的重试策略
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// RetryingExecutor wraps an Executor with exponential backoff over transient
// invocation failures. Only *InvocationError values whose Kind is retryable
// trigger a re-attempt; validation and routing policy stay with the
// strategies, this wrapper only smooths over transport flakiness.
type RetryingExecutor struct {
	next   Executor
	policy *RetryPolicy
	logger *zap.Logger
}

// NewRetryingExecutor 创建带指数退避的执行器包装
func NewRetryingExecutor(next Executor, policy *RetryPolicy, logger *zap.Logger) *RetryingExecutor {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 1 * time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingExecutor{
		next:   next,
		policy: policy,
		logger: logger.With(zap.String("component", "retrying_executor")),
	}
}

func (r *RetryingExecutor) Invoke(ctx context.Context, a Agent, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			r.logger.Debug("retrying invocation",
				zap.String("agent_id", a.ID),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		out, err := r.next.Invoke(ctx, a, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var invErr *InvocationError
		if !errors.As(err, &invErr) || !invErr.Retryable() {
			return "", err
		}
	}

	r.logger.Warn("retries exhausted",
		zap.String("agent_id", a.ID),
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)
	return "", lastErr
}

// calculateDelay 计算延迟时间：指数退避 + 可选的随机抖动（±25%）
func (r *RetryingExecutor) calculateDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		jitter := delay * 0.25
		delay = delay + (rand.Float64()*2-1)*jitter
	}
	if delay < float64(r.policy.InitialDelay) {
		delay = float64(r.policy.InitialDelay)
	}
	return time.Duration(delay)
}

// RateLimitedExecutor throttles invocations through a token-bucket limiter.
// Useful when the underlying executor fronts a rate-limited model API.
type RateLimitedExecutor struct {
	next    Executor
	limiter *rate.Limiter
}

// NewRateLimitedExecutor 创建限流执行器，rps 为每秒请求数，burst 为突发容量
func NewRateLimitedExecutor(next Executor, rps float64, burst int) *RateLimitedExecutor {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedExecutor{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimitedExecutor) Invoke(ctx context.Context, a Agent, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Invoke(ctx, a, prompt)
}
