package model

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// ErrInvalidRetryPolicy indicates a RetryPolicy that violates its constraints.
var ErrInvalidRetryPolicy = errors.New("invalid retry policy")

// RetryPolicy defines automatic retry configuration for transient provider
// failures. Exponential backoff with jitter is used between attempts.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts including the first.
	// A value of 1 means no retries.
	MaxAttempts int

	// BaseDelay is the base delay for exponential backoff between retries.
	BaseDelay time.Duration

	// MaxDelay caps the exponential component. Zero means no cap.
	MaxDelay time.Duration

	// Retryable decides whether an error is worth another attempt.
	// If nil, IsRetryable is used.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries transient failures twice, starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
}

// Validate checks the policy constraints:
//   - MaxAttempts must be >= 1
//   - BaseDelay must be >= 0
//   - If both MaxDelay and BaseDelay are > 0, MaxDelay must be >= BaseDelay
func (rp RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 || rp.BaseDelay < 0 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// computeBackoff returns min(base * 2^attempt, maxDelay) + jitter(0, base).
// attempt is zero-based: 0 is the delay before the first retry.
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base * (1 << attempt)
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}

	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter for retry timing, not security
	}
	return delay + jitter
}

// RetryingChatModel wraps a ChatModel and retries transient failures.
// Context cancellation is never retried.
type RetryingChatModel struct {
	model  ChatModel
	policy RetryPolicy
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryingChatModel wraps m with policy. A nil logger discards output.
func NewRetryingChatModel(m ChatModel, policy RetryPolicy, logger *slog.Logger) (*RetryingChatModel, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RetryingChatModel{model: m, policy: policy, logger: logger, sleep: sleepContext}, nil
}

// Chat implements ChatModel.
func (r *RetryingChatModel) Chat(ctx context.Context, messages []Message) (ChatOut, error) {
	retryable := r.policy.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := computeBackoff(attempt-1, r.policy.BaseDelay, r.policy.MaxDelay, nil)
			r.logger.Warn("retrying provider call", "attempt", attempt+1, "delay", delay, "error", lastErr)
			if err := r.sleep(ctx, delay); err != nil {
				return ChatOut{}, err
			}
		}

		out, err := r.model.Chat(ctx, messages)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			return ChatOut{}, err
		}
	}
	return ChatOut{}, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
