package model

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"
)

func TestMockChatModel(t *testing.T) {
	t.Run("returns responses in order then repeats last", func(t *testing.T) {
		mock := &MockChatModel{Responses: []ChatOut{{Text: "one"}, {Text: "two"}}}
		ctx := context.Background()

		for _, want := range []string{"one", "two", "two"} {
			out, err := mock.Chat(ctx, nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if out.Text != want {
				t.Errorf("expected %q, got %q", want, out.Text)
			}
		}
		if mock.CallCount() != 3 {
			t.Errorf("expected 3 calls, got %d", mock.CallCount())
		}

		mock.Reset()
		out, _ := mock.Chat(ctx, nil)
		if out.Text != "one" || mock.CallCount() != 1 {
			t.Errorf("Reset did not rewind the mock: %q, %d calls", out.Text, mock.CallCount())
		}
	})

	t.Run("Respond takes precedence", func(t *testing.T) {
		mock := &MockChatModel{
			Responses: []ChatOut{{Text: "static"}},
			Respond: func(messages []Message) (ChatOut, error) {
				return ChatOut{Text: "echo: " + messages[len(messages)-1].Content}, nil
			},
		}
		out, err := mock.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
		if err != nil || out.Text != "echo: hi" {
			t.Errorf("expected echo, got %q (%v)", out.Text, err)
		}
	})

	t.Run("records call on error", func(t *testing.T) {
		mock := &MockChatModel{Err: errors.New("API error")}
		if _, err := mock.Chat(context.Background(), []Message{{Content: "x"}}); err == nil {
			t.Fatal("expected error")
		}
		if len(mock.Calls) != 1 || mock.Calls[0].Messages[0].Content != "x" {
			t.Errorf("expected recorded call, got %+v", mock.Calls)
		}
	})

	t.Run("concurrent calls are safe", func(t *testing.T) {
		mock := &MockChatModel{Responses: []ChatOut{{Text: "ok"}}}
		var wg sync.WaitGroup
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = mock.Chat(context.Background(), nil)
			}()
		}
		wg.Wait()
		if mock.CallCount() != 25 {
			t.Errorf("expected 25 calls, got %d", mock.CallCount())
		}
	})
}

func TestSplitSystem(t *testing.T) {
	system, rest := SplitSystem([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "q"},
		{Role: RoleSystem, Content: "b"},
	})
	if system != "a\n\nb" {
		t.Errorf("expected joined system prompt, got %q", system)
	}
	if len(rest) != 1 || rest[0].Content != "q" {
		t.Errorf("unexpected conversation %+v", rest)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		err       error
		code      string
		retryable bool
	}{
		{"unauthorized status", 401, errors.New("boom"), "invalid_api_key", false},
		{"rate limit status", 429, errors.New("boom"), "rate_limited", true},
		{"server error status", 502, errors.New("bad gateway"), "server_error", true},
		{"quota text", 0, errors.New("insufficient_quota"), "quota_exceeded", false},
		{"timeout text", 0, errors.New("read timeout"), "timeout", true},
		{"context deadline", 0, context.DeadlineExceeded, "timeout", false},
		{"unknown", 400, errors.New("bad request"), "api_error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("test", tt.status, tt.err)
			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %T", err)
			}
			if pe.Code != tt.code {
				t.Errorf("code = %q, want %q", pe.Code, tt.code)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("retryable = %v, want %v", IsRetryable(err), tt.retryable)
			}
			if !errors.Is(err, tt.err) {
				t.Error("expected original error to be wrapped")
			}
		})
	}

	if Classify("test", 500, nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		wantErr bool
	}{
		{"default", DefaultRetryPolicy(), false},
		{"single attempt", RetryPolicy{MaxAttempts: 1}, false},
		{"zero attempts", RetryPolicy{MaxAttempts: 0}, true},
		{"negative base", RetryPolicy{MaxAttempts: 2, BaseDelay: -1}, true},
		{"max below base", RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: time.Millisecond}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestComputeBackoff(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := 100 * time.Millisecond

	for attempt, floor := range []time.Duration{100, 200, 400} {
		d := computeBackoff(attempt, base, time.Second, rng)
		lo := floor * time.Millisecond
		if d < lo || d >= lo+base {
			t.Errorf("attempt %d: delay %v outside [%v, %v)", attempt, d, lo, lo+base)
		}
	}

	if d := computeBackoff(10, base, 300*time.Millisecond, rng); d >= 400*time.Millisecond {
		t.Errorf("expected delay capped near 300ms, got %v", d)
	}
	if d := computeBackoff(3, 0, time.Second, rng); d != 0 {
		t.Errorf("expected zero delay for zero base, got %v", d)
	}
}

// flaky fails with err for the first n calls.
type flaky struct {
	n     int
	err   error
	calls int
}

func (f *flaky) Chat(ctx context.Context, messages []Message) (ChatOut, error) {
	f.calls++
	if f.calls <= f.n {
		return ChatOut{}, f.err
	}
	return ChatOut{Text: "ok"}, nil
}

func TestRetryingChatModel(t *testing.T) {
	transient := &ProviderError{Provider: "p", Code: "rate_limited", Retryable: true}
	permanent := &ProviderError{Provider: "p", Code: "invalid_api_key"}
	noSleep := func(ctx context.Context, d time.Duration) error { return nil }

	t.Run("retries transient errors", func(t *testing.T) {
		inner := &flaky{n: 2, err: transient}
		r, err := NewRetryingChatModel(inner, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil)
		if err != nil {
			t.Fatal(err)
		}
		r.sleep = noSleep

		out, err := r.Chat(context.Background(), nil)
		if err != nil || out.Text != "ok" {
			t.Fatalf("expected success, got %q (%v)", out.Text, err)
		}
		if inner.calls != 3 {
			t.Errorf("expected 3 calls, got %d", inner.calls)
		}
	})

	t.Run("gives up after MaxAttempts", func(t *testing.T) {
		inner := &flaky{n: 5, err: transient}
		r, _ := NewRetryingChatModel(inner, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}, nil)
		r.sleep = noSleep

		if _, err := r.Chat(context.Background(), nil); !errors.Is(err, transient) {
			t.Errorf("expected last error, got %v", err)
		}
		if inner.calls != 2 {
			t.Errorf("expected 2 calls, got %d", inner.calls)
		}
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		inner := &flaky{n: 5, err: permanent}
		r, _ := NewRetryingChatModel(inner, DefaultRetryPolicy(), nil)
		r.sleep = noSleep

		if _, err := r.Chat(context.Background(), nil); !errors.Is(err, permanent) {
			t.Errorf("expected permanent error, got %v", err)
		}
		if inner.calls != 1 {
			t.Errorf("expected 1 call, got %d", inner.calls)
		}
	})

	t.Run("stops when context is cancelled during backoff", func(t *testing.T) {
		inner := &flaky{n: 5, err: transient}
		r, _ := NewRetryingChatModel(inner, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		r.sleep = func(ctx context.Context, d time.Duration) error {
			cancel()
			return sleepContext(ctx, d)
		}

		if _, err := r.Chat(ctx, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("rejects invalid policy", func(t *testing.T) {
		if _, err := NewRetryingChatModel(&flaky{}, RetryPolicy{}, nil); !errors.Is(err, ErrInvalidRetryPolicy) {
			t.Errorf("expected ErrInvalidRetryPolicy, got %v", err)
		}
	})
}

func TestCostTracker(t *testing.T) {
	tracker := NewCostTracker("USD")
	tracker.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	cost := tracker.RecordLLMCall("run-1", "draft", "gpt-4o", 1_000_000, 100_000)
	if want := 2.50 + 1.00; !closeTo(cost, want) {
		t.Errorf("cost = %f, want %f", cost, want)
	}
	tracker.RecordLLMCall("run-1", "review", "unknown-model", 500, 500)
	tracker.RecordLLMCall("run-2", "draft", "gpt-4o-mini", 1_000_000, 0)

	ru := tracker.RunUsage("run-1")
	if ru.Calls != 2 || ru.InputTokens != 1_000_500 || ru.OutputTokens != 100_500 {
		t.Errorf("unexpected run usage %+v", ru)
	}
	if !closeTo(ru.CostUSD, 3.50) {
		t.Errorf("run cost = %f, want 3.50", ru.CostUSD)
	}
	if got := tracker.RunUsage("missing"); got.Calls != 0 {
		t.Errorf("expected zero usage, got %+v", got)
	}
	if !closeTo(tracker.GetTotalCost(), 3.65) {
		t.Errorf("total = %f, want 3.65", tracker.GetTotalCost())
	}
	if byModel := tracker.GetCostByModel(); byModel["unknown-model"] != 0 || len(byModel) != 3 {
		t.Errorf("unexpected model breakdown %v", byModel)
	}
	if history := tracker.GetCallHistory(); len(history) != 3 || history[1].Stage != "review" {
		t.Errorf("unexpected history %+v", history)
	}

	tracker.SetCustomPricing("unknown-model", 1_000_000, 0)
	if c := tracker.RecordLLMCall("run-3", "draft", "unknown-model", 1, 0); !closeTo(c, 1) {
		t.Errorf("custom pricing not applied, cost %f", c)
	}

	tracker.Disable()
	if c := tracker.RecordLLMCall("run-3", "draft", "gpt-4o", 1000, 1000); c != 0 {
		t.Error("disabled tracker should not record")
	}
	tracker.Enable()
	if len(tracker.GetCallHistory()) != 4 {
		t.Errorf("expected 4 calls, got %d", len(tracker.GetCallHistory()))
	}
	if tracker.String() == "" {
		t.Error("expected summary string")
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
