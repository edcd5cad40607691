package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fd1az/arbitrage-engine/internal/httpclient"
)

// recordingSleeper captures requested delays without waiting.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func testPolicy(maxRetries int, s *recordingSleeper, opts ...Option) *Policy {
	cfg := Config{
		MaxRetries: maxRetries,
		Backoff: Backoff{
			Base:       100 * time.Millisecond,
			Max:        time.Second,
			Multiplier: 2,
			Jitter:     true,
		},
	}
	return New(cfg, append([]Option{WithSleeper(s.sleep)}, opts...)...)
}

func TestDo_FailsTwiceThenSucceeds(t *testing.T) {
	s := &recordingSleeper{}
	var hooked []Attempt
	p := testPolicy(3, s, WithOnRetry(func(a Attempt) { hooked = append(hooked, a) }))

	calls := 0
	got, err := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return "third", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "third" {
		t.Errorf("got %q, want third", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(s.delays) != 2 {
		t.Fatalf("delays = %d, want 2", len(s.delays))
	}
	for i, d := range s.delays {
		limit := p.BackoffFor(ClassNetwork).Delay(i)
		if d < 0 || d > limit {
			t.Errorf("delay[%d] = %s, want within [0, %s]", i, d, limit)
		}
	}
	if len(hooked) != 2 || hooked[0].Number != 1 || hooked[1].Class != ClassNetwork {
		t.Errorf("hook attempts = %+v", hooked)
	}
}

func TestDo_ExhaustsAfterMaxRetries(t *testing.T) {
	s := &recordingSleeper{}
	p := testPolicy(2, s)

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, &httpclient.StatusError{StatusCode: 429, Body: "slow down"}
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err is %T, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", exhausted.Attempts)
	}
	if exhausted.Class != ClassRateLimit {
		t.Errorf("class = %s, want %s", exhausted.Class, ClassRateLimit)
	}

	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 429 {
		t.Errorf("expected exhausted error to unwrap to the last StatusError")
	}
	if len(s.delays) != 2 {
		t.Errorf("delays = %d, want 2", len(s.delays))
	}
}

func TestDo_FatalErrorIsNotRetried(t *testing.T) {
	s := &recordingSleeper{}
	p := testPolicy(5, s)
	bad := errors.New("execution reverted: insufficient output amount")

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, bad
	})

	if !errors.Is(err, bad) {
		t.Errorf("err = %v, want original error", err)
	}
	if errors.Is(err, ErrRetriesExhausted) {
		t.Error("fatal error must not be reported as exhausted")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(s.delays) != 0 {
		t.Errorf("delays = %d, want 0", len(s.delays))
	}
}

func TestDo_ParentCancellationAbortsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(Config{
		MaxRetries: 5,
		Backoff:    Backoff{Base: time.Hour, Max: time.Hour, Multiplier: 2},
	})

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, p, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("503 service unavailable")
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_AttemptTimeoutIsRetried(t *testing.T) {
	s := &recordingSleeper{}
	p := New(Config{
		MaxRetries:     1,
		Backoff:        Backoff{Base: time.Millisecond, Max: time.Millisecond, Multiplier: 2},
		AttemptTimeout: 10 * time.Millisecond,
	}, WithSleeper(s.sleep))

	calls := 0
	got, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return 7, nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 || calls != 2 {
		t.Errorf("got %d after %d calls, want 7 after 2", got, calls)
	}
}

func TestPolicy_TimeoutClassUsesShorterCap(t *testing.T) {
	base := Backoff{Base: time.Second, Max: time.Minute, Multiplier: 2}
	short := base
	short.Max = 3 * time.Second
	p := New(Config{MaxRetries: 3, Backoff: base}, WithClassBackoff(ClassTimeout, short))

	if got := p.Delay(ClassTimeout, 5); got != 3*time.Second {
		t.Errorf("timeout delay = %s, want 3s", got)
	}
	if got := p.Delay(ClassNetwork, 5); got != 32*time.Second {
		t.Errorf("network delay = %s, want 32s", got)
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 60 * time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{6, 60 * time.Second},
		{200, 60 * time.Second},
	}

	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_JitterStaysWithinCap(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 10 * time.Second, Multiplier: 2, Jitter: true}

	for _, r := range []float64{0, 0.25, 0.5, 0.999} {
		for attempt := 0; attempt < 6; attempt++ {
			got := b.Jittered(attempt, r)
			if got < 0 || got > b.Delay(attempt) {
				t.Errorf("Jittered(%d, %v) = %s outside [0, %s]", attempt, r, got, b.Delay(attempt))
			}
		}
	}

	if got := b.Jittered(1, 0.5); got != time.Second {
		t.Errorf("Jittered(1, 0.5) = %s, want 1s", got)
	}
}
