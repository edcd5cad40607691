// Package retry wraps network-bound calls with classified, capped and
// jittered retries.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

const meterName = "github.com/fd1az/arbitrage-engine/internal/retry"

// ErrRetriesExhausted matches every *ExhaustedError via errors.Is.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ExhaustedError is returned once every allowed attempt failed with a
// retryable error.
type ExhaustedError struct {
	Attempts int
	Class    Class
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts (%s): %v", e.Attempts, e.Class, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	Number int // 1-based number of the attempt that failed
	Class  Class
	Delay  time.Duration
	Err    error
}

// Config is the default policy shape.
type Config struct {
	MaxRetries     int
	Backoff        Backoff
	AttemptTimeout time.Duration
}

// FromConfig maps the application retry settings to a policy Config.
func FromConfig(c config.RetryConfig) Config {
	return Config{
		MaxRetries: c.MaxRetries,
		Backoff: Backoff{
			Base:       c.BaseDelay,
			Max:        c.MaxDelay,
			Multiplier: c.Multiplier,
			Jitter:     c.Jitter,
		},
		AttemptTimeout: c.AttemptTimeout,
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy decides how many times and how long to wait between attempts.
type Policy struct {
	name      string
	cfg       Config
	overrides map[Class]Backoff
	log       logger.LoggerInterface
	onRetry   func(Attempt)
	sleep     Sleeper
	rand      func() float64

	retries   metric.Int64Counter
	exhausted metric.Int64Counter
}

// Option configures a Policy.
type Option func(*Policy)

// WithName labels logs and metrics.
func WithName(name string) Option {
	return func(p *Policy) { p.name = name }
}

// WithLogger logs every retry at warn level.
func WithLogger(log logger.LoggerInterface) Option {
	return func(p *Policy) { p.log = log }
}

// WithOnRetry registers a hook invoked before each wait.
func WithOnRetry(fn func(Attempt)) Option {
	return func(p *Policy) { p.onRetry = fn }
}

// WithSleeper replaces the timer-based wait.
func WithSleeper(s Sleeper) Option {
	return func(p *Policy) { p.sleep = s }
}

// WithRand replaces the jitter source. fn must return values in [0,1).
func WithRand(fn func() float64) Option {
	return func(p *Policy) { p.rand = fn }
}

// WithClassBackoff overrides the backoff used for one error class.
func WithClassBackoff(class Class, b Backoff) Option {
	return func(p *Policy) { p.overrides[class] = b }
}

// New creates a Policy.
func New(cfg Config, opts ...Option) *Policy {
	p := &Policy{
		name:      "default",
		cfg:       cfg,
		overrides: make(map[Class]Backoff),
		sleep:     sleepContext,
		rand:      rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.initMetrics()
	return p
}

// NewFromConfig builds the standard policy: config defaults plus a shorter
// cap for timeouts.
func NewFromConfig(c config.RetryConfig, opts ...Option) *Policy {
	base := FromConfig(c)
	if c.TimeoutMaxDelay > 0 {
		timeout := base.Backoff
		timeout.Max = c.TimeoutMaxDelay
		opts = append([]Option{WithClassBackoff(ClassTimeout, timeout)}, opts...)
	}
	return New(base, opts...)
}

// MaxRetries returns the configured retry budget.
func (p *Policy) MaxRetries() int {
	return p.cfg.MaxRetries
}

// BackoffFor returns the backoff applied to class.
func (p *Policy) BackoffFor(class Class) Backoff {
	if b, ok := p.overrides[class]; ok {
		return b
	}
	return p.cfg.Backoff
}

// Delay computes the wait after the given zero-based attempt.
func (p *Policy) Delay(class Class, attempt int) time.Duration {
	return p.BackoffFor(class).Jittered(attempt, p.rand())
}

func (p *Policy) initMetrics() {
	meter := otel.Meter(meterName)
	p.retries, _ = meter.Int64Counter(
		"retry_attempts_total",
		metric.WithDescription("Retried attempts by error class"),
	)
	p.exhausted, _ = meter.Int64Counter(
		"retry_exhausted_total",
		metric.WithDescription("Operations that ran out of retries"),
	)
}

// Do runs op until it succeeds, fails with a non-retryable error, the parent
// context is done, or MaxRetries retries have been spent.
func Do[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	lastClass := ClassFatal

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		res, err := callAttempt(ctx, p.cfg.AttemptTimeout, op)
		if err == nil {
			return res, nil
		}

		if ctx.Err() != nil {
			return zero, err
		}

		retryable, class := Classify(err)
		if !retryable {
			return zero, err
		}
		lastErr, lastClass = err, class

		if attempt == p.cfg.MaxRetries {
			break
		}

		delay := p.Delay(class, attempt)
		p.notify(ctx, Attempt{Number: attempt + 1, Class: class, Delay: delay, Err: err})

		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	if p.exhausted != nil {
		p.exhausted.Add(ctx, 1, metric.WithAttributes(
			attribute.String("policy", p.name),
			attribute.String("class", string(lastClass)),
		))
	}

	return zero, &ExhaustedError{
		Attempts: p.cfg.MaxRetries + 1,
		Class:    lastClass,
		Last:     lastErr,
	}
}

func callAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

func (p *Policy) notify(ctx context.Context, a Attempt) {
	if p.retries != nil {
		p.retries.Add(ctx, 1, metric.WithAttributes(
			attribute.String("policy", p.name),
			attribute.String("class", string(a.Class)),
		))
	}
	if p.log != nil {
		p.log.Warnc(ctx, 2, "retrying after failure",
			"policy", p.name,
			"attempt", a.Number,
			"max_retries", p.cfg.MaxRetries,
			"class", string(a.Class),
			"delay", a.Delay.String(),
			"error", a.Err.Error(),
		)
	}
	if p.onRetry != nil {
		p.onRetry(a)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
