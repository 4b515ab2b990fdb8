package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

var (
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrContextCanceled    = errors.New("context canceled during retry")
)

// Config contains retry configuration
type Config struct {
	// MaxRetries counts retries after the first attempt
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// JitterFactor spreads each wait by ±factor
	JitterFactor float64
}

// DefaultConfig returns 5 retries from 1s doubling up to 30s
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      5,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// ConnectConfig is used when dialing stores at startup
func ConnectConfig(maxRetries int, interval time.Duration) *Config {
	return &Config{
		MaxRetries:      maxRetries,
		InitialInterval: interval,
		MaxInterval:     interval * 4,
		Multiplier:      1.5,
		JitterFactor:    0.1,
	}
}

// Operation is one attempt
type Operation func(ctx context.Context) error

// PermanentError stops the retry loop immediately
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Result describes how a retried operation ended
type Result struct {
	// Err is nil on success, the unwrapped permanent error, or one of the
	// package sentinels
	Err           error
	Attempts      int
	TotalDuration time.Duration
	LastError     error
}

// Retrier runs operations with exponential backoff
type Retrier struct {
	config *Config
}

// New creates a Retrier. Zero fields fall back to DefaultConfig values.
func New(config *Config) *Retrier {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	cfg.JitterFactor = min(max(cfg.JitterFactor, 0), 1)
	return &Retrier{config: &cfg}
}

// Do runs op until it succeeds, returns a permanent error, runs out of
// retries or ctx ends.
func (r *Retrier) Do(ctx context.Context, op Operation) *Result {
	start := time.Now()
	result := &Result{}
	finish := func(err, last error) *Result {
		result.Err = err
		result.LastError = last
		result.TotalDuration = time.Since(start)
		return result
	}

	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1
		if ctx.Err() != nil {
			return finish(ErrContextCanceled, lastErr)
		}

		err := op(ctx)
		if err == nil {
			return finish(nil, nil)
		}
		lastErr = err

		var permErr *PermanentError
		if errors.As(err, &permErr) {
			return finish(permErr.Err, permErr.Err)
		}
		if attempt == r.config.MaxRetries {
			break
		}

		timer := time.NewTimer(r.interval(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return finish(ErrContextCanceled, lastErr)
		case <-timer.C:
		}
	}
	return finish(ErrMaxRetriesExceeded, lastErr)
}

// interval is initial * multiplier^attempt with jitter, capped at MaxInterval
func (r *Retrier) interval(attempt int) time.Duration {
	d := float64(r.config.InitialInterval) * math.Pow(r.config.Multiplier, float64(attempt))
	if r.config.JitterFactor > 0 {
		jitter := d * r.config.JitterFactor
		d += (rand.Float64()*2 - 1) * jitter
	}
	if d > float64(r.config.MaxInterval) {
		d = float64(r.config.MaxInterval)
	}
	if d <= 0 {
		d = float64(r.config.InitialInterval)
	}
	return time.Duration(d)
}
