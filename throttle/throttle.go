// Package throttle rate-limits the outbound requests of every backend
// with one shared token bucket from [golang.org/x/time/rate].
//
// A fallback attempt on a later backend draws from the same bucket as
// the attempt before it, so a whole download stays within the budget:
//
//	l, err := throttle.New(throttle.Config{RPS: 2, Burst: 1}, slog.Default())
//	client := &http.Client{Transport: l.Wrap(http.DefaultTransport)}
package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config defines the request rate per second and the burst size.
type Config struct {
	RPS   int
	Burst int
}

// Limiter is a token bucket shared by every transport it wraps.
type Limiter struct {
	cfg     Config
	limiter *rate.Limiter
	log     *slog.Logger
}

// New validates cfg and returns a Limiter. A nil logger disables the
// exhausted/complete log lines.
func New(cfg Config, log *slog.Logger) (*Limiter, error) {
	if cfg.RPS <= 0 || cfg.Burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", cfg.RPS, cfg.Burst, ErrMustNotBeZero)
	}

	l := Limiter{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		log:     log,
	}

	return &l, nil
}

// Wait blocks until a token is available for a request to target.
func (l *Limiter) Wait(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	if l.log != nil {
		if l.limiter.Allow() {
			return nil
		}

		l.log.Info("throttle tokens exhausted", "rate", l.cfg.RPS, "burst", l.cfg.Burst, "url", target)

		start := time.Now()
		defer func() {
			l.log.Info("throttle wait complete", "waited", time.Since(start).String(), "url", target)
		}()
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return nil
}

// Wrap returns next gated by the limiter. Wrap has the shape of a
// transport decorator so it can be handed to the backends directly.
func (l *Limiter) Wrap(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &roundTripper{limiter: l, next: next}
}

type roundTripper struct {
	limiter *Limiter
	next    http.RoundTripper
}

func (rt *roundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if err := rt.limiter.Wait(r.Context(), r.URL.Redacted()); err != nil {
		return nil, err
	}

	return rt.next.RoundTrip(r)
}
