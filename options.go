package fetchr

import (
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/fetchr/backend/httpbase"
	"github.com/adamwoolhether/fetchr/proxy"
	"github.com/adamwoolhether/fetchr/throttle"
	"github.com/adamwoolhether/fetchr/transfer"
)

// Option defines optional settings for a Downloader.
type Option func(*options) error

type options struct {
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	throttle       *throttle.Config
	progress       bool
	proxy          proxy.Resolver
	registerer     prometheus.Registerer
	openBucket     httpbase.BucketOpener
	limits         httpbase.Limits
	rootCAs        *x509.CertPool
	transports     map[Backend]transfer.Transport
}

// WithLogger injects a custom logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTracerProvider records a span per download and per backend attempt.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) error {
		if tp == nil {
			return errors.New("tracer provider must not be nil")
		}
		o.tracerProvider = tp
		return nil
	}
}

// WithThrottle rate-limits the requests of every backend together to rps
// requests per second, allowing bursts of burst.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		o.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithProgress logs transfer progress at most once per second.
func WithProgress() Option {
	return func(o *options) error {
		o.progress = true
		return nil
	}
}

// WithProxyResolver replaces the process environment as the source of
// proxy settings.
func WithProxyResolver(r proxy.Resolver) Option {
	return func(o *options) error {
		o.proxy = r
		return nil
	}
}

// WithMetrics registers the Downloader's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) error {
		if reg == nil {
			return errors.New("registerer must not be nil")
		}
		o.registerer = reg
		return nil
	}
}

// WithBlobOpener replaces blob.OpenBucket for object-store URLs.
func WithBlobOpener(open httpbase.BucketOpener) Option {
	return func(o *options) error {
		if open == nil {
			return errors.New("blob opener must not be nil")
		}
		o.openBucket = open
		return nil
	}
}

// WithLimits replaces the connect timeout and stall thresholds. Zero
// fields keep their default from httpbase.DefaultLimits; a negative
// LowSpeedTime turns the stall check off.
func WithLimits(l httpbase.Limits) Option {
	return func(o *options) error {
		if l.ConnectTimeout < 0 || l.LowSpeedLimit < 0 {
			return errors.New("connect timeout and low speed limit must not be negative")
		}
		o.limits = l
		return nil
	}
}

// WithRootCAs makes every backend trust pool instead of its default roots.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(o *options) error {
		if pool == nil {
			return errors.New("root pool must not be nil")
		}
		o.rootCAs = pool
		return nil
	}
}

// WithTransport replaces the implementation of backend b.
func WithTransport(b Backend, t transfer.Transport) Option {
	return func(o *options) error {
		if !b.valid() {
			return fmt.Errorf("%w: %d", ErrUnknownBackend, int(b))
		}
		if t == nil {
			return errors.New("transport must not be nil")
		}
		if o.transports == nil {
			o.transports = make(map[Backend]transfer.Transport)
		}
		o.transports[b] = t
		return nil
	}
}

// /////////////////////////////////////////////////////////////////

// PathOption defines optional settings for DownloadToPath.
type PathOption func(*pathOptions) error

type pathOptions struct {
	skipExisting bool
}

// WithSkipExisting returns nil immediately when path already exists.
func WithSkipExisting() PathOption {
	return func(o *pathOptions) error {
		o.skipExisting = true
		return nil
	}
}

func (o pathOptions) skip(path string, log *slog.Logger) bool {
	if !o.skipExisting {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	log.Info("skipping existing file", "path", path)
	return true
}
