package fetchr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/fetchr/backend/httpbase"
	"github.com/adamwoolhether/fetchr/internal/metrics"
	"github.com/adamwoolhether/fetchr/progress"
	"github.com/adamwoolhether/fetchr/throttle"
	"github.com/adamwoolhether/fetchr/transfer"
)

const tracerName = "github.com/adamwoolhether/fetchr"

// Downloader fetches resources through the backends in priority order.
// It is safe for concurrent use.
type Downloader struct {
	log        *slog.Logger
	tracer     trace.Tracer
	metrics    *metrics.Collectors
	progress   bool
	transports [len(backendNames)]transfer.Transport
}

// New builds a Downloader with the provided options.
func New(optFns ...Option) (*Downloader, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	d := Downloader{
		log:      slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer(tracerName),
		progress: opts.progress,
	}
	if opts.logger != nil {
		d.log = opts.logger
	}
	if opts.tracerProvider != nil {
		d.tracer = opts.tracerProvider.Tracer(tracerName)
	}

	if opts.registerer != nil {
		d.metrics = metrics.New()
		if err := d.metrics.Register(opts.registerer); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}

	cfg := httpbase.Config{
		Logger:     d.log,
		Proxy:      opts.proxy,
		Limits:     opts.limits,
		OpenBucket: opts.openBucket,
		RootCAs:    opts.rootCAs,
	}

	if opts.throttle != nil {
		l, err := throttle.New(*opts.throttle, d.log)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		cfg.Wrap = l.Wrap
	}

	for _, b := range Backends() {
		if t, ok := opts.transports[b]; ok {
			d.transports[b] = t
			continue
		}

		t, err := newTransport(b, cfg)
		if err != nil {
			return nil, fmt.Errorf("building %s backend: %w", b, err)
		}
		d.transports[b] = t
	}

	return &d, nil
}

// Close releases the idle connections held by the backends.
func (d *Downloader) Close() error {
	var errs []error
	for _, t := range d.transports {
		if c, ok := t.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Download fetches u, reporting it through cb, with the first backend
// that is available. A backend that fails for any other reason ends the
// download with its error; later backends are not tried. When every
// backend is unavailable the result is ErrNoWorkingBackends.
func (d *Downloader) Download(ctx context.Context, u *url.URL, cb Callback) error {
	if cb == nil {
		return ErrNilCallback
	}
	if u == nil {
		return ErrNilURL
	}

	return d.fallback(ctx, u, func(ctx context.Context, b Backend, log *slog.Logger) (bool, error) {
		return d.attempt(ctx, b, u, cb, log)
	})
}

// DownloadWithBackend fetches u with b only.
func (d *Downloader) DownloadWithBackend(ctx context.Context, b Backend, u *url.URL, cb Callback) error {
	if cb == nil {
		return ErrNilCallback
	}
	if u == nil {
		return ErrNilURL
	}
	if !b.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownBackend, int(b))
	}

	ctx, span, log := d.start(ctx, "fetchr.DownloadWithBackend", u)
	defer span.End()

	_, err := d.attempt(ctx, b, u, cb, log)
	d.finish(span, err)

	return err
}

// attemptFunc runs one backend. fromCallback reports that err came from
// the caller's callback and must end the download as is.
type attemptFunc func(ctx context.Context, b Backend, log *slog.Logger) (fromCallback bool, err error)

func (d *Downloader) fallback(ctx context.Context, u *url.URL, try attemptFunc) error {
	ctx, span, log := d.start(ctx, "fetchr.Download", u)
	defer span.End()

	for _, b := range Backends() {
		fromCallback, err := try(ctx, b, log)
		if err == nil || fromCallback || !transfer.IsUnavailable(err) {
			d.finish(span, err)
			return err
		}

		log.Debug("backend unavailable, trying next", "backend", b)
	}

	log.Debug("no working backends")
	d.metrics.Download(metrics.OutcomeNoBackend)
	span.SetStatus(codes.Error, transfer.ErrNoWorkingBackends.Error())

	return transfer.ErrNoWorkingBackends
}

// attempt runs backend b for u, counting the events it delivers to cb.
func (d *Downloader) attempt(ctx context.Context, b Backend, u *url.URL, cb Callback, log *slog.Logger) (bool, error) {
	ctx, span := d.tracer.Start(ctx, "fetchr.attempt", trace.WithAttributes(attribute.String("backend", b.String())))
	defer span.End()

	var tracker *progress.Tracker
	if d.progress {
		tracker = progress.New(log, "backend", b.String())
	}

	var cbErr error
	observed := func(ev transfer.Event) error {
		if data, ok := ev.(transfer.Data); ok {
			d.metrics.Delivered(b.String(), len(data.Bytes))
		}
		if tracker != nil {
			tracker.Observe(ev)
		}

		cbErr = cb(ev)
		return cbErr
	}

	log.Debug("attempting download", "backend", b)
	start := time.Now()

	err := d.transports[b].Download(ctx, u, observed)
	fromCallback := err != nil && cbErr != nil

	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case !fromCallback && transfer.IsUnavailable(err):
		outcome = metrics.OutcomeUnavailable
	default:
		outcome = metrics.OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	d.metrics.Attempt(b.String(), outcome, time.Since(start))
	span.SetAttributes(attribute.String("outcome", outcome))

	return fromCallback, err
}

func (d *Downloader) start(ctx context.Context, name string, u *url.URL) (context.Context, trace.Span, *slog.Logger) {
	id := uuid.NewString()

	ctx, span := d.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("transfer_id", id),
		attribute.String("url", u.Redacted()),
	))

	return ctx, span, d.log.With("transfer_id", id, "url", u.Redacted())
}

func (d *Downloader) finish(span trace.Span, err error) {
	if err == nil {
		d.metrics.Download(metrics.OutcomeOK)
		return
	}

	d.metrics.Download(metrics.OutcomeFailed)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
