package httpbase

import (
	"context"
	"crypto/x509"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"gocloud.dev/blob"

	"github.com/adamwoolhether/fetchr/proxy"
)

// UserAgent is sent with every network request.
const UserAgent = "fetchr/1"

// DefaultIdleTimeout is how long a pooled connection may stay idle.
const DefaultIdleTimeout = 90 * time.Second

// Limits bound how long a connection may take to come up and how slow a
// transfer may get before it is aborted.
type Limits struct {
	// ConnectTimeout covers the TCP dial, any proxy tunnel and the TLS
	// handshake.
	ConnectTimeout time.Duration
	// LowSpeedLimit is the minimum number of bytes that must arrive in
	// every LowSpeedTime window. A negative LowSpeedTime disables the
	// check.
	LowSpeedLimit int64
	LowSpeedTime  time.Duration
}

// DefaultLimits fill every zero field of a Config's Limits.
var DefaultLimits = Limits{
	ConnectTimeout: 30 * time.Second,
	LowSpeedLimit:  10,
	LowSpeedTime:   30 * time.Second,
}

// BucketOpener opens the bucket named by a gocloud.dev bucket URL.
type BucketOpener func(ctx context.Context, urlstr string) (*blob.Bucket, error)

// Config is shared by every backend built from it.
type Config struct {
	Logger *slog.Logger
	Proxy  proxy.Resolver
	// Wrap decorates the transport of every client, e.g. with a throttle.
	Wrap       func(http.RoundTripper) http.RoundTripper
	Limits     Limits
	OpenBucket BucketOpener
	// RootCAs replaces the roots each backend trusts by default.
	RootCAs *x509.CertPool
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.Limits = c.Limits.withDefaults()
	if c.OpenBucket == nil {
		c.OpenBucket = blob.OpenBucket
	}
	return c
}

func (l Limits) withDefaults() Limits {
	if l.ConnectTimeout == 0 {
		l.ConnectTimeout = DefaultLimits.ConnectTimeout
	}
	if l.LowSpeedLimit == 0 {
		l.LowSpeedLimit = DefaultLimits.LowSpeedLimit
	}
	if l.LowSpeedTime == 0 {
		l.LowSpeedTime = DefaultLimits.LowSpeedTime
	}
	return l
}

// Call is the state of one download. It travels on the request context,
// so a transport reused across calls only ever sees the current one.
type Call struct {
	URL    *url.URL
	Proxy  *proxy.Target
	Limits Limits
}

type callKey struct{}

// WithCall returns ctx carrying call.
func WithCall(ctx context.Context, call *Call) context.Context {
	return context.WithValue(ctx, callKey{}, call)
}

// CallFrom returns the call carried by ctx, or nil.
func CallFrom(ctx context.Context) *Call {
	call, _ := ctx.Value(callKey{}).(*Call)
	return call
}
