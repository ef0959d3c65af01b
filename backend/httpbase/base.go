// Package httpbase implements the behavior shared by the network
// backends: the file and object-store fast paths, the HTTP GET and its
// status mapping, connect and stall timeouts, and proxy tunnelling.
// Backends differ only in how they build the client for a call.
package httpbase

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/adamwoolhether/fetchr/proxy"
	"github.com/adamwoolhether/fetchr/transfer"
)

// Clients hands out the HTTP client used for one call. release is
// called once the response body has been consumed.
type Clients interface {
	Acquire(call *Call) (client *http.Client, release func())
}

// ClientsFunc adapts a function to the Clients interface.
type ClientsFunc func(call *Call) (*http.Client, func())

func (f ClientsFunc) Acquire(call *Call) (*http.Client, func()) { return f(call) }

// Base is a transfer.Transport for one backend.
type Base struct {
	name    string
	cfg     Config
	clients Clients
}

// New returns the Base for the backend called name. clients may be set
// later with SetClients, since building clients usually needs the Base.
func New(name string, cfg Config, clients Clients) *Base {
	return &Base{
		name:    name,
		cfg:     cfg.withDefaults(),
		clients: clients,
	}
}

// SetClients sets the client source of the network path.
func (b *Base) SetClients(c Clients) {
	b.clients = c
}

func (b *Base) Name() string   { return b.name }
func (b *Base) Config() Config { return b.cfg }

// Download fetches u and reports it through cb.
func (b *Base) Download(ctx context.Context, u *url.URL, cb transfer.Callback) error {
	log := b.cfg.Logger.With("backend", b.name, "url", u.Redacted())

	switch {
	case u.Scheme == "file":
		return downloadFile(ctx, u, cb)
	case u.Scheme == "http" || u.Scheme == "https":
		return b.downloadHTTP(ctx, u, log, cb)
	case isBlobScheme(u.Scheme):
		return downloadBlob(ctx, b.cfg.OpenBucket, u, cb)
	}

	return fmt.Errorf("%w: %q", transfer.ErrUnsupportedScheme, u.Scheme)
}

func (b *Base) downloadHTTP(ctx context.Context, u *url.URL, log *slog.Logger, cb transfer.Callback) error {
	call := Call{
		URL:    u,
		Proxy:  b.resolveProxy(u, log),
		Limits: b.cfg.Limits,
	}
	if call.Proxy != nil {
		log.Debug("using proxy", "proxy", call.Proxy.Addr())
	}

	client, release := b.clients.Acquire(&call)
	defer release()

	return get(WithCall(ctx, &call), client, &call, cb)
}

func (b *Base) resolveProxy(u *url.URL, log *slog.Logger) *proxy.Target {
	key, setting, ok := b.cfg.Proxy.Setting(u)
	if !ok {
		return nil
	}

	t, ok := proxy.Parse(setting)
	if !ok {
		log.Debug("ignoring unusable proxy setting", "key", key)
		return nil
	}

	return &t
}

// TLSDialFunc is the shape of http.Transport.DialTLSContext.
type TLSDialFunc = func(ctx context.Context, network, addr string) (net.Conn, error)

// Transport returns a transport whose proxy and dial settings are taken
// from the call on each request context. tlsDial, when non-nil, replaces
// the stock TLS client; https requests are then tunnelled by tlsDial
// itself and only plain http goes through the stock proxy support.
func (b *Base) Transport(tlsDial TLSDialFunc) *http.Transport {
	var tlsCfg *tls.Config
	if b.cfg.RootCAs != nil && tlsDial == nil {
		tlsCfg = &tls.Config{RootCAs: b.cfg.RootCAs}
	}

	return &http.Transport{
		TLSClientConfig:     tlsCfg,
		Proxy:               proxyFromCall(tlsDial == nil),
		DialContext:         b.dial,
		DialTLSContext:      tlsDial,
		TLSHandshakeTimeout: b.cfg.Limits.ConnectTimeout,
		DisableCompression:  true,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     DefaultIdleTimeout,
	}
}

// Client returns a client sending through tr, decorated by Config.Wrap.
func (b *Base) Client(tr *http.Transport) *http.Client {
	var rt http.RoundTripper = tr
	if b.cfg.Wrap != nil {
		rt = b.cfg.Wrap(rt)
	}
	return &http.Client{Transport: rt}
}

func proxyFromCall(stockTLS bool) func(*http.Request) (*url.URL, error) {
	return func(r *http.Request) (*url.URL, error) {
		call := CallFrom(r.Context())
		if call == nil || call.Proxy == nil {
			return nil, nil
		}
		if r.URL.Scheme == "https" && !stockTLS {
			return nil, nil
		}
		return call.Proxy.URL(), nil
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
