// Package utls is the backend that runs uTLS over the stream adapter,
// trusting the roots loaded by tlsstream.SystemRoots.
//
// Building with the noutls tag replaces it with a stub that reports
// itself unavailable.
package utls

import (
	"crypto/x509"
	"errors"

	tls "github.com/refraction-networking/utls"
)

// Name identifies the backend in logs, metrics and errors.
const Name = "utls"

// Option configures the backend.
type Option func(*options) error

type options struct {
	roots *x509.CertPool
	hello tls.ClientHelloID
}

// WithRoots replaces the process-wide roots.
func WithRoots(pool *x509.CertPool) Option {
	return func(o *options) error {
		if pool == nil {
			return errors.New("root pool must not be nil")
		}
		o.roots = pool
		return nil
	}
}

// WithClientHello selects the ClientHello to present. Browser presets
// keep their fingerprint but advertise only http/1.1 over ALPN.
func WithClientHello(id tls.ClientHelloID) Option {
	return func(o *options) error {
		o.hello = id
		return nil
	}
}

func apply(opts []Option) (options, error) {
	o := options{hello: tls.HelloGolang}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return options{}, err
		}
	}
	return o, nil
}
