// Package stdtls is the backend that runs crypto/tls over the stream
// adapter, dialing and tunnelling connections itself.
//
// Building with the nostdtls tag replaces it with a stub that reports
// itself unavailable.
package stdtls

import (
	"crypto/tls"
	"errors"
)

// Name identifies the backend in logs, metrics and errors.
const Name = "stdtls"

// Option configures the backend.
type Option func(*options) error

type options struct {
	tls *tls.Config
}

// WithTLSConfig sets the TLS configuration. ServerName is filled in per
// connection when empty.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("tls config must not be nil")
		}
		o.tls = cfg
		return nil
	}
}

func apply(opts []Option) (options, error) {
	o := options{
		tls: &tls.Config{
			MinVersion: tls.VersionTLS12,
			NextProtos: []string{"http/1.1"},
		},
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return options{}, err
		}
	}
	return o, nil
}
