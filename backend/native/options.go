// Package native is the backend using the stock net/http TLS client. It
// keeps a cache of clients so sequential downloads reuse connections.
//
// Building with the nonative tag replaces it with a stub that reports
// itself unavailable.
package native

import (
	"errors"

	"github.com/adamwoolhether/fetchr/backend/httpbase"
)

// Name identifies the backend in logs, metrics and errors.
const Name = "native"

// Cache holds idle clients between downloads.
type Cache = httpbase.HandleCache[*httpbase.Handle]

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return httpbase.NewHandleCache(httpbase.CloseHandle)
}

// Option configures the backend.
type Option func(*options) error

type options struct {
	cache *Cache
}

// WithCache makes the backend take its clients from c, so several
// backends can share reused connections. The caller closes c.
func WithCache(c *Cache) Option {
	return func(o *options) error {
		if c == nil {
			return errors.New("cache must not be nil")
		}
		o.cache = c
		return nil
	}
}

func apply(opts []Option) (options, error) {
	var o options
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return options{}, err
		}
	}
	return o, nil
}
