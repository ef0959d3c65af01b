//go:build !nonative

package native

import (
	"fmt"

	"github.com/adamwoolhether/fetchr/backend/httpbase"
	"github.com/adamwoolhether/fetchr/transfer"
)

// Available reports whether the backend is compiled in.
const Available = true

// Backend downloads with clients from its cache.
type Backend struct {
	*httpbase.Base
	cache *Cache
	owned bool
}

// New returns the native backend.
func New(cfg httpbase.Config, opts ...Option) (transfer.Transport, error) {
	o, err := apply(opts)
	if err != nil {
		return nil, fmt.Errorf("applying option: %w", err)
	}

	b := Backend{
		Base:  httpbase.New(Name, cfg, nil),
		cache: o.cache,
	}
	if b.cache == nil {
		b.cache = NewCache()
		b.owned = true
	}
	b.SetClients(httpbase.Cached(b.cache, b.NewHandleFunc(nil)))

	return &b, nil
}

// Close drops the idle clients of a cache the backend created itself.
func (b *Backend) Close() error {
	if b.owned {
		b.cache.Close()
	}
	return nil
}
