package httpbase

import "net/http"

// Handle is a client with its own transport, reusable across calls.
type Handle struct {
	Client    *http.Client
	Transport *http.Transport
}

// NewHandleFunc returns a constructor of handles for b whose transport
// uses tlsDial (nil for the stock TLS client).
func (b *Base) NewHandleFunc(tlsDial TLSDialFunc) func() *Handle {
	return func() *Handle {
		tr := b.Transport(tlsDial)
		return &Handle{Client: b.Client(tr), Transport: tr}
	}
}

// CloseHandle closes the idle connections of h.
func CloseHandle(h *Handle) {
	h.Transport.CloseIdleConnections()
}

// Cached serves calls from cache, creating handles with newHandle when
// none is idle. Per-call settings reach a reused transport through the
// request context only.
func Cached(cache *HandleCache[*Handle], newHandle func() *Handle) Clients {
	return ClientsFunc(func(*Call) (*http.Client, func()) {
		h, ok := cache.Acquire()
		if !ok {
			h = newHandle()
		}
		return h.Client, func() { cache.Release(h) }
	})
}

// Fresh builds a new handle for every call and closes its connections
// once the call is done.
func Fresh(newHandle func() *Handle) Clients {
	return ClientsFunc(func(*Call) (*http.Client, func()) {
		h := newHandle()
		return h.Client, func() { CloseHandle(h) }
	})
}
