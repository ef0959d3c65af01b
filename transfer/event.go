package transfer

import (
	"context"
	"net/url"
)

// ChunkSize is the size of the buffer used to read a resource. Every
// Data event carries at most ChunkSize bytes.
const ChunkSize = 0x10000 // 64KiB

// Event is one observation made during a transfer. It is either a
// [ContentLength] or a [Data].
type Event interface {
	event()
}

// ContentLength reports the total size of the resource, when the
// source advertises one. It is emitted at most once, before any Data.
type ContentLength struct {
	Length uint64
}

// Data carries a chunk of the resource. Bytes is reused by the producer
// once the callback returns, so it must be copied to be retained.
type Data struct {
	Bytes []byte
}

func (ContentLength) event() {}
func (Data) event()          {}

// Callback receives the events of a transfer. A non-nil error aborts
// the transfer and is returned unchanged to the caller.
type Callback func(Event) error

// Transport fetches the resource at u and reports it through cb.
type Transport interface {
	Download(ctx context.Context, u *url.URL, cb Callback) error
}

// TransportFunc adapts a function to the [Transport] interface.
type TransportFunc func(ctx context.Context, u *url.URL, cb Callback) error

func (f TransportFunc) Download(ctx context.Context, u *url.URL, cb Callback) error {
	return f(ctx, u, cb)
}
