//go:build nonative

package native

import (
	"context"
	"net/url"

	"github.com/adamwoolhether/fetchr/backend/httpbase"
	"github.com/adamwoolhether/fetchr/transfer"
)

// Available reports whether the backend is compiled in.
const Available = false

// New returns a backend that reports itself unavailable without doing
// any I/O.
func New(httpbase.Config, ...Option) (transfer.Transport, error) {
	return transfer.TransportFunc(func(context.Context, *url.URL, transfer.Callback) error {
		return transfer.Unavailable(Name)
	}), nil
}
