package httpbase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/adamwoolhether/fetchr/transfer"
)

// downloadFile streams a local file. No ContentLength is emitted.
func downloadFile(ctx context.Context, u *url.URL, cb transfer.Callback) error {
	path := filepath.FromSlash(u.Path)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %w", transfer.ErrNotFound, err)
		}
		return &transfer.IOError{Op: "open file", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &transfer.IOError{Op: "open file", Err: err}
	}
	if info.IsDir() {
		return &transfer.IOError{Op: "open file", Err: fmt.Errorf("%w: %s is a directory", transfer.ErrNotFound, path)}
	}

	return transfer.Pump(&contextReader{ctx: ctx, r: f}, "read file", cb)
}

// contextReader fails reads once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
