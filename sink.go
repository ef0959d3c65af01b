package fetchr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/adamwoolhether/fetchr/transfer"
)

// DownloadToPath fetches u into the file at path with the same fallback
// policy as Download. cb may be nil; when set it sees every event after
// the bytes were written. The file only appears at path once the
// download completed: bytes go to a temporary file in the same directory,
// which is synced and renamed on success and removed otherwise.
func (d *Downloader) DownloadToPath(ctx context.Context, u *url.URL, path string, cb Callback, opts ...PathOption) error {
	o, err := applyPath(u, path, opts)
	if err != nil {
		return err
	}
	if o.skip(path, d.log) {
		return nil
	}

	return d.fallback(ctx, u, func(ctx context.Context, b Backend, log *slog.Logger) (bool, error) {
		return d.toPath(ctx, b, u, path, cb, log)
	})
}

// DownloadToPathWithBackend fetches u into the file at path with b only.
func (d *Downloader) DownloadToPathWithBackend(ctx context.Context, b Backend, u *url.URL, path string, cb Callback, opts ...PathOption) error {
	o, err := applyPath(u, path, opts)
	if err != nil {
		return err
	}
	if !b.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownBackend, int(b))
	}
	if o.skip(path, d.log) {
		return nil
	}

	ctx, span, log := d.start(ctx, "fetchr.DownloadToPathWithBackend", u)
	defer span.End()

	_, err = d.toPath(ctx, b, u, path, cb, log)
	d.finish(span, err)

	return err
}

func applyPath(u *url.URL, path string, optFns []PathOption) (pathOptions, error) {
	if u == nil {
		return pathOptions{}, ErrNilURL
	}
	if path == "" {
		return pathOptions{}, ErrEmptyPath
	}

	var opts pathOptions
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return pathOptions{}, fmt.Errorf("applying option: %w", err)
		}
	}
	return opts, nil
}

// toPath runs one backend attempt into a fresh temporary file.
func (d *Downloader) toPath(ctx context.Context, b Backend, u *url.URL, path string, cb Callback, log *slog.Logger) (bool, error) {
	file, err := os.CreateTemp(filepath.Dir(path), ".fetchr-*")
	if err != nil {
		return false, &transfer.IOError{Op: "create file", Err: err}
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			log.Error("defer closing temp file", "error", err)
		}
		if !successful {
			if err := os.Remove(file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Error("failed to remove temp file", "path", file.Name(), "error", err)
			}
		}
	}()

	var written uint64
	var announced *uint64
	sink := func(ev transfer.Event) error {
		switch ev := ev.(type) {
		case transfer.ContentLength:
			l := ev.Length
			announced = &l
		case transfer.Data:
			n, err := file.Write(ev.Bytes)
			written += uint64(n)
			if err != nil {
				return &transfer.IOError{Op: "write file", Err: err}
			}
		}

		if cb == nil {
			return nil
		}
		return cb(ev)
	}

	fromCallback, err := d.attempt(ctx, b, u, sink, log)
	if err != nil {
		return fromCallback, err
	}

	if announced != nil && written != *announced {
		return false, &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", *announced, written),
		}
	}

	if err := file.Sync(); err != nil {
		return false, &transfer.IOError{Op: "sync file", Err: err}
	}
	if err := file.Close(); err != nil {
		return false, &transfer.IOError{Op: "close file", Err: err}
	}
	if err := os.Rename(file.Name(), path); err != nil {
		return false, &transfer.IOError{Op: "rename file", Err: err}
	}

	successful = true

	return false, nil
}
