package fetchr

import (
	"context"
	"net/url"
	"sync"
)

var defaultDownloader = sync.OnceValues(func() (*Downloader, error) {
	return New()
})

// Download fetches u with a Downloader built without options.
func Download(ctx context.Context, u *url.URL, cb Callback) error {
	d, err := defaultDownloader()
	if err != nil {
		return err
	}
	return d.Download(ctx, u, cb)
}

// DownloadWithBackend fetches u with b only, using the default Downloader.
func DownloadWithBackend(ctx context.Context, b Backend, u *url.URL, cb Callback) error {
	d, err := defaultDownloader()
	if err != nil {
		return err
	}
	return d.DownloadWithBackend(ctx, b, u, cb)
}

// DownloadToPath fetches u into path with the default Downloader.
func DownloadToPath(ctx context.Context, u *url.URL, path string, cb Callback, opts ...PathOption) error {
	d, err := defaultDownloader()
	if err != nil {
		return err
	}
	return d.DownloadToPath(ctx, u, path, cb, opts...)
}

// DownloadToPathWithBackend fetches u into path with b only, using the
// default Downloader.
func DownloadToPathWithBackend(ctx context.Context, b Backend, u *url.URL, path string, cb Callback, opts ...PathOption) error {
	d, err := defaultDownloader()
	if err != nil {
		return err
	}
	return d.DownloadToPathWithBackend(ctx, b, u, path, cb, opts...)
}
