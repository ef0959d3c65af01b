package fetchr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
)

// ErrQueueShutdown indicates the queue stopped accepting work.
var ErrQueueShutdown = errors.New("download queue shut down")

// Queue runs DownloadToPath calls concurrently on one Downloader.
type Queue struct {
	d        *Downloader
	wg       sync.WaitGroup
	mu       sync.Mutex
	sem      chan struct{}
	shutdown atomic.Bool
	errs     []error
}

// NewQueue returns a Queue running at most maxConcurrent downloads at a
// time. If maxConcurrent <= 0, concurrency is unlimited.
func (d *Downloader) NewQueue(maxConcurrent int) *Queue {
	q := Queue{d: d}
	if maxConcurrent > 0 {
		q.sem = make(chan struct{}, maxConcurrent)
	}
	return &q
}

// Result tracks one queued download.
type Result struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Done returns a channel that is closed when the download completes.
func (r *Result) Done() <-chan struct{} { return r.done }

// Err blocks until the download completes and returns its error.
func (r *Result) Err() error {
	<-r.done
	return r.err
}

// Cancel cancels the download's context.
func (r *Result) Cancel() { r.cancel() }

// Add queues a download of u into path. cb is called from the download's
// goroutine and may be nil.
func (q *Queue) Add(ctx context.Context, u *url.URL, path string, cb Callback, opts ...PathOption) *Result {
	return q.start(ctx, path, func(ctx context.Context) error {
		return q.d.DownloadToPath(ctx, u, path, cb, opts...)
	})
}

// AddWithBackend queues a download of u into path that only uses b.
func (q *Queue) AddWithBackend(ctx context.Context, b Backend, u *url.URL, path string, cb Callback, opts ...PathOption) *Result {
	return q.start(ctx, path, func(ctx context.Context) error {
		return q.d.DownloadToPathWithBackend(ctx, b, u, path, cb, opts...)
	})
}

func (q *Queue) start(ctx context.Context, path string, fn func(context.Context) error) *Result {
	ctx, cancel := context.WithCancel(ctx)
	r := Result{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	q.wg.Add(1)
	go func() {
		defer func() {
			cancel()
			close(r.done)
			q.wg.Done()
		}()

		r.err = q.run(ctx, path, fn)
		if r.err != nil {
			q.recordErr(r.err)
		}
	}()

	return &r
}

func (q *Queue) run(ctx context.Context, path string, fn func(context.Context) error) error {
	if q.sem != nil {
		select {
		case q.sem <- struct{}{}:
			defer func() { <-q.sem }()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if q.shutdown.Load() {
		return ErrQueueShutdown
	}

	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Wait blocks until every queued download completes and returns their
// errors joined.
func (q *Queue) Wait() error {
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()

	return errors.Join(q.errs...)
}

// Shutdown makes downloads that have not started yet fail with
// ErrQueueShutdown.
func (q *Queue) Shutdown() {
	q.shutdown.Store(true)
}

func (q *Queue) recordErr(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errs = append(q.errs, err)
}
