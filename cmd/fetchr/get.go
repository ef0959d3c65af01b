package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/adamwoolhether/fetchr"
)

type getFlags struct {
	output       string
	dir          string
	skipExisting bool
}

func (a *app) newGetCmd() *cobra.Command {
	var f getFlags

	cmd := &cobra.Command{
		Use:   "get <url>...",
		Short: "Download one or more URLs to disk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return a.runGet(c.Context(), args, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "destination path, or - for stdout (single URL only)")
	fl.StringVarP(&f.dir, "dir", "d", ".", "destination directory")
	fl.BoolVar(&f.skipExisting, "skip-existing", false, "leave files that already exist untouched")
	fl.String("backend", "", "only use this backend: native, stdtls or utls")
	fl.IntP("jobs", "j", 4, "concurrent downloads")
	fl.Bool("progress", false, "report download progress")
	fl.String("metrics", "", "write Prometheus metrics to this textfile when done")

	return cmd
}

var (
	errSingleOnly    = errors.New("flag only applies to a single URL")
	errDuplicateDest = errors.New("urls share a destination")
)

func (a *app) runGet(ctx context.Context, args []string, f getFlags) error {
	if len(args) > 1 && f.output != "" {
		return fmt.Errorf("--output: %w", errSingleOnly)
	}

	urls := make([]*url.URL, len(args))
	for i, raw := range args {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing url %q: %w", raw, err)
		}
		if u.Scheme == "" {
			return fmt.Errorf("url %q: missing scheme", raw)
		}
		urls[i] = u
	}

	if len(urls) > 1 {
		seen := make(map[string]string, len(urls))
		for i, u := range urls {
			name := fileName(u)
			if prev, ok := seen[name]; ok {
				return fmt.Errorf("%w: %s and %s both map to %s", errDuplicateDest, prev, args[i], name)
			}
			seen[name] = args[i]
		}
	}

	var backend *fetchr.Backend
	if a.cfg.Backend != "" {
		b, err := fetchr.ParseBackend(a.cfg.Backend)
		if err != nil {
			return err
		}
		backend = &b
	}

	var opts []fetchr.PathOption
	if f.skipExisting {
		opts = append(opts, fetchr.WithSkipExisting())
	}

	// A single download draws a bar; a batch logs progress instead.
	single := len(urls) == 1

	d, reg, err := a.newDownloader(a.cfg.Progress && !single)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			a.log.Error("closing downloader", "error", err)
		}
	}()

	switch {
	case single && f.output == "-":
		err = a.toStdout(ctx, d, backend, urls[0])
	case single:
		dest := f.output
		if dest == "" {
			dest = filepath.Join(f.dir, fileName(urls[0]))
		}

		var cb fetchr.Callback
		if a.cfg.Progress {
			var done func()
			cb, done = a.progressBar(filepath.Base(dest))
			defer done()
		}

		if backend != nil {
			err = d.DownloadToPathWithBackend(ctx, *backend, urls[0], dest, cb, opts...)
		} else {
			err = d.DownloadToPath(ctx, urls[0], dest, cb, opts...)
		}
		if err == nil {
			fmt.Fprintln(a.stdout, dest)
		}
	default:
		err = a.batch(ctx, d, backend, urls, f.dir, opts)
	}

	if reg != nil {
		if werr := writeMetrics(a.cfg.Metrics.Textfile, reg); werr != nil {
			err = errors.Join(err, werr)
		}
	}

	return err
}

// toStdout streams u to stdout. Bytes already written stay written if
// the download fails midway.
func (a *app) toStdout(ctx context.Context, d *fetchr.Downloader, backend *fetchr.Backend, u *url.URL) error {
	cb := func(ev fetchr.Event) error {
		data, ok := ev.(fetchr.Data)
		if !ok {
			return nil
		}
		if _, err := a.stdout.Write(data.Bytes); err != nil {
			return fmt.Errorf("write stdout: %w", err)
		}
		return nil
	}

	if backend != nil {
		return d.DownloadWithBackend(ctx, *backend, u, cb)
	}
	return d.Download(ctx, u, cb)
}

func (a *app) batch(ctx context.Context, d *fetchr.Downloader, backend *fetchr.Backend, urls []*url.URL, dir string, opts []fetchr.PathOption) error {
	q := d.NewQueue(a.cfg.Jobs)

	dests := make([]string, len(urls))
	results := make([]*fetchr.Result, len(urls))
	for i, u := range urls {
		dests[i] = filepath.Join(dir, fileName(u))
		if backend != nil {
			results[i] = q.AddWithBackend(ctx, *backend, u, dests[i], nil, opts...)
		} else {
			results[i] = q.Add(ctx, u, dests[i], nil, opts...)
		}
	}

	for i, r := range results {
		if err := r.Err(); err != nil {
			a.log.Error("download failed", "url", urls[i].Redacted(), "error", err)
			continue
		}
		fmt.Fprintln(a.stdout, dests[i])
	}

	return q.Wait()
}

// progressBar returns a callback that drives a terminal bar and a func
// that finishes it.
func (a *app) progressBar(name string) (fetchr.Callback, func()) {
	bar := progressbar.NewOptions64(
		-1,
		progressbar.OptionSetWriter(a.stderr),
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(a.stderr)
		}),
	)

	cb := func(ev fetchr.Event) error {
		switch ev := ev.(type) {
		case fetchr.ContentLength:
			bar.ChangeMax64(int64(ev.Length))
		case fetchr.Data:
			_ = bar.Add(len(ev.Bytes))
		}
		return nil
	}

	return cb, func() { _ = bar.Finish() }
}

// fileName derives a local file name from the last element of u's path.
func fileName(u *url.URL) string {
	switch base := path.Base(u.Path); base {
	case ".", "/", "":
		return "index.html"
	default:
		return base
	}
}

func writeMetrics(file string, reg *prometheus.Registry) error {
	if err := prometheus.WriteToTextfile(file, reg); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
