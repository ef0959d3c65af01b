package fetchr_test

import (
	"bytes"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/adamwoolhether/fetchr"
	"github.com/adamwoolhether/fetchr/transfer"
)

func TestDownloadToPath(t *testing.T) {
	payload := bytes.Repeat([]byte("fetchr"), 1000)
	cbErr := errors.New("stop")

	short := func(cb fetchr.Callback) error {
		if err := cb(fetchr.ContentLength{Length: 100}); err != nil {
			return err
		}
		return cb(fetchr.Data{Bytes: []byte("only a few")})
	}

	testCases := []struct {
		name      string
		behaviors [3]behavior
		cb        fetchr.Callback
		expErr    error
		expExact  bool
	}{
		{
			name:      "success",
			behaviors: [3]behavior{serve(payload)},
		},
		{
			name:      "success after fallback",
			behaviors: [3]behavior{unavailable("native"), unavailable("stdtls"), serve(payload)},
		},
		{
			name:      "short body",
			behaviors: [3]behavior{short},
			expErr:    fetchr.ErrContentLengthMismatch,
		},
		{
			name:      "every backend unavailable",
			behaviors: [3]behavior{unavailable("native"), unavailable("stdtls"), unavailable("utls")},
			expErr:    fetchr.ErrNoWorkingBackends,
		},
		{
			name:      "backend failure",
			behaviors: [3]behavior{fail(transfer.NewStatusError(500))},
			expErr:    fetchr.ErrUnexpectedStatusCode,
		},
		{
			name:      "callback failure",
			behaviors: [3]behavior{serve(payload)},
			cb: func(ev fetchr.Event) error {
				if _, ok := ev.(fetchr.Data); ok {
					return cbErr
				}
				return nil
			},
			expErr:   cbErr,
			expExact: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls []string
			d := fakes(t, &calls, tc.behaviors)

			dir := t.TempDir()
			path := filepath.Join(dir, "out.bin")

			err := d.DownloadToPath(t.Context(), mustParse(t, "https://example.com/out.bin"), path, tc.cb)

			if !errors.Is(err, tc.expErr) {
				t.Fatalf("exp err %v, got %v", tc.expErr, err)
			}
			if tc.expExact && err != tc.expErr {
				t.Errorf("exp the callback's error verbatim, got %v", err)
			}

			entries, derr := os.ReadDir(dir)
			if derr != nil {
				t.Fatal(derr)
			}

			if tc.expErr != nil {
				if len(entries) != 0 {
					t.Errorf("exp an empty directory after a failure, got %d entries", len(entries))
				}
				return
			}

			if len(entries) != 1 {
				t.Errorf("exp only the destination file, got %d entries", len(entries))
			}
			got, rerr := os.ReadFile(path)
			if rerr != nil {
				t.Fatal(rerr)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("exp %d bytes on disk, got %d", len(payload), len(got))
			}
		})
	}
}

func TestDownloadToPath_LocalFile(t *testing.T) {
	payload := make([]byte, 2*fetchr.ChunkSize+1)
	for i := range payload {
		payload[i] = byte(i % 253)
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "source.bin")
	if err := os.WriteFile(src, payload, 0o600); err != nil {
		t.Fatal(err)
	}

	d, err := fetchr.New(fetchr.WithLogger(discard))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(src)}
	dest := filepath.Join(dir, "copy.bin")

	var sum int
	err = d.DownloadToPath(t.Context(), u, dest, func(ev fetchr.Event) error {
		switch ev := ev.(type) {
		case fetchr.Data:
			sum += len(ev.Bytes)
		default:
			t.Errorf("exp only data events for a file, got %T", ev)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if sum != len(payload) {
		t.Errorf("exp chunks summing to %d bytes, got %d", len(payload), sum)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("exp a byte-identical copy of %d bytes, got %d", len(payload), len(got))
	}
}

func TestDownloadToPath_ForwardsEvents(t *testing.T) {
	var calls []string
	d := fakes(t, &calls, [3]behavior{serve([]byte("abc"))})

	path := filepath.Join(t.TempDir(), "out")

	var seen []fetchr.Event
	err := d.DownloadToPath(t.Context(), mustParse(t, "https://example.com/out"), path, func(ev fetchr.Event) error {
		// The destination appears only once the download finished.
		if _, ok := ev.(fetchr.Data); ok {
			if _, err := os.Stat(path); err == nil {
				t.Error("exp the destination to appear only after the download")
			}
		}
		seen = append(seen, ev)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 {
		t.Errorf("exp 2 events, got %d", len(seen))
	}
}

func TestDownloadToPath_SkipExisting(t *testing.T) {
	var calls []string
	d := fakes(t, &calls, [3]behavior{})

	path := filepath.Join(t.TempDir(), "existing")
	if err := os.WriteFile(path, []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := d.DownloadToPath(t.Context(), mustParse(t, "https://example.com/existing"), path, nil, fetchr.WithSkipExisting()); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "keep" {
		t.Errorf("exp the existing file untouched, got %q", got)
	}
	if len(calls) != 0 {
		t.Errorf("exp no backend to be tried, got %v", calls)
	}
}

func TestDownloadToPath_Arguments(t *testing.T) {
	var calls []string
	d := fakes(t, &calls, [3]behavior{})
	u := mustParse(t, "https://example.com/x")

	testCases := []struct {
		name   string
		err    error
		expErr error
	}{
		{
			name:   "nil url",
			err:    d.DownloadToPath(t.Context(), nil, "x", nil),
			expErr: fetchr.ErrNilURL,
		},
		{
			name:   "empty path",
			err:    d.DownloadToPath(t.Context(), u, "", nil),
			expErr: fetchr.ErrEmptyPath,
		},
		{
			name:   "unknown backend",
			err:    d.DownloadToPathWithBackend(t.Context(), fetchr.Backend(-1), u, "x", nil),
			expErr: fetchr.ErrUnknownBackend,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.expErr) {
				t.Errorf("exp err %v, got %v", tc.expErr, tc.err)
			}
		})
	}
}

func TestDownloadToPathWithBackend(t *testing.T) {
	var calls []string
	d := fakes(t, &calls, [3]behavior{nil, nil, serve([]byte("direct"))})

	path := filepath.Join(t.TempDir(), "out")
	if err := d.DownloadToPathWithBackend(t.Context(), fetchr.UTLS, mustParse(t, "https://example.com/out"), path, nil); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "direct" {
		t.Errorf("exp %q, got %q", "direct", got)
	}
}

func TestQueue(t *testing.T) {
	boom := errors.New("boom")

	var calls []string
	d := fakes(t, &calls, [3]behavior{serve([]byte("queued"))})

	dir := t.TempDir()
	q := d.NewQueue(2)

	var results []*fetchr.Result
	for _, name := range []string{"a", "b", "c"} {
		results = append(results, q.Add(t.Context(), mustParse(t, "https://example.com/"+name), filepath.Join(dir, name), nil))
	}

	for i, r := range results {
		if err := r.Err(); err != nil {
			t.Errorf("download %d: %v", i, err)
		}
	}
	if err := q.Wait(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"a", "b", "c"} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "queued" {
			t.Errorf("%s: exp %q, got %q", name, "queued", got)
		}
	}

	// Failures are joined by Wait.
	var failCalls []string
	failing := fakes(t, &failCalls, [3]behavior{fail(boom)})
	fq := failing.NewQueue(0)
	fq.Add(t.Context(), mustParse(t, "https://example.com/x"), filepath.Join(dir, "x"), nil)
	if err := fq.Wait(); !errors.Is(err, boom) {
		t.Errorf("exp %v, got %v", boom, err)
	}

	sq := d.NewQueue(1)
	sq.Shutdown()
	r := sq.Add(t.Context(), mustParse(t, "https://example.com/y"), filepath.Join(dir, "y"), nil)
	if err := r.Err(); !errors.Is(err, fetchr.ErrQueueShutdown) {
		t.Errorf("exp ErrQueueShutdown, got %v", err)
	}
}
