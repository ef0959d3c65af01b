package httpbase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/adamwoolhether/fetchr/transfer"
)

// get performs the GET for call and streams the body to cb.
func get(ctx context.Context, client *http.Client, call *Call, cb transfer.Callback) error {
	ctx, m, stop := startWatchdog(ctx, call.Limits)
	defer stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, call.URL.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return mapTimeout(ctx, fmt.Errorf("sending request: %w", err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return transfer.NewStatusError(resp.StatusCode)
	}

	// cbErr separates a failing callback from a failing read.
	var cbErr error
	emit := func(ev transfer.Event) error {
		cbErr = cb(ev)
		return cbErr
	}

	if resp.ContentLength >= 0 {
		if err := emit(transfer.ContentLength{Length: uint64(resp.ContentLength)}); err != nil {
			return err
		}
	}

	err = transfer.Pump(m.reader(resp.Body), "read socket", emit)
	if err != nil && cbErr == nil {
		return mapTimeout(ctx, err)
	}
	return err
}

// mapTimeout reports err as a TimeoutError when the watchdog fired or the
// connection attempt timed out.
func mapTimeout(ctx context.Context, err error) error {
	var te *transfer.TimeoutError
	if errors.As(context.Cause(ctx), &te) {
		return te
	}
	if errors.As(err, &te) {
		return err
	}
	if ctx.Err() == nil && isTimeout(err) {
		return &transfer.TimeoutError{Op: "connect", Err: err}
	}
	return err
}
