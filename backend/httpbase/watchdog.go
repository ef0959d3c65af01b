package httpbase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adamwoolhether/fetchr/transfer"
)

// meter counts the bytes read through it.
type meter struct {
	n atomic.Int64
}

func (m *meter) reader(r io.Reader) io.Reader {
	return &meteredReader{r: r, m: m}
}

type meteredReader struct {
	r io.Reader
	m *meter
}

func (mr *meteredReader) Read(p []byte) (int, error) {
	n, err := mr.r.Read(p)
	mr.m.n.Add(int64(n))
	return n, err
}

// startWatchdog returns a context that is cancelled with a stall
// TimeoutError when fewer than lim.LowSpeedLimit bytes pass the meter in
// any lim.LowSpeedTime window. stop must be called when the transfer ends.
func startWatchdog(parent context.Context, lim Limits) (context.Context, *meter, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	m := &meter{}

	if lim.LowSpeedTime <= 0 {
		return ctx, m, func() { cancel(nil) }
	}

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(lim.LowSpeedTime)
		defer t.Stop()

		var last int64
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				cur := m.n.Load()
				if cur-last < lim.LowSpeedLimit {
					cancel(&transfer.TimeoutError{
						Op:  "stall",
						Err: fmt.Errorf("fewer than %d bytes in %v", lim.LowSpeedLimit, lim.LowSpeedTime),
					})
					return
				}
				last = cur
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			cancel(nil)
		})
	}

	return ctx, m, stop
}
