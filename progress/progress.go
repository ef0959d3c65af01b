// Package progress logs transfer progress from the event stream of a
// download at most once per second.
package progress

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/adamwoolhether/fetchr/transfer"
)

// Interval is the minimum time between two progress lines.
const Interval = time.Second

// Tracker counts delivered bytes against the announced length.
type Tracker struct {
	log         *slog.Logger
	attrs       []any
	now         func() time.Time
	transferred uint64
	total       uint64
	known       bool
	start       time.Time
	lastLog     time.Time
}

// New returns a Tracker logging to log; attrs are added to every line.
func New(log *slog.Logger, attrs ...any) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{log: log, attrs: attrs, now: time.Now}
}

// Wrap returns a callback that records each event and then hands it to
// next. A nil next only records.
func (t *Tracker) Wrap(next transfer.Callback) transfer.Callback {
	return func(ev transfer.Event) error {
		t.Observe(ev)
		if next == nil {
			return nil
		}
		return next(ev)
	}
}

// Observe records one event.
func (t *Tracker) Observe(ev transfer.Event) {
	if t.start.IsZero() {
		t.start = t.now()
		t.lastLog = t.start
	}

	switch ev := ev.(type) {
	case transfer.ContentLength:
		t.total = ev.Length
		t.known = true
	case transfer.Data:
		t.transferred += uint64(len(ev.Bytes))

		if now := t.now(); now.Sub(t.lastLog) >= Interval {
			t.lastLog = now
			t.emit("downloading")
		}

		if t.known && t.transferred == t.total {
			t.emit("download complete")
		}
	}
}

// Transferred returns the bytes seen so far.
func (t *Tracker) Transferred() uint64 {
	return t.transferred
}

func (t *Tracker) emit(msg string) {
	elapsed := t.now().Sub(t.start)

	pct := "unknown"
	if t.known && t.total > 0 {
		pct = fmt.Sprintf("%.1f%%", float64(t.transferred)/float64(t.total)*100)
	}

	var mbps float64
	if s := elapsed.Seconds(); s > 0 {
		mbps = float64(t.transferred) / s / (1024 * 1024)
	}

	attrs := append([]any{
		"progress", pct,
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", t.transferred,
		"total", t.total,
		"mbps", fmt.Sprintf("%.2f", mbps),
	}, t.attrs...)

	t.log.Info(msg, attrs...)
}
