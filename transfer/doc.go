// Package transfer defines the streaming protocol shared by every
// download backend and the orchestrator that drives them.
//
// A transfer reports what it observes as a sequence of [Event] values
// delivered synchronously to a [Callback]:
//
//	err := t.Download(ctx, u, func(ev transfer.Event) error {
//		switch ev := ev.(type) {
//		case transfer.ContentLength:
//			total = ev.Length
//		case transfer.Data:
//			_, err := w.Write(ev.Bytes)
//			return err
//		}
//		return nil
//	})
//
// The byte slice carried by [Data] is borrowed from the producer and is
// only valid until the callback returns.
//
// Failures are reported with the sentinels and error types in this
// package so callers can classify them with [errors.Is] and [errors.As]
// without knowing which backend produced them.
package transfer
