//go:build noutls

package utls

import (
	"net/url"
	"testing"

	"github.com/adamwoolhether/fetchr/backend/httpbase"
	"github.com/adamwoolhether/fetchr/transfer"
)

func TestStub_Unavailable(t *testing.T) {
	b, err := New(httpbase.Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	err = b.Download(t.Context(), &url.URL{Scheme: "https", Host: "example.com"}, func(transfer.Event) error {
		t.Error("exp stub to emit no events")
		return nil
	})
	if !transfer.IsUnavailable(err) {
		t.Errorf("exp unavailable error, got %v", err)
	}
}
