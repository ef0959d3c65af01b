package httpbase

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/adamwoolhether/fetchr/transfer"
)

func isBlobScheme(scheme string) bool {
	return scheme != "" && blob.DefaultURLMux().ValidBucketScheme(scheme)
}

// splitBlobURL turns s3://bucket/dir/key?region=x into the bucket URL
// s3://bucket?region=x and the key dir/key.
func splitBlobURL(u *url.URL) (bucketURL, key string) {
	b := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: u.RawQuery}
	return b.String(), strings.TrimPrefix(u.Path, "/")
}

// downloadBlob streams an object from a gocloud.dev bucket, announcing
// its size first.
func downloadBlob(ctx context.Context, open BucketOpener, u *url.URL, cb transfer.Callback) error {
	bucketURL, key := splitBlobURL(u)
	if key == "" {
		return &transfer.IOError{Op: "open object", Err: fmt.Errorf("%w: no object key in %s", transfer.ErrNotFound, u.Redacted())}
	}

	bkt, err := open(ctx, bucketURL)
	if err != nil {
		return &transfer.IOError{Op: "open bucket", Err: err}
	}
	defer bkt.Close()

	r, err := bkt.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			err = fmt.Errorf("%w: %w", transfer.ErrNotFound, err)
		}
		return &transfer.IOError{Op: "open object", Err: err}
	}
	defer r.Close()

	if err := cb(transfer.ContentLength{Length: uint64(r.Size())}); err != nil {
		return err
	}

	return transfer.Pump(r, "read object", cb)
}
