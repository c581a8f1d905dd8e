// Package blobstore resolves stored record file names to readable PDFs.
// Both implementations treat the stored name as untrusted: only its final
// path element is used, and anything that cannot be found inside the store's
// root is reported as common.ErrorNotFound.
package blobstore

import (
	"context"
	"io"
)

// Store opens a stored blob by name and reports its size in bytes.
type Store interface {
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
}
