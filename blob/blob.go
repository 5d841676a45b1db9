// Package blob defines the read/write blob storage contract of
// spec.md §6. The concrete backing store is a per-deployment mapping
// (S3, GCS, local disk); no example repo in the retrieval pack
// standardises on one, so this stays a stdlib interface boundary
// rather than adopting a specific SDK — see DESIGN.md.
package blob

import (
	"context"
	"errors"

	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
)

// ErrNotFound is returned by Get when uri does not exist.
var ErrNotFound = errors.New("blob: not found")

// Store is the read/write contract. Put is write-once: overwriting an
// already-uploaded processed-XML blob must be tolerated as an
// idempotent no-op, per spec.md §6.
type Store interface {
	Get(ctx context.Context, uri string) ([]byte, error)
	Put(ctx context.Context, uri string, data []byte) error
}

// wrapTransient normalises a backend-specific connectivity/5xx error
// into the pipeline's transient error kind.
func wrapTransient(op string, err error) error {
	return pipelineerr.Transient(op, err)
}
