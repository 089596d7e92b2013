// Package blobstore abstracts the object storage uploads live in. The
// pipeline only ever downloads; uploads happen at the ingestion edge, outside
// this module.
package blobstore

import "context"

// Store fetches raw uploads into local scratch space for processing.
type Store interface {
	// Download fetches the object at key into a local file and returns its
	// path. The caller owns cleanup of the returned file.
	Download(ctx context.Context, key string) (localPath string, err error)
}
