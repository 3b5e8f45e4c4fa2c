// Package storage persists generated documents (proposal PDFs) either on the
// local filesystem or in an S3 bucket.
package storage

import (
	"context"
	"io"
)

type PutInput struct {
	Filename    string
	ContentType string
}

type PutResult struct {
	Key string
	URL string
}

type Storage interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
	Delete(ctx context.Context, key string) error
}
