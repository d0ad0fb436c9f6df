// Package blob stores uploaded deliverable files and hands back stable
// view and download URLs.
package blob

import (
	"context"
	"io"
)

// Staged is a file received from a client, not yet stored.
type Staged struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Object is a stored file.
type Object struct {
	ID          string
	Name        string
	ContentType string
	SizeBytes   int64
	ViewURL     string
	DownloadURL string
}

// Store uploads files into a named container. Implementations must not
// leave partial content behind on failure.
type Store interface {
	Upload(ctx context.Context, container string, file Staged) (Object, error)
}

// UpstreamError wraps a storage-side failure.
type UpstreamError struct {
	Op  string
	Err error
}

func (e UpstreamError) Error() string {
	return "blob store: " + e.Op + ": " + e.Err.Error()
}

func (e UpstreamError) Unwrap() error {
	return e.Err
}
