package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DiskStore keeps files under Root/<container>/ and mints URLs beneath
// PublicBaseURL. The server mounts Root read-only at that base.
type DiskStore struct {
	Root          string
	PublicBaseURL string
}

func NewDiskStore(root, publicBaseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &DiskStore{Root: root, PublicBaseURL: publicBaseURL}, nil
}

func (s *DiskStore) Upload(ctx context.Context, container string, file Staged) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, UpstreamError{Op: "upload", Err: err}
	}
	dir := filepath.Join(s.Root, container)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Object{}, UpstreamError{Op: "upload", Err: err}
	}
	id := uuid.NewString()
	name := id + "_" + filepath.Base(file.Name)
	dst := filepath.Join(dir, name)

	out, err := os.Create(dst)
	if err != nil {
		return Object{}, UpstreamError{Op: "upload", Err: err}
	}
	n, err := io.Copy(out, file.Reader)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return Object{}, UpstreamError{Op: "upload", Err: err}
	}

	url := s.PublicBaseURL + "/" + container + "/" + name
	return Object{
		ID:          id,
		Name:        file.Name,
		ContentType: file.ContentType,
		SizeBytes:   n,
		ViewURL:     url,
		DownloadURL: url + "?download=1",
	}, nil
}
