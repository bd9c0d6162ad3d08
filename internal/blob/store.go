// Package blob stores original documents behind a storage URL (file://, mem://, s3:// ...).
package blob

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/joseph-ayodele/waste-pipeline/internal/common"
)

// Store reads and writes document bytes.
type Store interface {
	Download(ctx context.Context, path string) ([]byte, error)
	Upload(ctx context.Context, path string, data []byte) (string, error)
}

// AFSStore resolves relative paths against a base URL.
type AFSStore struct {
	fs      afs.Service
	baseURL string
	logger  *slog.Logger
}

func NewAFSStore(baseURL string, logger *slog.Logger) *AFSStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AFSStore{fs: afs.New(), baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// URL returns path unchanged when it is already absolute, otherwise joined to the base URL.
func (s *AFSStore) URL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return url.Join(s.baseURL, strings.TrimLeft(path, "/"))
}

func (s *AFSStore) Download(ctx context.Context, path string) ([]byte, error) {
	u := s.URL(path)
	ok, err := s.fs.Exists(ctx, u)
	if err != nil {
		s.logger.Error("blob.download.failed", "url", u, "error", err)
		return nil, common.Errorf("BLOB_DOWNLOAD", common.ErrInternal, "check %s: %v", u, err)
	}
	if !ok {
		return nil, common.Errorf("BLOB_NOT_FOUND", common.ErrNotFound, "blob %s", u)
	}
	data, err := s.fs.DownloadWithURL(ctx, u)
	if err != nil {
		s.logger.Error("blob.download.failed", "url", u, "error", err)
		return nil, common.Errorf("BLOB_DOWNLOAD", common.ErrInternal, "download %s: %v", u, err)
	}
	s.logger.Debug("blob.download.ok", "url", u, "bytes", len(data))
	return data, nil
}

func (s *AFSStore) Upload(ctx context.Context, path string, data []byte) (string, error) {
	u := s.URL(path)
	if err := s.fs.Upload(ctx, u, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		s.logger.Error("blob.upload.failed", "url", u, "error", err)
		return "", common.Errorf("BLOB_UPLOAD", common.ErrInternal, "upload %s: %v", u, err)
	}
	s.logger.Debug("blob.upload.ok", "url", u, "bytes", len(data))
	return u, nil
}
