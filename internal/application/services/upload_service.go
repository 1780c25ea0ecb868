package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/infrastructure/logger"
	"github.com/storefront/core/internal/infrastructure/metrics"
)

// UploadService stores uploaded files in a single directory
type UploadService struct {
	dir      string
	maxBytes int64
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewUploadService creates a new upload service
func NewUploadService(dir string, maxBytes int64, m *metrics.Metrics, logger *logger.Logger) *UploadService {
	return &UploadService{
		dir:      dir,
		maxBytes: maxBytes,
		metrics:  m,
		logger:   logger.WithComponent("upload_service"),
	}
}

// Save writes content under the base name of filename and returns the stored path.
// An existing file is never overwritten.
func (s *UploadService) Save(ctx context.Context, filename string, content io.Reader) (string, error) {
	path, err := s.save(ctx, filename, content)
	switch {
	case err == nil:
		s.metrics.Uploaded("stored")
		s.logger.Infow("File uploaded", "path", path)
	case errors.Is(err, entities.ErrFileExists):
		s.metrics.Uploaded("conflict")
	default:
		s.metrics.Uploaded("rejected")
		s.logger.Warnw("Upload rejected", "filename", filename, "error", err)
	}
	return path, err
}

func (s *UploadService) save(ctx context.Context, filename string, content io.Reader) (string, error) {
	name, err := SanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// O_EXCL makes the existence check and the create a single step.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return path, fmt.Errorf("%w: %s", entities.ErrFileExists, path)
	}
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}

	src := content
	if s.maxBytes > 0 {
		src = io.LimitReader(content, s.maxBytes+1)
	}

	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = fmt.Errorf("%w: limit is %d bytes", entities.ErrFileTooLarge, s.maxBytes)
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, entities.ErrFileTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write upload: %w", err)
	}

	return path, nil
}

// SanitizeFilename keeps only the final path element of a client-supplied name
func SanitizeFilename(filename string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", entities.ErrInvalidFilename, filename)
	}
	return name, nil
}
