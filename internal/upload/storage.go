// Package upload stores product and task images on local disk and validates
// incoming files before they are persisted.
package upload

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/pkg/config"
)

const sniffLen = 512

// Storage writes validated image uploads under a configured directory.
type Storage struct {
	dir     string
	maxSize int64
	log     *slog.Logger
}

func NewStorage(cfg config.UploadsConfig, log *slog.Logger) (*Storage, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}

	return &Storage{
		dir:     cfg.Dir,
		maxSize: cfg.MaxSizeBytes,
		log:     log,
	}, nil
}

// Dir reports the directory uploads are served from.
func (s *Storage) Dir() string {
	return s.dir
}

// SaveImage validates and stores one uploaded image. The returned name is
// unique, carries the given prefix and keeps the original extension.
func (s *Storage) SaveImage(fh *multipart.FileHeader, prefix string) (string, error) {
	if fh == nil {
		return "", apperrors.NewValidationError("image file is required")
	}

	if s.maxSize > 0 && fh.Size > s.maxSize {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("image exceeds maximum size of %d bytes", s.maxSize))
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read uploaded file: %w", err)
	}
	head = head[:n]

	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", apperrors.NewValidationError("file is not an image")
	}

	name := fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), sanitizeExt(fh.Filename))
	path := filepath.Join(s.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := dst.Write(head); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}

	s.log.Info("stored uploaded image",
		slog.String("file", name),
		slog.Int64("size", fh.Size),
	)

	return name, nil
}

// Remove deletes a previously stored file. Missing files are not an error.
func (s *Storage) Remove(name string) error {
	if name == "" {
		return nil
	}

	// The name may come from the database, keep it inside the uploads dir.
	clean := filepath.Base(name)
	if err := os.Remove(filepath.Join(s.dir, clean)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload file: %w", err)
	}

	return nil
}

func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return ext
	default:
		return ".png"
	}
}
