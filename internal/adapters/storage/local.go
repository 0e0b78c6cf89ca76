// Package storage keeps uploaded images on the local filesystem.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Registered for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/google/uuid"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
)

// DefaultMaxBytes is the upload size cap when none is configured.
const DefaultMaxBytes int64 = 10 << 20

var (
	// ErrEmptyFile is returned for zero-length uploads.
	ErrEmptyFile = errors.New("uploaded file is empty")
	// ErrFileTooLarge is returned when an upload exceeds the size cap.
	ErrFileTooLarge = errors.New("uploaded file is too large")
	// ErrUnsupportedType is returned when the content is not an allowed image format.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrOutsideStore is returned when asked to remove a path the store does not own.
	ErrOutsideStore = errors.New("path is outside the upload directory")
)

// formats maps image.DecodeConfig format names to MIME type and canonical extension.
var formats = map[string]struct{ mime, ext string }{
	"jpeg": {"image/jpeg", ".jpg"},
	"png":  {"image/png", ".png"},
	"gif":  {"image/gif", ".gif"},
	"webp": {"image/webp", ".webp"},
	"bmp":  {"image/bmp", ".bmp"},
	"tiff": {"image/tiff", ".tiff"},
}

var knownExts = map[string]string{
	".jpg": "jpeg", ".jpeg": "jpeg", ".png": "png", ".gif": "gif",
	".webp": "webp", ".bmp": "bmp", ".tif": "tiff", ".tiff": "tiff",
}

// LocalStoreOptions configures a LocalStore.
type LocalStoreOptions struct {
	Dir      string
	MaxBytes int64
	Logger   *slog.Logger
}

// LocalStore is a core.FileStore rooted at one directory.
type LocalStore struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(opts LocalStoreOptions) (*LocalStore, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("upload directory is required")
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{dir: dir, maxBytes: maxBytes, logger: logger.With("component", "upload_store")}, nil
}

// Dir returns the absolute upload directory.
func (s *LocalStore) Dir() string { return s.dir }

// Save validates the upload by content, writes it under a random name and returns its metadata.
func (s *LocalStore) Save(ctx context.Context, upload core.Upload) (*model.FileInfo, error) {
	if upload.Body == nil {
		return nil, ErrEmptyFile
	}
	if upload.Size > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, upload.Size, s.maxBytes)
	}
	data, err := io.ReadAll(io.LimitReader(upload.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	switch {
	case len(data) == 0:
		return nil, ErrEmptyFile
	case int64(len(data)) > s.maxBytes:
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, s.maxBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	f, ok := formats[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, format)
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if knownExts[ext] != format {
		ext = f.ext
	}
	path := filepath.Join(s.dir, uuid.NewString()+ext)
	if err := writeAtomic(s.dir, path, data); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	info := &model.FileInfo{
		FilePath:         path,
		FileSize:         int64(len(data)),
		FileType:         f.mime,
		Dimensions:       &model.Dimensions{Width: cfg.Width, Height: cfg.Height},
		FileHash:         hex.EncodeToString(sum[:]),
		OriginalFilename: filepath.Base(upload.Filename),
	}
	s.logger.InfoContext(ctx, "stored upload", "path", path, "size", info.FileSize, "type", info.FileType)
	return info, nil
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move upload into place: %w", err)
	}
	return nil
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (s *LocalStore) Remove(_ context.Context, path string) error {
	abs, err := s.owned(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

func (s *LocalStore) owned(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(s.dir, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideStore, path)
	}
	return abs, nil
}

// PruneOlderThan removes stored files last modified before cutoff and returns how many were removed.
func (s *LocalStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("list upload directory: %w", err)
	}
	var removed int
	var errs []error
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "pruned uploads", "count", removed, "cutoff", cutoff)
	}
	return removed, errors.Join(errs...)
}

var _ core.FileStore = (*LocalStore)(nil)
