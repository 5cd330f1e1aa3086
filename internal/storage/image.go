// Package storage validates uploaded event images and keeps them on disk.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("image exceeds the upload size limit")
	ErrUnsupportedType = errors.New("image type not supported")
	ErrEmpty           = errors.New("image is empty")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Image is a validated upload.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// ReadImage reads at most maxBytes from r and sniffs the content type. The
// client-declared type is ignored.
func ReadImage(r io.Reader, maxBytes int64) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return Image{}, ErrEmpty
	}
	if int64(len(data)) > maxBytes {
		return Image{}, ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	return Image{Data: data, ContentType: contentType, Ext: ext}, nil
}

// ImageStore persists images and returns the URL they are served from.
type ImageStore interface {
	Save(ctx context.Context, img Image) (string, error)
	Delete(ctx context.Context, url string) error
}

// LocalImageStore writes files under dir, served by the router at baseURL.
type LocalImageStore struct {
	dir     string
	baseURL string
}

func NewLocalImageStore(dir, baseURL string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalImageStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalImageStore) Dir() string { return s.dir }

func (s *LocalImageStore) Save(ctx context.Context, img Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + img.Ext
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(f, bytes.NewReader(img.Data)); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close image file: %w", err)
	}

	return s.baseURL + "/" + name, nil
}

// Delete removes an image previously returned by Save. URLs that do not
// belong to this store are ignored.
func (s *LocalImageStore) Delete(_ context.Context, url string) error {
	name, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || name == "" || name != filepath.Base(name) {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete image file: %w", err)
	}
	return nil
}
