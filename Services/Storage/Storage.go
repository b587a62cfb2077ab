package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxPhotoBytes caps uploaded images at 2MB.
const MaxPhotoBytes = 2 * 1024 * 1024

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

var ErrNotAnImage = errors.New("Only image files are allowed (jpg, png, webp, gif)")

// Storage saves uploaded images into a single flat directory served under
// /uploads.
type Storage struct {
	Dir string
}

func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Storage{Dir: dir}, nil
}

// SavePhoto validates and stores an uploaded image, returning the stored
// filename: <epoch-ms>-<random>.<ext>.
func (s *Storage) SavePhoto(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] || !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		return "", ErrNotAnImage
	}

	filename := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), randomString(9), ext)
	dst, err := os.Create(filepath.Join(s.Dir, filename))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}
	return filename, nil
}

// Remove deletes a stored file best-effort; a missing file is not an error.
func (s *Storage) Remove(filename string) error {
	if filename == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, filename))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PublicURL builds the absolute URL a stored file is served at.
func PublicURL(r *http.Request, filename string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return fmt.Sprintf("%s://%s/uploads/%s", scheme, r.Host, filename)
}

// ExtractUploadFilename recovers the stored filename from a profile picture
// value, but only when it points into the uploads path. External URLs return
// an empty string so they are never unlinked.
func ExtractUploadFilename(value string) string {
	if value == "" {
		return ""
	}
	if parsed, err := url.Parse(value); err == nil && strings.HasPrefix(parsed.Path, "/uploads/") {
		return path.Base(parsed.Path)
	}
	if strings.HasPrefix(value, "/uploads/") {
		return path.Base(value)
	}
	return ""
}

func randomString(length int) string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:length]
}
