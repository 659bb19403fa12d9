// Package upload validates and stores user-submitted images.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrNoFilename   = errors.New("no image file selected")
	ErrInvalidType  = errors.New("invalid file type")
	ErrTooLarge     = errors.New("image exceeds maximum upload size")
	ErrNotAnImage   = errors.New("file content is not a decodable image")
	ErrInvalidName  = errors.New("invalid filename")
	ErrFileNotFound = errors.New("file not found")
)

// AllowedExtensions lists accepted file extensions, without the dot.
var AllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "bmp", "tiff", "webp"}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store validates images and writes them under a root directory.
type Store struct {
	dir      string
	maxBytes int64
}

func NewStore(dir string, maxBytes int64) *Store {
	return &Store{dir: dir, maxBytes: maxBytes}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Allowed reports whether filename carries an accepted extension.
func Allowed(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// SanitizeName strips directory components and characters outside [A-Za-z0-9._-].
func SanitizeName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	return name
}

// Validate checks name, extension, size and that data decodes as an image.
// It returns the decoded format name.
func (s *Store) Validate(filename string, data []byte) (string, error) {
	if filename == "" {
		return "", ErrNoFilename
	}
	if !Allowed(filename) {
		return "", ErrInvalidType
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), s.maxBytes)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	return format, nil
}

// Save validates data and writes it as "<uuid>_<sanitized name>".
// It returns the stored name, relative to the upload directory.
func (s *Store) Save(filename string, data []byte) (string, error) {
	if _, err := s.Validate(filename, data); err != nil {
		return "", err
	}

	clean := SanitizeName(filename)
	if clean == "" || !Allowed(clean) {
		return "", ErrInvalidName
	}
	name := fmt.Sprintf("%s_%s", uuid.New(), clean)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return name, nil
}

// Resolve maps a stored name to its absolute path, refusing anything that
// would escape the upload directory.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", ErrInvalidName
	}

	root, err := filepath.Abs(s.dir)
	if err != nil {
		return "", fmt.Errorf("resolve upload dir: %w", err)
	}
	p := filepath.Join(root, name)
	if !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return "", ErrInvalidName
	}

	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", ErrFileNotFound
	}
	return p, nil
}

// Remove deletes a stored image. A missing file is not an error.
func (s *Store) Remove(name string) error {
	p, err := s.Resolve(name)
	if errors.Is(err, ErrFileNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}
