package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/accp-conference/api/internal/storage"
)

// DefaultMaxFileSize is 10 MiB
const DefaultMaxFileSize int64 = 10 << 20

var (
	ErrMissingFile = errors.New("no file uploaded")
	ErrInvalidType = errors.New("invalid file type")
	ErrTooLarge    = errors.New("file too large")
)

var allowedTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/jpg",
	"image/png",
}

// ObjectStore persists validated files
type ObjectStore interface {
	Upload(ctx context.Context, dest storage.Destination, filename string, body io.Reader, size int64, contentType string) (string, error)
}

// Result is returned to the uploader
type Result struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Service validates uploads and hands them to storage
type Service struct {
	store   ObjectStore
	maxSize int64
}

func NewService(store ObjectStore, maxSize int64) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Service{store: store, maxSize: maxSize}
}

// MaxSize is the largest accepted file in bytes
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// Upload checks the declared type, reads at most maxSize bytes, checks the
// sniffed type and stores the file. Nothing reaches storage unless every
// check passes.
func (s *Service) Upload(ctx context.Context, dest storage.Destination, filename, declaredType string, r io.Reader) (*Result, error) {
	if !allowed(declaredType) {
		return nil, fmt.Errorf("%w: declared %q", ErrInvalidType, declaredType)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrTooLarge
	}

	detected := mimetype.Detect(data)
	if !sniffedAllowed(detected) {
		return nil, fmt.Errorf("%w: content is %s", ErrInvalidType, detected.String())
	}

	url, err := s.store.Upload(ctx, dest, filename, bytes.NewReader(data), int64(len(data)), detected.String())
	if err != nil {
		return nil, err
	}

	return &Result{URL: url, Filename: filename}, nil
}

func allowed(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	mediaType = strings.ToLower(mediaType)
	for _, t := range allowedTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

func sniffedAllowed(m *mimetype.MIME) bool {
	for _, t := range allowedTypes {
		if m.Is(t) {
			return true
		}
	}
	return false
}
