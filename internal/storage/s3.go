package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"

	"github.com/accp-conference/api/internal/config"
)

// Destination classifies an upload and selects its key prefix
type Destination string

const (
	DestinationVerification Destination = "verification"
	DestinationAbstract     Destination = "abstract"
)

var (
	ErrNotConfigured       = errors.New("storage not configured")
	ErrFolderNotConfigured = errors.New("storage folder not configured")
)

// ConfigError names the missing setting. It never carries the value of any
// setting, so it is safe to log.
type ConfigError struct {
	Setting string
	Folder  bool
}

func (e *ConfigError) Error() string {
	if e.Folder {
		return fmt.Sprintf("storage folder not configured: %s is empty", e.Setting)
	}
	return fmt.Sprintf("storage not configured: %s is empty", e.Setting)
}

func (e *ConfigError) Is(target error) bool {
	switch target {
	case ErrNotConfigured:
		return true
	case ErrFolderNotConfigured:
		return e.Folder
	}
	return false
}

// Store wraps S3 operations for document uploads and reviewer access.
// A Store built from incomplete settings is still usable: every operation
// reports the missing setting as a *ConfigError.
type Store struct {
	client        *s3.Client
	presigner     *s3.PresignClient
	bucket        string
	region        string
	endpoint      string
	publicBaseURL string
	prefixes      map[Destination]string
	prefixEnv     map[Destination]string
	missing       string
}

// New creates a Store. When cfg.Endpoint is set (LocalStack, MinIO) it
// overrides the endpoint and enables path-style addressing.
func New(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	s := &Store{
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		prefixes: map[Destination]string{
			DestinationVerification: strings.Trim(cfg.VerificationPrefix, "/"),
			DestinationAbstract:     strings.Trim(cfg.AbstractPrefix, "/"),
		},
		prefixEnv: map[Destination]string{
			DestinationVerification: "STORAGE_VERIFICATION_FOLDER",
			DestinationAbstract:     "STORAGE_ABSTRACT_FOLDER",
		},
	}

	switch {
	case cfg.Bucket == "":
		s.missing = "STORAGE_BUCKET"
	case cfg.Region == "":
		s.missing = "STORAGE_REGION"
	case cfg.AccessKeyID == "":
		s.missing = "STORAGE_ACCESS_KEY_ID"
	case cfg.SecretAccessKey == "":
		s.missing = "STORAGE_SECRET_ACCESS_KEY"
	}
	if s.missing != "" {
		return s, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if s.endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s.endpoint)
			o.UsePathStyle = true
		})
	}

	s.client = s3.NewFromConfig(awsCfg, clientOpts...)
	s.presigner = s3.NewPresignClient(s.client)
	return s, nil
}

// Check reports whether uploads to dest can succeed with the current settings
func (s *Store) Check(dest Destination) error {
	if s.missing != "" {
		return &ConfigError{Setting: s.missing}
	}
	env, known := s.prefixEnv[dest]
	if !known {
		return fmt.Errorf("unknown upload destination %q", dest)
	}
	if s.prefixes[dest] == "" {
		return &ConfigError{Setting: env, Folder: true}
	}
	return nil
}

// Upload stores body under a fresh key for dest and returns the durable URL
func (s *Store) Upload(ctx context.Context, dest Destination, filename string, body io.Reader, size int64, contentType string) (string, error) {
	if err := s.Check(dest); err != nil {
		return "", err
	}

	key := NewObjectKey(s.prefixes[dest], filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}

	return s.URL(key), nil
}

// PresignedURL returns a time-limited GET URL for a document previously
// returned by Upload. URLs that do not point into this bucket are returned
// unchanged.
func (s *Store) PresignedURL(ctx context.Context, rawURL string, ttl time.Duration) (string, error) {
	if s.missing != "" {
		return "", &ConfigError{Setting: s.missing}
	}

	key, ok := s.ObjectKey(rawURL)
	if !ok {
		return rawURL, nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}
	return req.URL, nil
}

// URL returns the durable address of key
func (s *Store) URL(key string) string {
	return s.baseURL() + "/" + key
}

// ObjectKey maps a durable URL back to its object key
func (s *Store) ObjectKey(rawURL string) (string, bool) {
	base := s.baseURL() + "/"
	if !strings.HasPrefix(rawURL, base) {
		return "", false
	}
	key := strings.TrimPrefix(rawURL, base)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	return key, key != ""
}

func (s *Store) baseURL() string {
	switch {
	case s.publicBaseURL != "":
		return s.publicBaseURL
	case s.endpoint != "":
		return s.endpoint + "/" + s.bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.bucket, s.region)
	}
}

// NewObjectKey builds "<prefix>/<ulid>-<sanitized filename>". ULIDs sort by
// creation time, so a listing of a prefix is chronological.
func NewObjectKey(prefix, filename string) string {
	id := ulid.MustNew(ulid.Now(), rand.Reader).String()
	return path.Join(prefix, id+"-"+SanitizeFilename(filename))
}

// SanitizeFilename keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with an underscore
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." && result != ".." {
		return result
	}
	return "_"
}
