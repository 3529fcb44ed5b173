package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mbd888/tariffdesk/internal/tariff"
)

// S3Config holds credentials for S3-compatible storage.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
}

// ObjectReader is the slice of an S3 client the source needs.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, key string) (io.ReadCloser, string, error)
}

// MinioReader adapts a minio client to ObjectReader.
type MinioReader struct {
	client *minio.Client
}

// NewS3Client builds a minio client. No request is made until the first
// fetch.
func NewS3Client(cfg S3Config) (*MinioReader, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("source: S3_ENDPOINT is required for s3:// locations")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init S3 client: %w", err)
	}
	return &MinioReader{client: client}, nil
}

// ReadObject opens the object and returns its content type.
func (m *MinioReader) ReadObject(ctx context.Context, bucket, key string) (io.ReadCloser, string, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", translateS3Error(err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, "", translateS3Error(err)
	}
	return obj, info.ContentType, nil
}

func translateS3Error(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	return err
}

// S3Source reads a document from one bucket object.
type S3Source struct {
	reader ObjectReader
	bucket string
	key    string
}

// NewS3Source creates an S3 source
func NewS3Source(reader ObjectReader, bucket, key string) *S3Source {
	return &S3Source{reader: reader, bucket: bucket, key: key}
}

func (s *S3Source) Name() string { return "s3://" + s.bucket + "/" + s.key }
func (s *S3Source) Kind() string { return "s3" }

// Fetch downloads the object.
func (s *S3Source) Fetch(ctx context.Context) (*Document, error) {
	body, contentType, err := s.reader.ReadObject(ctx, s.bucket, s.key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.Name(), err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Name(), translateS3Error(err))
	}
	format := tariff.FormatFromPath(s.key)
	if strings.Contains(contentType, "yaml") {
		format = tariff.FormatYAML
	}
	return &Document{Data: data, Format: format}, nil
}
