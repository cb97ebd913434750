package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Storage mirrors media into an S3-compatible bucket.
type S3Storage struct {
	client  *s3.Client
	bucket  string
	prefix  string
	tempDir string
}

// S3Config holds configuration for S3 storage.
type S3Config struct {
	Endpoint        string // for S3-compatible services like MinIO, B2
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	ForcePathStyle  bool // required for MinIO and some compatibles
	TempDir         string
}

func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	var awsConfig aws.Config
	var err error

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "")),
			config.WithRegion(cfg.Region),
		)
	} else {
		// Fall back to environment / IAM role credentials.
		awsConfig, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Storage{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		tempDir: cfg.TempDir,
	}, nil
}

func (s *S3Storage) buildKey(key string) string {
	if s.prefix == "" {
		return key
	}
	prefix := s.prefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + key
}

// Writer buffers to a temp file and uploads on Close, so a failed
// mirror never leaves a partial object.
func (s *S3Storage) Writer(key string) (io.WriteCloser, error) {
	tempFile, err := os.CreateTemp(s.tempDir, "mediagrab-s3-upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &s3Writer{
		storage:  s,
		key:      s.buildKey(key),
		tempFile: tempFile,
		tempPath: tempFile.Name(),
	}, nil
}

func (s *S3Storage) Reader(key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.buildKey(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	return result.Body, nil
}

func (s *S3Storage) Exists(key string) (bool, error) {
	_, err := s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.buildKey(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if object exists: %w", err)
	}
	return true, nil
}

func (s *S3Storage) Size(key string) (int64, error) {
	result, err := s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.buildKey(key)),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get object metadata: %w", err)
	}
	if result.ContentLength == nil {
		return 0, nil
	}
	return *result.ContentLength, nil
}

// SeekableReader seeks by reopening the object with a range request.
func (s *S3Storage) SeekableReader(key string) (ReadSeekCloser, error) {
	size, err := s.Size(key)
	if err != nil {
		return nil, err
	}
	return &s3SeekableReader{storage: s, key: s.buildKey(key), size: size}, nil
}

type s3Writer struct {
	storage  *S3Storage
	key      string
	tempFile *os.File
	tempPath string
	closed   bool
}

func (w *s3Writer) Write(p []byte) (n int, err error) {
	if w.closed {
		return 0, fmt.Errorf("cannot write to closed writer")
	}
	return w.tempFile.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer os.Remove(w.tempPath)

	if err := w.tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	file, err := os.Open(w.tempPath)
	if err != nil {
		return fmt.Errorf("failed to reopen temp file: %w", err)
	}
	defer file.Close()

	_, err = w.storage.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(w.storage.bucket),
		Key:    aws.String(w.key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object to S3: %w", err)
	}
	return nil
}

type s3SeekableReader struct {
	storage *S3Storage
	key     string
	pos     int64
	size    int64
	reader  io.ReadCloser
}

func (r *s3SeekableReader) Read(p []byte) (n int, err error) {
	if r.reader == nil {
		if err := r.openReader(); err != nil {
			return 0, err
		}
	}
	n, err = r.reader.Read(p)
	r.pos += int64(n)
	return n, err
}

func (r *s3SeekableReader) Seek(offset int64, whence int) (int64, error) {
	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}

	switch whence {
	case io.SeekStart:
		r.pos = offset
	case io.SeekCurrent:
		r.pos += offset
	case io.SeekEnd:
		r.pos = r.size + offset
	default:
		return 0, fmt.Errorf("invalid whence value")
	}

	if r.pos < 0 {
		r.pos = 0
	}
	if r.pos > r.size {
		r.pos = r.size
	}
	return r.pos, nil
}

func (r *s3SeekableReader) Close() error {
	if r.reader != nil {
		return r.reader.Close()
	}
	return nil
}

func (r *s3SeekableReader) openReader() error {
	var rangeHeader *string
	if r.pos > 0 {
		rangeHeader = aws.String(fmt.Sprintf("bytes=%d-", r.pos))
	}

	result, err := r.storage.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(r.storage.bucket),
		Key:    aws.String(r.key),
		Range:  rangeHeader,
	})
	if err != nil {
		return fmt.Errorf("failed to get object from S3: %w", err)
	}
	r.reader = result.Body
	return nil
}
