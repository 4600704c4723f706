package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	errs "github.com/trustdev-org/calendar-diary/internal/errors"
	"github.com/trustdev-org/calendar-diary/internal/models"
)

// s3API is the subset of the S3 client used by S3. Extracted for
// testability.
type s3API interface {
	HeadBucket(ctx context.Context, input *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, input *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3 is a Store backed by an S3-compatible bucket. Directories are
// implicit: Mkdir is a no-op and a directory exists while any key lives
// under it.
type S3 struct {
	client s3API
	bucket string
	prefix string
}

var _ Store = (*S3)(nil)

// NewS3 creates an S3 store using static credentials and path-style
// addressing, which most self-hosted S3 servers require.
func NewS3(cfg S3Config) *S3 {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return newS3WithClient(s3.New(opts), cfg.Bucket, cfg.Prefix)
}

func newS3WithClient(client s3API, bucket, prefix string) *S3 {
	return &S3{
		client: client,
		bucket: bucket,
		prefix: clean(prefix),
	}
}

func (s *S3) key(p string) string {
	return clean(path.Join(s.prefix, clean(p)))
}

// Stat returns metadata for an object or implicit directory. The root
// path checks that the bucket is reachable.
func (s *S3) Stat(ctx context.Context, p string) (models.RemoteEntry, error) {
	p = clean(p)

	if p == "" {
		if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
			return models.RemoteEntry{}, fmt.Errorf("checking bucket %s: %w", s.bucket, err)
		}

		return models.RemoteEntry{Name: s.bucket, IsDir: true}, nil
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err == nil {
		return models.RemoteEntry{
			Path:    p,
			Name:    path.Base(p),
			Size:    aws.ToInt64(out.ContentLength),
			ModTime: aws.ToTime(out.LastModified),
		}, nil
	}

	if !isS3NotFound(err) {
		return models.RemoteEntry{}, fmt.Errorf("stat %s: %w", p, err)
	}

	list, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.key(p) + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return models.RemoteEntry{}, fmt.Errorf("stat %s: %w", p, err)
	}

	if len(list.Contents) == 0 {
		return models.RemoteEntry{}, fmt.Errorf("stat %s: %w", p, errs.ErrNotFound)
	}

	return models.RemoteEntry{Path: p, Name: path.Base(p), IsDir: true}, nil
}

// Read returns the content of an object.
func (s *S3) Read(ctx context.Context, p string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return nil, mapS3Error("read", p, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}

	return data, nil
}

// Write stores an object. With overwrite false the put is conditional on
// the key not existing, which S3 enforces server-side.
func (s *S3) Write(ctx context.Context, p string, data []byte, overwrite bool) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(p)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	}
	if !overwrite {
		input.IfNoneMatch = aws.String("*")
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		if isS3PreconditionFailed(err) {
			return fmt.Errorf("write %s: %w", p, errs.ErrWriteConflict)
		}

		return fmt.Errorf("write %s: %w", p, err)
	}

	return nil
}

// List returns the direct children of dir. An empty or absent directory
// yields an empty list.
func (s *S3) List(ctx context.Context, dir string) ([]models.RemoteEntry, error) {
	dir = clean(dir)

	prefix := s.key(dir)
	if prefix != "" {
		prefix += "/"
	}

	var (
		entries []models.RemoteEntry
		token   *string
	)

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}

		for _, cp := range out.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			entries = append(entries, models.RemoteEntry{
				Path:  clean(path.Join(dir, name)),
				Name:  name,
				IsDir: true,
			})
		}

		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue
			}

			entries = append(entries, models.RemoteEntry{
				Path:    clean(path.Join(dir, name)),
				Name:    name,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}

		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}

		token = out.NextContinuationToken
	}

	return entries, nil
}

// Delete removes an object.
func (s *S3) Delete(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return mapS3Error("delete", p, err)
	}

	return nil
}

// Mkdir is a no-op: S3 directories exist implicitly.
func (s *S3) Mkdir(context.Context, string) error {
	return nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}

	return false
}

func isS3PreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}

	return false
}

func mapS3Error(op, p string, err error) error {
	if isS3NotFound(err) {
		return fmt.Errorf("%s %s: %w", op, p, errs.ErrNotFound)
	}

	return fmt.Errorf("%s %s: %w", op, p, err)
}
