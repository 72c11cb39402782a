package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"audioconv/internal/logging"
	"audioconv/internal/services"
)

// S3Options configures the S3 backend.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
	AccessKey string
	SecretKey string
}

// S3 stores values as objects under bucket/prefix/key.
type S3 struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

// NewS3 builds a session from static credentials when provided, falling back
// to the default AWS credential chain otherwise.
func NewS3(opts S3Options, logger *slog.Logger) (*S3, error) {
	if opts.Bucket == "" {
		return nil, services.Wrap(services.ErrConfiguration, "blob", "init", "s3 bucket is empty", nil)
	}
	awsCfg := &aws.Config{Region: aws.String(opts.Region)}
	if opts.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}
	if opts.Endpoint != "" {
		awsCfg.Endpoint = aws.String(opts.Endpoint)
	}
	if opts.PathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "blob", "init", "aws session", err)
	}
	return &S3{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
		logger:   logging.NewComponentLogger(logger, "blob"),
	}, nil
}

// Name identifies the bucket and prefix in logs and status output.
func (s *S3) Name() string { return "s3://" + path.Join(s.bucket, s.prefix) }

func (s *S3) objectKey(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if s.prefix == "" {
		return key, nil
	}
	return s.prefix + "/" + key, nil
}

// Put checks for an existing object before uploading. Keys are freshly
// generated job ids, so the check-then-put window is not contended.
func (s *S3) Put(ctx context.Context, key string, data []byte) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	switch {
	case err == nil:
		return services.Wrap(services.ErrConflict, "blob", "put", key, nil)
	case !isMissing(err):
		return services.Wrap(services.ErrTransient, "blob", "put", key, err)
	}
	return s.upload(ctx, "put", key, objectKey, data)
}

// Replace overwrites key. S3 only exposes the new object once the upload completes.
func (s *S3) Replace(ctx context.Context, key string, data []byte) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	return s.upload(ctx, "replace", key, objectKey, data)
}

// upload relies on PutObject atomicity: readers see the old or new object.
func (s *S3) upload(ctx context.Context, op, key, objectKey string, data []byte) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "blob", op, key, err)
	}
	s.logger.Debug("blob uploaded", logging.String("key", key), logging.String("op", op), logging.Int("bytes", len(data)))
	return nil
}

// Open implements Store.
func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isMissing(err) {
			return nil, services.Wrap(services.ErrNotFound, "blob", "open", key, nil)
		}
		return nil, services.Wrap(services.ErrTransient, "blob", "open", key, err)
	}
	return out.Body, nil
}

// Delete implements Store.
func (s *S3) Delete(ctx context.Context, key string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil && !isMissing(err) {
		return services.Wrap(services.ErrTransient, "blob", "delete", key, err)
	}
	return nil
}

// HealthCheck issues HeadBucket against the configured bucket.
func (s *S3) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return services.Wrap(services.ErrTransient, "blob", "health", s.bucket, err)
	}
	return nil
}

func isMissing(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	return false
}
