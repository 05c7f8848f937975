package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"greening/internal/logger"
)

type S3Options struct {
	Region     string
	Bucket     string
	Prefix     string
	Endpoint   string // R2/MinIO; пусто для AWS
	AccessKey  string
	SecretKey  string
	PublicRead bool
	PublicBase string
}

// S3Store: S3-совместимое хранилище (Cloudflare R2, MinIO, AWS).
type S3Store struct {
	client     *s3.Client
	bucket     string
	prefix     string
	publicRead bool
	urls
}

func NewS3(ctx context.Context, o S3Options) (*S3Store, error) {
	region := o.Region
	if region == "" {
		region = "auto"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if o.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(opts *s3.Options) {
		if o.Endpoint != "" {
			opts.BaseEndpoint = aws.String(o.Endpoint)
			opts.UsePathStyle = true
		}
	})
	return &S3Store{
		client:     client,
		bucket:     o.Bucket,
		prefix:     strings.Trim(o.Prefix, "/"),
		publicRead: o.PublicRead,
		urls:       urls{base: o.PublicBase},
	}, nil
}

func (s *S3Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	key = s.fullKey(key)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if size > 0 {
		in.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if s.publicRead {
		in.ACL = types.ObjectCannedACLPublicRead
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Delete удаляет объект и проверяет HEAD'ом, что его действительно нет.
func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, ok := s.Key(url)
	if !ok {
		return fmt.Errorf("url %q is not served by this store", url)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	if still, err := s.Exists(ctx, url); err != nil {
		logger.Warn("s3 head after delete %s: %v", key, err)
	} else if still {
		logger.Warn("s3 object still exists after delete: %s", key)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, url string) (bool, error) {
	key, ok := s.Key(url)
	if !ok {
		return false, nil
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return false, nil
	}
	return false, err
}

func (s *S3Store) Close() error { return nil }
