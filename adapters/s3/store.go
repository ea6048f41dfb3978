package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/codewandler/lrukv-go/internal/keyenc"
	"github.com/codewandler/lrukv-go/ports/kv"
)

// Store keeps one object per key in a bucket. Object names are the
// hex-encoded key under the configured prefix, so listing returns keys in
// byte order.
type Store struct {
	client   Client
	bucket   string
	prefix   string
	pageSize int32
	log      *slog.Logger
}

// NewStore opens bucket. With createIfMissing the bucket is created when
// absent, otherwise a missing bucket yields ErrBucketNotFound.
func NewStore(ctx context.Context, cfg Config, bucket string, createIfMissing bool, opts ...Option) (*Store, error) {
	if bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	options := &storeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	client := options.client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}
		if options.httpClient != nil {
			awsOptions = append(awsOptions, config.WithHTTPClient(options.httpClient))
		}
		awsOptions = append(awsOptions, options.configOptions...)

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToLoadConfig, err)
		}

		client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
			for _, opt := range options.clientOptions {
				opt(o)
			}
		})
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	s := &Store{
		client:   client,
		bucket:   bucket,
		prefix:   cfg.Prefix,
		pageSize: options.listPageSize,
		log:      log.With(slog.String("bucket", bucket)),
	}
	if err := s.ensureBucket(ctx, cfg.Region, createIfMissing); err != nil {
		return nil, err
	}
	return s, nil
}

// Opener opens the bucket named by location.
func Opener(cfg Config, opts ...Option) kv.Opener {
	return func(ctx context.Context, location string, createIfMissing bool) (kv.Store, error) {
		return NewStore(ctx, cfg, location, createIfMissing, opts...)
	}
}

func (s *Store) ensureBucket(ctx context.Context, region string, create bool) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !isBucketMissing(err) {
		return classifyError(err, "head bucket")
	}
	if !create {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, s.bucket)
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	_, err = s.client.CreateBucket(ctx, in)
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return classifyError(err, "create bucket")
	}
	s.log.Debug("bucket created")
	return nil
}

func (s *Store) objectKey(key string) string {
	return s.prefix + keyenc.Encode(key)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, classifyError(err, "get object")
	}
	defer func() { _ = out.Body.Close() }()

	value, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(value),
		ContentLength: aws.Int64(int64(len(value))),
		ContentType:   aws.String("application/octet-stream"),
	})
	return classifyError(err, "put object")
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	return classifyError(err, "delete object")
}

// Iterate lists the prefix page by page and fetches every object. Objects
// deleted while iterating are skipped.
func (s *Store) Iterate(ctx context.Context, fn func(key string, value []byte) bool) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}, func(o *s3.ListObjectsV2PaginatorOptions) {
		if s.pageSize > 0 {
			o.Limit = s.pageSize
		}
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return classifyError(err, "list objects")
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			key, err := keyenc.Decode(name)
			if err != nil {
				s.log.Warn("skipping foreign object", slog.String("key", aws.ToString(obj.Key)))
				continue
			}
			value, err := s.Get(ctx, key)
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !fn(key, value) {
				return nil
			}
		}
	}
	return nil
}

func isBucketMissing(err error) bool {
	var nf *types.NotFound
	var nsb *types.NoSuchBucket
	if errors.As(err, &nf) || errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}

// classifyError maps missing objects to kv.ErrNotFound and missing buckets
// to ErrBucketNotFound.
func classifyError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return kv.ErrNotFound
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, operation)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); code {
		case "NoSuchKey":
			return kv.ErrNotFound
		case "NoSuchBucket":
			return fmt.Errorf("%w: %s", ErrBucketNotFound, operation)
		default:
			return fmt.Errorf("%s failed (code: %s): %w", operation, code, err)
		}
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}

var (
	_ kv.Store    = (*Store)(nil)
	_ kv.Iterable = (*Store)(nil)
)
