package s3

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client defines the S3 operations used by Store.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	httpClient    *http.Client
	client        Client
	configOptions []func(*config.LoadOptions) error
	clientOptions []func(*s3.Options)
	listPageSize  int32
}

// WithClient sets a pre-configured client. Useful for testing with mocks.
func WithClient(client Client) Option {
	return func(o *storeOptions) {
		o.client = client
	}
}

// WithHTTPClient sets a custom HTTP client for S3 requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *storeOptions) {
		o.httpClient = client
	}
}

// WithConfigOption adds a custom AWS config option.
func WithConfigOption(option func(*config.LoadOptions) error) Option {
	return func(o *storeOptions) {
		o.configOptions = append(o.configOptions, option)
	}
}

// WithClientOption adds a custom S3 client option.
func WithClientOption(option func(*s3.Options)) Option {
	return func(o *storeOptions) {
		o.clientOptions = append(o.clientOptions, option)
	}
}

// WithListPageSize sets the page size used while iterating.
func WithListPageSize(n int32) Option {
	return func(o *storeOptions) {
		o.listPageSize = n
	}
}
