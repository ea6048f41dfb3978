package s3

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeClient is an in-memory bucket set that pages listings by maxKeys.
type fakeClient struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	maxKeys int
}

func newFakeClient(buckets ...string) *fakeClient {
	f := &fakeClient{buckets: map[string]map[string][]byte{}, maxKeys: 2}
	for _, b := range buckets {
		f.buckets[b] = map[string][]byte{}
	}
	return f
}

func (f *fakeClient) bucket(name *string) (map[string][]byte, error) {
	b, ok := f.buckets[aws.ToString(name)]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	return b, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	v, ok := b[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(bytes.Clone(v)))}, nil
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	b[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	delete(b, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[aws.ToString(in.Bucket)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeClient) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[aws.ToString(in.Bucket)]; ok {
		return nil, &types.BucketAlreadyOwnedByYou{}
	}
	f.buckets[aws.ToString(in.Bucket)] = map[string][]byte{}
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}

	var names []string
	for k := range b {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			names = append(names, k)
		}
	}
	slices.Sort(names)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(names) > f.maxKeys {
		names = names[:f.maxKeys]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(names[len(names)-1])
	}
	for _, n := range names {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(n)})
	}
	return out, nil
}

var _ Client = (*fakeClient)(nil)
