package s3

import "errors"

var (
	ErrInvalidConfig      = errors.New("invalid s3 configuration")
	ErrFailedToLoadConfig = errors.New("failed to load aws config")
	ErrBucketNotFound     = errors.New("bucket not found")
)
