package s3

import "log/slog"

// Config contains configuration for S3 storage. The bucket is not part of
// it: Opener takes it from the location.
type Config struct {
	Log *slog.Logger `env:"-"` // Log for diagnostics (optional)

	Region         string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"S3_SECRET_KEY"`
	Endpoint       string `env:"S3_ENDPOINT"`         // Optional: for S3-compatible services
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE"` // For S3-compatible services like MinIO
	Prefix         string `env:"S3_PREFIX"`           // Prefix is prepended to every object key.
}
