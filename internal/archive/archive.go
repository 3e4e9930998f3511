// Package archive uploads zstd-compressed exports of archived letters to S3.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/zstd"

	"penpal/internal/types"
)

// S3Putter abstracts the S3 PutObject operation for testability.
// Production code uses the *s3.Client from aws-sdk-go-v2.
type S3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader compresses payloads with zstd and stores them in one bucket.
type S3Uploader struct {
	client S3Putter
	bucket string
	logger *slog.Logger

	encoderPool sync.Pool
}

// NewS3Uploader creates an uploader writing to bucket.
func NewS3Uploader(client S3Putter, bucket string, logger *slog.Logger) *S3Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Uploader{
		client: client,
		bucket: bucket,
		logger: logger,
		encoderPool: sync.Pool{
			New: func() any {
				e, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
				if err != nil {
					// This should never fail with nil output and default options.
					panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
				}
				return e
			},
		},
	}
}

// UploadArchive compresses data and stores it under key in the infrequent
// access tier.
func (u *S3Uploader) UploadArchive(ctx context.Context, key string, data []byte) error {
	compressed := u.compress(data)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(u.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(compressed),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("zstd"),
		StorageClass:    s3types.StorageClassStandardIa,
	})
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamUnavailable,
			"failed to upload letter archive", err,
			map[string]any{"bucket": u.bucket, "key": key})
	}

	u.logger.InfoContext(ctx, "letter archive uploaded",
		"bucket", u.bucket,
		"key", key,
		"raw_bytes", len(data),
		"compressed_bytes", len(compressed),
	)
	return nil
}

func (u *S3Uploader) compress(data []byte) []byte {
	enc := u.encoderPool.Get().(*zstd.Encoder)
	defer u.encoderPool.Put(enc)
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2))
}
