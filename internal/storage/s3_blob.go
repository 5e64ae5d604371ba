package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/bobmcallan/snaptrail/internal/common"
)

// s3API is the subset of the S3 client used by S3BlobStore.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3BlobStore implements BlobStore on S3 or an S3-compatible service (MinIO, R2).
// Create relies on conditional writes (If-None-Match: *, If-Match for blank objects).
type S3BlobStore struct {
	client s3API
	bucket string
	prefix string
	logger *common.Logger
}

// NewS3BlobStore creates an S3 blob store from configuration.
// Static credentials are used when set, otherwise the default AWS chain.
func NewS3BlobStore(ctx context.Context, logger *common.Logger, cfg common.S3Config) (*S3BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 blob store bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	} else if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithRegion("auto"))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Debug().
		Str("bucket", cfg.Bucket).
		Str("prefix", cfg.Prefix).
		Str("endpoint", cfg.Endpoint).
		Msg("S3BlobStore initialized")

	return newS3BlobStoreWithClient(logger, client, cfg.Bucket, cfg.Prefix), nil
}

func newS3BlobStoreWithClient(logger *common.Logger, client s3API, bucket, prefix string) *S3BlobStore {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3BlobStore{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

func (s *S3BlobStore) objectKey(key string) string {
	return s.prefix + strings.TrimPrefix(key, "/")
}

// Get retrieves a blob by key.
func (s *S3BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) || statusCode(err) == http.StatusNotFound {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// Create uploads a blob only if no object exists at the key.
func (s *S3BlobStore) Create(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/x-ndjson"),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		if isConditionalWriteConflict(err) {
			return s.replaceBlank(ctx, key, data)
		}
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// replaceBlank overwrites an existing blank object, conditional on its ETag
// so a concurrent non-blank write is never clobbered.
func (s *S3BlobStore) replaceBlank(ctx context.Context, key string, data []byte) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return ErrBlobExists
	}
	existing, err := io.ReadAll(out.Body)
	out.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", key, err)
	}
	etag := aws.ToString(out.ETag)
	if !isBlank(existing) || etag == "" {
		return ErrBlobExists
	}

	s.logger.Warn().Str("key", key).Msg("Replacing blank object")
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/x-ndjson"),
		IfMatch:       aws.String(etag),
	})
	if err != nil {
		if isConditionalWriteConflict(err) {
			return ErrBlobExists
		}
		return fmt.Errorf("failed to replace object %s: %w", key, err)
	}
	return nil
}

// Exists checks if a non-blank object exists.
func (s *S3BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return false, nil
		}
		return false, err
	}
	return !isBlank(data), nil
}

// List returns blobs matching the given options.
func (s *S3BlobStore) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(opts.Prefix)),
	})

	var blobs []BlobMetadata
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			blobs = append(blobs, BlobMetadata{
				Key:          strings.TrimPrefix(aws.ToString(obj.Key), s.prefix),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Key < blobs[j].Key })

	result := &ListResult{Blobs: blobs}
	if opts.MaxKeys > 0 && len(blobs) > opts.MaxKeys {
		result.Blobs = blobs[:opts.MaxKeys]
		result.Truncated = true
	}
	return result, nil
}

// Close releases resources (the S3 client holds none).
func (s *S3BlobStore) Close() error {
	return nil
}

// isConditionalWriteConflict reports a failed If-None-Match precondition.
// S3 answers 412 when the object exists and 409 when a concurrent
// conditional write won the race.
func isConditionalWriteConflict(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	code := statusCode(err)
	return code == http.StatusPreconditionFailed || code == http.StatusConflict
}

func statusCode(err error) int {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

var _ BlobStore = (*S3BlobStore)(nil)
