package s3

import (
	"bytes"
	"context"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	gwerrors "github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/errors"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/types"
)

// s3API is the subset of *s3.Client the adapter uses.
type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Backend is the gateway's storage client adapter. It implements
// types.ObjectStore on top of an S3-compatible engine. It holds no state
// besides the client and counters and is safe for concurrent use.
type Backend struct {
	client  s3API
	region  string
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	metrics BackendMetrics
}

var _ types.ObjectStore = (*Backend)(nil)

func newBackend(client s3API, region string, cfg *Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	var timeout time.Duration
	if cfg != nil {
		timeout = cfg.RequestTimeout
	}
	return &Backend{
		client:  client,
		region:  region,
		timeout: timeout,
		logger:  logger.With("component", "s3-backend"),
	}
}

// BucketExists reports whether the bucket exists. A missing bucket is not an error.
func (b *Backend) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		tErr := translateError(err, "HeadBucket", bucket, "", gwerrors.ErrCodeStorageRead)
		if gwerrors.IsNotFound(tErr) {
			b.recordMetrics(time.Since(start), false)
			return false, nil
		}
		return false, b.fail(start, tErr)
	}

	b.recordMetrics(time.Since(start), false)
	return true, nil
}

// CreateBucket creates a bucket. An existing bucket yields a conflict error.
func (b *Backend) CreateBucket(ctx context.Context, bucket string) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	if b.region != "" && b.region != DefaultRegion {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(b.region),
		}
	}

	start := time.Now()
	if _, err := b.client.CreateBucket(ctx, input); err != nil {
		return b.fail(start, translateError(err, "CreateBucket", bucket, "", gwerrors.ErrCodeStorageWrite))
	}

	b.recordMetrics(time.Since(start), false)
	b.logger.Info("bucket created", "bucket", bucket)
	return nil
}

// DeleteBucket removes a bucket. Emptiness must be checked by the caller;
// the engine's own not-empty rejection is reported as invalid state.
func (b *Backend) DeleteBucket(ctx context.Context, bucket string) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if _, err := b.client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	}); err != nil {
		return b.fail(start, translateError(err, "DeleteBucket", bucket, "", gwerrors.ErrCodeStorageWrite))
	}

	b.recordMetrics(time.Since(start), false)
	b.logger.Info("bucket deleted", "bucket", bucket)
	return nil
}

// ListBuckets enumerates every bucket visible to the configured credentials.
func (b *Backend) ListBuckets(ctx context.Context) ([]types.BucketInfo, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	buckets := make([]types.BucketInfo, 0)
	input := &s3.ListBucketsInput{}
	for {
		out, err := b.client.ListBuckets(ctx, input)
		if err != nil {
			return nil, b.fail(start, translateError(err, "ListBuckets", "", "", gwerrors.ErrCodeStorageRead))
		}
		for _, bkt := range out.Buckets {
			buckets = append(buckets, types.BucketInfo{
				Name:         aws.ToString(bkt.Name),
				CreationDate: aws.ToTime(bkt.CreationDate),
			})
		}
		if aws.ToString(out.ContinuationToken) == "" {
			break
		}
		input.ContinuationToken = out.ContinuationToken
	}

	b.recordMetrics(time.Since(start), false)
	return buckets, nil
}

// ListObjects lazily pages through every object in the bucket. No delimiter
// is sent, so keys containing "/" are returned flat.
func (b *Backend) ListObjects(ctx context.Context, bucket string) iter.Seq2[types.ObjectInfo, error] {
	return func(yield func(types.ObjectInfo, error) bool) {
		ctx, cancel := b.withTimeout(ctx)
		defer cancel()

		start := time.Now()
		paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucket),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				tErr := translateError(err, "ListObjects", bucket, "", gwerrors.ErrCodeStorageRead)
				if gwerrors.IsNotFound(tErr) {
					b.recordMetrics(time.Since(start), false)
				} else {
					tErr = b.fail(start, tErr)
				}
				yield(types.ObjectInfo{}, tErr)
				return
			}

			for _, obj := range page.Contents {
				info := types.ObjectInfo{
					Key:          aws.ToString(obj.Key),
					Size:         aws.ToInt64(obj.Size),
					LastModified: aws.ToTime(obj.LastModified),
					ETag:         aws.ToString(obj.ETag),
				}
				if !yield(info, nil) {
					b.recordMetrics(time.Since(start), false)
					return
				}
			}
		}

		b.recordMetrics(time.Since(start), false)
	}
}

// PutObject stores data under key, replacing any existing object and its
// metadata. metadata is attached as the sidecar attribute when non-empty.
func (b *Backend) PutObject(ctx context.Context, bucket, key string, data []byte, metadata string) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(b.detectContentType(key)),
		Metadata:      EncodeMetadata(metadata),
	}

	start := time.Now()
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return b.fail(start, translateError(err, "PutObject", bucket, key, gwerrors.ErrCodeStorageWrite))
	}

	b.recordMetrics(time.Since(start), false)
	b.recordBytes(int64(len(data)), 0)
	b.logger.Debug("object stored", "bucket", bucket, "key", key, "size", len(data))
	return nil
}

// GetObject opens the object for streaming. The caller must close the result.
func (b *Backend) GetObject(ctx context.Context, bucket, key string) (*types.Object, error) {
	ctx, cancel := b.withTimeout(ctx)

	start := time.Now()
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		cancel()
		tErr := translateError(err, "GetObject", bucket, key, gwerrors.ErrCodeStorageRead)
		if gwerrors.IsNotFound(tErr) {
			b.recordMetrics(time.Since(start), false)
			return nil, tErr
		}
		return nil, b.fail(start, tErr)
	}

	b.recordMetrics(time.Since(start), false)
	size := aws.ToInt64(out.ContentLength)
	b.recordBytes(0, size)

	return &types.Object{
		Body: &cancelOnClose{ReadCloser: out.Body, cancel: cancel},
		Info: types.ObjectInfo{
			Key:          key,
			Size:         size,
			LastModified: aws.ToTime(out.LastModified),
			ETag:         aws.ToString(out.ETag),
			ContentType:  contentTypeOrDefault(aws.ToString(out.ContentType)),
			Metadata:     copyMetadata(out.Metadata),
		},
	}, nil
}

// StatObject retrieves an object's attributes without its content.
func (b *Backend) StatObject(ctx context.Context, bucket, key string) (*types.ObjectInfo, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		tErr := translateError(err, "HeadObject", bucket, key, gwerrors.ErrCodeStorageRead)
		if gwerrors.IsNotFound(tErr) {
			b.recordMetrics(time.Since(start), false)
			return nil, tErr
		}
		return nil, b.fail(start, tErr)
	}

	b.recordMetrics(time.Since(start), false)
	return &types.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         aws.ToString(out.ETag),
		ContentType:  contentTypeOrDefault(aws.ToString(out.ContentType)),
		Metadata:     copyMetadata(out.Metadata),
	}, nil
}

// RemoveObject deletes an object. S3 deletes are idempotent, so existence is
// probed with a HEAD first and a missing object is reported as not found.
// The probe and the delete are separate round-trips and not atomic.
func (b *Backend) RemoveObject(ctx context.Context, bucket, key string) error {
	if _, err := b.StatObject(ctx, bucket, key); err != nil {
		return err
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return b.fail(start, translateError(err, "DeleteObject", bucket, key, gwerrors.ErrCodeStorageWrite))
	}

	b.recordMetrics(time.Since(start), false)
	b.logger.Debug("object removed", "bucket", bucket, "key", key)
	return nil
}

// HealthCheck verifies the engine answers with the configured credentials.
func (b *Backend) HealthCheck(ctx context.Context) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if _, err := b.client.ListBuckets(ctx, &s3.ListBucketsInput{MaxBuckets: aws.Int32(1)}); err != nil {
		return b.fail(start, translateError(err, "HealthCheck", "", "", gwerrors.ErrCodeStorageRead))
	}
	b.recordMetrics(time.Since(start), false)
	return nil
}

// Helper methods

func (b *Backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout > 0 {
		return context.WithTimeout(ctx, b.timeout)
	}
	return context.WithCancel(ctx)
}

// fail records an unclassified engine failure and returns it.
func (b *Backend) fail(start time.Time, err error) error {
	b.recordMetrics(time.Since(start), true)
	b.recordError(err)
	b.logger.Warn("object store request failed", "error", err)
	return err
}

func (b *Backend) detectContentType(key string) string {
	key = strings.ToLower(key)
	switch {
	case strings.HasSuffix(key, ".pcap"), strings.HasSuffix(key, ".cap"):
		return "application/vnd.tcpdump.pcap"
	case strings.HasSuffix(key, ".pcapng"):
		return "application/x-pcapng"
	case strings.HasSuffix(key, ".csv"):
		return "text/csv"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".xml"):
		return "application/xml"
	case strings.HasSuffix(key, ".txt"), strings.HasSuffix(key, ".log"):
		return "text/plain"
	case strings.HasSuffix(key, ".gz"), strings.HasSuffix(key, ".tgz"):
		return "application/gzip"
	case strings.HasSuffix(key, ".zip"):
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

func contentTypeOrDefault(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

func copyMetadata(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// cancelOnClose releases the request context once the caller is done streaming.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
