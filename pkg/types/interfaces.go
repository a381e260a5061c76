package types

import (
	"context"
	"iter"
)

// ObjectStore is the capability interface the gateway consumes from the
// object-storage engine. Implementations return *errors.GatewayError values
// classified as not_found, conflict, invalid_state or internal.
type ObjectStore interface {
	// Bucket operations
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket string) error
	DeleteBucket(ctx context.Context, bucket string) error
	ListBuckets(ctx context.Context) ([]BucketInfo, error)

	// ListObjects lazily yields every object in the bucket, recursively and
	// without any hierarchy. A missing bucket is yielded as a not_found error.
	ListObjects(ctx context.Context, bucket string) iter.Seq2[ObjectInfo, error]

	// Object operations
	PutObject(ctx context.Context, bucket, key string, data []byte, metadata string) error
	GetObject(ctx context.Context, bucket, key string) (*Object, error)
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, key string) error
}
