/*
Package s3 is the gateway's storage client adapter for S3-compatible engines
such as MinIO.

Backend implements types.ObjectStore using aws-sdk-go-v2. Each gateway call
maps onto one or two engine round-trips:

	BucketExists   HeadBucket
	CreateBucket   CreateBucket (LocationConstraint outside us-east-1)
	DeleteBucket   DeleteBucket
	ListBuckets    ListBuckets, following continuation tokens
	ListObjects    ListObjectsV2 via the paginator, no delimiter
	PutObject      PutObject with the metadata sidecar
	GetObject      GetObject, body streamed to the caller
	StatObject     HeadObject
	RemoveObject   HeadObject probe, then DeleteObject

Engine errors are classified into the pkg/errors taxonomy: NoSuchBucket,
NoSuchKey and bare 404s become not-found, BucketAlreadyExists becomes a
conflict, BucketNotEmpty becomes invalid state, and anything else is
internal. Requests are made with a single attempt; retries are left to the
client of the gateway.

# Metadata sidecar

An upload may carry an opaque string which is stored as the user-metadata
attribute "metadata" (the x-amz-meta-metadata header). The adapter never
parses it. See EncodeMetadata and DecodeMetadata.

# Usage

	cfg := s3.NewDefaultConfig()
	cfg.Address = "minio:9000"
	cfg.AccessKeyID = os.Getenv("MINIO_ACCESS_KEY")
	cfg.SecretAccessKey = os.Getenv("MINIO_SECRET_KEY")

	backend, err := s3.NewBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	for obj, err := range backend.ListObjects(ctx, "pcap") {
		...
	}
*/
package s3
