/*
Package types holds the contracts shared between the gateway's HTTP layer and
its storage adapter.

	┌─────────────────────────────────────────────┐
	│              HTTP handlers                  │
	│                 (pkg/api)                   │
	└─────────────────────────────────────────────┘
	                      │  types.ObjectStore
	┌─────────────────────────────────────────────┐
	│           Storage client adapter            │
	│          (internal/storage/s3)              │
	└─────────────────────────────────────────────┘
	                      │
	          S3-compatible object store

# ObjectStore

ObjectStore is deliberately narrow: bucket existence, creation, deletion and
listing, plus object put, get, stat, remove and a lazy flat listing. Every
error it returns is a *errors.GatewayError whose category is one of
not_found, conflict, invalid_state or internal, so callers never inspect
engine-specific error types.

Listing is exposed as an iter.Seq2 so a caller that only needs to know
whether a bucket holds any object can stop after the first element:

	for _, err := range store.ListObjects(ctx, "pcap") {
		if err != nil {
			return err
		}
		return errBucketNotEmpty
	}

# Data Structures

ObjectInfo carries size, content type, ETag, modification time and the
user metadata map exactly as the engine returned it. Object pairs an open
body stream with its ObjectInfo; callers must Close it.
*/
package types
