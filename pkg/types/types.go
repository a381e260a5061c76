package types

import (
	"io"
	"time"
)

// BucketInfo describes a bucket in the object store
type BucketInfo struct {
	Name         string    `json:"name"`
	CreationDate time.Time `json:"creation_date"`
}

// ObjectInfo represents metadata about a stored object
type ObjectInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag"`
	ContentType  string            `json:"content_type"`
	Metadata     map[string]string `json:"metadata"`
}

// Object is an open object download. The caller must close Body.
type Object struct {
	Body io.ReadCloser
	Info ObjectInfo
}

// Close releases the underlying stream.
func (o *Object) Close() error {
	if o == nil || o.Body == nil {
		return nil
	}
	return o.Body.Close()
}
