package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"sort"
	"sync"
	"time"

	gwerrors "github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/errors"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/types"
)

// memStore is an in-memory ObjectStore with the same error taxonomy as the
// S3 backend.
type memStore struct {
	mu      sync.Mutex
	buckets map[string]map[string]memObject
	created map[string]time.Time

	// failWith, when set, is returned by every call
	failWith error
}

type memObject struct {
	data     []byte
	metadata map[string]string
	modified time.Time
}

var _ types.ObjectStore = (*memStore)(nil)

func newMemStore(buckets ...string) *memStore {
	m := &memStore{
		buckets: make(map[string]map[string]memObject),
		created: make(map[string]time.Time),
	}
	for _, b := range buckets {
		m.buckets[b] = make(map[string]memObject)
		m.created[b] = time.Now()
	}
	return m
}

func engineDown() error {
	return gwerrors.Wrap(errors.New("connection refused"), gwerrors.ErrCodeInternalError, "engine unreachable")
}

func (m *memStore) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *memStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	_, ok := m.buckets[bucket]
	return ok, nil
}

func (m *memStore) CreateBucket(ctx context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.buckets[bucket]; ok {
		return gwerrors.NewError(gwerrors.ErrCodeBucketExists, "bucket already exists")
	}
	m.buckets[bucket] = make(map[string]memObject)
	m.created[bucket] = time.Now()
	return nil
}

func (m *memStore) DeleteBucket(ctx context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	objects, ok := m.buckets[bucket]
	if !ok {
		return gwerrors.NewError(gwerrors.ErrCodeBucketNotFound, "bucket not found")
	}
	if len(objects) > 0 {
		return gwerrors.NewError(gwerrors.ErrCodeBucketNotEmpty, "bucket not empty")
	}
	delete(m.buckets, bucket)
	delete(m.created, bucket)
	return nil
}

func (m *memStore) ListBuckets(ctx context.Context) ([]types.BucketInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]types.BucketInfo, 0, len(m.buckets))
	for name := range m.buckets {
		out = append(out, types.BucketInfo{Name: name, CreationDate: m.created[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) ListObjects(ctx context.Context, bucket string) iter.Seq2[types.ObjectInfo, error] {
	return func(yield func(types.ObjectInfo, error) bool) {
		m.mu.Lock()
		if m.failWith != nil {
			err := m.failWith
			m.mu.Unlock()
			yield(types.ObjectInfo{}, err)
			return
		}
		objects, ok := m.buckets[bucket]
		if !ok {
			m.mu.Unlock()
			yield(types.ObjectInfo{}, gwerrors.NewError(gwerrors.ErrCodeBucketNotFound, "bucket not found"))
			return
		}
		infos := make([]types.ObjectInfo, 0, len(objects))
		for key, obj := range objects {
			infos = append(infos, obj.info(key))
		}
		m.mu.Unlock()

		sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
		for _, info := range infos {
			if !yield(info, nil) {
				return
			}
		}
	}
}

func (m *memStore) PutObject(ctx context.Context, bucket, key string, data []byte, metadata string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	objects, ok := m.buckets[bucket]
	if !ok {
		return gwerrors.NewError(gwerrors.ErrCodeBucketNotFound, "bucket not found")
	}
	obj := memObject{data: bytes.Clone(data), modified: time.Now()}
	if metadata != "" {
		obj.metadata = map[string]string{"metadata": metadata}
	}
	objects[key] = obj
	return nil
}

func (m *memStore) GetObject(ctx context.Context, bucket, key string) (*types.Object, error) {
	info, obj, err := m.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	return &types.Object{Body: io.NopCloser(bytes.NewReader(obj.data)), Info: *info}, nil
}

func (m *memStore) StatObject(ctx context.Context, bucket, key string) (*types.ObjectInfo, error) {
	info, _, err := m.lookup(bucket, key)
	return info, err
}

func (m *memStore) RemoveObject(ctx context.Context, bucket, key string) error {
	if _, _, err := m.lookup(bucket, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[bucket], key)
	return nil
}

func (m *memStore) lookup(bucket, key string) (*types.ObjectInfo, memObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, memObject{}, m.failWith
	}
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, memObject{}, gwerrors.NewError(gwerrors.ErrCodeBucketNotFound, "bucket not found")
	}
	obj, ok := objects[key]
	if !ok {
		return nil, memObject{}, gwerrors.NewError(gwerrors.ErrCodeObjectNotFound, "object not found")
	}
	info := obj.info(key)
	return &info, obj, nil
}

func (o memObject) info(key string) types.ObjectInfo {
	return types.ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		LastModified: o.modified,
		ETag:         `"etag-` + key + `"`,
		ContentType:  "application/octet-stream",
		Metadata:     o.metadata,
	}
}

// objectKeys returns the keys stored in bucket.
func (m *memStore) objectKeys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
