package storage

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/tenderkg/internal/domain"
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Put(_ context.Context, key string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	m.uploads++
	return nil
}

func (m *memoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, errors.Wrapf(ErrObjectNotFound, "get %s", key)
	}
	return b, nil
}

func (m *memoryStorage) URL(key string) string { return "mem://" + key }

func (m *memoryStorage) EnsureBucket(context.Context) error { return nil }

func (m *memoryStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func TestArchiveKey(t *testing.T) {
	a := NewArchive(newMemoryStorage(), "/raw/")
	key := a.Key("NzA5MjgzMjA=")

	assert.True(t, strings.HasPrefix(key, "raw/"))
	assert.True(t, strings.HasSuffix(key, "/NzA5MjgzMjA=.html"))
	assert.Len(t, strings.Split(key, "/"), 3)
	assert.Equal(t, key, a.Key("NzA5MjgzMjA="))
}

func TestArchivePutSkipsExisting(t *testing.T) {
	store := newMemoryStorage()
	a := NewArchive(store, "raw")
	doc := &domain.RawDocument{ID: "T-001", Body: []byte("<h1>辦公設備採購案</h1>")}

	key, uploaded, err := a.Put(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, uploaded)

	_, uploaded, err = a.Put(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, uploaded)
	assert.Equal(t, 1, store.uploads)

	body, err := a.Get(context.Background(), "T-001")
	require.NoError(t, err)
	assert.Equal(t, doc.Body, body)
	assert.Equal(t, "mem://"+key, a.URL("T-001"))

	_, err = a.Get(context.Background(), "T-404")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestDetectStorageType(t *testing.T) {
	assert.Equal(t, StorageTypeR2, detectStorageType("https://abc.r2.cloudflarestorage.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType("s3.ap-northeast-1.amazonaws.com"))
	assert.Equal(t, StorageTypeS3Compatible, detectStorageType("localhost:9000"))
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "localhost:9000", normalizeEndpoint("http://localhost:9000/bucket/"))
	assert.Equal(t, "s3.amazonaws.com", normalizeEndpoint("https://s3.amazonaws.com"))
}

func TestS3BucketURL(t *testing.T) {
	b, err := NewS3Bucket(context.Background(), &S3Config{Endpoint: "http://localhost:9000/", Bucket: "pages"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/pages/raw/ab/T-001.html", b.URL("raw/ab/T-001.html"))

	b, err = NewS3Bucket(context.Background(), &S3Config{Endpoint: "localhost:9000", Bucket: "pages", PublicURL: "https://cdn.example.org/"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/k", b.URL("k"))

	_, err = NewS3Bucket(context.Background(), &S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}
