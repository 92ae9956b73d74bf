package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// Store persists the cache document as one opaque blob.
type Store interface {
	// Load returns nil, nil when nothing has been persisted yet.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Location() string
}

// FileStore keeps the document in a single JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Location() string { return f.path }

func (f *FileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	return data, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target so readers never observe a partial document.
func (f *FileStore) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

// DefaultRedisKey holds the document when no key is configured.
const DefaultRedisKey = "newspipe:pipeline_cache"

// RedisStore keeps the document under a single redis key.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// NewRedisStoreFromURL parses a redis:// URL.
func NewRedisStoreFromURL(rawURL, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), key), nil
}

func (r *RedisStore) Location() string { return "redis://" + r.key }

func (r *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache key %s: %w", r.key, err)
	}
	return data, nil
}

func (r *RedisStore) Save(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("writing cache key %s: %w", r.key, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisStore) Close() error { return r.client.Close() }
