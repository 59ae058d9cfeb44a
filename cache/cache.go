package cache

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "responses"

// Cache maps record keys to raw model responses.
type Cache interface {
	Get(key string) (string, bool)
	Put(key, value string) error
	Len() int
}

// BoltCache is a persistent cache that uses BoltDB as the backend.
type BoltCache struct {
	db *bolt.DB
}

// NewBoltCache opens (or creates) the cache file at path.
// It is up to the caller to close the database when it is no longer needed.
func NewBoltCache(path string) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create cache directory")
	}

	// Another run holding the file lock should fail fast instead of hanging.
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open cache %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})

	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create default bucket")
	}

	return &BoltCache{
		db: db,
	}, nil
}

func (c *BoltCache) Get(key string) (value string, exists bool) {
	_ = c.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if val != nil {
			// val is only valid for the life of the transaction.
			value = string(val)
			exists = true
		}

		return nil
	})

	return
}

func (c *BoltCache) Put(key, value string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), []byte(value))
	})
}

func (c *BoltCache) Len() int {
	var count int
	_ = c.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})

	return count
}

// Close closes the database.
func (c *BoltCache) Close() error {
	return c.db.Close()
}

// Memory is a non-persistent Cache, used when no cache file is configured.
// It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[key]
	return v, ok
}

func (m *Memory) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}
