package storage

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// MemoryStorage keeps mirrored media in memory. Used by tests and
// local development.
type MemoryStorage struct {
	data map[string][]byte
	mu   sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (ms *MemoryStorage) Writer(key string) (io.WriteCloser, error) {
	return &memoryWriter{storage: ms, key: key, buffer: &bytes.Buffer{}}, nil
}

func (ms *MemoryStorage) Reader(key string) (io.ReadCloser, error) {
	r, err := ms.SeekableReader(key)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (ms *MemoryStorage) SeekableReader(key string) (ReadSeekCloser, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	data, exists := ms.data[key]
	if !exists {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return &memoryReader{Reader: bytes.NewReader(data)}, nil
}

func (ms *MemoryStorage) Exists(key string) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	_, exists := ms.data[key]
	return exists, nil
}

func (ms *MemoryStorage) Size(key string) (int64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	data, exists := ms.data[key]
	if !exists {
		return 0, fmt.Errorf("key not found: %s", key)
	}
	return int64(len(data)), nil
}

type memoryReader struct {
	*bytes.Reader
}

func (r *memoryReader) Close() error { return nil }

type memoryWriter struct {
	storage *MemoryStorage
	key     string
	buffer  *bytes.Buffer
	closed  bool
}

func (mw *memoryWriter) Write(p []byte) (n int, err error) {
	if mw.closed {
		return 0, fmt.Errorf("writer is closed")
	}
	return mw.buffer.Write(p)
}

func (mw *memoryWriter) Close() error {
	if mw.closed {
		return nil
	}

	mw.storage.mu.Lock()
	defer mw.storage.mu.Unlock()

	mw.storage.data[mw.key] = mw.buffer.Bytes()
	mw.closed = true
	return nil
}
