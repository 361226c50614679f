package storage

import (
	"context"
	"sync"
)

// MemoryChunkStore держит сжатые записи в памяти. Данные теряются при перезапуске.
type MemoryChunkStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryChunkStore создаёт пустое хранилище.
func NewMemoryChunkStore() *MemoryChunkStore {
	return &MemoryChunkStore{data: make(map[string][]byte)}
}

func (s *MemoryChunkStore) Load(ctx context.Context, x, z int32) (*ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.data[string(chunkKey(x, z))]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return DecodeChunk(data)
}

func (s *MemoryChunkStore) Save(ctx context.Context, rec *ChunkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeChunk(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[string(chunkKey(rec.X, rec.Z))] = data
	s.mu.Unlock()
	return nil
}

// Len: число сохранённых чанков.
func (s *MemoryChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryChunkStore) Close() error { return nil }
