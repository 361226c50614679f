package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// BadgerChunkStore хранит чанки в BadgerDB под ключами chunk:<x>:<z>.
type BadgerChunkStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerChunkStore открывает (или создаёт) базу в каталоге dbPath.
func NewBadgerChunkStore(dbPath string) (*BadgerChunkStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerChunkStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (s *BadgerChunkStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	return s.db.Close()
}

// Save записывает чанк целиком.
func (s *BadgerChunkStore) Save(ctx context.Context, rec *ChunkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	data, err := EncodeChunk(rec)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(rec.X, rec.Z), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Load читает чанк; ErrNotFound, если его нет.
func (s *BadgerChunkStore) Load(ctx context.Context, x, z int32) (*ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(x, z))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	return DecodeChunk(data)
}
