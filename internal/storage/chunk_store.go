package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack"
)

// ErrNotFound: чанк ещё не сохранялся.
var ErrNotFound = errors.New("chunk not found")

// ChunkRecord: сохраняемое состояние колонны чанка.
type ChunkRecord struct {
	X        int32      `msgpack:"x"`
	Z        int32      `msgpack:"z"`
	Biome    int32      `msgpack:"biome"`
	Sections [][]uint16 `msgpack:"sections"` // nil: секция целиком из воздуха
}

// ChunkStore хранит чанки между запусками сервера.
type ChunkStore interface {
	// Load возвращает ErrNotFound, если чанк не сохранялся.
	Load(ctx context.Context, x, z int32) (*ChunkRecord, error)
	Save(ctx context.Context, rec *ChunkRecord) error
	Close() error
}

func chunkKey(x, z int32) []byte {
	return []byte(fmt.Sprintf("chunk:%d:%d", x, z))
}

// Кодировщики zstd безопасны для параллельных EncodeAll/DecodeAll.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// EncodeChunk сериализует запись в msgpack и сжимает zstd.
func EncodeChunk(rec *ChunkRecord) ([]byte, error) {
	raw, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации чанка %d,%d: %w", rec.X, rec.Z, err)
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

// DecodeChunk: обратное преобразование EncodeChunk.
func DecodeChunk(data []byte) (*ChunkRecord, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки чанка: %w", err)
	}
	var rec ChunkRecord
	if err := msgpack.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("ошибка десериализации чанка: %w", err)
	}
	return &rec, nil
}
