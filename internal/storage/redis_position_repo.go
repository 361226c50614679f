package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/annel0/voxelgate/internal/logging"
)

// RedisPositionRepository хранит позиции игроков в Redis.
// Записи копятся в буфере и сбрасываются пайплайном по таймеру или при заполнении.
type RedisPositionRepository struct {
	client      *redis.Client
	keyPrefix   string
	ttl         time.Duration
	batchSize   int
	batchMu     sync.Mutex
	batchBuffer map[uuid.UUID]PlayerPose
	batchTicker *time.Ticker
	shutdown    chan struct{}
	wg          sync.WaitGroup
	logger      *logging.Logger
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr         string        // Адрес Redis сервера
	Password     string        // Пароль (пустой если не требуется)
	DB           int           // Номер базы данных
	KeyPrefix    string        // Префикс для ключей
	TTL          time.Duration // Время жизни записей
	BatchSize    int           // Размер батча для записи
	BatchFlushMs int           // Интервал сброса батча в миллисекундах
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "voxelgate:pos:",
		TTL:          30 * 24 * time.Hour,
		BatchSize:    100,
		BatchFlushMs: 1000,
	}
}

// NewRedisPositionRepository подключается к Redis и запускает фоновый сброс буфера.
func NewRedisPositionRepository(ctx context.Context, config *RedisConfig) (*RedisPositionRepository, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	repo := &RedisPositionRepository{
		client:      client,
		keyPrefix:   config.KeyPrefix,
		ttl:         config.TTL,
		batchSize:   config.BatchSize,
		batchBuffer: make(map[uuid.UUID]PlayerPose),
		batchTicker: time.NewTicker(time.Duration(config.BatchFlushMs) * time.Millisecond),
		shutdown:    make(chan struct{}),
		logger:      logging.GetStorageLogger(),
	}

	repo.wg.Add(1)
	go repo.batchFlusher()

	repo.logger.Info("🔴 Connected to Redis at %s", config.Addr)
	return repo, nil
}

func (r *RedisPositionRepository) key(id uuid.UUID) string {
	return r.keyPrefix + id.String()
}

// Save кладёт позицию в буфер; при заполнении буфер сбрасывается сразу.
func (r *RedisPositionRepository) Save(ctx context.Context, id uuid.UUID, pose PlayerPose) error {
	if err := validPose(pose); err != nil {
		return err
	}
	r.batchMu.Lock()
	r.batchBuffer[id] = pose

	if len(r.batchBuffer) >= r.batchSize {
		batch := r.batchBuffer
		r.batchBuffer = make(map[uuid.UUID]PlayerPose)
		r.batchMu.Unlock()

		return r.flushBatch(ctx, batch)
	}

	r.batchMu.Unlock()
	return nil
}

// Load сначала смотрит в несброшенный буфер, затем в Redis.
func (r *RedisPositionRepository) Load(ctx context.Context, id uuid.UUID) (PlayerPose, bool, error) {
	r.batchMu.Lock()
	pose, buffered := r.batchBuffer[id]
	r.batchMu.Unlock()
	if buffered {
		return pose, true, nil
	}

	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return PlayerPose{}, false, nil
	} else if err != nil {
		return PlayerPose{}, false, fmt.Errorf("failed to get position: %w", err)
	}

	if err := json.Unmarshal(data, &pose); err != nil {
		return PlayerPose{}, false, fmt.Errorf("failed to unmarshal position: %w", err)
	}
	return pose, true, nil
}

// Delete удаляет позицию игрока
func (r *RedisPositionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.batchMu.Lock()
	delete(r.batchBuffer, id)
	r.batchMu.Unlock()

	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}

// Close сбрасывает буфер и закрывает соединение с Redis
func (r *RedisPositionRepository) Close() error {
	close(r.shutdown)
	r.wg.Wait()
	r.batchTicker.Stop()

	r.batchMu.Lock()
	batch := r.batchBuffer
	r.batchBuffer = make(map[uuid.UUID]PlayerPose)
	r.batchMu.Unlock()
	if err := r.flushBatch(context.Background(), batch); err != nil {
		r.logger.Warn("⚠️ Failed to flush positions on close: %v", err)
	}

	return r.client.Close()
}

// batchFlusher периодически сбрасывает батч-буфер
func (r *RedisPositionRepository) batchFlusher() {
	defer r.wg.Done()

	for {
		select {
		case <-r.shutdown:
			return
		case <-r.batchTicker.C:
			r.batchMu.Lock()
			if len(r.batchBuffer) == 0 {
				r.batchMu.Unlock()
				continue
			}
			batch := r.batchBuffer
			r.batchBuffer = make(map[uuid.UUID]PlayerPose)
			r.batchMu.Unlock()

			if err := r.flushBatch(context.Background(), batch); err != nil {
				r.logger.Error("❌ Failed to flush batch: %v", err)
			}
		}
	}
}

// flushBatch записывает батч позиций в Redis одним пайплайном
func (r *RedisPositionRepository) flushBatch(ctx context.Context, batch map[uuid.UUID]PlayerPose) error {
	if len(batch) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for id, pose := range batch {
		data, err := json.Marshal(pose)
		if err != nil {
			return fmt.Errorf("failed to marshal position: %w", err)
		}
		pipe.Set(ctx, r.key(id), data, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute pipeline: %w", err)
	}
	return nil
}
