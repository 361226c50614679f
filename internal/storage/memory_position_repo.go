package storage

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
)

// MemoryPositionRepo реализует PositionRepo в памяти.
// Используется, когда Redis не настроен, и в тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryPositionRepo struct {
	mu   sync.RWMutex
	data map[uuid.UUID]PlayerPose
}

// NewMemoryPositionRepo создает новый репозиторий позиций в памяти.
func NewMemoryPositionRepo() *MemoryPositionRepo {
	return &MemoryPositionRepo{
		data: make(map[uuid.UUID]PlayerPose),
	}
}

func validPose(p PlayerPose) error {
	for _, v := range []float64{p.Position.X, p.Position.Y, p.Position.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("недействительная позиция: %+v", p.Position)
		}
	}
	return nil
}

// Save сохраняет позицию игрока в памяти.
func (r *MemoryPositionRepo) Save(ctx context.Context, id uuid.UUID, pose PlayerPose) error {
	if id == uuid.Nil {
		return fmt.Errorf("недействительный UUID игрока")
	}
	if err := validPose(pose); err != nil {
		return err
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[id] = pose
	return nil
}

// Load загружает позицию игрока из памяти.
func (r *MemoryPositionRepo) Load(ctx context.Context, id uuid.UUID) (PlayerPose, bool, error) {
	select {
	case <-ctx.Done():
		return PlayerPose{}, false, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pose, exists := r.data[id]
	return pose, exists, nil
}

// Delete удаляет сохраненную позицию игрока из памяти.
func (r *MemoryPositionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[id]; !exists {
		return fmt.Errorf("позиция для игрока %s не найдена", id)
	}

	delete(r.data, id)
	return nil
}

// Count возвращает количество сохраненных позиций (для отладки).
func (r *MemoryPositionRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func (r *MemoryPositionRepo) Close() error { return nil }
