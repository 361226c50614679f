package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/annel0/voxelgate/internal/vec"
)

// PlayerPose: последняя известная позиция игрока.
type PlayerPose struct {
	Position vec.Vec3Float `json:"position"`
	Yaw      float32       `json:"yaw"`
	Pitch    float32       `json:"pitch"`
}

// PositionRepo хранит позиции игроков между сессиями.
// Позиции привязаны к UUID профиля, а не к идентификатору сущности соединения.
type PositionRepo interface {
	// Save сохраняет позицию игрока.
	Save(ctx context.Context, id uuid.UUID, pose PlayerPose) error

	// Load возвращает позицию и false, если игрок заходит впервые.
	Load(ctx context.Context, id uuid.UUID) (PlayerPose, bool, error)

	// Delete удаляет сохранённую позицию.
	Delete(ctx context.Context, id uuid.UUID) error

	Close() error
}
