package world

import (
	"github.com/google/uuid"

	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/vec"
)

// Entity: авторитетное состояние сущности мира. Мир хранит копии и
// отдаёт их в снимках; изменять полученное значение нельзя.
type Entity struct {
	UUID      uuid.UUID
	Type      int32         // Сетевой тип из реестра
	Position  vec.Vec3Float // Позиция в блоках
	Pitch     float32       // Градусы
	Yaw       float32
	HeadYaw   float32
	OnGround  bool
	Velocity  vec.Vec3Float // Блоков за тик
	Data      int32         // Данные объекта для add_entity
	Metadata  protocol.Metadata
	Equipment protocol.Equipment
}

// Clone копирует сущность вместе с картами метаданных и экипировки.
func (e *Entity) Clone() *Entity {
	cp := *e
	if e.Metadata != nil {
		cp.Metadata = make(protocol.Metadata, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	if e.Equipment != nil {
		cp.Equipment = make(protocol.Equipment, len(e.Equipment))
		for k, v := range e.Equipment {
			cp.Equipment[k] = v
		}
	}
	return &cp
}

// PlayerEntry: запись списка игроков (вкладка Tab).
type PlayerEntry struct {
	UUID        uuid.UUID
	Name        string
	Properties  []protocol.Property
	GameMode    int32
	Latency     int32 // Миллисекунды
	Listed      bool
	DisplayName *protocol.Text
}
