package world

import (
	"testing"

	"github.com/annel0/voxelgate/internal/registry"
	"github.com/annel0/voxelgate/internal/vec"
)

func TestChunkCreateAndGetBlock(t *testing.T) {
	reg := registry.Default()
	chunk := NewChunk(vec.Vec2{X: 5, Z: 10}, reg.Dimension(), 0)

	// Проверяем координаты
	if chunk.Pos.X != 5 || chunk.Pos.Z != 10 {
		t.Errorf("Ожидались координаты {5,10}, получено {%d,%d}", chunk.Pos.X, chunk.Pos.Z)
	}
	if len(chunk.Sections) != 24 {
		t.Fatalf("Ожидалось 24 секции, получено %d", len(chunk.Sections))
	}

	// Проверяем, что блоки инициализированы как воздух
	if id := chunk.Block(3, 70, 4); id != Air {
		t.Errorf("Ожидался воздух, получен %d", id)
	}

	// Устанавливаем и проверяем блок
	stone := reg.MustBlockState("stone")
	if !chunk.SetBlock(3, 70, 4, stone) {
		t.Error("SetBlock должен сообщить об изменении")
	}
	if id := chunk.Block(3, 70, 4); id != stone {
		t.Errorf("Ожидался камень, получен %d", id)
	}
	if chunk.SetBlock(3, 70, 4, stone) {
		t.Error("Повторная установка того же состояния не является изменением")
	}
	if got := chunk.NonAir((70 + 64) / 16); got != 1 {
		t.Errorf("Ожидался 1 непустой блок в секции, получено %d", got)
	}
}

func TestChunkHeightBounds(t *testing.T) {
	chunk := NewChunk(vec.Vec2{}, registry.Default().Dimension(), 0)

	if chunk.SetBlock(0, -65, 0, 1) || chunk.SetBlock(0, 320, 0, 1) {
		t.Error("Блоки за пределами высоты мира не устанавливаются")
	}
	if !chunk.SetBlock(0, -64, 0, 1) || !chunk.SetBlock(15, 319, 15, 1) {
		t.Error("Крайние высоты должны быть доступны")
	}
	if h := chunk.Highest(15, 15); h != 319 {
		t.Errorf("Ожидалась высота 319, получено %d", h)
	}
	if h := chunk.Highest(7, 7); h != -65 {
		t.Errorf("Пустой столбец должен давать MinY-1, получено %d", h)
	}
}

func TestChunkAirSectionStaysNil(t *testing.T) {
	chunk := NewChunk(vec.Vec2{}, registry.Default().Dimension(), 0)
	chunk.SetBlock(1, 1, 1, Air)
	for i, s := range chunk.Sections {
		if s != nil {
			t.Errorf("Секция %d не должна выделяться для воздуха", i)
		}
	}
}

func TestChunkRecordRoundTrip(t *testing.T) {
	dim := registry.Default().Dimension()
	chunk := NewChunk(vec.Vec2{X: -3, Z: 7}, dim, 39)
	chunk.SetBlock(0, 0, 0, 10)
	chunk.SetBlock(15, 100, 15, 9)

	restored, err := ChunkFromRecord(chunk.Record(), dim)
	if err != nil {
		t.Fatalf("Ошибка восстановления чанка: %v", err)
	}
	if restored.Pos != chunk.Pos || restored.Biome != 39 {
		t.Errorf("Координаты или биом не совпадают: %+v", restored.Pos)
	}
	if restored.Block(0, 0, 0) != 10 || restored.Block(15, 100, 15) != 9 {
		t.Error("Блоки не восстановлены")
	}

	rec := chunk.Record()
	rec.Sections = rec.Sections[:3]
	if _, err := ChunkFromRecord(rec, dim); err == nil {
		t.Error("Запись с неверным числом секций должна отклоняться")
	}
}

func TestChunkClone(t *testing.T) {
	chunk := NewChunk(vec.Vec2{}, registry.Default().Dimension(), 0)
	chunk.SetBlock(1, 2, 3, 1)

	cp := chunk.Clone()
	cp.SetBlock(1, 2, 3, 10)
	if chunk.Block(1, 2, 3) != 1 {
		t.Error("Изменение копии не должно влиять на оригинал")
	}
}
