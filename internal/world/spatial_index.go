package world

import (
	"github.com/google/uuid"

	"github.com/annel0/voxelgate/internal/vec"
)

// spatialIndex раскладывает сущности по чанкам для выборки в радиусе
// прорисовки. Не потокобезопасен: используется под мьютексом мира.
type spatialIndex struct {
	cells    map[vec.Vec2]map[uuid.UUID]struct{}
	entities map[uuid.UUID]vec.Vec2 // Текущая ячейка сущности
}

func newSpatialIndex() *spatialIndex {
	return &spatialIndex{
		cells:    make(map[vec.Vec2]map[uuid.UUID]struct{}),
		entities: make(map[uuid.UUID]vec.Vec2),
	}
}

// update переносит сущность в ячейку её позиции
func (si *spatialIndex) update(id uuid.UUID, pos vec.Vec3Float) {
	cell := pos.Chunk()
	if old, ok := si.entities[id]; ok {
		if old == cell {
			return
		}
		si.removeFromCell(old, id)
	}
	c, ok := si.cells[cell]
	if !ok {
		c = make(map[uuid.UUID]struct{})
		si.cells[cell] = c
	}
	c[id] = struct{}{}
	si.entities[id] = cell
}

func (si *spatialIndex) remove(id uuid.UUID) {
	if old, ok := si.entities[id]; ok {
		si.removeFromCell(old, id)
		delete(si.entities, id)
	}
}

func (si *spatialIndex) removeFromCell(cell vec.Vec2, id uuid.UUID) {
	c := si.cells[cell]
	delete(c, id)
	if len(c) == 0 {
		delete(si.cells, cell)
	}
}

// queryRange вызывает fn для сущностей в квадрате чанков с центром center
// и радиусом radius (чебышёвское расстояние).
func (si *spatialIndex) queryRange(center vec.Vec2, radius int, fn func(id uuid.UUID)) {
	side := 2*radius + 1
	if len(si.cells) < side*side {
		// Ячеек меньше, чем квадрат обзора: дешевле пройти по ячейкам
		for cell, c := range si.cells {
			if cell.ChebyshevDistance(center) > radius {
				continue
			}
			for id := range c {
				fn(id)
			}
		}
		return
	}
	for x := center.X - radius; x <= center.X+radius; x++ {
		for z := center.Z - radius; z <= center.Z+radius; z++ {
			for id := range si.cells[vec.Vec2{X: x, Z: z}] {
				fn(id)
			}
		}
	}
}

// cellCount: число непустых ячеек.
func (si *spatialIndex) cellCount() int { return len(si.cells) }
