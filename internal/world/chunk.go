package world

import (
	"fmt"

	"github.com/annel0/voxelgate/internal/registry"
	"github.com/annel0/voxelgate/internal/storage"
	"github.com/annel0/voxelgate/internal/vec"
)

// SectionVolume: число блоков в секции 16×16×16.
const SectionVolume = 16 * 16 * 16

// Air: состояние пустого блока.
const Air int32 = 0

// Section хранит состояния блоков секции в порядке y, z, x.
type Section [SectionVolume]uint16

// sectionIndex: индекс блока внутри секции (y<<8 | z<<4 | x).
func sectionIndex(x, y, z int) int {
	return (y&0xF)<<8 | (z&0xF)<<4 | x&0xF
}

// Chunk представляет колонну 16×высота×16 блоков
type Chunk struct {
	Pos      vec.Vec2   // Координаты чанка в мире
	MinY     int        // Нижняя граница мира
	Sections []*Section // nil: секция целиком из воздуха
	Biome    int32      // Один биом на всю колонну

	dirty bool // изменён с последнего сохранения
}

// NewChunk создаёт чанк из воздуха.
func NewChunk(pos vec.Vec2, dim registry.Dimension, biome int32) *Chunk {
	return &Chunk{
		Pos:      pos,
		MinY:     dim.MinY,
		Sections: make([]*Section, dim.Sections()),
		Biome:    biome,
	}
}

// MaxY: первая высота над чанком.
func (c *Chunk) MaxY() int { return c.MinY + len(c.Sections)*16 }

func (c *Chunk) sectionOf(y int) (int, bool) {
	if y < c.MinY || y >= c.MaxY() {
		return 0, false
	}
	return (y - c.MinY) >> 4, true
}

// Block возвращает состояние блока. x и z локальные (0..15), y мировой.
// За пределами высоты мира возвращается воздух.
func (c *Chunk) Block(x, y, z int) int32 {
	i, ok := c.sectionOf(y)
	if !ok || c.Sections[i] == nil {
		return Air
	}
	return int32(c.Sections[i][sectionIndex(x, y-c.MinY, z)])
}

// SetBlock меняет состояние блока и сообщает, изменилось ли оно.
func (c *Chunk) SetBlock(x, y, z int, state int32) bool {
	i, ok := c.sectionOf(y)
	if !ok {
		return false
	}
	s := c.Sections[i]
	if s == nil {
		if state == Air {
			return false
		}
		s = new(Section)
		c.Sections[i] = s
	}
	idx := sectionIndex(x, y-c.MinY, z)
	if int32(s[idx]) == state {
		return false
	}
	s[idx] = uint16(state)
	c.dirty = true
	return true
}

// NonAir: число непустых блоков секции i.
func (c *Chunk) NonAir(i int) int {
	s := c.Sections[i]
	if s == nil {
		return 0
	}
	n := 0
	for _, v := range s {
		if v != uint16(Air) {
			n++
		}
	}
	return n
}

// Highest возвращает высоту верхнего непустого блока столбца или MinY-1.
func (c *Chunk) Highest(x, z int) int {
	for y := c.MaxY() - 1; y >= c.MinY; y-- {
		if c.Block(x, y, z) != Air {
			return y
		}
	}
	return c.MinY - 1
}

// Clone возвращает независимую копию. Секции копируются целиком.
func (c *Chunk) Clone() *Chunk {
	cp := &Chunk{
		Pos:      c.Pos,
		MinY:     c.MinY,
		Sections: make([]*Section, len(c.Sections)),
		Biome:    c.Biome,
	}
	for i, s := range c.Sections {
		if s != nil {
			sc := *s
			cp.Sections[i] = &sc
		}
	}
	return cp
}

// Record переводит чанк в запись хранилища.
func (c *Chunk) Record() *storage.ChunkRecord {
	rec := &storage.ChunkRecord{
		X:        int32(c.Pos.X),
		Z:        int32(c.Pos.Z),
		Biome:    c.Biome,
		Sections: make([][]uint16, len(c.Sections)),
	}
	for i, s := range c.Sections {
		if s != nil && c.NonAir(i) > 0 {
			rec.Sections[i] = append([]uint16(nil), s[:]...)
		}
	}
	return rec
}

// ChunkFromRecord восстанавливает чанк из хранилища.
func ChunkFromRecord(rec *storage.ChunkRecord, dim registry.Dimension) (*Chunk, error) {
	if len(rec.Sections) != dim.Sections() {
		return nil, fmt.Errorf("чанк %d,%d: %d секций, ожидалось %d", rec.X, rec.Z, len(rec.Sections), dim.Sections())
	}
	c := NewChunk(vec.Vec2{X: int(rec.X), Z: int(rec.Z)}, dim, rec.Biome)
	for i, data := range rec.Sections {
		if len(data) == 0 {
			continue
		}
		if len(data) != SectionVolume {
			return nil, fmt.Errorf("чанк %d,%d: секция %d содержит %d блоков", rec.X, rec.Z, i, len(data))
		}
		s := new(Section)
		copy(s[:], data)
		c.Sections[i] = s
	}
	return c, nil
}
