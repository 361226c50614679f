package sync

import (
	"math/bits"

	"github.com/annel0/voxelgate/internal/nbt"
	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/world"
)

// Ширина непрямой палитры блоков.
const (
	minIndirectBits = 4
	maxIndirectBits = 8
)

// ChunkEncoder переводит чанки мира в level_chunk_with_light.
type ChunkEncoder struct {
	directBits uint8
}

// NewChunkEncoder создаёт кодировщик. directBits, ширина прямой палитры
// для всех состояний блоков версии.
func NewChunkEncoder(directBits uint8) *ChunkEncoder {
	return &ChunkEncoder{directBits: directBits}
}

// Encode сериализует все секции чанка. Карты высот и освещение пустые.
func (e *ChunkEncoder) Encode(c *world.Chunk) protocol.LevelChunkWithLight {
	sections := make([]protocol.ChunkSection, len(c.Sections))
	for i, s := range c.Sections {
		sections[i] = protocol.ChunkSection{
			BlockCount: int16(c.NonAir(i)),
			Blocks:     e.blocks(s),
			Biomes:     singleValue(c.Biome),
		}
	}
	return protocol.LevelChunkWithLight{
		X:          int32(c.Pos.X),
		Z:          int32(c.Pos.Z),
		Heightmaps: nbt.Compound{},
		Sections:   sections,
		Light: protocol.LightData{
			SkyMask:        []int64{},
			BlockMask:      []int64{},
			EmptySkyMask:   []int64{},
			EmptyBlockMask: []int64{},
			SkyLight:       [][]byte{},
			BlockLight:     [][]byte{},
		},
	}
}

func singleValue(v int32) protocol.PalettedContainer {
	return protocol.PalettedContainer{Bits: 0, Palette: []int32{v}, Data: []int64{}}
}

func (e *ChunkEncoder) blocks(s *world.Section) protocol.PalettedContainer {
	if s == nil {
		return singleValue(world.Air)
	}

	index := make(map[uint16]int32)
	var palette []int32
	for _, v := range s {
		if _, ok := index[v]; !ok {
			index[v] = int32(len(palette))
			palette = append(palette, int32(v))
			if len(palette) > 1<<maxIndirectBits {
				break
			}
		}
	}

	switch n := len(palette); {
	case n == 1:
		return singleValue(palette[0])
	case n <= 1<<maxIndirectBits:
		b := uint8(bits.Len(uint(n - 1)))
		if b < minIndirectBits {
			b = minIndirectBits
		}
		return protocol.PalettedContainer{
			Bits:    b,
			Palette: palette,
			Data:    pack(s, b, func(v uint16) uint64 { return uint64(index[v]) }),
		}
	default:
		return protocol.PalettedContainer{
			Bits:    e.directBits,
			Palette: nil,
			Data:    pack(s, e.directBits, func(v uint16) uint64 { return uint64(v) }),
		}
	}
}

// pack укладывает значения в long по ⌊64/b⌋ штук, начиная с младших битов.
// Значение никогда не переходит границу long.
func pack(s *world.Section, b uint8, value func(uint16) uint64) []int64 {
	perLong := 64 / int(b)
	out := make([]int64, (len(s)+perLong-1)/perLong)
	for i, v := range s {
		shift := uint(i%perLong) * uint(b)
		out[i/perLong] |= int64(value(v) << shift)
	}
	return out
}

// unpack: обратная операция для тестов и отладки.
func unpack(data []int64, b uint8, n int) []uint64 {
	perLong := 64 / int(b)
	mask := uint64(1)<<b - 1
	out := make([]uint64, n)
	for i := range out {
		out[i] = uint64(data[i/perLong]) >> (uint(i%perLong) * uint(b)) & mask
	}
	return out
}
