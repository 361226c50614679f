package protocol

import (
	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/codec"
	"github.com/annel0/voxelgate/internal/nbt"
)

// PalettedContainer: упакованный массив состояний одной секции.
// Bits == 0: одно значение в Palette[0]; непрямой формат: индексы в Palette;
// прямой формат: глобальные идентификаторы, Palette пуст.
type PalettedContainer struct {
	Bits    uint8
	Palette []int32
	Data    []int64
}

type paletted struct{ maxIndirect uint8 }

func (p paletted) Append(dst []byte, c PalettedContainer) ([]byte, error) {
	dst = append(dst, c.Bits)
	switch {
	case c.Bits == 0:
		if len(c.Palette) != 1 {
			return dst, errors.Wrapf(codec.ErrInvalidValue, "single-value container with %d palette entries", len(c.Palette))
		}
		dst = codec.AppendVarInt(dst, c.Palette[0])
	case c.Bits <= p.maxIndirect:
		dst = codec.AppendVarInt(dst, int32(len(c.Palette)))
		for _, v := range c.Palette {
			dst = codec.AppendVarInt(dst, v)
		}
	}
	return codec.List(codec.Int64).Append(dst, c.Data)
}

func (p paletted) Decode(src []byte) (PalettedContainer, int, error) {
	var c PalettedContainer
	bits, off, err := codec.Uint8.Decode(src)
	if err != nil {
		return c, 0, err
	}
	c.Bits = bits
	switch {
	case bits == 0:
		v, n, err := codec.VarInt.Decode(src[off:])
		if err != nil {
			return c, 0, codec.Nest(err, "value", off)
		}
		c.Palette = []int32{v}
		off += n
	case bits <= p.maxIndirect:
		pal, n, err := codec.List(codec.VarInt).Decode(src[off:])
		if err != nil {
			return c, 0, codec.Nest(err, "palette", off)
		}
		c.Palette = pal
		off += n
	}
	data, n, err := codec.List(codec.Int64).Decode(src[off:])
	if err != nil {
		return c, 0, codec.Nest(err, "data", off)
	}
	c.Data = data
	return c, off + n, nil
}

// Кодеки контейнеров: блоки до 8 бит на запись используют палитру, биомы до 3.
var (
	BlockStatesCodec codec.Codec[PalettedContainer] = paletted{maxIndirect: 8}
	BiomesCodec      codec.Codec[PalettedContainer] = paletted{maxIndirect: 3}
)

// ChunkSection: секция 16×16×16.
type ChunkSection struct {
	BlockCount int16
	Blocks     PalettedContainer
	Biomes     PalettedContainer
}

var sectionCodec = codec.Struct(
	codec.Field("block_count", codec.Int16, func(s *ChunkSection) *int16 { return &s.BlockCount }),
	codec.Field("block_states", BlockStatesCodec, func(s *ChunkSection) *PalettedContainer { return &s.Blocks }),
	codec.Field("biomes", BiomesCodec, func(s *ChunkSection) *PalettedContainer { return &s.Biomes }),
)

// sections читает секции до конца буфера: их число задаётся высотой измерения.
type sections struct{}

func (sections) Append(dst []byte, v []ChunkSection) ([]byte, error) {
	var err error
	for i := range v {
		if dst, err = sectionCodec.Append(dst, v[i]); err != nil {
			return dst, errors.Wrapf(err, "section %d", i)
		}
	}
	return dst, nil
}

func (sections) Decode(src []byte) ([]ChunkSection, int, error) {
	var out []ChunkSection
	off := 0
	for off < len(src) {
		s, n, err := sectionCodec.Decode(src[off:])
		if err != nil {
			return nil, 0, codec.Nest(err, "section", off)
		}
		out = append(out, s)
		off += n
	}
	return out, off, nil
}

// BlockEntity: блок с дополнительными данными внутри чанка.
type BlockEntity struct {
	PackedXZ uint8
	Y        int16
	Type     int32
	Data     any
}

// LightData: маски и массивы освещения. Массивы по 2048 байт.
type LightData struct {
	SkyMask        []int64
	BlockMask      []int64
	EmptySkyMask   []int64
	EmptyBlockMask []int64
	SkyLight       [][]byte
	BlockLight     [][]byte
}

var lightCodec = codec.Struct(
	codec.Field("sky_light_mask", codec.List(codec.Int64), func(l *LightData) *[]int64 { return &l.SkyMask }),
	codec.Field("block_light_mask", codec.List(codec.Int64), func(l *LightData) *[]int64 { return &l.BlockMask }),
	codec.Field("empty_sky_light_mask", codec.List(codec.Int64), func(l *LightData) *[]int64 { return &l.EmptySkyMask }),
	codec.Field("empty_block_light_mask", codec.List(codec.Int64), func(l *LightData) *[]int64 { return &l.EmptyBlockMask }),
	codec.Field("sky_light", codec.List(codec.Bytes), func(l *LightData) *[][]byte { return &l.SkyLight }),
	codec.Field("block_light", codec.List(codec.Bytes), func(l *LightData) *[][]byte { return &l.BlockLight }),
)

// LevelChunkWithLight передаёт полный чанк: карты высот, секции и освещение.
type LevelChunkWithLight struct {
	X, Z          int32
	Heightmaps    nbt.Compound
	Sections      []ChunkSection
	BlockEntities []BlockEntity
	Light         LightData
}

// ForgetLevelChunk выгружает чанк у клиента. На проводе Z идёт первым.
type ForgetLevelChunk struct{ X, Z int32 }

// ChunkBatchStart открывает пачку чанков.
type ChunkBatchStart struct{}

// ChunkBatchFinished закрывает пачку и сообщает число чанков в ней.
type ChunkBatchFinished struct{ BatchSize int32 }

// SetChunkCacheCenter: чанк, вокруг которого клиент держит загруженную область.
type SetChunkCacheCenter struct{ X, Z int32 }

// BlockUpdate: изменение одного блока.
type BlockUpdate struct {
	Pos   BlockPos
	State int32
}

// SectionPos: координаты секции в единицах по 16 блоков.
type SectionPos struct{ X, Y, Z int32 }

// PackSectionPos: x (22 бита), z (22 бита), y (20 бит).
func PackSectionPos(p SectionPos) int64 {
	return (int64(p.X)&0x3FFFFF)<<42 | (int64(p.Z)&0x3FFFFF)<<20 | int64(p.Y)&0xFFFFF
}

// UnpackSectionPos восстанавливает координаты секции со знаком.
func UnpackSectionPos(v int64) SectionPos {
	return SectionPos{
		X: int32(v >> 42),
		Y: int32(v << 44 >> 44),
		Z: int32(v << 22 >> 42),
	}
}

// BlockChange: изменение блока внутри секции, координаты локальные (0..15).
type BlockChange struct {
	X, Y, Z uint8
	State   int32
}

func packBlockChange(c BlockChange) int64 {
	return int64(c.State)<<12 | int64(c.X&0xf)<<8 | int64(c.Z&0xf)<<4 | int64(c.Y&0xf)
}

func unpackBlockChange(v int64) BlockChange {
	return BlockChange{
		State: int32(v >> 12),
		X:     uint8(v>>8) & 0xf,
		Z:     uint8(v>>4) & 0xf,
		Y:     uint8(v) & 0xf,
	}
}

// SectionBlocksUpdate: несколько изменений в одной секции.
type SectionBlocksUpdate struct {
	Section SectionPos
	Blocks  []BlockChange
}

var (
	levelChunkSchema = define(Play, Clientbound, "level_chunk_with_light", codec.Struct(
		codec.Field("chunk_x", codec.Int32, func(p *LevelChunkWithLight) *int32 { return &p.X }),
		codec.Field("chunk_z", codec.Int32, func(p *LevelChunkWithLight) *int32 { return &p.Z }),
		codec.Field("heightmaps", nbt.Root, func(p *LevelChunkWithLight) *nbt.Compound { return &p.Heightmaps }),
		codec.Field("data", codec.Prefixed(codec.Codec[[]ChunkSection](sections{})), func(p *LevelChunkWithLight) *[]ChunkSection { return &p.Sections }),
		codec.Field("block_entities", codec.List(codec.Struct(
			codec.Field("packed_xz", codec.Uint8, func(b *BlockEntity) *uint8 { return &b.PackedXZ }),
			codec.Field("y", codec.Int16, func(b *BlockEntity) *int16 { return &b.Y }),
			codec.Field("type", codec.VarInt, func(b *BlockEntity) *int32 { return &b.Type }),
			codec.Field("data", nbt.Tag, func(b *BlockEntity) *any { return &b.Data }),
		)), func(p *LevelChunkWithLight) *[]BlockEntity { return &p.BlockEntities }),
		codec.Field("light", lightCodec, func(p *LevelChunkWithLight) *LightData { return &p.Light }),
	))
	forgetLevelChunkSchema = define(Play, Clientbound, "forget_level_chunk", codec.Struct(
		codec.Field("chunk_z", codec.Int32, func(p *ForgetLevelChunk) *int32 { return &p.Z }),
		codec.Field("chunk_x", codec.Int32, func(p *ForgetLevelChunk) *int32 { return &p.X }),
	))
	chunkBatchStartSchema    = define(Play, Clientbound, "chunk_batch_start", codec.Empty[ChunkBatchStart]())
	chunkBatchFinishedSchema = define(Play, Clientbound, "chunk_batch_finished", codec.Struct(
		codec.Field("batch_size", codec.VarInt, func(p *ChunkBatchFinished) *int32 { return &p.BatchSize }),
	))
	setChunkCacheCenterSchema = define(Play, Clientbound, "set_chunk_cache_center", codec.Struct(
		codec.Field("chunk_x", codec.VarInt, func(p *SetChunkCacheCenter) *int32 { return &p.X }),
		codec.Field("chunk_z", codec.VarInt, func(p *SetChunkCacheCenter) *int32 { return &p.Z }),
	))
	blockUpdateSchema = define(Play, Clientbound, "block_update", codec.Struct(
		codec.Field("location", Position, func(p *BlockUpdate) *BlockPos { return &p.Pos }),
		codec.Field("block_state", codec.VarInt, func(p *BlockUpdate) *int32 { return &p.State }),
	))
	sectionBlocksUpdateSchema = define(Play, Clientbound, "section_blocks_update", codec.Struct(
		codec.Field("section", codec.Map(codec.Int64, PackSectionPos, UnpackSectionPos), func(p *SectionBlocksUpdate) *SectionPos { return &p.Section }),
		codec.Field("blocks", codec.List(codec.Map(codec.VarLong, packBlockChange, unpackBlockChange)), func(p *SectionBlocksUpdate) *[]BlockChange { return &p.Blocks }),
	))
)
