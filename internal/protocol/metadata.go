package protocol

import (
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/codec"
	"github.com/annel0/voxelgate/internal/nbt"
)

// MetaValue: типизированное значение метаданных сущности.
// Тип сериализатора определяется конкретным типом Go.
type MetaValue interface {
	MetaType() int32
}

// Значения метаданных по типам сериализаторов 1.21.
type (
	MetaByte        int8
	MetaVarInt      int32
	MetaVarLong     int64
	MetaFloat       float32
	MetaString      string
	MetaText        Text
	MetaOptText     struct{ Value *Text }
	MetaSlot        Slot
	MetaBool        bool
	MetaRotations   struct{ X, Y, Z float32 }
	MetaPosition    BlockPos
	MetaOptPosition struct{ Value *BlockPos }
	MetaDirection   Direction3
	MetaOptUUID     struct{ Value *uuid.UUID }
	MetaBlockState  int32
	MetaOptBlock    int32
	MetaNBT         struct{ Value any }
	MetaOptVarInt   struct{ Value *int32 }
	MetaPose        Pose
	MetaVector3     struct{ X, Y, Z float32 }
	MetaQuaternion  struct{ X, Y, Z, W float32 }
)

func (MetaByte) MetaType() int32        { return 0 }
func (MetaVarInt) MetaType() int32      { return 1 }
func (MetaVarLong) MetaType() int32     { return 2 }
func (MetaFloat) MetaType() int32       { return 3 }
func (MetaString) MetaType() int32      { return 4 }
func (MetaText) MetaType() int32        { return 5 }
func (MetaOptText) MetaType() int32     { return 6 }
func (MetaSlot) MetaType() int32        { return 7 }
func (MetaBool) MetaType() int32        { return 8 }
func (MetaRotations) MetaType() int32   { return 9 }
func (MetaPosition) MetaType() int32    { return 10 }
func (MetaOptPosition) MetaType() int32 { return 11 }
func (MetaDirection) MetaType() int32   { return 12 }
func (MetaOptUUID) MetaType() int32     { return 13 }
func (MetaBlockState) MetaType() int32  { return 14 }
func (MetaOptBlock) MetaType() int32    { return 15 }
func (MetaNBT) MetaType() int32         { return 16 }
func (MetaOptVarInt) MetaType() int32   { return 20 }
func (MetaPose) MetaType() int32        { return 21 }
func (MetaVector3) MetaType() int32     { return 29 }
func (MetaQuaternion) MetaType() int32  { return 30 }

// Direction3: одна из шести сторон блока.
type Direction3 int32

const (
	Down Direction3 = iota
	Up
	North
	South
	West
	East
)

// Pose: поза сущности.
type Pose int32

const (
	PoseStanding Pose = iota
	PoseFallFlying
	PoseSleeping
	PoseSwimming
	PoseSpinAttack
	PoseCrouching
	PoseLongJumping
	PoseDying
	PoseCroaking
	PoseUsingTongue
	PoseSitting
	PoseRoaring
	PoseSniffing
	PoseEmerging
	PoseDigging
	PoseSliding
	PoseShooting
	PoseInhaling
)

func intLabels[T ~int32](n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = T(i)
	}
	return out
}

func wrapped[M, T any](c codec.Codec[T], to func(M) T, from func(T) M) codec.Codec[MetaValue] {
	return codec.As[MetaValue](codec.Map(c, to, from))
}

var vec3 = codec.Struct(
	codec.Field("x", codec.Float32, func(v *MetaVector3) *float32 { return &v.X }),
	codec.Field("y", codec.Float32, func(v *MetaVector3) *float32 { return &v.Y }),
	codec.Field("z", codec.Float32, func(v *MetaVector3) *float32 { return &v.Z }),
)

var metaValueCodec = codec.Switch(codec.VarInt, MetaValue.MetaType, map[int32]codec.Codec[MetaValue]{
	0: wrapped(codec.Int8, func(m MetaByte) int8 { return int8(m) }, func(v int8) MetaByte { return MetaByte(v) }),
	1: wrapped(codec.VarInt, func(m MetaVarInt) int32 { return int32(m) }, func(v int32) MetaVarInt { return MetaVarInt(v) }),
	2: wrapped(codec.VarLong, func(m MetaVarLong) int64 { return int64(m) }, func(v int64) MetaVarLong { return MetaVarLong(v) }),
	3: wrapped(codec.Float32, func(m MetaFloat) float32 { return float32(m) }, func(v float32) MetaFloat { return MetaFloat(v) }),
	4: wrapped(longString, func(m MetaString) string { return string(m) }, func(v string) MetaString { return MetaString(v) }),
	5: wrapped(TextCodec, func(m MetaText) Text { return Text(m) }, func(v Text) MetaText { return MetaText(v) }),
	6: wrapped(codec.Optional(TextCodec), func(m MetaOptText) *Text { return m.Value }, func(v *Text) MetaOptText { return MetaOptText{v} }),
	7: wrapped(SlotCodec, func(m MetaSlot) Slot { return Slot(m) }, func(v Slot) MetaSlot { return MetaSlot(v) }),
	8: wrapped(codec.Bool, func(m MetaBool) bool { return bool(m) }, func(v bool) MetaBool { return MetaBool(v) }),
	9: wrapped(vec3, func(m MetaRotations) MetaVector3 { return MetaVector3(m) }, func(v MetaVector3) MetaRotations { return MetaRotations(v) }),
	10: wrapped(Position, func(m MetaPosition) BlockPos { return BlockPos(m) }, func(v BlockPos) MetaPosition { return MetaPosition(v) }),
	11: wrapped(codec.Optional(Position), func(m MetaOptPosition) *BlockPos { return m.Value }, func(v *BlockPos) MetaOptPosition { return MetaOptPosition{v} }),
	12: wrapped(codec.Enum(codec.VarInt, intLabels[Direction3](6)...),
		func(m MetaDirection) Direction3 { return Direction3(m) }, func(v Direction3) MetaDirection { return MetaDirection(v) }),
	13: wrapped(codec.Optional(codec.UUID), func(m MetaOptUUID) *uuid.UUID { return m.Value }, func(v *uuid.UUID) MetaOptUUID { return MetaOptUUID{v} }),
	14: wrapped(codec.VarInt, func(m MetaBlockState) int32 { return int32(m) }, func(v int32) MetaBlockState { return MetaBlockState(v) }),
	15: wrapped(codec.VarInt, func(m MetaOptBlock) int32 { return int32(m) }, func(v int32) MetaOptBlock { return MetaOptBlock(v) }),
	16: wrapped(nbt.Tag, func(m MetaNBT) any { return m.Value }, func(v any) MetaNBT { return MetaNBT{v} }),
	20: wrapped(codec.VarInt,
		func(m MetaOptVarInt) int32 {
			if m.Value == nil {
				return 0
			}
			return *m.Value + 1
		},
		func(v int32) MetaOptVarInt {
			if v == 0 {
				return MetaOptVarInt{}
			}
			x := v - 1
			return MetaOptVarInt{&x}
		}),
	21: wrapped(codec.Enum(codec.VarInt, intLabels[Pose](int(PoseInhaling)+1)...),
		func(m MetaPose) Pose { return Pose(m) }, func(v Pose) MetaPose { return MetaPose(v) }),
	29: codec.As[MetaValue](vec3),
	30: codec.As[MetaValue](codec.Struct(
		codec.Field("x", codec.Float32, func(q *MetaQuaternion) *float32 { return &q.X }),
		codec.Field("y", codec.Float32, func(q *MetaQuaternion) *float32 { return &q.Y }),
		codec.Field("z", codec.Float32, func(q *MetaQuaternion) *float32 { return &q.Z }),
		codec.Field("w", codec.Float32, func(q *MetaQuaternion) *float32 { return &q.W }),
	)),
})

// Metadata: значения метаданных по индексу. На проводе индексы идут по возрастанию.
type Metadata map[uint8]MetaValue

const metadataEnd = 0xff

type metadataCodec struct{}

func (metadataCodec) Append(dst []byte, m Metadata) ([]byte, error) {
	idx := make([]int, 0, len(m))
	for i := range m {
		if i == metadataEnd {
			return dst, errors.Wrap(codec.ErrInvalidValue, "metadata index 255 is reserved")
		}
		idx = append(idx, int(i))
	}
	sort.Ints(idx)
	var err error
	for _, i := range idx {
		dst = append(dst, byte(i))
		if dst, err = metaValueCodec.Append(dst, m[uint8(i)]); err != nil {
			return dst, errors.Wrapf(err, "metadata[%d]", i)
		}
	}
	return append(dst, metadataEnd), nil
}

func (metadataCodec) Decode(src []byte) (Metadata, int, error) {
	m := Metadata{}
	off := 0
	for {
		if off >= len(src) {
			return nil, 0, codec.Nest(&codec.Error{Err: codec.ErrTruncated}, "metadata", off)
		}
		i := src[off]
		off++
		if i == metadataEnd {
			return m, off, nil
		}
		v, n, err := metaValueCodec.Decode(src[off:])
		if err != nil {
			return nil, 0, codec.Nest(err, "metadata", off)
		}
		m[i] = v
		off += n
	}
}

// MetadataCodec: список метаданных, завершённый индексом 0xFF.
var MetadataCodec codec.Codec[Metadata] = metadataCodec{}

// EncodeMetaValue кодирует одно значение с типом. Используется для побайтового сравнения.
func EncodeMetaValue(v MetaValue) ([]byte, error) {
	return metaValueCodec.Append(nil, v)
}

// EquipmentSlot: слот экипировки сущности.
type EquipmentSlot uint8

const (
	MainHand EquipmentSlot = iota
	OffHand
	Feet
	Legs
	Chest
	Head
	Body
)

// Equipment: предметы по слотам.
type Equipment map[EquipmentSlot]Slot

type equipmentCodec struct{}

func (equipmentCodec) Append(dst []byte, e Equipment) ([]byte, error) {
	if len(e) == 0 {
		return dst, errors.Wrap(codec.ErrInvalidValue, "equipment must hold at least one slot")
	}
	slots := make([]int, 0, len(e))
	for s := range e {
		if s > Body {
			return dst, errors.Wrapf(codec.ErrInvalidValue, "equipment slot %d", s)
		}
		slots = append(slots, int(s))
	}
	sort.Ints(slots)
	var err error
	for i, s := range slots {
		b := byte(s)
		if i < len(slots)-1 {
			b |= 0x80
		}
		dst = append(dst, b)
		if dst, err = SlotCodec.Append(dst, e[EquipmentSlot(s)]); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

func (equipmentCodec) Decode(src []byte) (Equipment, int, error) {
	e := Equipment{}
	off := 0
	for {
		if off >= len(src) {
			return nil, 0, codec.Nest(&codec.Error{Err: codec.ErrTruncated}, "equipment", off)
		}
		b := src[off]
		slot := EquipmentSlot(b & 0x7f)
		if slot > Body {
			return nil, 0, codec.Nest(&codec.Error{Err: errors.Wrapf(codec.ErrBadOrdinal, "slot %d", slot)}, "equipment", off)
		}
		off++
		v, n, err := SlotCodec.Decode(src[off:])
		if err != nil {
			return nil, 0, codec.Nest(err, "equipment", off)
		}
		e[slot] = v
		off += n
		if b&0x80 == 0 {
			return e, off, nil
		}
	}
}

// EquipmentCodec: слоты с битом продолжения в старшем разряде байта слота.
var EquipmentCodec codec.Codec[Equipment] = equipmentCodec{}
