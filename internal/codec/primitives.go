package codec

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// fixed описывает числовой тип фиксированной ширины в big-endian.
type fixed[T any] struct {
	size int
	put  func([]byte, T) []byte
	get  func([]byte) T
}

func (f fixed[T]) Append(dst []byte, v T) ([]byte, error) {
	return f.put(dst, v), nil
}

func (f fixed[T]) Decode(src []byte) (T, int, error) {
	if len(src) < f.size {
		var zero T
		return zero, 0, truncated(f.size, len(src))
	}
	return f.get(src[:f.size]), f.size, nil
}

var be = binary.BigEndian

// Числа фиксированной ширины.
var (
	Uint8 Codec[uint8] = fixed[uint8]{1,
		func(b []byte, v uint8) []byte { return append(b, v) },
		func(b []byte) uint8 { return b[0] }}
	Int8 Codec[int8] = fixed[int8]{1,
		func(b []byte, v int8) []byte { return append(b, byte(v)) },
		func(b []byte) int8 { return int8(b[0]) }}
	Uint16 Codec[uint16] = fixed[uint16]{2, be.AppendUint16, be.Uint16}
	Int16  Codec[int16]  = fixed[int16]{2,
		func(b []byte, v int16) []byte { return be.AppendUint16(b, uint16(v)) },
		func(b []byte) int16 { return int16(be.Uint16(b)) }}
	Uint32 Codec[uint32] = fixed[uint32]{4, be.AppendUint32, be.Uint32}
	Int32  Codec[int32]  = fixed[int32]{4,
		func(b []byte, v int32) []byte { return be.AppendUint32(b, uint32(v)) },
		func(b []byte) int32 { return int32(be.Uint32(b)) }}
	Uint64 Codec[uint64] = fixed[uint64]{8, be.AppendUint64, be.Uint64}
	Int64  Codec[int64]  = fixed[int64]{8,
		func(b []byte, v int64) []byte { return be.AppendUint64(b, uint64(v)) },
		func(b []byte) int64 { return int64(be.Uint64(b)) }}
	Float32 Codec[float32] = fixed[float32]{4,
		func(b []byte, v float32) []byte { return be.AppendUint32(b, math.Float32bits(v)) },
		func(b []byte) float32 { return math.Float32frombits(be.Uint32(b)) }}
	Float64 Codec[float64] = fixed[float64]{8,
		func(b []byte, v float64) []byte { return be.AppendUint64(b, math.Float64bits(v)) },
		func(b []byte) float64 { return math.Float64frombits(be.Uint64(b)) }}
)

// Uint128: беззнаковое 128-битное число из двух половин.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// U128 кодирует старшую половину первой.
var U128 Codec[Uint128] = fixed[Uint128]{16,
	func(b []byte, v Uint128) []byte { return be.AppendUint64(be.AppendUint64(b, v.Hi), v.Lo) },
	func(b []byte) Uint128 { return Uint128{Hi: be.Uint64(b[:8]), Lo: be.Uint64(b[8:])} }}

// UUID использует ту же раскладку, что и U128.
var UUID Codec[uuid.UUID] = fixed[uuid.UUID]{16,
	func(b []byte, v uuid.UUID) []byte { return append(b, v[:]...) },
	func(b []byte) uuid.UUID {
		var id uuid.UUID
		copy(id[:], b)
		return id
	}}

type boolean struct{}

func (boolean) Append(dst []byte, v bool) ([]byte, error) {
	if v {
		return append(dst, 1), nil
	}
	return append(dst, 0), nil
}

func (boolean) Decode(src []byte) (bool, int, error) {
	if len(src) < 1 {
		return false, 0, truncated(1, 0)
	}
	switch src[0] {
	case 0:
		return false, 1, nil
	case 1:
		return true, 1, nil
	}
	return false, 0, &Error{Err: ErrBadBool}
}

// Bool: один байт, строго 0 или 1.
var Bool Codec[bool] = boolean{}

type unit struct{}

func (unit) Append(dst []byte, _ struct{}) ([]byte, error) { return dst, nil }

func (unit) Decode([]byte) (struct{}, int, error) { return struct{}{}, 0, nil }

// Unit не занимает ни одного байта.
var Unit Codec[struct{}] = unit{}
