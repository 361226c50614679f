package codec

import (
	"io"
)

const (
	// MaxVarIntLen: максимальная длина VarInt (32 бита по 7 бит на байт).
	MaxVarIntLen = 5
	// MaxVarLongLen: максимальная длина VarLong.
	MaxVarLongLen = 10
)

// AppendVarInt дописывает VarInt без возврата ошибки.
func AppendVarInt(dst []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// AppendVarLong дописывает VarLong без возврата ошибки.
func AppendVarLong(dst []byte, v int64) []byte {
	u := uint64(v)
	for u >= 0x80 {
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// VarIntLen возвращает число байт, которое займёт v.
func VarIntLen(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

func decodeVarUint(src []byte, max int) (uint64, int, error) {
	var v uint64
	for i := 0; i < max; i++ {
		if i >= len(src) {
			return 0, 0, truncated(i+1, len(src))
		}
		b := src[i]
		v |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, &Error{Offset: max - 1, Err: ErrVarIntTooLong}
}

type varInt struct{}

func (varInt) Append(dst []byte, v int32) ([]byte, error) { return AppendVarInt(dst, v), nil }

func (varInt) Decode(src []byte) (int32, int, error) {
	v, n, err := decodeVarUint(src, MaxVarIntLen)
	return int32(uint32(v)), n, err
}

type varLong struct{}

func (varLong) Append(dst []byte, v int64) ([]byte, error) { return AppendVarLong(dst, v), nil }

func (varLong) Decode(src []byte) (int64, int, error) {
	v, n, err := decodeVarUint(src, MaxVarLongLen)
	return int64(v), n, err
}

var (
	// VarInt: 32-битное целое, 7 бит полезной нагрузки на байт.
	VarInt Codec[int32] = varInt{}
	// VarLong: 64-битный вариант VarInt.
	VarLong Codec[int64] = varLong{}
)

// ReadVarInt читает VarInt из потока, не более maxLen байт.
// Используется транспортом для длины кадра, когда буфера ещё нет.
func ReadVarInt(r io.ByteReader, maxLen int) (int32, error) {
	var v uint32
	for i := 0; i < maxLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if i > 0 && err == io.EOF {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		v |= uint32(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return int32(v), nil
		}
	}
	return 0, &Error{Offset: maxLen - 1, Err: ErrVarIntTooLong}
}
