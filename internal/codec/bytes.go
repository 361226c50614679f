package codec

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

// decodeLen читает неотрицательную длину и проверяет, что столько байт есть в буфере.
func decodeLen(src []byte) (int, int, error) {
	l, n, err := VarInt.Decode(src)
	if err != nil {
		return 0, 0, err
	}
	if l < 0 {
		return 0, 0, &Error{Err: errors.Wrapf(ErrNegativeLen, "length %d", l)}
	}
	if int(l) > len(src)-n {
		return 0, 0, truncated(n+int(l), len(src))
	}
	return int(l), n, nil
}

type str struct{ max int }

// String: строка UTF-8 с префиксом длины в байтах и ограничением в max символов.
func String(max int) Codec[string] { return str{max: max} }

func (s str) Append(dst []byte, v string) ([]byte, error) {
	if !utf8.ValidString(v) {
		return dst, invalid("string is not valid UTF-8")
	}
	if c := utf8.RuneCountInString(v); c > s.max {
		return dst, invalid("string has %d characters, limit %d", c, s.max)
	}
	dst = AppendVarInt(dst, int32(len(v)))
	return append(dst, v...), nil
}

func (s str) Decode(src []byte) (string, int, error) {
	l, n, err := VarInt.Decode(src)
	if err != nil {
		return "", 0, err
	}
	if l < 0 {
		return "", 0, &Error{Err: errors.Wrapf(ErrNegativeLen, "length %d", l)}
	}
	// символ UTF-8 занимает не больше четырёх байт
	if int(l) > s.max*4 {
		return "", 0, &Error{Err: errors.Wrapf(ErrTooLong, "%d bytes for %d characters", l, s.max)}
	}
	if int(l) > len(src)-n {
		return "", 0, truncated(n+int(l), len(src))
	}
	raw := src[n : n+int(l)]
	if !utf8.Valid(raw) {
		return "", 0, &Error{Offset: n, Err: ErrBadUTF8}
	}
	if c := utf8.RuneCount(raw); c > s.max {
		return "", 0, &Error{Offset: n, Err: errors.Wrapf(ErrTooLong, "%d characters, limit %d", c, s.max)}
	}
	return string(raw), n + int(l), nil
}

type byteArray struct{}

func (byteArray) Append(dst []byte, v []byte) ([]byte, error) {
	dst = AppendVarInt(dst, int32(len(v)))
	return append(dst, v...), nil
}

func (byteArray) Decode(src []byte) ([]byte, int, error) {
	l, n, err := decodeLen(src)
	if err != nil {
		return nil, 0, err
	}
	out := make([]byte, l)
	copy(out, src[n:])
	return out, n + l, nil
}

// Bytes: массив байт с префиксом длины.
var Bytes Codec[[]byte] = byteArray{}

type rest struct{}

func (rest) Append(dst []byte, v []byte) ([]byte, error) { return append(dst, v...), nil }

func (rest) Decode(src []byte) ([]byte, int, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, len(src), nil
}

// Rest забирает все оставшиеся байты пакета. Годится только последним полем.
var Rest Codec[[]byte] = rest{}

type fixedBytes struct{ n int }

// Fixed: массив ровно из n байт без префикса.
func Fixed(n int) Codec[[]byte] { return fixedBytes{n: n} }

func (f fixedBytes) Append(dst []byte, v []byte) ([]byte, error) {
	if len(v) != f.n {
		return dst, invalid("fixed array of %d bytes, got %d", f.n, len(v))
	}
	return append(dst, v...), nil
}

func (f fixedBytes) Decode(src []byte) ([]byte, int, error) {
	if len(src) < f.n {
		return nil, 0, truncated(f.n, len(src))
	}
	out := make([]byte, f.n)
	copy(out, src)
	return out, f.n, nil
}
