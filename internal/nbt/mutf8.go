package nbt

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/codec"
)

// Строки NBT хранятся в модифицированном UTF-8: NUL кодируется двумя байтами,
// символы вне BMP записываются суррогатными парами по три байта каждая.

func appendMUTF8(dst []byte, s string) ([]byte, error) {
	start := len(dst)
	dst = append(dst, 0, 0)
	for _, r := range s {
		switch {
		case r == 0:
			dst = append(dst, 0xc0, 0x80)
		case r < 0x80:
			dst = append(dst, byte(r))
		case r < 0x800:
			dst = append(dst, 0xc0|byte(r>>6), 0x80|byte(r&0x3f))
		case r < 0x10000:
			dst = append(dst, 0xe0|byte(r>>12), 0x80|byte((r>>6)&0x3f), 0x80|byte(r&0x3f))
		default:
			hi, lo := utf16.EncodeRune(r)
			dst = appendSurrogate(dst, hi)
			dst = appendSurrogate(dst, lo)
		}
	}
	n := len(dst) - start - 2
	if n > 0xffff {
		return dst[:start], errors.Wrapf(codec.ErrInvalidValue, "nbt string of %d bytes", n)
	}
	dst[start] = byte(n >> 8)
	dst[start+1] = byte(n)
	return dst, nil
}

func appendSurrogate(dst []byte, r rune) []byte {
	return append(dst, 0xe0|byte(r>>12), 0x80|byte((r>>6)&0x3f), 0x80|byte(r&0x3f))
}

func decodeMUTF8(src []byte) (string, int, error) {
	l, n, err := codec.Uint16.Decode(src)
	if err != nil {
		return "", 0, err
	}
	if len(src)-n < int(l) {
		return "", 0, &codec.Error{Offset: len(src), Err: errors.Wrapf(codec.ErrTruncated, "string of %d bytes", l)}
	}
	raw := src[n : n+int(l)]
	out := make([]byte, 0, len(raw))
	var pending rune = -1
	for i := 0; i < len(raw); {
		b := raw[i]
		var r rune
		switch {
		case b < 0x80 && b != 0:
			r = rune(b)
			i++
		case b&0xe0 == 0xc0 && i+1 < len(raw) && raw[i+1]&0xc0 == 0x80:
			r = rune(b&0x1f)<<6 | rune(raw[i+1]&0x3f)
			i += 2
		case b&0xf0 == 0xe0 && i+2 < len(raw) && raw[i+1]&0xc0 == 0x80 && raw[i+2]&0xc0 == 0x80:
			r = rune(b&0x0f)<<12 | rune(raw[i+1]&0x3f)<<6 | rune(raw[i+2]&0x3f)
			i += 3
		default:
			return "", 0, &codec.Error{Offset: n + i, Err: codec.ErrBadUTF8}
		}
		switch {
		case utf16.IsSurrogate(r) && r < 0xdc00:
			if pending >= 0 {
				return "", 0, &codec.Error{Offset: n + i, Err: codec.ErrBadUTF8}
			}
			pending = r
			continue
		case utf16.IsSurrogate(r):
			if pending < 0 {
				return "", 0, &codec.Error{Offset: n + i, Err: codec.ErrBadUTF8}
			}
			r = utf16.DecodeRune(pending, r)
			pending = -1
		case pending >= 0:
			return "", 0, &codec.Error{Offset: n + i, Err: codec.ErrBadUTF8}
		}
		out = utf8.AppendRune(out, r)
	}
	if pending >= 0 {
		return "", 0, &codec.Error{Offset: n + len(raw), Err: codec.ErrBadUTF8}
	}
	return string(out), n + int(l), nil
}
