// Package nbt реализует сетевую форму NBT: корневой тег без имени.
//
// Значения представлены обычными типами Go:
//
//	Byte      int8
//	Short     int16
//	Int       int32
//	Long      int64
//	Float     float32
//	Double    float64
//	ByteArray []byte
//	String    string
//	List      List
//	Compound  Compound
//	IntArray  []int32
//	LongArray []int64
package nbt

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/codec"
)

// Коды тегов.
const (
	TagEnd byte = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

// maxDepth ограничивает вложенность при чтении.
const maxDepth = 512

// Entry: именованный элемент составного тега.
type Entry struct {
	Name  string
	Value any
}

// Compound: упорядоченный составной тег. Порядок элементов сохраняется при кодировании.
type Compound []Entry

// Get возвращает значение по имени.
func (c Compound) Get(name string) (any, bool) {
	for _, e := range c {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// List: однородный список тегов.
type List struct {
	Type  byte
	Items []any
}

// TagOf возвращает код тега для значения.
func TagOf(v any) (byte, error) {
	switch v.(type) {
	case int8:
		return TagByte, nil
	case int16:
		return TagShort, nil
	case int32:
		return TagInt, nil
	case int64:
		return TagLong, nil
	case float32:
		return TagFloat, nil
	case float64:
		return TagDouble, nil
	case []byte:
		return TagByteArray, nil
	case string:
		return TagString, nil
	case List:
		return TagList, nil
	case Compound:
		return TagCompound, nil
	case []int32:
		return TagIntArray, nil
	case []int64:
		return TagLongArray, nil
	}
	return 0, errors.Wrapf(codec.ErrInvalidValue, "nbt: unsupported value %T", v)
}

func appendPayload(dst []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case int8:
		return append(dst, byte(x)), nil
	case int16:
		return codec.Int16.Append(dst, x)
	case int32:
		return codec.Int32.Append(dst, x)
	case int64:
		return codec.Int64.Append(dst, x)
	case float32:
		return codec.Float32.Append(dst, x)
	case float64:
		return codec.Float64.Append(dst, x)
	case []byte:
		dst, _ = codec.Int32.Append(dst, int32(len(x)))
		return append(dst, x...), nil
	case string:
		return appendMUTF8(dst, x)
	case List:
		return appendList(dst, x)
	case Compound:
		return appendCompound(dst, x)
	case []int32:
		dst, _ = codec.Int32.Append(dst, int32(len(x)))
		for _, e := range x {
			dst, _ = codec.Int32.Append(dst, e)
		}
		return dst, nil
	case []int64:
		dst, _ = codec.Int32.Append(dst, int32(len(x)))
		for _, e := range x {
			dst, _ = codec.Int64.Append(dst, e)
		}
		return dst, nil
	}
	return dst, errors.Wrapf(codec.ErrInvalidValue, "nbt: unsupported value %T", v)
}

func appendList(dst []byte, l List) ([]byte, error) {
	typ := l.Type
	if len(l.Items) == 0 {
		typ = TagEnd
	}
	dst = append(dst, typ)
	dst, _ = codec.Int32.Append(dst, int32(len(l.Items)))
	var err error
	for i, it := range l.Items {
		tag, terr := TagOf(it)
		if terr != nil {
			return dst, terr
		}
		if tag != typ {
			return dst, errors.Wrapf(codec.ErrInvalidValue, "nbt: list item %d has tag %d, list holds %d", i, tag, typ)
		}
		if dst, err = appendPayload(dst, it); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

func appendCompound(dst []byte, c Compound) ([]byte, error) {
	var err error
	for _, e := range c {
		tag, terr := TagOf(e.Value)
		if terr != nil {
			return dst, errors.Wrap(terr, e.Name)
		}
		dst = append(dst, tag)
		if dst, err = appendMUTF8(dst, e.Name); err != nil {
			return dst, err
		}
		if dst, err = appendPayload(dst, e.Value); err != nil {
			return dst, errors.Wrap(err, e.Name)
		}
	}
	return append(dst, TagEnd), nil
}

func decodePayload(src []byte, tag byte, depth int) (any, int, error) {
	if depth > maxDepth {
		return nil, 0, &codec.Error{Err: errors.Wrap(codec.ErrTooLong, "nbt: nesting too deep")}
	}
	switch tag {
	case TagByte:
		return decodeAs(codec.Int8, src)
	case TagShort:
		return decodeAs(codec.Int16, src)
	case TagInt:
		return decodeAs(codec.Int32, src)
	case TagLong:
		return decodeAs(codec.Int64, src)
	case TagFloat:
		return decodeAs(codec.Float32, src)
	case TagDouble:
		return decodeAs(codec.Float64, src)
	case TagByteArray:
		l, n, err := arrayLen(src, 1)
		if err != nil {
			return nil, 0, err
		}
		out := make([]byte, l)
		copy(out, src[n:])
		return out, n + l, nil
	case TagString:
		return decodeAs(codec.Codec[string](mutf8{}), src)
	case TagList:
		return decodeList(src, depth)
	case TagCompound:
		return decodeCompound(src, depth)
	case TagIntArray:
		l, n, err := arrayLen(src, 4)
		if err != nil {
			return nil, 0, err
		}
		out := make([]int32, l)
		for i := range out {
			out[i], _, _ = codec.Int32.Decode(src[n+4*i:])
		}
		return out, n + 4*l, nil
	case TagLongArray:
		l, n, err := arrayLen(src, 8)
		if err != nil {
			return nil, 0, err
		}
		out := make([]int64, l)
		for i := range out {
			out[i], _, _ = codec.Int64.Decode(src[n+8*i:])
		}
		return out, n + 8*l, nil
	}
	return nil, 0, &codec.Error{Err: errors.Wrapf(codec.ErrUnknownCase, "nbt: tag %d", tag)}
}

func decodeAs[T any](c codec.Codec[T], src []byte) (any, int, error) {
	v, n, err := c.Decode(src)
	if err != nil {
		return nil, 0, err
	}
	return v, n, nil
}

func arrayLen(src []byte, size int) (int, int, error) {
	l, n, err := codec.Int32.Decode(src)
	if err != nil {
		return 0, 0, err
	}
	if l < 0 {
		return 0, 0, &codec.Error{Err: codec.ErrNegativeLen}
	}
	if int64(l)*int64(size) > int64(len(src)-n) {
		return 0, 0, &codec.Error{Offset: len(src), Err: errors.Wrapf(codec.ErrTruncated, "array of %d elements", l)}
	}
	return int(l), n, nil
}

func decodeList(src []byte, depth int) (any, int, error) {
	if len(src) < 1 {
		return nil, 0, &codec.Error{Err: codec.ErrTruncated}
	}
	typ := src[0]
	l, n, err := codec.Int32.Decode(src[1:])
	if err != nil {
		return nil, 0, codec.Nest(err, "", 1)
	}
	off := 1 + n
	if l < 0 {
		return nil, 0, &codec.Error{Offset: 1, Err: codec.ErrNegativeLen}
	}
	if l > 0 && typ == TagEnd {
		return nil, 0, &codec.Error{Err: errors.Wrap(codec.ErrUnknownCase, "nbt: non-empty list of end tags")}
	}
	if int(l) > len(src)-off {
		return nil, 0, &codec.Error{Offset: len(src), Err: codec.ErrTruncated}
	}
	list := List{Type: typ, Items: make([]any, 0, l)}
	for i := 0; i < int(l); i++ {
		v, m, err := decodePayload(src[off:], typ, depth+1)
		if err != nil {
			return nil, 0, codec.Nest(err, fmt.Sprintf("[%d]", i), off)
		}
		list.Items = append(list.Items, v)
		off += m
	}
	if l == 0 {
		list.Type = TagEnd
	}
	return list, off, nil
}

func decodeCompound(src []byte, depth int) (any, int, error) {
	c := Compound{}
	off := 0
	for {
		if off >= len(src) {
			return nil, 0, &codec.Error{Offset: off, Err: errors.Wrap(codec.ErrTruncated, "nbt: unterminated compound")}
		}
		tag := src[off]
		off++
		if tag == TagEnd {
			return c, off, nil
		}
		name, n, err := decodeMUTF8(src[off:])
		if err != nil {
			return nil, 0, codec.Nest(err, "", off)
		}
		off += n
		v, m, err := decodePayload(src[off:], tag, depth+1)
		if err != nil {
			return nil, 0, codec.Nest(err, name, off)
		}
		off += m
		c = append(c, Entry{Name: name, Value: v})
	}
}

type mutf8 struct{}

func (mutf8) Append(dst []byte, v string) ([]byte, error) { return appendMUTF8(dst, v) }
func (mutf8) Decode(src []byte) (string, int, error)      { return decodeMUTF8(src) }

type network struct{}

func (network) Append(dst []byte, v any) ([]byte, error) {
	tag, err := TagOf(v)
	if err != nil {
		return dst, err
	}
	return appendPayload(append(dst, tag), v)
}

func (network) Decode(src []byte) (any, int, error) {
	if len(src) < 1 {
		return nil, 0, &codec.Error{Err: codec.ErrTruncated}
	}
	if src[0] == TagEnd {
		return nil, 0, &codec.Error{Err: errors.Wrap(codec.ErrUnknownCase, "nbt: end tag at root")}
	}
	v, n, err := decodePayload(src[1:], src[0], 0)
	if err != nil {
		return nil, 0, codec.Nest(err, "", 1)
	}
	return v, n + 1, nil
}

// Tag произвольный корневой тег в сетевой форме, код типа и полезная нагрузка без имени.
var Tag codec.Codec[any] = network{}

// Root: корневой составной тег.
var Root = codec.TryMap(Tag,
	func(c Compound) (any, error) { return c, nil },
	func(v any) (Compound, error) {
		c, ok := v.(Compound)
		if !ok {
			return nil, errors.Wrapf(codec.ErrUnknownCase, "nbt: root is %T, want compound", v)
		}
		return c, nil
	})

// String: строка модифицированного UTF-8 с двухбайтовой длиной.
var String codec.Codec[string] = mutf8{}
