package protocol

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/codec"
)

// Packet: значение любого пакета каталога. Конкретный тип определяет схему.
type Packet = any

// Descriptor: схема пакета без параметра типа, для работы через каталог.
type Descriptor interface {
	ID() int32
	Name() string
	State() State
	Direction() Direction
	Type() reflect.Type
	MarshalPacket(p Packet) ([]byte, error)
	ReadPacket(b []byte) (Packet, error)
}

// Schema связывает числовой идентификатор, имя и кодек полей пакета типа T.
type Schema[T any] struct {
	state  State
	dir    Direction
	name   string
	id     int32
	fields codec.Codec[T]
}

func (s *Schema[T]) ID() int32            { return s.id }
func (s *Schema[T]) Name() string         { return s.name }
func (s *Schema[T]) State() State         { return s.state }
func (s *Schema[T]) Direction() Direction { return s.dir }
func (s *Schema[T]) Type() reflect.Type   { return reflect.TypeOf((*T)(nil)).Elem() }

// Append дописывает идентификатор и поля пакета без внешней длины.
func (s *Schema[T]) Append(dst []byte, v T) ([]byte, error) {
	dst = codec.AppendVarInt(dst, s.id)
	dst, err := s.fields.Append(dst, v)
	if err != nil {
		return dst, errors.Wrapf(err, "%s/%s/%s", s.state, s.dir, s.name)
	}
	return dst, nil
}

// Marshal кодирует идентификатор и поля. Используется транспортом со сжатием.
func (s *Schema[T]) Marshal(v T) ([]byte, error) {
	return s.Append(nil, v)
}

// Write кодирует полный кадр: varint(длина) || varint(id) || поля.
func (s *Schema[T]) Write(v T) ([]byte, error) {
	body, err := s.Marshal(v)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, codec.VarIntLen(int32(len(body)))+len(body))
	frame = codec.AppendVarInt(frame, int32(len(body)))
	return append(frame, body...), nil
}

// Read декодирует идентификатор и поля из буфера без внешней длины.
// Буфер должен быть потреблён ровно.
func (s *Schema[T]) Read(b []byte) (T, error) {
	var zero T
	id, n, err := codec.VarInt.Decode(b)
	if err != nil {
		return zero, err
	}
	if id != s.id {
		return zero, &codec.Error{Path: s.name, Err: errors.Wrapf(codec.ErrConstMismatch, "packet id %#x, want %#x", id, s.id)}
	}
	v, m, err := s.fields.Decode(b[n:])
	if err != nil {
		return zero, codec.Nest(err, s.name, n)
	}
	if n+m != len(b) {
		return zero, &codec.Error{Path: s.name, Offset: n + m, Err: errors.Wrapf(codec.ErrTrailing, "consumed %d of %d bytes", n+m, len(b))}
	}
	return v, nil
}

func (s *Schema[T]) MarshalPacket(p Packet) ([]byte, error) {
	v, ok := p.(T)
	if !ok {
		return nil, errors.Wrapf(codec.ErrInvalidValue, "%s expects %s, got %T", s.name, s.Type(), p)
	}
	return s.Marshal(v)
}

func (s *Schema[T]) ReadPacket(b []byte) (Packet, error) {
	v, err := s.Read(b)
	if err != nil {
		return nil, err
	}
	return v, nil
}
