package codec

import (
	"github.com/pkg/errors"
)

type switchCodec[L comparable, V any] struct {
	tag   Codec[L]
	tagOf func(V) L
	cases map[L]Codec[V]
}

// Switch кодирует размеченное объединение; дискриминатор tag выбирает кодек полезной нагрузки.
// tagOf определяет метку по значению при кодировании. Метка без ветви при чтении
// считается повреждёнными данными.
func Switch[L comparable, V any](tag Codec[L], tagOf func(V) L, cases map[L]Codec[V]) Codec[V] {
	return switchCodec[L, V]{tag: tag, tagOf: tagOf, cases: cases}
}

func (s switchCodec[L, V]) Append(dst []byte, v V) ([]byte, error) {
	label := s.tagOf(v)
	c, ok := s.cases[label]
	if !ok {
		return dst, invalid("no case for %v", label)
	}
	dst, err := s.tag.Append(dst, label)
	if err != nil {
		return dst, err
	}
	return c.Append(dst, v)
}

func (s switchCodec[L, V]) Decode(src []byte) (V, int, error) {
	var zero V
	label, n, err := s.tag.Decode(src)
	if err != nil {
		return zero, 0, err
	}
	c, ok := s.cases[label]
	if !ok {
		return zero, 0, &Error{Err: errors.Wrapf(ErrUnknownCase, "tag %v", label)}
	}
	v, m, err := c.Decode(src[n:])
	if err != nil {
		return zero, 0, at(err, "", n)
	}
	return v, n + m, nil
}

type as[V, T any] struct{ inner Codec[T] }

// As поднимает кодек конкретного типа T до кодека интерфейса V, который T реализует.
func As[V, T any](inner Codec[T]) Codec[V] { return as[V, T]{inner: inner} }

func (a as[V, T]) Append(dst []byte, v V) ([]byte, error) {
	t, ok := any(v).(T)
	if !ok {
		return dst, invalid("payload %T does not match case", v)
	}
	return a.inner.Append(dst, t)
}

func (a as[V, T]) Decode(src []byte) (V, int, error) {
	var zero V
	t, n, err := a.inner.Decode(src)
	if err != nil {
		return zero, 0, err
	}
	v, ok := any(t).(V)
	if !ok {
		return zero, 0, invalid("%T does not implement the case interface", t)
	}
	return v, n, nil
}
