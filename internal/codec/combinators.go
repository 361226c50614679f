package codec

import (
	"fmt"

	"github.com/pkg/errors"
)

// Integer: целые типы, пригодные для перечислений.
type Integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int | ~uint
}

// ---------------------------------------------------------------------------
// Optional
// ---------------------------------------------------------------------------

type optional[T any] struct{ inner Codec[T] }

// Optional кодирует флаг присутствия и, если он выставлен, само значение.
func Optional[T any](inner Codec[T]) Codec[*T] { return optional[T]{inner: inner} }

func (o optional[T]) Append(dst []byte, v *T) ([]byte, error) {
	if v == nil {
		return append(dst, 0), nil
	}
	return o.inner.Append(append(dst, 1), *v)
}

func (o optional[T]) Decode(src []byte) (*T, int, error) {
	present, n, err := Bool.Decode(src)
	if err != nil || !present {
		return nil, n, err
	}
	v, m, err := o.inner.Decode(src[n:])
	if err != nil {
		return nil, 0, at(err, "", n)
	}
	return &v, n + m, nil
}

// ---------------------------------------------------------------------------
// List / Array
// ---------------------------------------------------------------------------

type list[T any] struct{ elem Codec[T] }

// List: количество элементов (VarInt) и сами элементы подряд.
func List[T any](elem Codec[T]) Codec[[]T] { return list[T]{elem: elem} }

func (l list[T]) Append(dst []byte, v []T) ([]byte, error) {
	dst = AppendVarInt(dst, int32(len(v)))
	return appendAll(dst, l.elem, v)
}

func (l list[T]) Decode(src []byte) ([]T, int, error) {
	count, n, err := VarInt.Decode(src)
	if err != nil {
		return nil, 0, err
	}
	if count < 0 {
		return nil, 0, &Error{Err: errors.Wrapf(ErrNegativeLen, "count %d", count)}
	}
	return decodeAll(src, n, int(count), l.elem)
}

type array[T any] struct {
	elem Codec[T]
	n    int
}

// Array: ровно n элементов без префикса количества.
func Array[T any](elem Codec[T], n int) Codec[[]T] { return array[T]{elem: elem, n: n} }

func (a array[T]) Append(dst []byte, v []T) ([]byte, error) {
	if len(v) != a.n {
		return dst, invalid("array of %d elements, got %d", a.n, len(v))
	}
	return appendAll(dst, a.elem, v)
}

func (a array[T]) Decode(src []byte) ([]T, int, error) {
	return decodeAll(src, 0, a.n, a.elem)
}

func appendAll[T any](dst []byte, elem Codec[T], v []T) ([]byte, error) {
	var err error
	for i := range v {
		if dst, err = elem.Append(dst, v[i]); err != nil {
			return dst, errors.Wrapf(err, "element %d", i)
		}
	}
	return dst, nil
}

func decodeAll[T any](src []byte, off, count int, elem Codec[T]) ([]T, int, error) {
	capHint := count
	if rem := len(src) - off; capHint > rem {
		capHint = rem
	}
	out := make([]T, 0, capHint)
	for i := 0; i < count; i++ {
		v, m, err := elem.Decode(src[off:])
		if err != nil {
			return nil, 0, at(err, fmt.Sprintf("[%d]", i), off)
		}
		off += m
		// элементы ненулевой длины: оставшееся количество не может превышать оставшиеся байты
		if m > 0 && count-i-1 > len(src)-off {
			return nil, 0, truncated(off+count-i-1, len(src))
		}
		out = append(out, v)
	}
	return out, off, nil
}

// ---------------------------------------------------------------------------
// Enum / Bitmask
// ---------------------------------------------------------------------------

type enum[L comparable, I Integer] struct {
	under  Codec[I]
	labels []L
}

// Enum кодирует порядковый номер метки в списке labels через целочисленный кодек.
func Enum[L comparable, I Integer](under Codec[I], labels ...L) Codec[L] {
	return enum[L, I]{under: under, labels: labels}
}

func (e enum[L, I]) Append(dst []byte, v L) ([]byte, error) {
	for i, l := range e.labels {
		if l == v {
			return e.under.Append(dst, I(i))
		}
	}
	return dst, invalid("unknown enum label %v", v)
}

func (e enum[L, I]) Decode(src []byte) (L, int, error) {
	var zero L
	ord, n, err := e.under.Decode(src)
	if err != nil {
		return zero, 0, err
	}
	if int64(ord) < 0 || int64(ord) >= int64(len(e.labels)) {
		return zero, 0, &Error{Err: errors.Wrapf(ErrBadOrdinal, "ordinal %d of %d", int64(ord), len(e.labels))}
	}
	return e.labels[ord], n, nil
}

type bitmask[L comparable] struct{ flags []L }

// Bitmask кодирует подмножество флагов в один байт: бит i выставлен, если присутствует flags[i].
// Декодированный набор упорядочен так же, как flags.
func Bitmask[L comparable](flags ...L) Codec[[]L] {
	if len(flags) > 8 {
		panic(fmt.Sprintf("codec: bitmask of %d flags does not fit a byte", len(flags)))
	}
	return bitmask[L]{flags: flags}
}

func (b bitmask[L]) Append(dst []byte, v []L) ([]byte, error) {
	var mask byte
next:
	for _, f := range v {
		for i, l := range b.flags {
			if l == f {
				mask |= 1 << uint(i)
				continue next
			}
		}
		return dst, invalid("unknown flag %v", f)
	}
	return append(dst, mask), nil
}

func (b bitmask[L]) Decode(src []byte) ([]L, int, error) {
	if len(src) < 1 {
		return nil, 0, truncated(1, 0)
	}
	mask := src[0]
	if mask>>uint(len(b.flags)) != 0 {
		return nil, 0, &Error{Err: errors.Wrapf(ErrBadBitmask, "mask %#02x, %d flags", mask, len(b.flags))}
	}
	var out []L
	for i, l := range b.flags {
		if mask&(1<<uint(i)) != 0 {
			out = append(out, l)
		}
	}
	return out, 1, nil
}

// ---------------------------------------------------------------------------
// Const / Map
// ---------------------------------------------------------------------------

type constant[T comparable] struct {
	inner Codec[T]
	want  T
}

// Const всегда пишет want и отвергает любое другое значение при чтении.
// Используется как анонимное поле структуры.
func Const[T comparable](inner Codec[T], want T) Codec[struct{}] {
	return constant[T]{inner: inner, want: want}
}

func (c constant[T]) Append(dst []byte, _ struct{}) ([]byte, error) {
	return c.inner.Append(dst, c.want)
}

func (c constant[T]) Decode(src []byte) (struct{}, int, error) {
	v, n, err := c.inner.Decode(src)
	if err != nil {
		return struct{}{}, 0, err
	}
	if v != c.want {
		return struct{}{}, 0, &Error{Err: errors.Wrapf(ErrConstMismatch, "got %v, want %v", v, c.want)}
	}
	return struct{}{}, n, nil
}

type mapped[E, I any] struct {
	inner Codec[I]
	to    func(E) (I, error)
	from  func(I) (E, error)
}

// Map переводит кодек во внешнее представление парой чистых функций.
func Map[E, I any](inner Codec[I], to func(E) I, from func(I) E) Codec[E] {
	return mapped[E, I]{
		inner: inner,
		to:    func(e E) (I, error) { return to(e), nil },
		from:  func(i I) (E, error) { return from(i), nil },
	}
}

// TryMap: вариант Map, где преобразования могут отказать.
// Ошибка from при чтении должна оборачивать ErrMalformed, ошибка to, ErrInvalidValue.
func TryMap[E, I any](inner Codec[I], to func(E) (I, error), from func(I) (E, error)) Codec[E] {
	return mapped[E, I]{inner: inner, to: to, from: from}
}

func (m mapped[E, I]) Append(dst []byte, v E) ([]byte, error) {
	i, err := m.to(v)
	if err != nil {
		return dst, err
	}
	return m.inner.Append(dst, i)
}

func (m mapped[E, I]) Decode(src []byte) (E, int, error) {
	var zero E
	i, n, err := m.inner.Decode(src)
	if err != nil {
		return zero, 0, err
	}
	e, err := m.from(i)
	if err != nil {
		return zero, 0, at(err, "", 0)
	}
	return e, n, nil
}

// Offset сдвигает целое на delta: на проводе хранится v+delta.
func Offset[I Integer](inner Codec[I], delta I) Codec[I] {
	return Map(inner, func(v I) I { return v + delta }, func(v I) I { return v - delta })
}

// Empty: значение без полезной нагрузки, для ветвей Switch.
func Empty[T any]() Codec[T] {
	return Map(Unit, func(T) struct{} { return struct{}{} }, func(struct{}) T {
		var zero T
		return zero
	})
}

// ---------------------------------------------------------------------------
// Prefixed
// ---------------------------------------------------------------------------

type prefixed[T any] struct{ inner Codec[T] }

// Prefixed пишет длину закодированного значения перед ним; при чтении
// вложенный кодек обязан потребить ровно столько байт.
func Prefixed[T any](inner Codec[T]) Codec[T] { return prefixed[T]{inner: inner} }

func (p prefixed[T]) Append(dst []byte, v T) ([]byte, error) {
	body, err := p.inner.Append(nil, v)
	if err != nil {
		return dst, err
	}
	dst = AppendVarInt(dst, int32(len(body)))
	return append(dst, body...), nil
}

func (p prefixed[T]) Decode(src []byte) (T, int, error) {
	var zero T
	l, n, err := decodeLen(src)
	if err != nil {
		return zero, 0, err
	}
	v, m, err := p.inner.Decode(src[n : n+l])
	if err != nil {
		return zero, 0, at(err, "", n)
	}
	if m != l {
		return zero, 0, &Error{Offset: n + m, Err: errors.Wrapf(ErrTrailing, "consumed %d of %d", m, l)}
	}
	return v, n + l, nil
}
