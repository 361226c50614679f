package codec

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// Part: одно поле структурного кодека.
type Part[S any] interface {
	name() string
	appendTo(dst []byte, s *S) ([]byte, error)
	decodeInto(src []byte, s *S) (int, error)
}

type namedPart[S, F any] struct {
	label string
	c     Codec[F]
	get   func(*S) *F
}

// Field связывает именованное поле протокола с полем Go-структуры через аксессор.
func Field[S, F any](name string, c Codec[F], get func(*S) *F) Part[S] {
	return namedPart[S, F]{label: name, c: c, get: get}
}

func (p namedPart[S, F]) name() string { return p.label }

func (p namedPart[S, F]) appendTo(dst []byte, s *S) ([]byte, error) {
	return p.c.Append(dst, *p.get(s))
}

func (p namedPart[S, F]) decodeInto(src []byte, s *S) (int, error) {
	v, n, err := p.c.Decode(src)
	if err != nil {
		return 0, err
	}
	*p.get(s) = v
	return n, nil
}

type anonPart[S any] struct{ c Codec[struct{}] }

// Anon описывает поле без имени. Оно вносит байты, но не значение. Обычно в паре с Const.
func Anon[S any](c Codec[struct{}]) Part[S] { return anonPart[S]{c: c} }

func (anonPart[S]) name() string { return "" }

func (p anonPart[S]) appendTo(dst []byte, _ *S) ([]byte, error) {
	return p.c.Append(dst, struct{}{})
}

func (p anonPart[S]) decodeInto(src []byte, _ *S) (int, error) {
	_, n, err := p.c.Decode(src)
	return n, err
}

type structCodec[S any] struct {
	typ   string
	parts []Part[S]
}

// Struct собирает кодек структуры из упорядоченного списка полей.
func Struct[S any](parts ...Part[S]) Codec[S] {
	return structCodec[S]{typ: reflect.TypeOf((*S)(nil)).Elem().String(), parts: parts}
}

func (c structCodec[S]) Append(dst []byte, v S) ([]byte, error) {
	var err error
	for i, p := range c.parts {
		if dst, err = p.appendTo(dst, &v); err != nil {
			return dst, errors.Wrapf(err, "%s.%s", c.typ, partName(p, i))
		}
	}
	return dst, nil
}

func (c structCodec[S]) Decode(src []byte) (S, int, error) {
	var v S
	off := 0
	for i, p := range c.parts {
		n, err := p.decodeInto(src[off:], &v)
		if err != nil {
			var zero S
			return zero, 0, at(err, partName(p, i), off)
		}
		off += n
	}
	return v, off, nil
}

func partName[S any](p Part[S], i int) string {
	if n := p.name(); n != "" {
		return n
	}
	return fmt.Sprintf("<%d>", i)
}
