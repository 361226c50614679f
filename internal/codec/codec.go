// Package codec содержит композируемые кодеки бинарного протокола.
//
// Кодек: неизменяемое значение с двумя чистыми операциями: Append дописывает
// закодированное значение в буфер, Decode читает значение из начала буфера и
// возвращает число потреблённых байт. Для любого представимого v выполняется
// Decode(Append(nil, v)) == (v, len(Append(nil, v))).
package codec

// Codec: двунаправленное преобразование между значением T и байтами.
type Codec[T any] interface {
	Append(dst []byte, v T) ([]byte, error)
	Decode(src []byte) (T, int, error)
}

// Marshal кодирует значение в новый буфер.
func Marshal[T any](c Codec[T], v T) ([]byte, error) {
	return c.Append(nil, v)
}

// Unmarshal декодирует значение и требует, чтобы буфер был потреблён целиком.
func Unmarshal[T any](c Codec[T], src []byte) (T, error) {
	v, n, err := c.Decode(src)
	if err != nil {
		var zero T
		return zero, err
	}
	if n != len(src) {
		var zero T
		return zero, &Error{Offset: n, Err: ErrTrailing}
	}
	return v, nil
}
