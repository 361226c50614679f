package codec

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformed: корневая ошибка для любых некорректных входных данных.
// Все причины ниже проходят проверку errors.Is(err, ErrMalformed).
var ErrMalformed = errors.New("malformed input")

// ErrInvalidValue возвращается при кодировании значения, которое кодек не может представить.
var ErrInvalidValue = errors.New("invalid value")

// Причины ошибок декодирования.
var (
	ErrTruncated     = malformed("truncated buffer")
	ErrVarIntTooLong = malformed("variable-length integer does not terminate")
	ErrBadBool       = malformed("boolean byte is neither 0 nor 1")
	ErrBadOrdinal    = malformed("enum ordinal out of range")
	ErrBadBitmask    = malformed("bitmask has undefined bits set")
	ErrConstMismatch = malformed("constant field mismatch")
	ErrBadUTF8       = malformed("string is not valid UTF-8")
	ErrTooLong       = malformed("length exceeds limit")
	ErrNegativeLen   = malformed("negative length")
	ErrTrailing      = malformed("trailing or missing bytes")
	ErrUnknownCase   = malformed("no case for discriminator")
)

type malformed string

func (m malformed) Error() string { return string(m) }

func (m malformed) Is(target error) bool { return target == ErrMalformed }

// Error описывает ошибку декодирования с путём до поля и смещением в байтах.
type Error struct {
	Path   string
	Offset int
	Err    error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("codec: at byte %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("codec: %s at byte %d: %v", e.Path, e.Offset, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// at добавляет к ошибке имя поля и смещение вложенного кодека.
func at(err error, field string, off int) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		out := *ce
		out.Offset += off
		if field != "" {
			if out.Path == "" {
				out.Path = field
			} else {
				out.Path = field + "." + out.Path
			}
		}
		return &out
	}
	return &Error{Path: field, Offset: off, Err: err}
}

// Nest привязывает ошибку вложенного кодека к полю field со смещением off.
func Nest(err error, field string, off int) error { return at(err, field, off) }

func truncated(need, have int) error {
	return &Error{Offset: have, Err: errors.Wrapf(ErrTruncated, "need %d bytes, have %d", need, have)}
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidValue, format, args...)
}

// OffsetOf возвращает смещение ошибки декодирования или -1.
func OffsetOf(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Offset
	}
	return -1
}
