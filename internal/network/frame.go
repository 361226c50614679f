package network

import (
	"bufio"
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/codec"
)

const (
	// MaxFrameLen наибольшая длина кадра (три байта VarInt).
	MaxFrameLen = 1<<21 - 1
	// MaxUncompressedLen: наибольший размер пакета после распаковки.
	MaxUncompressedLen = 1 << 23

	frameLenBytes = 3
)

// Ошибки кадрирования. Все, кроме ErrFrameTooLarge при записи,, некорректный ввод.
var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum length")
	errEmptyFrame    = errors.Wrap(codec.ErrMalformed, "empty frame")
	errFrameLen      = errors.Wrap(codec.ErrMalformed, "frame length out of range")
	errDataLen       = errors.Wrap(codec.ErrMalformed, "decompressed size does not match data length")
	errBelowLimit    = errors.Wrap(codec.ErrMalformed, "compressed packet below threshold")
)

// FrameReader читает кадры varint(len) || данные. После включения сжатия
// данные: varint(data_len) || zlib(id||поля), data_len = 0 для несжатых.
type FrameReader struct {
	r         *bufio.Reader
	threshold int
	zr        io.ReadCloser
}

// NewFrameReader создаёт читатель без сжатия.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r), threshold: -1}
}

// SetThreshold включает сжатие; отрицательный порог его выключает.
func (fr *FrameReader) SetThreshold(threshold int) { fr.threshold = threshold }

// ReadFrame возвращает id||поля одного пакета.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	n, err := codec.ReadVarInt(fr.r, frameLenBytes)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > MaxFrameLen {
		return nil, errors.Wrapf(errFrameLen, "%d", n)
	}
	if n == 0 {
		return nil, errEmptyFrame
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(fr.r, frame); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if fr.threshold < 0 {
		return frame, nil
	}
	return fr.inflate(frame)
}

func (fr *FrameReader) inflate(frame []byte) ([]byte, error) {
	dataLen, off, err := codec.VarInt.Decode(frame)
	if err != nil {
		return nil, err
	}
	body := frame[off:]
	if dataLen == 0 {
		if len(body) == 0 {
			return nil, errEmptyFrame
		}
		return body, nil
	}
	if dataLen < 0 || dataLen > MaxUncompressedLen {
		return nil, errors.Wrapf(errDataLen, "data length %d", dataLen)
	}
	if int(dataLen) < fr.threshold {
		return nil, errors.Wrapf(errBelowLimit, "%d < %d", dataLen, fr.threshold)
	}

	if fr.zr == nil {
		fr.zr, err = zlib.NewReader(bytes.NewReader(body))
	} else {
		err = fr.zr.(zlib.Resetter).Reset(bytes.NewReader(body), nil)
	}
	if err != nil {
		fr.zr = nil
		return nil, errors.Wrap(codec.ErrMalformed, err.Error())
	}
	out := make([]byte, dataLen)
	if _, err := io.ReadFull(fr.zr, out); err != nil {
		return nil, errors.Wrapf(errDataLen, "inflate: %v", err)
	}
	var extra [1]byte
	if k, _ := fr.zr.Read(extra[:]); k != 0 {
		return nil, errors.Wrap(errDataLen, "inflated data is longer")
	}
	return out, nil
}

// FrameWriter пишет кадры. Не потокобезопасен: вызывающий держит мьютекс записи.
type FrameWriter struct {
	w         io.Writer
	threshold int
	zw        *zlib.Writer
	zbuf      bytes.Buffer
	buf       []byte
}

// NewFrameWriter создаёт писатель без сжатия.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w, threshold: -1}
}

// SetThreshold включает сжатие пакетов от threshold байт.
func (fw *FrameWriter) SetThreshold(threshold int) { fw.threshold = threshold }

// WriteFrame записывает id||поля одного пакета одним вызовом Write.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	body, err := fw.encode(payload)
	if err != nil {
		return err
	}
	if len(body) > MaxFrameLen {
		return errors.Wrapf(ErrFrameTooLarge, "%d bytes", len(body))
	}
	fw.buf = codec.AppendVarInt(fw.buf[:0], int32(len(body)))
	fw.buf = append(fw.buf, body...)
	_, err = fw.w.Write(fw.buf)
	return err
}

func (fw *FrameWriter) encode(payload []byte) ([]byte, error) {
	if fw.threshold < 0 {
		return payload, nil
	}
	if len(payload) < fw.threshold {
		return append([]byte{0}, payload...), nil
	}
	if len(payload) > MaxUncompressedLen {
		return nil, errors.Wrapf(ErrFrameTooLarge, "uncompressed %d bytes", len(payload))
	}

	fw.zbuf.Reset()
	if fw.zw == nil {
		fw.zw = zlib.NewWriter(&fw.zbuf)
	} else {
		fw.zw.Reset(&fw.zbuf)
	}
	if _, err := fw.zw.Write(payload); err != nil {
		return nil, err
	}
	if err := fw.zw.Close(); err != nil {
		return nil, err
	}
	out := codec.AppendVarInt(make([]byte, 0, codec.MaxVarIntLen+fw.zbuf.Len()), int32(len(payload)))
	return append(out, fw.zbuf.Bytes()...), nil
}
