package network

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelgate/internal/codec"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	payloads := [][]byte{{0x00}, {0x01, 0x02, 0x03}, bytes.Repeat([]byte{0x7f}, 300)}
	for _, p := range payloads {
		require.NoError(t, w.WriteFrame(p))
	}
	assert.Equal(t, []byte{0x01, 0x00}, buf.Bytes()[:2], "varint(len) || данные")

	r := NewFrameReader(&buf)
	for _, want := range payloads {
		got, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameCompression(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	w.SetThreshold(64)

	small := []byte{0x05, 0x01}
	require.NoError(t, w.WriteFrame(small))
	assert.Equal(t, []byte{0x03, 0x00, 0x05, 0x01}, buf.Bytes(), "Меньше порога: data_len = 0")

	big := bytes.Repeat([]byte("voxel"), 100)
	require.NoError(t, w.WriteFrame(big))
	assert.Less(t, buf.Len(), 4+len(big), "Повторяющиеся данные сжимаются")

	r := NewFrameReader(&buf)
	r.SetThreshold(64)
	got, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, small, got)
	got, err = r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, big, got)
}

// compressedFrame собирает сжатый кадр с заданным data_len.
func compressedFrame(t *testing.T, dataLen int32, payload []byte) []byte {
	t.Helper()
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	body := codec.AppendVarInt(nil, dataLen)
	body = append(body, z.Bytes()...)
	return append(codec.AppendVarInt(nil, int32(len(body))), body...)
}

func TestFrameRejectsMalformed(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 100)
	cases := []struct {
		name      string
		data      []byte
		threshold int
	}{
		{"data_len больше распакованного", compressedFrame(t, 120, payload), 64},
		{"data_len меньше распакованного", compressedFrame(t, 90, payload), 64},
		{"сжат пакет меньше порога", compressedFrame(t, 100, payload), 256},
		{"пустой кадр", []byte{0x00}, -1},
		{"длина кадра длиннее трёх байт", []byte{0xff, 0xff, 0xff, 0x01}, -1},
		{"пустое тело после data_len", []byte{0x01, 0x00}, 64},
		{"мусор вместо zlib", []byte{0x04, 0x50, 0x01, 0x02, 0x03}, 64},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewFrameReader(bytes.NewReader(tc.data))
			r.SetThreshold(tc.threshold)
			_, err := r.ReadFrame()
			require.Error(t, err)
			assert.ErrorIs(t, err, codec.ErrMalformed)
		})
	}
}

func TestFrameTruncated(t *testing.T) {
	r := NewFrameReader(bytes.NewReader([]byte{0x0a, 0x01, 0x02}))
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFrameWriterLimit(t *testing.T) {
	w := NewFrameWriter(io.Discard)
	err := w.WriteFrame(make([]byte, MaxFrameLen+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.NoError(t, w.WriteFrame(make([]byte, MaxFrameLen)))
}
