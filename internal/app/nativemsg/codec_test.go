package nativemsg

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	codec := NewCodec(&buf, &buf, 0)

	type payload struct {
		Type string `json:"type"`
		N    int    `json:"n"`
	}
	require.NoError(t, codec.Write(payload{Type: "PING", N: 7}))

	var got payload
	require.NoError(t, codec.Read(&got))
	assert.Equal(t, payload{Type: "PING", N: 7}, got)
}

func TestReadEOFOnClosedChannel(t *testing.T) {
	codec := NewCodec(bytes.NewReader(nil), io.Discard, 0)

	var got any
	assert.ErrorIs(t, codec.Read(&got), io.EOF)
}

func TestReadRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], 1<<30)
	buf.Write(header[:])

	codec := NewCodec(&buf, io.Discard, 1024)

	var got any
	err := codec.Read(&got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestReadRejectsZeroLengthFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})

	codec := NewCodec(&buf, io.Discard, 0)

	var got any
	assert.Error(t, codec.Read(&got))
}

func TestReadTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], 10)
	buf.Write(header[:])
	buf.WriteString(`{"a"`)

	codec := NewCodec(&buf, io.Discard, 0)

	var got any
	assert.Error(t, codec.Read(&got))
}

func TestWriteFramesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	codec := NewCodec(&buf, &buf, 0)

	require.NoError(t, codec.Write(map[string]string{"type": "A"}))
	require.NoError(t, codec.Write(map[string]string{"type": "B"}))

	var first, second map[string]string
	require.NoError(t, codec.Read(&first))
	require.NoError(t, codec.Read(&second))
	assert.Equal(t, "A", first["type"])
	assert.Equal(t, "B", second["type"])
}
