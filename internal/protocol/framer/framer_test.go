package framer

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

func testMessage(eventType string, payload string) Message {
	var headers Headers
	headers.Set(":message-type", eventstream.StringValue("event"))
	headers.Set(":event-type", eventstream.StringValue(eventType))
	headers.Set(":content-type", eventstream.StringValue("application/json"))
	return Message{Headers: headers, Payload: []byte(payload)}
}

func TestWriteReadFrames(t *testing.T) {
	f := NewCRCFramer(0)
	var buf bytes.Buffer
	require.NoError(t, f.WriteFrame(&buf, testMessage("first", `{"n":1}`)))
	require.NoError(t, f.WriteFrame(&buf, testMessage("second", `{"n":2}`)))
	require.NoError(t, f.WriteFrame(&buf, Message{}))

	first, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "first", first.Headers.Get(":event-type").String())
	assert.Equal(t, []byte(`{"n":1}`), first.Payload)

	second, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "second", second.Headers.Get(":event-type").String())

	empty, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, empty.Headers)
	assert.Empty(t, empty.Payload)

	_, err = f.ReadFrame(&buf)
	assert.Equal(t, io.EOF, err)
}

func TestFrameLayout(t *testing.T) {
	frame, err := NewCRCFramer(0).EncodeFrame(Message{Payload: []byte("abc")})
	require.NoError(t, err)
	require.Len(t, frame, MinFrameSize+3)

	assert.Equal(t, uint32(len(frame)), binary.BigEndian.Uint32(frame[0:4]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(frame[4:8]))
	assert.Equal(t, crc32.ChecksumIEEE(frame[0:8]), binary.BigEndian.Uint32(frame[8:12]))
	assert.Equal(t, []byte("abc"), frame[12:15])
	assert.Equal(t, crc32.ChecksumIEEE(frame[:15]), binary.BigEndian.Uint32(frame[15:]))
}

func TestCorruptedFrame(t *testing.T) {
	f := NewCRCFramer(0)
	frame, err := f.EncodeFrame(testMessage("corrupt", `{"value":"payload"}`))
	require.NoError(t, err)

	for i := range frame {
		corrupted := bytes.Clone(frame)
		corrupted[i] ^= 0x5a
		_, err := f.ReadFrame(bytes.NewReader(corrupted))
		require.Error(t, err, "byte %d", i)
		assert.Equal(t, merr.StreamError, merr.GetErrorType(err), "byte %d: %v", i, err)
		assert.False(t, merr.IsRetryableErr(err))
	}
}

func TestTruncatedFrame(t *testing.T) {
	f := NewCRCFramer(0)
	frame, err := f.EncodeFrame(testMessage("cut", "0123456789"))
	require.NoError(t, err)

	for _, n := range []int{1, 11, 12, len(frame) - 1} {
		_, err := f.ReadFrame(bytes.NewReader(frame[:n]))
		assert.ErrorIs(t, err, merr.ErrStreamTruncated, "length %d", n)
	}
}

func TestMaxFrameSize(t *testing.T) {
	small := NewCRCFramer(32)
	_, err := small.EncodeFrame(Message{Payload: bytes.Repeat([]byte("x"), 64)})
	assert.ErrorIs(t, err, merr.ErrStreamMalformed)

	frame, err := NewCRCFramer(0).EncodeFrame(Message{Payload: bytes.Repeat([]byte("x"), 64)})
	require.NoError(t, err)
	_, err = small.ReadFrame(bytes.NewReader(frame))
	assert.ErrorIs(t, err, merr.ErrStreamMalformed)
}

func TestUnknownHeaderType(t *testing.T) {
	// 头部值类型 0x0f 不存在，但两段 CRC 均正确。
	headers := []byte{1, 'x', 0x0f}
	total := uint32(MinFrameSize + len(headers))
	frame := make([]byte, 0, total)
	frame = binary.BigEndian.AppendUint32(frame, total)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(headers)))
	frame = binary.BigEndian.AppendUint32(frame, crc32.ChecksumIEEE(frame))
	frame = append(frame, headers...)
	frame = binary.BigEndian.AppendUint32(frame, crc32.ChecksumIEEE(frame))

	_, err := NewCRCFramer(0).ReadFrame(bytes.NewReader(frame))
	assert.ErrorIs(t, err, merr.ErrStreamMalformed)
}
