package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteNumeric(t *testing.T) {
	w := NewWriterSize(len(testData))
	assert.Equal(t, 29, w.Size())
	assert.Equal(t, 29, w.Remaining())

	assert.NoError(t, w.WriteByte(0x80))
	assert.Equal(t, 28, w.Remaining())
	assert.NoError(t, w.WriteUint16(0xc800))
	assert.Equal(t, 26, w.Remaining())
	assert.NoError(t, w.WriteUint32(0x06000000))
	assert.Equal(t, 22, w.Remaining())
	assert.NoError(t, w.WriteUint64(0x55cea5183a39cc7d))
	assert.Equal(t, 14, w.Remaining())
	assert.NoError(t, w.WriteInt16(0x0923))
	assert.Equal(t, 12, w.Remaining())
	assert.NoError(t, w.WriteInt32(-0x12e6f900)) // 0xed190700
	assert.Equal(t, 8, w.Remaining())
	assert.NoError(t, w.WriteInt64(0x0001560003735012))
	assert.Equal(t, 0, w.Remaining())

	// Full: the cursor must not move on failure.
	assert.Error(t, w.WriteByte(0x12))
	assert.Equal(t, 0, w.Remaining())

	assert.Equal(t, testData, w.Bytes())
}

func TestWriteUint16Placement(t *testing.T) {
	w := NewWriterSize(29)
	assert.NoError(t, w.WriteUint16(0x00c8))
	assert.Equal(t, []byte{0x00, 0xc8}, w.Bytes())
	assert.Equal(t, 2, w.Length())
}

func TestWriteSliceAndPad(t *testing.T) {
	w := NewWriterSize(8)
	assert.NoError(t, w.WriteString("abcde"))
	assert.NoError(t, w.ZeroPad(3))
	assert.Equal(t, []byte{'a', 'b', 'c', 'd', 'e', 0, 0, 0}, w.Bytes())

	assert.Error(t, w.WriteSlice([]byte{1}))
	assert.Equal(t, 8, w.Length())
}

func TestWriterReset(t *testing.T) {
	w := NewWriterSize(8)
	assert.NoError(t, w.WriteUint32(0xdeadbeef))
	mark := w.Offset()
	assert.NoError(t, w.WriteUint16(0x0102))
	assert.NoError(t, w.Reset(mark))
	assert.Equal(t, 4, w.Length())
	assert.Error(t, w.Reset(9))
}
