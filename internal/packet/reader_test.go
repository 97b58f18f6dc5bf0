package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testData = []byte{
	0x80, 0xc8, 0x00, 0x06, 0x00, 0x00, 0x00, 0x55,
	0xce, 0xa5, 0x18, 0x3a, 0x39, 0xcc, 0x7d, 0x09,
	0x23, 0xed, 0x19, 0x07, 0x00, 0x00, 0x01, 0x56,
	0x00, 0x03, 0x73, 0x50, 0x12,
}

func TestReadNumeric(t *testing.T) {
	r := NewReader(testData)
	assert.Equal(t, 29, r.Size())
	assert.Equal(t, 29, r.Remaining())

	u8, err := r.ReadByte()
	assert.NoError(t, err)
	assert.Equal(t, byte(0x80), u8)
	assert.Equal(t, 28, r.Remaining())

	u16, err := r.ReadUint16()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0xc800), u16)
	assert.Equal(t, 26, r.Remaining())

	u32, err := r.ReadUint32()
	assert.NoError(t, err)
	assert.Equal(t, uint32(0x06000000), u32)
	assert.Equal(t, 22, r.Remaining())

	u64, err := r.ReadUint64()
	assert.NoError(t, err)
	assert.Equal(t, uint64(0x55cea5183a39cc7d), u64)
	assert.Equal(t, 14, r.Remaining())

	i16, err := r.ReadInt16()
	assert.NoError(t, err)
	assert.Equal(t, int16(0x0923), i16)
	assert.Equal(t, 12, r.Remaining())

	i32, err := r.ReadInt32()
	assert.NoError(t, err)
	assert.Equal(t, int32(-0x12e6f900), i32) // 0xed190700
	assert.Equal(t, 8, r.Remaining())

	i64, err := r.ReadInt64()
	assert.NoError(t, err)
	assert.Equal(t, int64(0x0001560003735012), i64)
	assert.Equal(t, 0, r.Remaining())

	// Exhausted: the cursor must not move on failure.
	_, err = r.ReadByte()
	assert.Error(t, err)
	assert.Equal(t, 0, r.Remaining())
}

func TestReadShortBuffer(t *testing.T) {
	r := NewReader(testData[:3])
	_, err := r.ReadUint32()
	assert.Error(t, err)
	assert.Equal(t, 0, r.Offset())

	// A shorter read still succeeds afterwards.
	u16, err := r.ReadUint16()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x80c8), u16)
}

func TestReadFullAndSlice(t *testing.T) {
	r := NewReader(testData)
	buf := make([]byte, 4)
	assert.NoError(t, r.ReadFull(buf))
	assert.Equal(t, testData[0:4], buf)

	s, err := r.ReadSlice(4)
	assert.NoError(t, err)
	assert.Equal(t, testData[4:8], s)

	long := make([]byte, 64)
	assert.Error(t, r.ReadFull(long))
	assert.Equal(t, 8, r.Offset())

	// Read is the permissive variant: copies what is left.
	n := r.Read(long)
	assert.Equal(t, 21, n)
	assert.Equal(t, 0, r.Remaining())
}

func TestSkipAndReset(t *testing.T) {
	r := NewReader(testData)
	assert.NoError(t, r.Skip(20))
	assert.Equal(t, 20, r.Offset())
	assert.Error(t, r.Skip(10))
	assert.Equal(t, 20, r.Offset())

	assert.NoError(t, r.Reset(4))
	assert.Equal(t, 4, r.Offset())
	assert.Error(t, r.Reset(30))
	assert.Error(t, r.Reset(-1))
	assert.Equal(t, 4, r.Offset())
}
