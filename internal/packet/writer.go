package packet

import (
	"encoding/binary"
	"fmt"
)

var networkOrder = binary.BigEndian

// Writer encodes numeric values sequentially into an owned, fixed-size
// buffer. All multi-byte values are written in network byte order. The
// buffer does not grow; operations that would overrun fail and leave the
// cursor unchanged.
type Writer struct {
	buffer []byte
	offset int
}

func NewWriter(buffer []byte) *Writer {
	return &Writer{buffer, 0}
}

func NewWriterSize(n int) *Writer {
	return NewWriter(make([]byte, n))
}

func (w *Writer) WriteByte(v byte) error {
	if err := w.CheckCapacity(1); err != nil {
		return err
	}
	w.buffer[w.offset] = v
	w.offset++
	return nil
}

func (w *Writer) WriteUint16(v uint16) error {
	if err := w.CheckCapacity(2); err != nil {
		return err
	}
	networkOrder.PutUint16(w.buffer[w.offset:], v)
	w.offset += 2
	return nil
}

func (w *Writer) WriteUint32(v uint32) error {
	if err := w.CheckCapacity(4); err != nil {
		return err
	}
	networkOrder.PutUint32(w.buffer[w.offset:], v)
	w.offset += 4
	return nil
}

func (w *Writer) WriteUint64(v uint64) error {
	if err := w.CheckCapacity(8); err != nil {
		return err
	}
	networkOrder.PutUint64(w.buffer[w.offset:], v)
	w.offset += 8
	return nil
}

func (w *Writer) WriteInt16(v int16) error {
	return w.WriteUint16(uint16(v))
}

func (w *Writer) WriteInt32(v int32) error {
	return w.WriteUint32(uint32(v))
}

func (w *Writer) WriteInt64(v int64) error {
	return w.WriteUint64(uint64(v))
}

// WriteSlice writes the given bytes, if there is enough room.
func (w *Writer) WriteSlice(p []byte) error {
	if err := w.CheckCapacity(len(p)); err != nil {
		return err
	}
	w.offset += copy(w.buffer[w.offset:], p)
	return nil
}

func (w *Writer) WriteString(s string) error {
	if err := w.CheckCapacity(len(s)); err != nil {
		return err
	}
	w.offset += copy(w.buffer[w.offset:], s)
	return nil
}

// ZeroPad writes n zero bytes.
func (w *Writer) ZeroPad(n int) error {
	if err := w.CheckCapacity(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		w.buffer[w.offset] = 0
		w.offset++
	}
	return nil
}

// Length returns the number of bytes written so far.
func (w *Writer) Length() int {
	return w.offset
}

func (w *Writer) Offset() int {
	return w.offset
}

// Reset rewinds the cursor to a prior offset, e.g. to discard a partially
// written message.
func (w *Writer) Reset(pos int) error {
	if pos < 0 || pos > len(w.buffer) {
		return fmt.Errorf("packet: reset to %d outside buffer of %d bytes", pos, len(w.buffer))
	}
	w.offset = pos
	return nil
}

// Size returns the number of bytes that the underlying buffer can hold.
func (w *Writer) Size() int {
	return len(w.buffer)
}

// Remaining returns the writable space left in the buffer.
func (w *Writer) Remaining() int {
	return len(w.buffer) - w.offset
}

func (w *Writer) CheckCapacity(needed int) error {
	if needed < 0 || w.Remaining() < needed {
		return fmt.Errorf("packet: %d bytes available, %d needed", w.Remaining(), needed)
	}
	return nil
}

// Bytes returns a slice of the bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buffer[0:w.offset]
}
