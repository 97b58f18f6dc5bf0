package packet

import (
	"fmt"
)

// Reader decodes numeric values sequentially from a borrowed byte slice. All
// multi-byte values are read in network byte order. Every operation is
// bounds-checked: on failure the cursor does not move.
type Reader struct {
	buffer []byte
	offset int
}

func NewReader(buffer []byte) *Reader {
	return &Reader{buffer, 0}
}

func (r *Reader) ReadByte() (byte, error) {
	if err := r.CheckRemaining(1); err != nil {
		return 0, err
	}
	v := r.buffer[r.offset]
	r.offset++
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.CheckRemaining(2); err != nil {
		return 0, err
	}
	v := networkOrder.Uint16(r.buffer[r.offset:])
	r.offset += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.CheckRemaining(4); err != nil {
		return 0, err
	}
	v := networkOrder.Uint32(r.buffer[r.offset:])
	r.offset += 4
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.CheckRemaining(8); err != nil {
		return 0, err
	}
	v := networkOrder.Uint64(r.buffer[r.offset:])
	r.offset += 8
	return v, nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// Read copies min(remaining, len(p)) bytes into p and returns the count.
func (r *Reader) Read(p []byte) int {
	n := copy(p, r.buffer[r.offset:])
	r.offset += n
	return n
}

// ReadFull copies exactly len(p) bytes into p, or fails without consuming
// anything.
func (r *Reader) ReadFull(p []byte) error {
	if err := r.CheckRemaining(len(p)); err != nil {
		return err
	}
	r.offset += copy(p, r.buffer[r.offset:])
	return nil
}

// ReadSlice returns a view of the next n bytes. The slice aliases the
// underlying buffer and is only valid while the buffer is.
func (r *Reader) ReadSlice(n int) ([]byte, error) {
	if err := r.CheckRemaining(n); err != nil {
		return nil, err
	}
	v := r.buffer[r.offset : r.offset+n]
	r.offset += n
	return v, nil
}

// Skip advances the cursor n bytes without reading.
func (r *Reader) Skip(n int) error {
	if err := r.CheckRemaining(n); err != nil {
		return err
	}
	r.offset += n
	return nil
}

// Reset rewinds the cursor to a prior offset.
func (r *Reader) Reset(pos int) error {
	if pos < 0 || pos > len(r.buffer) {
		return fmt.Errorf("packet: reset to %d outside buffer of %d bytes", pos, len(r.buffer))
	}
	r.offset = pos
	return nil
}

func (r *Reader) Offset() int {
	return r.offset
}

func (r *Reader) Size() int {
	return len(r.buffer)
}

// Remaining returns the number of bytes left in the buffer.
func (r *Reader) Remaining() int {
	return len(r.buffer) - r.offset
}

func (r *Reader) CheckRemaining(needed int) error {
	if needed < 0 || r.Remaining() < needed {
		return fmt.Errorf("packet: %d bytes remaining, %d needed", r.Remaining(), needed)
	}
	return nil
}
