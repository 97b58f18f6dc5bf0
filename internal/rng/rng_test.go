package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint64Bounds(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v := Uint64(10, 20)
		assert.True(t, v >= 10 && v <= 20, "draw %d outside [10, 20]", v)
	}
}

func TestUint64Degenerate(t *testing.T) {
	assert.Equal(t, uint64(7), Uint64(7, 7))
	// Reversed bounds are tolerated.
	v := Uint64(20, 10)
	assert.True(t, v >= 10 && v <= 20)
}

func TestUint16Bounds(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v := Uint16(0, 3)
		assert.True(t, v <= 3)
	}
}

func TestFill(t *testing.T) {
	buf := make([]byte, 12)
	Fill(buf)
	allZero := true
	for _, b := range buf {
		if b != 0 {
			allZero = false
		}
	}
	// 2^-96 odds of a false failure.
	assert.False(t, allZero)
}
