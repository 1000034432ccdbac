package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShiftRightTruncatesTowardZero(t *testing.T) {
	tests := []struct {
		name string
		v    int32
		s    uint
		want int32
	}{
		{"positive", 165, 2, 41},
		{"negative", -165, 2, -41},
		{"negative below one", -1, 4, 0},
		{"zero", 0, 9, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShiftRight(tt.v, tt.s))
		})
	}
}

func TestMulShiftIsSymmetric(t *testing.T) {
	for _, a := range []int32{1, 7, 165, 2048, 32767} {
		for _, b := range []int32{1, 13, 512, 2047} {
			assert.Equal(t, -MulShift(a, b, 11), MulShift(-a, b, 11), "a=%d b=%d", a, b)
			assert.Equal(t, MulShift(a, b, 11), MulShift(-a, -b, 11), "a=%d b=%d", a, b)
		}
	}
}

func TestMulShiftSaturates(t *testing.T) {
	assert.Equal(t, int32(1<<31-1), MulShift(1<<30, 1<<30, 0))
	assert.Equal(t, int32(-1<<31), MulShift(-(1 << 30), 1<<30, 0))
}

func TestMulDivZeroDenominator(t *testing.T) {
	assert.Equal(t, int32(0), MulDiv(100, 100, 0))
	assert.Equal(t, int32(-3), MulDiv(-10, 1, 3))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, int32(-72), Clamp(-500, -72, 77))
	assert.Equal(t, int32(77), Clamp(500, -72, 77))
	assert.Equal(t, int32(5), Clamp(5, -72, 77))
}

func TestBilinear(t *testing.T) {
	// flat surface
	assert.Equal(t, int32(2048), Bilinear(1000, 1600, 2048, 2048, 2048, 2048, 900, 1280, 200, 640))

	// corners
	assert.Equal(t, int32(100), Bilinear(900, 1280, 100, 200, 300, 400, 900, 1280, 200, 640))
	assert.Equal(t, int32(200), Bilinear(900, 1920, 100, 200, 300, 400, 900, 1280, 200, 640))
	assert.Equal(t, int32(300), Bilinear(1100, 1920, 100, 200, 300, 400, 900, 1280, 200, 640))
	assert.Equal(t, int32(400), Bilinear(1100, 1280, 100, 200, 300, 400, 900, 1280, 200, 640))

	// centre is the mean of the corners
	assert.Equal(t, int32(250), Bilinear(1000, 1600, 100, 200, 300, 400, 900, 1280, 200, 640))
}

func TestBilinearZeroSpan(t *testing.T) {
	assert.Equal(t, int32(100), Bilinear(900, 1280, 100, 200, 300, 400, 900, 1280, 0, 0))
}
