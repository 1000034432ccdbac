// Package fixedpoint holds the integer arithmetic shared by the fuelling
// code. Scaling of signed values goes through the magnitude so results are
// truncated toward zero for either sign.
package fixedpoint

// Abs returns |v|
func Abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// Sign returns -1 for negative values and 1 otherwise
func Sign(v int32) int32 {
	if v < 0 {
		return -1
	}
	return 1
}

// ShiftRight scales v down by 2^s, truncating toward zero
func ShiftRight(v int32, s uint) int32 {
	return Sign(v) * (Abs(v) >> s)
}

// MulShift returns a*b / 2^s truncated toward zero. The product is formed in
// 64 bits and saturated to the int32 range.
func MulShift(a, b int32, s uint) int32 {
	p := int64(a) * int64(b)
	neg := p < 0
	if neg {
		p = -p
	}
	p >>= s
	if neg {
		p = -p
	}
	return Saturate(p)
}

// MulDiv returns a*b/d truncated toward zero, or 0 when d is 0
func MulDiv(a, b, d int32) int32 {
	if d == 0 {
		return 0
	}
	return Saturate(int64(a) * int64(b) / int64(d))
}

// Saturate clamps a 64-bit intermediate into int32
func Saturate(v int64) int32 {
	const hi, lo = 1<<31 - 1, -1 << 31
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return int32(v)
}

// Clamp restricts v to [lo, hi]
func Clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Bilinear interpolates four corner values at (x, y). Corner order is
// a1 (xs, ys), a2 (xs, ys+yl), a3 (xs+xl, ys+yl), a4 (xs+xl, ys). xl and yl are
// the cell spans; a zero span collapses that axis onto its first edge.
func Bilinear(x, y int16, a1, a2, a3, a4 int32, xs, ys, xl, yl int16) int32 {
	a23, a14 := a2, a1
	if xl != 0 {
		a23 = a2 + MulDiv(a3-a2, int32(x)-int32(xs), int32(xl))
		a14 = a1 + MulDiv(a4-a1, int32(x)-int32(xs), int32(xl))
	}
	if yl == 0 {
		return a14
	}
	return a14 + MulDiv(a23-a14, int32(y)-int32(ys), int32(yl))
}
