// Package half converts between float32 and the two 16-bit float encodings.
package half

import (
	"math"
	"unsafe"

	"github.com/x448/float16"
)

var nativeLittleEndian = func() bool {
	var x uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&x))
	return b[0] == 1
}()

// NativeLittleEndian reports the host byte order.
func NativeLittleEndian() bool { return nativeLittleEndian }

// BFloat16Trunc keeps the upper 16 bits of the float32 bit pattern.
// The low 16 mantissa bits are discarded, no rounding.
func BFloat16Trunc(f float32) uint16 {
	return uint16(math.Float32bits(f) >> 16)
}

// BFloat16ToFloat32 zero-extends a bfloat16 pattern into a float32.
func BFloat16ToFloat32(u uint16) float32 {
	return math.Float32frombits(uint32(u) << 16)
}

// Float16FromFloat32 encodes f as IEEE 754 binary16, rounding to nearest even.
func Float16FromFloat32(f float32) uint16 {
	return float16.Fromfloat32(f).Bits()
}

// Float16FromFloat64 encodes f as binary16 with a single round-to-nearest-even
// step. Going through float32 first can land on a binary16 midpoint and round
// the tie the wrong way.
func Float16FromFloat64(f float64) uint16 {
	if math.IsNaN(f) {
		return Float16FromFloat32(float32(f))
	}
	b := math.Float64bits(f)
	sign := uint16(b>>48) & 0x8000
	exp := int(b>>52) & 0x7ff
	mant := b & (1<<52 - 1)
	if exp == 0x7ff {
		return sign | 0x7c00
	}

	e := exp - 1023 + 15
	switch {
	case e >= 0x1f:
		return sign | 0x7c00
	case e < -10:
		// Below half the smallest subnormal.
		return sign
	case e <= 0:
		return sign | uint16(roundShift(mant|1<<52, uint(43-e)))
	}
	// A carry out of the mantissa bumps the exponent, up to infinity.
	return sign | uint16(roundShift(uint64(e)<<52|mant, 42))
}

// roundShift returns m >> n rounded to nearest, ties to even.
func roundShift(m uint64, n uint) uint64 {
	v := m >> n
	rem := m & (1<<n - 1)
	half := uint64(1) << (n - 1)
	if rem > half || (rem == half && v&1 == 1) {
		v++
	}
	return v
}

// Float16ToFloat32 decodes a binary16 pattern.
func Float16ToFloat32(u uint16) float32 {
	return float16.Frombits(u).Float32()
}

// hiIndex is the uint16 index of the high half of a 32-bit word in memory.
func hiIndex() int {
	if nativeLittleEndian {
		return 1
	}
	return 0
}

// TruncateBFloat16Slice views src as pairs of uint16 halves and picks the high
// half of every word, the same bits BFloat16Trunc selects arithmetically.
func TruncateBFloat16Slice(src []float32) []uint16 {
	out := make([]uint16, len(src))
	if len(src) == 0 {
		return out
	}
	view := unsafe.Slice((*uint16)(unsafe.Pointer(&src[0])), len(src)*2)
	hi := hiIndex()
	for i := range out {
		out[i] = view[2*i+hi]
	}
	return out
}

// ExtendBFloat16Slice writes every pattern into the high half of a zeroed
// 32-bit word and returns the words as float32.
func ExtendBFloat16Slice(src []uint16) []float32 {
	out := make([]float32, len(src))
	if len(src) == 0 {
		return out
	}
	view := unsafe.Slice((*uint16)(unsafe.Pointer(&out[0])), len(out)*2)
	hi := hiIndex()
	for i, u := range src {
		view[2*i+hi] = u
	}
	return out
}
