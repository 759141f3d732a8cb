package tensor

import (
	"math"
)

// Float32ToHalfBits converts a float32 to IEEE 754 binary16 bits with
// round-to-nearest-even. Values outside the half range become +/-Inf.
func Float32ToHalfBits(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127 + 15
	mant := bits & 0x7fffff

	// NaN / Inf
	if (bits>>23)&0xff == 0xff {
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	}

	if exp >= 31 {
		// Overflow to infinity
		return sign | 0x7c00
	}

	if exp <= 0 {
		if exp < -10 {
			// Underflow to signed zero
			return sign
		}
		// Subnormal half
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := uint16(mant >> shift)
		round := mant >> (shift - 1) & 1
		if round != 0 && (half&1 != 0 || mant&((1<<(shift-1))-1) != 0) {
			half++
		}
		return sign | half
	}

	half := sign | uint16(exp)<<10 | uint16(mant>>13)
	round := mant >> 12 & 1
	if round != 0 && (half&1 != 0 || mant&0xfff != 0) {
		half++
	}
	return half
}

// HalfBitsToFloat32 converts IEEE 754 binary16 bits back to float32.
func HalfBitsToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h >> 10 & 0x1f)
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: normalize
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3ff
		return math.Float32frombits(sign | e<<23 | mant<<13)
	case 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
	}
}

// RoundHalf quantizes a Float32 tensor through half precision, as a mixed
// precision forward pass would see it. The result is a fresh leaf tensor.
func RoundHalf(t *Tensor) (*Tensor, error) {
	data, err := t.Float32Data()
	if err != nil {
		return nil, err
	}

	result := make([]float32, len(data))
	for i, v := range data {
		result[i] = HalfBitsToFloat32(Float32ToHalfBits(v))
	}
	return NewTensor(t.Shape, t.DType, t.Device, result)
}
