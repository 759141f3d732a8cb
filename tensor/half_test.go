package tensor

import (
	"math"
	"testing"
)

func TestHalfRoundTripExactValues(t *testing.T) {
	// Values exactly representable in binary16 must survive unchanged.
	exact := []float32{0, 1, -1, 0.5, 2, 1024, -0.25, 65504}
	for _, v := range exact {
		got := HalfBitsToFloat32(Float32ToHalfBits(v))
		if got != v {
			t.Errorf("round trip of %v: got %v", v, got)
		}
	}
}

func TestHalfQuantization(t *testing.T) {
	// 0.1 is not representable in binary16; the round trip lands on the
	// nearest half value, within half precision (~2^-11 relative error).
	v := float32(0.1)
	got := HalfBitsToFloat32(Float32ToHalfBits(v))
	if got == v {
		t.Error("0.1 should not round trip exactly through half precision")
	}
	if math.Abs(float64(got-v)) > 1e-4 {
		t.Errorf("round trip of 0.1 too far off: got %v", got)
	}
}

func TestHalfOverflow(t *testing.T) {
	got := HalfBitsToFloat32(Float32ToHalfBits(1e6))
	if !math.IsInf(float64(got), 1) {
		t.Errorf("expected +Inf for overflow, got %v", got)
	}

	got = HalfBitsToFloat32(Float32ToHalfBits(-1e6))
	if !math.IsInf(float64(got), -1) {
		t.Errorf("expected -Inf for negative overflow, got %v", got)
	}
}

func TestHalfSpecialValues(t *testing.T) {
	inf := float32(math.Inf(1))
	if got := HalfBitsToFloat32(Float32ToHalfBits(inf)); !math.IsInf(float64(got), 1) {
		t.Errorf("expected +Inf, got %v", got)
	}

	nan := float32(math.NaN())
	if got := HalfBitsToFloat32(Float32ToHalfBits(nan)); !math.IsNaN(float64(got)) {
		t.Errorf("expected NaN, got %v", got)
	}

	negZero := float32(math.Copysign(0, -1))
	bits := Float32ToHalfBits(negZero)
	if bits != 0x8000 {
		t.Errorf("expected -0 half bits 0x8000, got %#x", bits)
	}
}

func TestHalfSubnormals(t *testing.T) {
	// Smallest positive subnormal half is 2^-24.
	tiny := float32(math.Pow(2, -24))
	got := HalfBitsToFloat32(Float32ToHalfBits(tiny))
	if got != tiny {
		t.Errorf("subnormal round trip of 2^-24: got %v", got)
	}

	// Below the subnormal range everything flushes to zero.
	got = HalfBitsToFloat32(Float32ToHalfBits(1e-10))
	if got != 0 {
		t.Errorf("expected underflow to 0, got %v", got)
	}
}

func TestRoundHalf(t *testing.T) {
	src, _ := NewTensor([]int{3}, Float32, CPU, []float32{1.0, 0.1, 100000})
	out, err := RoundHalf(src)
	if err != nil {
		t.Fatalf("RoundHalf failed: %v", err)
	}

	data, _ := out.Float32Data()
	if data[0] != 1.0 {
		t.Errorf("expected 1.0 unchanged, got %v", data[0])
	}
	if data[1] == 0.1 {
		t.Error("expected 0.1 to be quantized")
	}
	if !math.IsInf(float64(data[2]), 1) {
		t.Errorf("expected overflow to +Inf, got %v", data[2])
	}

	// Source must be untouched.
	srcData, _ := src.Float32Data()
	if srcData[1] != 0.1 {
		t.Errorf("RoundHalf modified its input: %v", srcData[1])
	}
}
