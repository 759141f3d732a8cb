package tensor

import (
	"github.com/klauspost/cpuid/v2"
)

// SelectDevice picks the best available compute device. Hosts with AVX2
// get the vectorized AccelCPU kernels; everything else falls back to plain
// CPU loops.
func SelectDevice() DeviceType {
	if cpuid.CPU.Supports(cpuid.AVX2) {
		return AccelCPU
	}
	return CPU
}
