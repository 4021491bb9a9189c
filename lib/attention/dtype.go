// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package attention

import (
	"fmt"
	"math"

	"github.com/x448/float16"
)

// DType identifies the floating point type the training step runs in.
// The additive mask must block positions with the lowest finite value
// of this type: a constant like float32's minimum would overflow to
// -Inf when the batch is cast down to a 16-bit type, and -Inf turns
// fully-blocked softmax rows into NaN.
type DType uint8

// Training dtypes. There is no float64 path; trainers do not use it.
const (
	DTypeFloat32 DType = iota
	DTypeFloat16
	DTypeBFloat16
)

// String returns the canonical lowercase name.
func (t DType) String() string {
	switch t {
	case DTypeFloat32:
		return "float32"
	case DTypeFloat16:
		return "float16"
	case DTypeBFloat16:
		return "bfloat16"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(t))
	}
}

// ParseDType maps a configuration string to a DType.
func ParseDType(name string) (DType, error) {
	switch name {
	case "float32", "fp32":
		return DTypeFloat32, nil
	case "float16", "fp16":
		return DTypeFloat16, nil
	case "bfloat16", "bf16":
		return DTypeBFloat16, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q", name)
	}
}

// bfloat16 has float32's exponent with a 7-bit mantissa, so its lowest
// finite value is expressible exactly in float32 bits.
const bfloat16MinBits = 0xFF7F_0000

// MinValue returns the lowest finite value representable in the dtype,
// as a float32. For the 16-bit types this is the value the mask holds
// after the trainer casts it down.
func (t DType) MinValue() float32 {
	switch t {
	case DTypeFloat16:
		return float16.Frombits(0xFBFF).Float32()
	case DTypeBFloat16:
		return math.Float32frombits(bfloat16MinBits)
	default:
		return -math.MaxFloat32
	}
}
