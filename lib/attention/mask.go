// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package attention

// BoolMask is a dense visibility mask of shape [batch, seq, seq],
// true where the query at row i may attend the key at column j.
type BoolMask struct {
	Batch int
	Seq   int

	// bits is the flat row-major backing: index b*Seq*Seq + i*Seq + j.
	bits []bool
}

// NewBoolMask returns an all-false mask of the given shape.
func NewBoolMask(batch, seq int) *BoolMask {
	return &BoolMask{
		Batch: batch,
		Seq:   seq,
		bits:  make([]bool, batch*seq*seq),
	}
}

// At reports visibility for batch element b, query i, key j.
func (m *BoolMask) At(b, i, j int) bool {
	return m.bits[(b*m.Seq+i)*m.Seq+j]
}

// row returns the mutable key row for batch element b and query i.
func (m *BoolMask) row(b, i int) []bool {
	start := (b*m.Seq + i) * m.Seq
	return m.bits[start : start+m.Seq]
}

// Additive converts the mask to the form consumed by softmax
// attention: 0 where visible, the dtype's lowest finite value where
// blocked.
func (m *BoolMask) Additive(dtype DType) *AdditiveMask {
	additive := &AdditiveMask{
		Batch:  m.Batch,
		Seq:    m.Seq,
		DType:  dtype,
		Values: make([]float32, len(m.bits)),
	}
	blocked := dtype.MinValue()
	for index, visible := range m.bits {
		if !visible {
			additive.Values[index] = blocked
		}
	}
	return additive
}

// AdditiveMask is the numeric mask of shape [batch, 1, seq, seq]. The
// singleton head dimension broadcasts over attention heads and is not
// materialized; Values holds batch*seq*seq float32s in row-major
// order.
type AdditiveMask struct {
	Batch  int
	Seq    int
	DType  DType
	Values []float32
}

// At returns the additive term for batch element b, query i, key j.
func (m *AdditiveMask) At(b, i, j int) float32 {
	return m.Values[(b*m.Seq+i)*m.Seq+j]
}
