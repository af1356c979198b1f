package taskgo

import (
	"slices"

	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/shapes"
)

// operandIterator walks the flat indices of one operand while the kernel
// walks the logical positions of the output in row-major order. It folds
// two concerns into one walk: implicit broadcasting (size-1 axes and
// missing leading axes contribute stride 0) and explicit, possibly
// non-contiguous element strides.
type operandIterator struct {
	flatIdx    int
	perAxesIdx []int
	targetDims []int
	// strides per output axis: 0 for broadcast axes, the operand's element
	// stride otherwise.
	strides []int
}

// newOperandIterator positions the iterator at the given logical output
// position. The operand's shape must be broadcast-compatible with outShape,
// aligned at the trailing axes; this was validated at submission.
func newOperandIterator(operand backends.Operand, outShape shapes.Shape, start int) *operandIterator {
	rank := outShape.Rank()
	effective := make([]int, rank)
	opStrides := operand.Strides
	if opStrides == nil {
		opStrides = operand.Shape.Strides()
	}
	shift := rank - operand.Shape.Rank()
	for axis, dim := range operand.Shape.Dimensions {
		if dim != 1 {
			effective[axis+shift] = opStrides[axis]
		}
	}
	it := &operandIterator{
		perAxesIdx: make([]int, rank),
		targetDims: outShape.Dimensions,
		strides:    effective,
	}
	it.seek(start)
	return it
}

// seek repositions the iterator at a logical output position. Used by
// parallel-loop workers to start at their sub-range.
func (it *operandIterator) seek(logical int) {
	it.flatIdx = 0
	for axis := len(it.targetDims) - 1; axis >= 0; axis-- {
		dim := it.targetDims[axis]
		if dim > 0 {
			it.perAxesIdx[axis] = logical % dim
			logical /= dim
		} else {
			it.perAxesIdx[axis] = 0
		}
		it.flatIdx += it.perAxesIdx[axis] * it.strides[axis]
	}
}

// Next returns the operand's flat index for the current logical position
// and advances to the next one.
func (it *operandIterator) Next() (flatIdx int) {
	flatIdx = it.flatIdx
	for axis := len(it.targetDims) - 1; axis >= 0; axis-- {
		it.perAxesIdx[axis]++
		if it.perAxesIdx[axis] < it.targetDims[axis] {
			it.flatIdx += it.strides[axis]
			break
		}
		it.flatIdx -= (it.targetDims[axis] - 1) * it.strides[axis]
		it.perAxesIdx[axis] = 0
	}
	return
}

// isContiguous reports whether the operand covers outShape exactly, in
// natural row-major order, so kernels can skip the iterator and index
// directly.
func isContiguous(operand backends.Operand, outShape shapes.Shape) bool {
	if !operand.Shape.EqualDimensions(outShape) {
		return false
	}
	if operand.Strides == nil {
		return true
	}
	return slices.Equal(operand.Strides, operand.Shape.Strides())
}

// maxFlatIndex returns the largest flat index the operand can touch.
func maxFlatIndex(operand backends.Operand) int {
	strides := operand.Strides
	if strides == nil {
		strides = operand.Shape.Strides()
	}
	maxIdx := 0
	for axis, dim := range operand.Shape.Dimensions {
		if dim == 0 {
			return 0
		}
		maxIdx += (dim - 1) * strides[axis]
	}
	return maxIdx
}
