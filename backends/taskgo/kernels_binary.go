package taskgo

import (
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/numforge/numforge/backends"
)

// makeBinary builds the range body for an elementwise binary op. Broadcast
// and strided operands go through the iterator; the common layouts (both
// contiguous, or one side a scalar) get direct-index fast paths.
func makeBinary[T any](fn func(a, b T) T) rangeFn {
	return func(t *task, from, to int) {
		lhs := t.inputs[0].flat.([]T)
		rhs := t.inputs[1].flat.([]T)
		out := t.output.flat.([]T)
		outShape := t.outShape()
		lhsOp, rhsOp := t.input(0), t.input(1)
		outContiguous := isContiguous(t.sub.Output, outShape)
		switch {
		case outContiguous && lhsOp.Shape.Size() == 1 && isContiguous(rhsOp, outShape):
			a := lhs[0]
			for i := from; i < to; i++ {
				out[i] = fn(a, rhs[i])
			}
		case outContiguous && rhsOp.Shape.Size() == 1 && isContiguous(lhsOp, outShape):
			b := rhs[0]
			for i := from; i < to; i++ {
				out[i] = fn(lhs[i], b)
			}
		case outContiguous && isContiguous(lhsOp, outShape) && isContiguous(rhsOp, outShape):
			for i := from; i < to; i++ {
				out[i] = fn(lhs[i], rhs[i])
			}
		default:
			itL := newOperandIterator(lhsOp, outShape, from)
			itR := newOperandIterator(rhsOp, outShape, from)
			if outContiguous {
				for i := from; i < to; i++ {
					out[i] = fn(lhs[itL.Next()], rhs[itR.Next()])
				}
				return
			}
			itOut := newOperandIterator(t.sub.Output, outShape, from)
			for i := from; i < to; i++ {
				out[itOut.Next()] = fn(lhs[itL.Next()], rhs[itR.Next()])
			}
		}
	}
}

func registerBinaryOps(k *kernelTable) {
	registerElementwise(k, backends.OpTypeAdd, addBodies)
	registerElementwise(k, backends.OpTypeSub, subBodies)
	registerElementwise(k, backends.OpTypeMul, mulBodies)
	registerElementwise(k, backends.OpTypeDiv, divBodies)
	registerElementwise(k, backends.OpTypeMaximum, maximumBodies)
	registerElementwise(k, backends.OpTypeMinimum, minimumBodies)
}

func add[T numeric](a, b T) T { return a + b }
func sub[T numeric](a, b T) T { return a - b }
func mul[T numeric](a, b T) T { return a * b }

func addBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Int8:
		return makeBinary(add[int8])
	case dtypes.Int16:
		return makeBinary(add[int16])
	case dtypes.Int32:
		return makeBinary(add[int32])
	case dtypes.Int64:
		return makeBinary(add[int64])
	case dtypes.Uint8:
		return makeBinary(add[uint8])
	case dtypes.Uint16:
		return makeBinary(add[uint16])
	case dtypes.Uint32:
		return makeBinary(add[uint32])
	case dtypes.Uint64:
		return makeBinary(add[uint64])
	case dtypes.Float16:
		return makeBinary(f16Binary(add[float32]))
	case dtypes.Float32:
		return makeBinary(add[float32])
	case dtypes.Float64:
		return makeBinary(add[float64])
	case dtypes.Complex64:
		return makeBinary(add[complex64])
	case dtypes.Complex128:
		return makeBinary(add[complex128])
	}
	return nil
}

func subBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Int8:
		return makeBinary(sub[int8])
	case dtypes.Int16:
		return makeBinary(sub[int16])
	case dtypes.Int32:
		return makeBinary(sub[int32])
	case dtypes.Int64:
		return makeBinary(sub[int64])
	case dtypes.Uint8:
		return makeBinary(sub[uint8])
	case dtypes.Uint16:
		return makeBinary(sub[uint16])
	case dtypes.Uint32:
		return makeBinary(sub[uint32])
	case dtypes.Uint64:
		return makeBinary(sub[uint64])
	case dtypes.Float16:
		return makeBinary(f16Binary(sub[float32]))
	case dtypes.Float32:
		return makeBinary(sub[float32])
	case dtypes.Float64:
		return makeBinary(sub[float64])
	case dtypes.Complex64:
		return makeBinary(sub[complex64])
	case dtypes.Complex128:
		return makeBinary(sub[complex128])
	}
	return nil
}

func mulBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Int8:
		return makeBinary(mul[int8])
	case dtypes.Int16:
		return makeBinary(mul[int16])
	case dtypes.Int32:
		return makeBinary(mul[int32])
	case dtypes.Int64:
		return makeBinary(mul[int64])
	case dtypes.Uint8:
		return makeBinary(mul[uint8])
	case dtypes.Uint16:
		return makeBinary(mul[uint16])
	case dtypes.Uint32:
		return makeBinary(mul[uint32])
	case dtypes.Uint64:
		return makeBinary(mul[uint64])
	case dtypes.Float16:
		return makeBinary(f16Binary(mul[float32]))
	case dtypes.Float32:
		return makeBinary(mul[float32])
	case dtypes.Float64:
		return makeBinary(mul[float64])
	case dtypes.Complex64:
		return makeBinary(mul[complex64])
	case dtypes.Complex128:
		return makeBinary(mul[complex128])
	}
	return nil
}

// divBodies: only float and complex dtypes divide; x/0 follows IEEE-754
// (Inf/NaN), never a runtime panic.
func divBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Float16:
		return makeBinary(f16Binary(func(a, b float32) float32 { return a / b }))
	case dtypes.Float32:
		return makeBinary(func(a, b float32) float32 { return a / b })
	case dtypes.Float64:
		return makeBinary(func(a, b float64) float64 { return a / b })
	case dtypes.Complex64:
		return makeBinary(func(a, b complex64) complex64 { return a / b })
	case dtypes.Complex128:
		return makeBinary(func(a, b complex128) complex128 { return a / b })
	}
	return nil
}

func maximumBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Int8:
		return makeBinary(omax[int8])
	case dtypes.Int16:
		return makeBinary(omax[int16])
	case dtypes.Int32:
		return makeBinary(omax[int32])
	case dtypes.Int64:
		return makeBinary(omax[int64])
	case dtypes.Uint8:
		return makeBinary(omax[uint8])
	case dtypes.Uint16:
		return makeBinary(omax[uint16])
	case dtypes.Uint32:
		return makeBinary(omax[uint32])
	case dtypes.Uint64:
		return makeBinary(omax[uint64])
	case dtypes.Float16:
		return makeBinary(f16Binary(fmax[float32]))
	case dtypes.Float32:
		return makeBinary(fmax[float32])
	case dtypes.Float64:
		return makeBinary(fmax[float64])
	}
	return nil
}

func minimumBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Int8:
		return makeBinary(omin[int8])
	case dtypes.Int16:
		return makeBinary(omin[int16])
	case dtypes.Int32:
		return makeBinary(omin[int32])
	case dtypes.Int64:
		return makeBinary(omin[int64])
	case dtypes.Uint8:
		return makeBinary(omin[uint8])
	case dtypes.Uint16:
		return makeBinary(omin[uint16])
	case dtypes.Uint32:
		return makeBinary(omin[uint32])
	case dtypes.Uint64:
		return makeBinary(omin[uint64])
	case dtypes.Float16:
		return makeBinary(f16Binary(fmin[float32]))
	case dtypes.Float32:
		return makeBinary(fmin[float32])
	case dtypes.Float64:
		return makeBinary(fmin[float64])
	}
	return nil
}
