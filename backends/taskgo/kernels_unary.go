package taskgo

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"

	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/shapes"
)

// rangeFn is an elementwise computation over the logical output positions
// [from, to). Disjoint ranges are safe to run concurrently.
type rangeFn func(t *task, from, to int)

// sequentialKernel runs the body over the whole output in the submitting
// goroutine.
func sequentialKernel(body rangeFn) kernelFn {
	return func(e *Engine, t *task) error {
		body(t, 0, t.outShape().Size())
		return nil
	}
}

// parallelKernel splits the output across the workers pool.
func parallelKernel(body rangeFn) kernelFn {
	return func(e *Engine, t *task) error {
		e.runRanges(e.splitRange(t.outShape().Size()), func(_, from, to int) {
			body(t, from, to)
		})
		return nil
	}
}

// registerElementwise registers the sequential and parallel-loop variants of
// an elementwise op for every dtype the op admits.
func registerElementwise(k *kernelTable, op backends.OpType, bodies func(dtype dtypes.DType) rangeFn) {
	for _, dtype := range shapes.SupportedDTypes() {
		if !op.SupportsDType(dtype) {
			continue
		}
		body := bodies(dtype)
		if body == nil {
			continue
		}
		k.register(op, backends.VariantSequential, dtype, sequentialKernel(body))
		k.register(op, backends.VariantParallelLoop, dtype, parallelKernel(body))
	}
}

// makeUnary builds the range body for an elementwise unary op. The input may
// be strided or broadcast; the fast path applies when both sides are
// naturally laid out.
func makeUnary[T any](fn func(T) T) rangeFn {
	return func(t *task, from, to int) {
		in := t.inputs[0].flat.([]T)
		out := t.output.flat.([]T)
		outShape := t.outShape()
		if isContiguous(t.sub.Output, outShape) && isContiguous(t.input(0), outShape) {
			for i := from; i < to; i++ {
				out[i] = fn(in[i])
			}
			return
		}
		itIn := newOperandIterator(t.input(0), outShape, from)
		itOut := newOperandIterator(t.sub.Output, outShape, from)
		for i := from; i < to; i++ {
			out[itOut.Next()] = fn(in[itIn.Next()])
		}
	}
}

func registerUnaryOps(k *kernelTable) {
	registerElementwise(k, backends.OpTypeCopy, copyBodies)
	registerElementwise(k, backends.OpTypeNeg, negBodies)
	registerElementwise(k, backends.OpTypeAbs, absBodies)
	registerElementwise(k, backends.OpTypeSqrt, sqrtBodies)
	registerElementwise(k, backends.OpTypeExp, expBodies)
	registerElementwise(k, backends.OpTypeLog, logBodies)
}

func identity[T any](v T) T { return v }

func copyBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Bool:
		return makeUnary(identity[bool])
	case dtypes.Int8:
		return makeUnary(identity[int8])
	case dtypes.Int16:
		return makeUnary(identity[int16])
	case dtypes.Int32:
		return makeUnary(identity[int32])
	case dtypes.Int64:
		return makeUnary(identity[int64])
	case dtypes.Uint8:
		return makeUnary(identity[uint8])
	case dtypes.Uint16:
		return makeUnary(identity[uint16])
	case dtypes.Uint32:
		return makeUnary(identity[uint32])
	case dtypes.Uint64:
		return makeUnary(identity[uint64])
	case dtypes.Float16:
		return makeUnary(identity[float16.Float16])
	case dtypes.Float32:
		return makeUnary(identity[float32])
	case dtypes.Float64:
		return makeUnary(identity[float64])
	case dtypes.Complex64:
		return makeUnary(identity[complex64])
	case dtypes.Complex128:
		return makeUnary(identity[complex128])
	}
	return nil
}

func negate[T numeric](v T) T { return -v }

func negBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Int8:
		return makeUnary(negate[int8])
	case dtypes.Int16:
		return makeUnary(negate[int16])
	case dtypes.Int32:
		return makeUnary(negate[int32])
	case dtypes.Int64:
		return makeUnary(negate[int64])
	case dtypes.Uint8:
		return makeUnary(negate[uint8])
	case dtypes.Uint16:
		return makeUnary(negate[uint16])
	case dtypes.Uint32:
		return makeUnary(negate[uint32])
	case dtypes.Uint64:
		return makeUnary(negate[uint64])
	case dtypes.Float16:
		return makeUnary(f16Unary(negate[float32]))
	case dtypes.Float32:
		return makeUnary(negate[float32])
	case dtypes.Float64:
		return makeUnary(negate[float64])
	case dtypes.Complex64:
		return makeUnary(negate[complex64])
	case dtypes.Complex128:
		return makeUnary(negate[complex128])
	}
	return nil
}

func absBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Int8:
		return makeUnary(absolute[int8])
	case dtypes.Int16:
		return makeUnary(absolute[int16])
	case dtypes.Int32:
		return makeUnary(absolute[int32])
	case dtypes.Int64:
		return makeUnary(absolute[int64])
	case dtypes.Uint8:
		return makeUnary(identity[uint8])
	case dtypes.Uint16:
		return makeUnary(identity[uint16])
	case dtypes.Uint32:
		return makeUnary(identity[uint32])
	case dtypes.Uint64:
		return makeUnary(identity[uint64])
	case dtypes.Float16:
		return makeUnary(f16Unary(absolute[float32]))
	case dtypes.Float32:
		return makeUnary(func(v float32) float32 { return float32(math.Abs(float64(v))) })
	case dtypes.Float64:
		return makeUnary(math.Abs)
	}
	return nil
}

func sqrtBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Float16:
		return makeUnary(f16Unary(func(v float32) float32 { return float32(math.Sqrt(float64(v))) }))
	case dtypes.Float32:
		return makeUnary(func(v float32) float32 { return float32(math.Sqrt(float64(v))) })
	case dtypes.Float64:
		return makeUnary(math.Sqrt)
	}
	return nil
}

func expBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Float16:
		return makeUnary(f16Unary(func(v float32) float32 { return float32(math.Exp(float64(v))) }))
	case dtypes.Float32:
		return makeUnary(func(v float32) float32 { return float32(math.Exp(float64(v))) })
	case dtypes.Float64:
		return makeUnary(math.Exp)
	}
	return nil
}

func logBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Float16:
		return makeUnary(f16Unary(func(v float32) float32 { return float32(math.Log(float64(v))) }))
	case dtypes.Float32:
		return makeUnary(func(v float32) float32 { return float32(math.Log(float64(v))) })
	case dtypes.Float64:
		return makeUnary(math.Log)
	}
	return nil
}
