package taskgo

import (
	"math/rand/v2"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"

	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/numerr"
	"github.com/numforge/numforge/types/shapes"
)

func registerStructuralOps(k *kernelTable) {
	registerPerDType(k, backends.OpTypeFill, fillKernels)
	registerPerDType(k, backends.OpTypeEye, eyeKernels)
	registerPerDType(k, backends.OpTypeRandomUniform, randomUniformKernels)
	registerElementwise(k, backends.OpTypeTril, trilBodies)
	registerElementwise(k, backends.OpTypeTriu, triuBodies)
	registerConvertDType(k)
}

// registerPerDType registers per-dtype sequential and parallel kernels; a
// nil parallel kernel means the op only has a sequential body and other
// variants degrade to it.
func registerPerDType(k *kernelTable, op backends.OpType, kernels func(dtype dtypes.DType) (seq, par kernelFn)) {
	for _, dtype := range shapes.SupportedDTypes() {
		if !op.SupportsDType(dtype) {
			continue
		}
		seq, par := kernels(dtype)
		if seq == nil {
			continue
		}
		k.register(op, backends.VariantSequential, dtype, seq)
		if par != nil {
			k.register(op, backends.VariantParallelLoop, dtype, par)
		}
	}
}

// fillKernel sets every output element to the submission's FillValue, which
// must already be of the output's Go element type.
func fillKernel[T any](parallel bool) kernelFn {
	return func(e *Engine, t *task) error {
		value, ok := t.sub.Attrs.FillValue.(T)
		if !ok {
			return numerr.Preconditionf("Fill: value of type %T does not match output dtype %s",
				t.sub.Attrs.FillValue, t.outShape().DType)
		}
		out := t.output.flat.([]T)
		fill := func(from, to int) {
			for i := from; i < to; i++ {
				out[i] = value
			}
		}
		if !parallel {
			fill(0, len(out))
			return nil
		}
		e.runRanges(e.splitRange(len(out)), func(_, from, to int) {
			fill(from, to)
		})
		return nil
	}
}

func fillKernelsFor[T any]() (seq, par kernelFn) {
	return fillKernel[T](false), fillKernel[T](true)
}

func fillKernels(dtype dtypes.DType) (seq, par kernelFn) {
	switch dtype {
	case dtypes.Bool:
		return fillKernelsFor[bool]()
	case dtypes.Int8:
		return fillKernelsFor[int8]()
	case dtypes.Int16:
		return fillKernelsFor[int16]()
	case dtypes.Int32:
		return fillKernelsFor[int32]()
	case dtypes.Int64:
		return fillKernelsFor[int64]()
	case dtypes.Uint8:
		return fillKernelsFor[uint8]()
	case dtypes.Uint16:
		return fillKernelsFor[uint16]()
	case dtypes.Uint32:
		return fillKernelsFor[uint32]()
	case dtypes.Uint64:
		return fillKernelsFor[uint64]()
	case dtypes.Float16:
		return fillKernelsFor[float16.Float16]()
	case dtypes.Float32:
		return fillKernelsFor[float32]()
	case dtypes.Float64:
		return fillKernelsFor[float64]()
	case dtypes.Complex64:
		return fillKernelsFor[complex64]()
	case dtypes.Complex128:
		return fillKernelsFor[complex128]()
	}
	return nil, nil
}

// eyeKernel writes ones on the k-th diagonal of a [rows, cols] output and
// zeros everywhere else. DiagonalOffset follows the usual convention:
// positive k moves the diagonal above the main one.
func eyeKernel[T any](one T) kernelFn {
	return func(e *Engine, t *task) error {
		out := t.output.flat.([]T)
		zeroFlat(out)
		dims := t.outShape().Dimensions
		rows, cols := dims[0], dims[1]
		k := t.sub.Attrs.DiagonalOffset
		for i := 0; i < rows; i++ {
			j := i + k
			if j >= 0 && j < cols {
				out[i*cols+j] = one
			}
		}
		return nil
	}
}

func eyeKernels(dtype dtypes.DType) (seq, par kernelFn) {
	switch dtype {
	case dtypes.Bool:
		return eyeKernel(true), nil
	case dtypes.Int8:
		return eyeKernel[int8](1), nil
	case dtypes.Int16:
		return eyeKernel[int16](1), nil
	case dtypes.Int32:
		return eyeKernel[int32](1), nil
	case dtypes.Int64:
		return eyeKernel[int64](1), nil
	case dtypes.Uint8:
		return eyeKernel[uint8](1), nil
	case dtypes.Uint16:
		return eyeKernel[uint16](1), nil
	case dtypes.Uint32:
		return eyeKernel[uint32](1), nil
	case dtypes.Uint64:
		return eyeKernel[uint64](1), nil
	case dtypes.Float16:
		return eyeKernel(float16.Fromfloat32(1)), nil
	case dtypes.Float32:
		return eyeKernel[float32](1), nil
	case dtypes.Float64:
		return eyeKernel[float64](1), nil
	case dtypes.Complex64:
		return eyeKernel[complex64](1), nil
	case dtypes.Complex128:
		return eyeKernel[complex128](1), nil
	}
	return nil, nil
}

// randomUniformKernel draws from [0, 1). A non-zero Seed makes the draw
// reproducible and independent of the engine's stream; otherwise the
// engine's seeded stream is used under its lock. Sequential only, so the
// draw order is deterministic.
func randomUniformKernel[T any](conv func(float64) T) kernelFn {
	return func(e *Engine, t *task) error {
		out := t.output.flat.([]T)
		if seed := t.sub.Attrs.Seed; seed != 0 {
			rng := rand.New(rand.NewPCG(seed, seed))
			for i := range out {
				out[i] = conv(rng.Float64())
			}
			return nil
		}
		e.rngMu.Lock()
		defer e.rngMu.Unlock()
		for i := range out {
			out[i] = conv(e.rng.Float64())
		}
		return nil
	}
}

func randomUniformKernels(dtype dtypes.DType) (seq, par kernelFn) {
	switch dtype {
	case dtypes.Float16:
		return randomUniformKernel(func(v float64) float16.Float16 {
			return float16.Fromfloat32(float32(v))
		}), nil
	case dtypes.Float32:
		return randomUniformKernel(func(v float64) float32 { return float32(v) }), nil
	case dtypes.Float64:
		return randomUniformKernel(func(v float64) float64 { return v }), nil
	}
	return nil, nil
}

// makeTriangular keeps the lower (or upper) triangle of the trailing two
// axes, relative to the DiagonalOffset diagonal, and zeroes the rest.
func makeTriangular[T any](upper bool) rangeFn {
	return func(t *task, from, to int) {
		out := t.output.flat.([]T)
		in := t.inputs[0].flat.([]T)
		outShape := t.outShape()
		rank := outShape.Rank()
		rows := outShape.Dimensions[rank-2]
		cols := outShape.Dimensions[rank-1]
		matrix := rows * cols
		k := t.sub.Attrs.DiagonalOffset
		var zero T
		var it *operandIterator
		if !isContiguous(t.input(0), outShape) {
			it = newOperandIterator(t.input(0), outShape, from)
		}
		for i := from; i < to; i++ {
			srcIdx := i
			if it != nil {
				srcIdx = it.Next()
			}
			inMatrix := i % matrix
			row, col := inMatrix/cols, inMatrix%cols
			keep := col-row <= k
			if upper {
				keep = col-row >= k
			}
			if keep {
				out[i] = in[srcIdx]
			} else {
				out[i] = zero
			}
		}
	}
}

func triangularBodies(dtype dtypes.DType, upper bool) rangeFn {
	switch dtype {
	case dtypes.Bool:
		return makeTriangular[bool](upper)
	case dtypes.Int8:
		return makeTriangular[int8](upper)
	case dtypes.Int16:
		return makeTriangular[int16](upper)
	case dtypes.Int32:
		return makeTriangular[int32](upper)
	case dtypes.Int64:
		return makeTriangular[int64](upper)
	case dtypes.Uint8:
		return makeTriangular[uint8](upper)
	case dtypes.Uint16:
		return makeTriangular[uint16](upper)
	case dtypes.Uint32:
		return makeTriangular[uint32](upper)
	case dtypes.Uint64:
		return makeTriangular[uint64](upper)
	case dtypes.Float16:
		return makeTriangular[float16.Float16](upper)
	case dtypes.Float32:
		return makeTriangular[float32](upper)
	case dtypes.Float64:
		return makeTriangular[float64](upper)
	case dtypes.Complex64:
		return makeTriangular[complex64](upper)
	case dtypes.Complex128:
		return makeTriangular[complex128](upper)
	}
	return nil
}

func trilBodies(dtype dtypes.DType) rangeFn { return triangularBodies(dtype, false) }
func triuBodies(dtype dtypes.DType) rangeFn { return triangularBodies(dtype, true) }

// valueReader walks the input operand in the output's logical order and
// yields each element widened to complex128, the one intermediate type every
// supported dtype converts through losslessly except for integers beyond
// 2^53, where conversion is best-effort like a float64 round-trip.
func valueReader(operand backends.Operand, flat any, outShape shapes.Shape, start int) func() complex128 {
	it := newOperandIterator(operand, outShape, start)
	switch data := flat.(type) {
	case []bool:
		return func() complex128 {
			if data[it.Next()] {
				return 1
			}
			return 0
		}
	case []int8:
		return func() complex128 { return complex(float64(data[it.Next()]), 0) }
	case []int16:
		return func() complex128 { return complex(float64(data[it.Next()]), 0) }
	case []int32:
		return func() complex128 { return complex(float64(data[it.Next()]), 0) }
	case []int64:
		return func() complex128 { return complex(float64(data[it.Next()]), 0) }
	case []uint8:
		return func() complex128 { return complex(float64(data[it.Next()]), 0) }
	case []uint16:
		return func() complex128 { return complex(float64(data[it.Next()]), 0) }
	case []uint32:
		return func() complex128 { return complex(float64(data[it.Next()]), 0) }
	case []uint64:
		return func() complex128 { return complex(float64(data[it.Next()]), 0) }
	case []float16.Float16:
		return func() complex128 { return complex(float64(data[it.Next()].Float32()), 0) }
	case []float32:
		return func() complex128 { return complex(float64(data[it.Next()]), 0) }
	case []float64:
		return func() complex128 { return complex(data[it.Next()], 0) }
	case []complex64:
		return func() complex128 { return complex128(data[it.Next()]) }
	case []complex128:
		return func() complex128 { return data[it.Next()] }
	}
	return nil
}

// makeConvert builds the ConvertDType body for one output type. The kernel
// is registered under the output dtype; the input dtype is resolved from the
// flat data at run time.
func makeConvert[To any](fromWide func(complex128) To) rangeFn {
	return func(t *task, from, to int) {
		out := t.output.flat.([]To)
		read := valueReader(t.input(0), t.inputs[0].flat, t.outShape(), from)
		for i := from; i < to; i++ {
			out[i] = fromWide(read())
		}
	}
}

func convertBodies(dtype dtypes.DType) rangeFn {
	switch dtype {
	case dtypes.Bool:
		return makeConvert(func(c complex128) bool { return real(c) != 0 || imag(c) != 0 })
	case dtypes.Int8:
		return makeConvert(func(c complex128) int8 { return int8(real(c)) })
	case dtypes.Int16:
		return makeConvert(func(c complex128) int16 { return int16(real(c)) })
	case dtypes.Int32:
		return makeConvert(func(c complex128) int32 { return int32(real(c)) })
	case dtypes.Int64:
		return makeConvert(func(c complex128) int64 { return int64(real(c)) })
	case dtypes.Uint8:
		return makeConvert(func(c complex128) uint8 { return uint8(real(c)) })
	case dtypes.Uint16:
		return makeConvert(func(c complex128) uint16 { return uint16(real(c)) })
	case dtypes.Uint32:
		return makeConvert(func(c complex128) uint32 { return uint32(real(c)) })
	case dtypes.Uint64:
		return makeConvert(func(c complex128) uint64 { return uint64(real(c)) })
	case dtypes.Float16:
		return makeConvert(func(c complex128) float16.Float16 {
			return float16.Fromfloat32(float32(real(c)))
		})
	case dtypes.Float32:
		return makeConvert(func(c complex128) float32 { return float32(real(c)) })
	case dtypes.Float64:
		return makeConvert(func(c complex128) float64 { return real(c) })
	case dtypes.Complex64:
		return makeConvert(func(c complex128) complex64 { return complex64(c) })
	case dtypes.Complex128:
		return makeConvert(func(c complex128) complex128 { return c })
	}
	return nil
}

func registerConvertDType(k *kernelTable) {
	// ConvertDType dispatches on the output dtype.
	for _, dtype := range shapes.SupportedDTypes() {
		body := convertBodies(dtype)
		k.register(backends.OpTypeConvertDType, backends.VariantSequential, dtype, sequentialKernel(body))
		k.register(backends.OpTypeConvertDType, backends.VariantParallelLoop, dtype, parallelKernel(body))
	}
}
