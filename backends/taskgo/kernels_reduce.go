package taskgo

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"

	"github.com/numforge/numforge/backends"
)

// reduceSpec describes one reduction (or scan) over element type T with
// accumulator type A. The accumulator is wider than T for half precision,
// which accumulates in float32.
type reduceSpec[T, A any] struct {
	identity A
	lift     func(T) A
	lower    func(A) T
	combine  func(A, A) A

	// isNaN is nil for types where NaN does not exist; when set and the
	// submission asks for it, NaN inputs are treated as the identity.
	isNaN func(A) bool
}

// makeReduceKernels builds the sequential and parallel-loop reduction
// kernels. The sequential variant is a single left fold. The parallel
// variant folds disjoint sub-ranges into partial accumulators and combines
// the partials pairwise; for floating point the two variants may therefore
// differ in the last bits, which callers must not rely on.
func makeReduceKernels[T, A any](spec reduceSpec[T, A]) (seq, par kernelFn) {
	fold := func(t *task, from, to int) A {
		in := t.inputs[0].flat.([]T)
		inOp := t.input(0)
		acc := spec.identity
		nanToIdentity := t.sub.Attrs.NaNToIdentity && spec.isNaN != nil
		if isContiguous(inOp, inOp.Shape) {
			for i := from; i < to; i++ {
				v := spec.lift(in[i])
				if nanToIdentity && spec.isNaN(v) {
					continue
				}
				acc = spec.combine(acc, v)
			}
			return acc
		}
		it := newOperandIterator(inOp, inOp.Shape, from)
		for i := from; i < to; i++ {
			v := spec.lift(in[it.Next()])
			if nanToIdentity && spec.isNaN(v) {
				continue
			}
			acc = spec.combine(acc, v)
		}
		return acc
	}

	seq = func(e *Engine, t *task) error {
		out := t.output.flat.([]T)
		out[0] = spec.lower(fold(t, 0, t.input(0).Shape.Size()))
		return nil
	}
	par = func(e *Engine, t *task) error {
		ranges := e.splitRange(t.input(0).Shape.Size())
		partials := make([]A, len(ranges))
		e.runRanges(ranges, func(part, from, to int) {
			partials[part] = fold(t, from, to)
		})
		for stride := 1; stride < len(partials); stride *= 2 {
			for i := 0; i+stride < len(partials); i += 2 * stride {
				partials[i] = spec.combine(partials[i], partials[i+stride])
			}
		}
		out := t.output.flat.([]T)
		out[0] = spec.lower(partials[0])
		return nil
	}
	return
}

func registerReductionOps(k *kernelTable) {
	registerPerDType(k, backends.OpTypeReduceSum, sumKernels)
	registerPerDType(k, backends.OpTypeReduceProd, prodKernels)
	registerPerDType(k, backends.OpTypeReduceMax, maxKernels)
	registerPerDType(k, backends.OpTypeReduceMin, minKernels)
}

func isNaNFloat[T float32 | float64](v T) bool { return v != v }

// podSpec is the common case: accumulate in the element type itself.
func podSpec[T numeric](identity T, combine func(a, b T) T) reduceSpec[T, T] {
	return reduceSpec[T, T]{
		identity: identity,
		lift:     passthrough[T],
		lower:    passthrough[T],
		combine:  combine,
	}
}

func passthrough[T any](v T) T { return v }

func floatSpec[T float32 | float64](identity T, combine func(a, b T) T) reduceSpec[T, T] {
	spec := podSpec(identity, combine)
	spec.isNaN = isNaNFloat[T]
	return spec
}

// f16Spec accumulates Float16 reductions in float32.
func f16Spec(identity float32, combine func(a, b float32) float32) reduceSpec[float16.Float16, float32] {
	return reduceSpec[float16.Float16, float32]{
		identity: identity,
		lift:     float16.Float16.Float32,
		lower:    float16.Fromfloat32,
		combine:  combine,
		isNaN:    isNaNFloat[float32],
	}
}

func sumKernels(dtype dtypes.DType) (seq, par kernelFn) {
	switch dtype {
	case dtypes.Int8:
		return makeReduceKernels(podSpec[int8](0, add[int8]))
	case dtypes.Int16:
		return makeReduceKernels(podSpec[int16](0, add[int16]))
	case dtypes.Int32:
		return makeReduceKernels(podSpec[int32](0, add[int32]))
	case dtypes.Int64:
		return makeReduceKernels(podSpec[int64](0, add[int64]))
	case dtypes.Uint8:
		return makeReduceKernels(podSpec[uint8](0, add[uint8]))
	case dtypes.Uint16:
		return makeReduceKernels(podSpec[uint16](0, add[uint16]))
	case dtypes.Uint32:
		return makeReduceKernels(podSpec[uint32](0, add[uint32]))
	case dtypes.Uint64:
		return makeReduceKernels(podSpec[uint64](0, add[uint64]))
	case dtypes.Float16:
		return makeReduceKernels(f16Spec(0, add[float32]))
	case dtypes.Float32:
		return makeReduceKernels(floatSpec[float32](0, add[float32]))
	case dtypes.Float64:
		return makeReduceKernels(floatSpec[float64](0, add[float64]))
	case dtypes.Complex64:
		return makeReduceKernels(podSpec[complex64](0, add[complex64]))
	case dtypes.Complex128:
		return makeReduceKernels(podSpec[complex128](0, add[complex128]))
	}
	return nil, nil
}

func prodKernels(dtype dtypes.DType) (seq, par kernelFn) {
	switch dtype {
	case dtypes.Int8:
		return makeReduceKernels(podSpec[int8](1, mul[int8]))
	case dtypes.Int16:
		return makeReduceKernels(podSpec[int16](1, mul[int16]))
	case dtypes.Int32:
		return makeReduceKernels(podSpec[int32](1, mul[int32]))
	case dtypes.Int64:
		return makeReduceKernels(podSpec[int64](1, mul[int64]))
	case dtypes.Uint8:
		return makeReduceKernels(podSpec[uint8](1, mul[uint8]))
	case dtypes.Uint16:
		return makeReduceKernels(podSpec[uint16](1, mul[uint16]))
	case dtypes.Uint32:
		return makeReduceKernels(podSpec[uint32](1, mul[uint32]))
	case dtypes.Uint64:
		return makeReduceKernels(podSpec[uint64](1, mul[uint64]))
	case dtypes.Float16:
		return makeReduceKernels(f16Spec(1, mul[float32]))
	case dtypes.Float32:
		return makeReduceKernels(floatSpec[float32](1, mul[float32]))
	case dtypes.Float64:
		return makeReduceKernels(floatSpec[float64](1, mul[float64]))
	case dtypes.Complex64:
		return makeReduceKernels(podSpec[complex64](1, mul[complex64]))
	case dtypes.Complex128:
		return makeReduceKernels(podSpec[complex128](1, mul[complex128]))
	}
	return nil, nil
}

func maxKernels(dtype dtypes.DType) (seq, par kernelFn) {
	switch dtype {
	case dtypes.Int8:
		return makeReduceKernels(podSpec[int8](math.MinInt8, omax[int8]))
	case dtypes.Int16:
		return makeReduceKernels(podSpec[int16](math.MinInt16, omax[int16]))
	case dtypes.Int32:
		return makeReduceKernels(podSpec[int32](math.MinInt32, omax[int32]))
	case dtypes.Int64:
		return makeReduceKernels(podSpec[int64](math.MinInt64, omax[int64]))
	case dtypes.Uint8:
		return makeReduceKernels(podSpec[uint8](0, omax[uint8]))
	case dtypes.Uint16:
		return makeReduceKernels(podSpec[uint16](0, omax[uint16]))
	case dtypes.Uint32:
		return makeReduceKernels(podSpec[uint32](0, omax[uint32]))
	case dtypes.Uint64:
		return makeReduceKernels(podSpec[uint64](0, omax[uint64]))
	case dtypes.Float16:
		return makeReduceKernels(f16Spec(float32(math.Inf(-1)), fmax[float32]))
	case dtypes.Float32:
		return makeReduceKernels(floatSpec(float32(math.Inf(-1)), fmax[float32]))
	case dtypes.Float64:
		return makeReduceKernels(floatSpec(math.Inf(-1), fmax[float64]))
	}
	return nil, nil
}

func minKernels(dtype dtypes.DType) (seq, par kernelFn) {
	switch dtype {
	case dtypes.Int8:
		return makeReduceKernels(podSpec[int8](math.MaxInt8, omin[int8]))
	case dtypes.Int16:
		return makeReduceKernels(podSpec[int16](math.MaxInt16, omin[int16]))
	case dtypes.Int32:
		return makeReduceKernels(podSpec[int32](math.MaxInt32, omin[int32]))
	case dtypes.Int64:
		return makeReduceKernels(podSpec[int64](math.MaxInt64, omin[int64]))
	case dtypes.Uint8:
		return makeReduceKernels(podSpec[uint8](math.MaxUint8, omin[uint8]))
	case dtypes.Uint16:
		return makeReduceKernels(podSpec[uint16](math.MaxUint16, omin[uint16]))
	case dtypes.Uint32:
		return makeReduceKernels(podSpec[uint32](math.MaxUint32, omin[uint32]))
	case dtypes.Uint64:
		return makeReduceKernels(podSpec[uint64](math.MaxUint64, omin[uint64]))
	case dtypes.Float16:
		return makeReduceKernels(f16Spec(float32(math.Inf(1)), fmin[float32]))
	case dtypes.Float32:
		return makeReduceKernels(floatSpec(float32(math.Inf(1)), fmin[float32]))
	case dtypes.Float64:
		return makeReduceKernels(floatSpec(math.Inf(1), fmin[float64]))
	}
	return nil, nil
}
