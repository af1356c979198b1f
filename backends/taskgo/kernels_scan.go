package taskgo

import (
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/numforge/numforge/backends"
)

// makeScanKernels builds the sequential and parallel-loop scan kernels.
//
// A scan runs in up to three phases:
//
//  1. Local phase: each partition is scanned independently, producing the
//     running accumulation within the partition and the partition's total.
//  2. Exclusive prefix of the partition totals.
//  3. Fix-up: each partition's prefix is folded into its stored values.
//
// When the submission carries an Aggregates operand, only the local phase
// runs: the outputs hold per-partition running accumulations and Aggregates
// holds the partition totals, for a caller that performs the fix-up itself
// (e.g. across distributed partitions). Otherwise the kernel completes the
// full scan.
func makeScanKernels[T, A any](spec reduceSpec[T, A]) (seq, par kernelFn) {
	localScan := func(t *task, from, to int) A {
		in := t.inputs[0].flat.([]T)
		out := t.output.flat.([]T)
		inOp := t.input(0)
		acc := spec.identity
		nanToIdentity := t.sub.Attrs.NaNToIdentity && spec.isNaN != nil
		if isContiguous(inOp, inOp.Shape) {
			for i := from; i < to; i++ {
				v := spec.lift(in[i])
				if nanToIdentity && spec.isNaN(v) {
					v = spec.identity
				}
				acc = spec.combine(acc, v)
				out[i] = spec.lower(acc)
			}
			return acc
		}
		it := newOperandIterator(inOp, inOp.Shape, from)
		for i := from; i < to; i++ {
			v := spec.lift(in[it.Next()])
			if nanToIdentity && spec.isNaN(v) {
				v = spec.identity
			}
			acc = spec.combine(acc, v)
			out[i] = spec.lower(acc)
		}
		return acc
	}

	partitionRanges := func(t *task) [][2]int {
		parts := t.sub.Attrs.Partitions
		ranges := make([][2]int, len(parts))
		from := 0
		for p, n := range parts {
			ranges[p] = [2]int{from, from + n}
			from += n
		}
		return ranges
	}

	run := func(e *Engine, t *task, parallel bool) error {
		forEach := func(ranges [][2]int, body func(part, from, to int)) {
			if parallel {
				e.runRanges(ranges, body)
				return
			}
			for part, r := range ranges {
				body(part, r[0], r[1])
			}
		}

		if t.aggs != nil {
			// Local phase only.
			ranges := partitionRanges(t)
			aggs := t.aggs.flat.([]T)
			forEach(ranges, func(part, from, to int) {
				aggs[part] = spec.lower(localScan(t, from, to))
			})
			return nil
		}

		size := t.input(0).Shape.Size()
		var ranges [][2]int
		switch {
		case len(t.sub.Attrs.Partitions) > 0:
			ranges = partitionRanges(t)
		case parallel:
			ranges = e.splitRange(size)
		default:
			ranges = [][2]int{{0, size}}
		}
		if len(ranges) == 1 {
			localScan(t, 0, size)
			return nil
		}
		totals := make([]A, len(ranges))
		forEach(ranges, func(part, from, to int) {
			totals[part] = localScan(t, from, to)
		})
		prefixes := make([]A, len(ranges))
		prefixes[0] = spec.identity
		for p := 1; p < len(ranges); p++ {
			prefixes[p] = spec.combine(prefixes[p-1], totals[p-1])
		}
		out := t.output.flat.([]T)
		forEach(ranges, func(part, from, to int) {
			if part == 0 {
				return
			}
			prefix := prefixes[part]
			for i := from; i < to; i++ {
				out[i] = spec.lower(spec.combine(prefix, spec.lift(out[i])))
			}
		})
		return nil
	}

	seq = func(e *Engine, t *task) error { return run(e, t, false) }
	par = func(e *Engine, t *task) error { return run(e, t, true) }
	return
}

func registerScanOps(k *kernelTable) {
	registerPerDType(k, backends.OpTypeCumSum, cumsumKernels)
	registerPerDType(k, backends.OpTypeCumProd, cumprodKernels)
}

func cumsumKernels(dtype dtypes.DType) (seq, par kernelFn) {
	switch dtype {
	case dtypes.Int8:
		return makeScanKernels(podSpec[int8](0, add[int8]))
	case dtypes.Int16:
		return makeScanKernels(podSpec[int16](0, add[int16]))
	case dtypes.Int32:
		return makeScanKernels(podSpec[int32](0, add[int32]))
	case dtypes.Int64:
		return makeScanKernels(podSpec[int64](0, add[int64]))
	case dtypes.Uint8:
		return makeScanKernels(podSpec[uint8](0, add[uint8]))
	case dtypes.Uint16:
		return makeScanKernels(podSpec[uint16](0, add[uint16]))
	case dtypes.Uint32:
		return makeScanKernels(podSpec[uint32](0, add[uint32]))
	case dtypes.Uint64:
		return makeScanKernels(podSpec[uint64](0, add[uint64]))
	case dtypes.Float16:
		return makeScanKernels(f16Spec(0, add[float32]))
	case dtypes.Float32:
		return makeScanKernels(floatSpec[float32](0, add[float32]))
	case dtypes.Float64:
		return makeScanKernels(floatSpec[float64](0, add[float64]))
	case dtypes.Complex64:
		return makeScanKernels(podSpec[complex64](0, add[complex64]))
	case dtypes.Complex128:
		return makeScanKernels(podSpec[complex128](0, add[complex128]))
	}
	return nil, nil
}

func cumprodKernels(dtype dtypes.DType) (seq, par kernelFn) {
	switch dtype {
	case dtypes.Int8:
		return makeScanKernels(podSpec[int8](1, mul[int8]))
	case dtypes.Int16:
		return makeScanKernels(podSpec[int16](1, mul[int16]))
	case dtypes.Int32:
		return makeScanKernels(podSpec[int32](1, mul[int32]))
	case dtypes.Int64:
		return makeScanKernels(podSpec[int64](1, mul[int64]))
	case dtypes.Uint8:
		return makeScanKernels(podSpec[uint8](1, mul[uint8]))
	case dtypes.Uint16:
		return makeScanKernels(podSpec[uint16](1, mul[uint16]))
	case dtypes.Uint32:
		return makeScanKernels(podSpec[uint32](1, mul[uint32]))
	case dtypes.Uint64:
		return makeScanKernels(podSpec[uint64](1, mul[uint64]))
	case dtypes.Float16:
		return makeScanKernels(f16Spec(1, mul[float32]))
	case dtypes.Float32:
		return makeScanKernels(floatSpec[float32](1, mul[float32]))
	case dtypes.Float64:
		return makeScanKernels(floatSpec[float64](1, mul[float64]))
	case dtypes.Complex64:
		return makeScanKernels(podSpec[complex64](1, mul[complex64]))
	case dtypes.Complex128:
		return makeScanKernels(podSpec[complex128](1, mul[complex128]))
	}
	return nil, nil
}
