package taskgo

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/blas/cblas64"
	"gonum.org/v1/gonum/lapack/lapack64"

	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/numerr"
)

// gatherContiguous returns the operand's values in natural row-major order.
// It aliases the backing flat slice when the operand is already contiguous;
// otherwise it fills a temporary engine buffer, which the caller must return
// with putBuffer.
func gatherContiguous[T any](e *Engine, operand backends.Operand, buffer *Buffer) (data []T, tmp *Buffer) {
	flat := buffer.flat.([]T)
	if isContiguous(operand, operand.Shape) {
		return flat, nil
	}
	tmp = e.getBuffer(operand.Shape.DType, operand.Shape.Size())
	dst := tmp.flat.([]T)
	it := newOperandIterator(operand, operand.Shape, 0)
	for i := range dst {
		dst[i] = flat[it.Next()]
	}
	return dst, tmp
}

func registerLinalgOps(k *kernelTable) {
	// MatMul: float and complex dtypes go through the BLAS Gemm routines;
	// integer dtypes use the plain triple loop, which BLAS does not cover.
	registerMatMulKernels(k, dtypes.Float32, matMulFloat32(false), matMulFloat32(true))
	registerMatMulKernels(k, dtypes.Float64, matMulFloat64(false), matMulFloat64(true))
	registerMatMulKernels(k, dtypes.Complex64, matMulComplex64(false), matMulComplex64(true))
	registerMatMulKernels(k, dtypes.Complex128, matMulComplex128(false), matMulComplex128(true))
	registerMatMulKernels(k, dtypes.Float16, matMulFloat16(false), matMulFloat16(true))
	registerPODMatMul[int8](k, dtypes.Int8)
	registerPODMatMul[int16](k, dtypes.Int16)
	registerPODMatMul[int32](k, dtypes.Int32)
	registerPODMatMul[int64](k, dtypes.Int64)
	registerPODMatMul[uint8](k, dtypes.Uint8)
	registerPODMatMul[uint16](k, dtypes.Uint16)
	registerPODMatMul[uint32](k, dtypes.Uint32)
	registerPODMatMul[uint64](k, dtypes.Uint64)

	// Cholesky: the LAPACK binding factors float64 only, so the Float32
	// kernel promotes to double precision and narrows the factor back.
	// Complex factorization is intentionally unsupported: lapack64 has no
	// complex Potrf, and a hand-rolled one would not match its numerics.
	k.register(backends.OpTypeCholesky, backends.VariantSequential, dtypes.Float64, choleskyFloat64(false))
	k.register(backends.OpTypeCholesky, backends.VariantParallelLoop, dtypes.Float64, choleskyFloat64(true))
	k.register(backends.OpTypeCholesky, backends.VariantSequential, dtypes.Float32, choleskyFloat32(false))
	k.register(backends.OpTypeCholesky, backends.VariantParallelLoop, dtypes.Float32, choleskyFloat32(true))
}

// matMulDims returns (m, k, n) for output [m, n] = lhs [m, k] x rhs [k, n].
func matMulDims(t *task) (m, k, n int) {
	lhsDims := t.input(0).Shape.Dimensions
	return lhsDims[0], lhsDims[1], t.outShape().Dimensions[1]
}

func matMulFloat64(parallel bool) kernelFn {
	return func(e *Engine, t *task) error {
		m, kDim, n := matMulDims(t)
		out := t.output.flat.([]float64)
		if m == 0 || n == 0 {
			return nil
		}
		if kDim == 0 {
			zeroFlat(out)
			return nil
		}
		a, tmpA := gatherContiguous[float64](e, t.input(0), t.inputs[0])
		b, tmpB := gatherContiguous[float64](e, t.input(1), t.inputs[1])
		defer e.putBuffer(tmpA)
		defer e.putBuffer(tmpB)
		gemm := func(fromRow, toRow int) {
			blas64.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas64.General{Rows: toRow - fromRow, Cols: kDim, Stride: kDim, Data: a[fromRow*kDim:]},
				blas64.General{Rows: kDim, Cols: n, Stride: n, Data: b},
				0,
				blas64.General{Rows: toRow - fromRow, Cols: n, Stride: n, Data: out[fromRow*n:]})
		}
		if !parallel {
			gemm(0, m)
			return nil
		}
		e.runRanges(e.splitRange(m), func(_, fromRow, toRow int) {
			if toRow > fromRow {
				gemm(fromRow, toRow)
			}
		})
		return nil
	}
}

func matMulFloat32(parallel bool) kernelFn {
	return func(e *Engine, t *task) error {
		m, kDim, n := matMulDims(t)
		out := t.output.flat.([]float32)
		if m == 0 || n == 0 {
			return nil
		}
		if kDim == 0 {
			zeroFlat(out)
			return nil
		}
		a, tmpA := gatherContiguous[float32](e, t.input(0), t.inputs[0])
		b, tmpB := gatherContiguous[float32](e, t.input(1), t.inputs[1])
		defer e.putBuffer(tmpA)
		defer e.putBuffer(tmpB)
		gemm := func(fromRow, toRow int) {
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas32.General{Rows: toRow - fromRow, Cols: kDim, Stride: kDim, Data: a[fromRow*kDim:]},
				blas32.General{Rows: kDim, Cols: n, Stride: n, Data: b},
				0,
				blas32.General{Rows: toRow - fromRow, Cols: n, Stride: n, Data: out[fromRow*n:]})
		}
		if !parallel {
			gemm(0, m)
			return nil
		}
		e.runRanges(e.splitRange(m), func(_, fromRow, toRow int) {
			if toRow > fromRow {
				gemm(fromRow, toRow)
			}
		})
		return nil
	}
}

func matMulComplex64(parallel bool) kernelFn {
	return func(e *Engine, t *task) error {
		m, kDim, n := matMulDims(t)
		out := t.output.flat.([]complex64)
		if m == 0 || n == 0 {
			return nil
		}
		if kDim == 0 {
			zeroFlat(out)
			return nil
		}
		a, tmpA := gatherContiguous[complex64](e, t.input(0), t.inputs[0])
		b, tmpB := gatherContiguous[complex64](e, t.input(1), t.inputs[1])
		defer e.putBuffer(tmpA)
		defer e.putBuffer(tmpB)
		gemm := func(fromRow, toRow int) {
			cblas64.Gemm(blas.NoTrans, blas.NoTrans, 1,
				cblas64.General{Rows: toRow - fromRow, Cols: kDim, Stride: kDim, Data: a[fromRow*kDim:]},
				cblas64.General{Rows: kDim, Cols: n, Stride: n, Data: b},
				0,
				cblas64.General{Rows: toRow - fromRow, Cols: n, Stride: n, Data: out[fromRow*n:]})
		}
		if !parallel {
			gemm(0, m)
			return nil
		}
		e.runRanges(e.splitRange(m), func(_, fromRow, toRow int) {
			if toRow > fromRow {
				gemm(fromRow, toRow)
			}
		})
		return nil
	}
}

func matMulComplex128(parallel bool) kernelFn {
	return func(e *Engine, t *task) error {
		m, kDim, n := matMulDims(t)
		out := t.output.flat.([]complex128)
		if m == 0 || n == 0 {
			return nil
		}
		if kDim == 0 {
			zeroFlat(out)
			return nil
		}
		a, tmpA := gatherContiguous[complex128](e, t.input(0), t.inputs[0])
		b, tmpB := gatherContiguous[complex128](e, t.input(1), t.inputs[1])
		defer e.putBuffer(tmpA)
		defer e.putBuffer(tmpB)
		gemm := func(fromRow, toRow int) {
			cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1,
				cblas128.General{Rows: toRow - fromRow, Cols: kDim, Stride: kDim, Data: a[fromRow*kDim:]},
				cblas128.General{Rows: kDim, Cols: n, Stride: n, Data: b},
				0,
				cblas128.General{Rows: toRow - fromRow, Cols: n, Stride: n, Data: out[fromRow*n:]})
		}
		if !parallel {
			gemm(0, m)
			return nil
		}
		e.runRanges(e.splitRange(m), func(_, fromRow, toRow int) {
			if toRow > fromRow {
				gemm(fromRow, toRow)
			}
		})
		return nil
	}
}

// matMulFloat16 promotes both operands to float32, multiplies through the
// single-precision Gemm, and narrows back.
func matMulFloat16(parallel bool) kernelFn {
	return func(e *Engine, t *task) error {
		m, kDim, n := matMulDims(t)
		out := t.output.flat.([]float16.Float16)
		if m == 0 || n == 0 {
			return nil
		}
		if kDim == 0 {
			zeroFlat(out)
			return nil
		}
		a32, tmpA := promoteToFloat32(e, t.input(0), t.inputs[0])
		b32, tmpB := promoteToFloat32(e, t.input(1), t.inputs[1])
		tmpC := e.getBuffer(dtypes.Float32, m*n)
		c32 := tmpC.flat.([]float32)
		defer e.putBuffer(tmpA)
		defer e.putBuffer(tmpB)
		defer e.putBuffer(tmpC)
		gemm := func(fromRow, toRow int) {
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas32.General{Rows: toRow - fromRow, Cols: kDim, Stride: kDim, Data: a32[fromRow*kDim:]},
				blas32.General{Rows: kDim, Cols: n, Stride: n, Data: b32},
				0,
				blas32.General{Rows: toRow - fromRow, Cols: n, Stride: n, Data: c32[fromRow*n:]})
		}
		if !parallel {
			gemm(0, m)
		} else {
			e.runRanges(e.splitRange(m), func(_, fromRow, toRow int) {
				if toRow > fromRow {
					gemm(fromRow, toRow)
				}
			})
		}
		for i, v := range c32 {
			out[i] = float16.Fromfloat32(v)
		}
		return nil
	}
}

// promoteToFloat32 reads a Float16 operand into a temporary float32 buffer
// in natural row-major order.
func promoteToFloat32(e *Engine, operand backends.Operand, buffer *Buffer) ([]float32, *Buffer) {
	flat := buffer.flat.([]float16.Float16)
	tmp := e.getBuffer(dtypes.Float32, operand.Shape.Size())
	dst := tmp.flat.([]float32)
	if isContiguous(operand, operand.Shape) {
		for i, v := range flat {
			dst[i] = v.Float32()
		}
		return dst, tmp
	}
	it := newOperandIterator(operand, operand.Shape, 0)
	for i := range dst {
		dst[i] = flat[it.Next()].Float32()
	}
	return dst, tmp
}

// matMulPOD is the plain triple loop, partitioned by output rows. Integer
// overflow wraps, like the elementwise arithmetic ops.
func matMulPOD[T podNumeric](parallel bool) kernelFn {
	return func(e *Engine, t *task) error {
		m, kDim, n := matMulDims(t)
		out := t.output.flat.([]T)
		if m == 0 || n == 0 {
			return nil
		}
		zeroFlat(out)
		if kDim == 0 {
			return nil
		}
		a, tmpA := gatherContiguous[T](e, t.input(0), t.inputs[0])
		b, tmpB := gatherContiguous[T](e, t.input(1), t.inputs[1])
		defer e.putBuffer(tmpA)
		defer e.putBuffer(tmpB)
		rows := func(fromRow, toRow int) {
			for i := fromRow; i < toRow; i++ {
				cRow := out[i*n : (i+1)*n]
				for kk := 0; kk < kDim; kk++ {
					av := a[i*kDim+kk]
					if av == 0 {
						continue
					}
					bRow := b[kk*n : (kk+1)*n]
					for j, bv := range bRow {
						cRow[j] += av * bv
					}
				}
			}
		}
		if !parallel {
			rows(0, m)
			return nil
		}
		e.runRanges(e.splitRange(m), func(_, fromRow, toRow int) {
			rows(fromRow, toRow)
		})
		return nil
	}
}

func registerMatMulKernels(k *kernelTable, dtype dtypes.DType, seq, par kernelFn) {
	k.register(backends.OpTypeMatMul, backends.VariantSequential, dtype, seq)
	k.register(backends.OpTypeMatMul, backends.VariantParallelLoop, dtype, par)
}

func registerPODMatMul[T podNumeric](k *kernelTable, dtype dtypes.DType) {
	registerMatMulKernels(k, dtype, matMulPOD[T](false), matMulPOD[T](true))
}

// potrf runs the factorization in place on a row-major lower-triangular
// view. On failure the output is cleared so a partially factored buffer is
// never observable.
func potrf(data []float64, n int) error {
	_, ok := lapack64.Potrf(blas64.Symmetric{N: n, Stride: n, Data: data, Uplo: blas.Lower})
	if !ok {
		zeroFlat(data)
		return numerr.Computef("Cholesky: matrix is not positive definite")
	}
	// LAPACK leaves the original strict upper triangle in place.
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			data[i*n+j] = 0
		}
	}
	return nil
}

func choleskyFloat64(pinned bool) kernelFn {
	return func(e *Engine, t *task) error {
		n := t.outShape().Dimensions[0]
		out := t.output.flat.([]float64)
		a, tmpA := gatherContiguous[float64](e, t.input(0), t.inputs[0])
		if tmpA != nil || t.inputs[0] != t.output {
			copy(out, a)
		}
		e.putBuffer(tmpA)
		if pinned {
			return e.pinnedNumericCall(func() error { return potrf(out, n) })
		}
		return potrf(out, n)
	}
}

// choleskyFloat32 factors in double precision and narrows the factor back:
// the LAPACK binding has no single-precision Potrf, so this is the
// documented promote-compute-narrow path.
func choleskyFloat32(pinned bool) kernelFn {
	return func(e *Engine, t *task) error {
		n := t.outShape().Dimensions[0]
		out := t.output.flat.([]float32)
		in := t.inputs[0].flat.([]float32)
		tmp := e.getBuffer(dtypes.Float64, n*n)
		wide := tmp.flat.([]float64)
		defer e.putBuffer(tmp)
		if isContiguous(t.input(0), t.input(0).Shape) {
			for i, v := range in {
				wide[i] = float64(v)
			}
		} else {
			it := newOperandIterator(t.input(0), t.input(0).Shape, 0)
			for i := range wide {
				wide[i] = float64(in[it.Next()])
			}
		}
		factor := func() error { return potrf(wide, n) }
		var err error
		if pinned {
			err = e.pinnedNumericCall(factor)
		} else {
			err = factor()
		}
		if err != nil {
			zeroFlat(out)
			return err
		}
		for i, v := range wide {
			out[i] = float32(v)
		}
		return nil
	}
}
