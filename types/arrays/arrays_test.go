/*
 *	Copyright 2024 The NumForge Authors
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package arrays

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/backends/taskgo"
	"github.com/numforge/numforge/types/numerr"
)

func newTestContext(t *testing.T) *Context {
	engine, err := taskgo.New()
	require.NoError(t, err)
	t.Cleanup(engine.Finalize)
	return NewContext(engine)
}

func flatOf[T any](t *testing.T, a *Array) []T {
	t.Helper()
	flat, err := a.FlatCopy()
	require.NoError(t, err)
	return flat.([]T)
}

func TestFromFlat(t *testing.T) {
	ctx := newTestContext(t)

	a, err := ctx.FromFlat(dtypes.Float64, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "(Float64)[2 3]", a.Shape().String())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, flatOf[float64](t, a))

	// Slice type must match the dtype.
	_, err = ctx.FromFlat(dtypes.Float64, []float32{1, 2}, 2)
	require.Error(t, err)
	assert.True(t, numerr.IsType(err))

	// Length must match the shape.
	_, err = ctx.FromFlat(dtypes.Float64, []float64{1, 2, 3}, 2, 3)
	require.Error(t, err)
	assert.True(t, numerr.IsShape(err))

	// Unsupported dtype.
	_, err = ctx.FromFlat(dtypes.BFloat16, []float32{1}, 1)
	require.Error(t, err)
	assert.True(t, numerr.IsType(err))
}

func TestFromValueAndValue(t *testing.T) {
	ctx := newTestContext(t)

	a, err := ctx.FromValue(3.5)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float64, a.DType())
	assert.Equal(t, 0, a.Rank())
	value, err := a.Value()
	require.NoError(t, err)
	assert.Equal(t, 3.5, value)

	_, err = ctx.FromValue(nil)
	require.Error(t, err)
	assert.True(t, numerr.IsType(err))

	// Value refuses multi-element arrays.
	b, err := ctx.FromFlat(dtypes.Int32, []int32{1, 2}, 2)
	require.NoError(t, err)
	_, err = b.Value()
	require.Error(t, err)
	assert.True(t, numerr.IsPrecondition(err))
}

func TestFactories(t *testing.T) {
	ctx := newTestContext(t)

	zeros, err := ctx.Zeros(dtypes.Float32, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, flatOf[float32](t, zeros))

	ones, err := ctx.Ones(dtypes.Uint8, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 1, 1}, flatOf[uint8](t, ones))

	_, err = ctx.Ones(dtypes.Bool, 3)
	require.Error(t, err)
	assert.True(t, numerr.IsType(err))

	full, err := ctx.Full(int32(7), 2)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Int32, full.DType())
	assert.Equal(t, []int32{7, 7}, flatOf[int32](t, full))

	eye, err := ctx.Eye(dtypes.Float64, 2, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 0, 0, 1}, flatOf[float64](t, eye))
}

func TestRandomUniformSeeded(t *testing.T) {
	ctx := newTestContext(t)

	a, err := ctx.RandomUniformSeeded(dtypes.Float64, 11, 100)
	require.NoError(t, err)
	b, err := ctx.RandomUniformSeeded(dtypes.Float64, 11, 100)
	require.NoError(t, err)
	assert.Equal(t, flatOf[float64](t, a), flatOf[float64](t, b))

	_, err = ctx.RandomUniformSeeded(dtypes.Float64, 0, 10)
	require.Error(t, err)
	assert.True(t, numerr.IsPrecondition(err))
}

func TestUnaryOps(t *testing.T) {
	ctx := newTestContext(t)
	a, err := ctx.FromFlat(dtypes.Float64, []float64{-4, 9, -16}, 3)
	require.NoError(t, err)

	neg, err := a.Neg()
	require.NoError(t, err)
	assert.Equal(t, []float64{4, -9, 16}, flatOf[float64](t, neg))

	abs, err := a.Abs()
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 9, 16}, flatOf[float64](t, abs))

	sqrt, err := abs.Sqrt()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, flatOf[float64](t, sqrt))

	clone, err := a.Copy()
	require.NoError(t, err)
	assert.Equal(t, flatOf[float64](t, a), flatOf[float64](t, clone))
}

func TestBinaryPromotion(t *testing.T) {
	ctx := newTestContext(t)
	ints, err := ctx.FromFlat(dtypes.Int32, []int32{1, 2, 3}, 3)
	require.NoError(t, err)
	floats, err := ctx.FromFlat(dtypes.Float32, []float32{0.5, 0.5, 0.5}, 3)
	require.NoError(t, err)

	// Int32 x Float32 promotes to Float64: Float32 cannot hold every Int32.
	sum, err := ints.Add(floats)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float64, sum.DType())
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, flatOf[float64](t, sum))
}

func TestBinaryBroadcast(t *testing.T) {
	ctx := newTestContext(t)
	matrix, err := ctx.FromFlat(dtypes.Float64, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	row, err := ctx.FromFlat(dtypes.Float64, []float64{10, 20, 30}, 3)
	require.NoError(t, err)

	sum, err := matrix.Add(row)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, sum.Shape().Dimensions)
	assert.Equal(t, []float64{11, 22, 33, 14, 25, 36}, flatOf[float64](t, sum))

	// Conflicting dimensions surface as a ShapeError.
	bad, err := ctx.FromFlat(dtypes.Float64, []float64{1, 2, 3, 4}, 4)
	require.NoError(t, err)
	_, err = matrix.Add(bad)
	require.Error(t, err)
	assert.True(t, numerr.IsShape(err))
}

func TestBinaryIntoRefusesNarrowing(t *testing.T) {
	ctx := newTestContext(t)
	ints, err := ctx.FromFlat(dtypes.Int32, []int32{1, 2}, 2)
	require.NoError(t, err)
	floats, err := ctx.FromFlat(dtypes.Float32, []float32{1, 2}, 2)
	require.NoError(t, err)

	// The promoted dtype is Float64; a Float32 destination would narrow.
	narrow, err := ctx.Zeros(dtypes.Float32, 2)
	require.NoError(t, err)
	err = ints.BinaryInto(backends.OpTypeAdd, floats, narrow)
	require.Error(t, err)
	assert.True(t, numerr.IsType(err))

	// A Float64 destination is exact.
	wide, err := ctx.Zeros(dtypes.Float64, 2)
	require.NoError(t, err)
	require.NoError(t, ints.BinaryInto(backends.OpTypeAdd, floats, wide))
	assert.Equal(t, []float64{2, 4}, flatOf[float64](t, wide))

	// Destination dimensions must match the broadcast result.
	mismatch, err := ctx.Zeros(dtypes.Float64, 3)
	require.NoError(t, err)
	err = ints.BinaryInto(backends.OpTypeAdd, floats, mismatch)
	require.Error(t, err)
	assert.True(t, numerr.IsShape(err))
}

func TestDivIntegerUnsupported(t *testing.T) {
	ctx := newTestContext(t)
	a, err := ctx.FromFlat(dtypes.Int32, []int32{4, 6}, 2)
	require.NoError(t, err)
	_, err = a.Div(a)
	require.Error(t, err)
	assert.True(t, numerr.IsType(err))
}

func TestReductions(t *testing.T) {
	ctx := newTestContext(t)
	a, err := ctx.FromFlat(dtypes.Float64, []float64{3, 1, 4, 1, 5}, 5)
	require.NoError(t, err)

	check := func(t *testing.T, result *Array, err error, want float64) {
		t.Helper()
		require.NoError(t, err)
		assert.Equal(t, 0, result.Rank())
		value, err := result.Value()
		require.NoError(t, err)
		assert.Equal(t, want, value)
	}
	sum, err := a.Sum()
	check(t, sum, err, 14)
	prod, err := a.Prod()
	check(t, prod, err, 60)
	max, err := a.Max()
	check(t, max, err, 5)
	min, err := a.Min()
	check(t, min, err, 1)
}

func TestScans(t *testing.T) {
	ctx := newTestContext(t)
	a, err := ctx.FromFlat(dtypes.Float64, []float64{1, 2, 3, 4, 5}, 5)
	require.NoError(t, err)

	cumsum, err := a.CumSum()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 6, 10, 15}, flatOf[float64](t, cumsum))

	cumprod, err := a.CumProd()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 6, 24, 120}, flatOf[float64](t, cumprod))
}

func TestLocalScanAndFixup(t *testing.T) {
	ctx := newTestContext(t)
	a, err := ctx.FromFlat(dtypes.Float64, []float64{1, 2, 3, 4, 5}, 5)
	require.NoError(t, err)

	partitions := []int{3, 2}
	scanned, aggregates, err := a.LocalScan(backends.OpTypeCumSum, partitions, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 6, 4, 9}, flatOf[float64](t, scanned))
	assert.Equal(t, []float64{6, 9}, flatOf[float64](t, aggregates))

	// The fix-up reconstructs the full scan from the local results.
	fixed, err := ScanFixup(backends.OpTypeCumSum, scanned, aggregates, partitions)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 6, 10, 15}, flatOf[float64](t, fixed))
}

func TestScanFixupValidation(t *testing.T) {
	ctx := newTestContext(t)
	scanned, err := ctx.FromFlat(dtypes.Float64, []float64{1, 3, 6, 4, 9}, 5)
	require.NoError(t, err)
	aggregates, err := ctx.FromFlat(dtypes.Float64, []float64{6, 9, 1}, 3)
	require.NoError(t, err)

	// Aggregates length and partition count disagree.
	_, err = ScanFixup(backends.OpTypeCumSum, scanned, aggregates, []int{3, 2})
	require.Error(t, err)
	assert.True(t, numerr.IsShape(err))
}

func TestMatMulPromotes(t *testing.T) {
	ctx := newTestContext(t)
	ints, err := ctx.FromFlat(dtypes.Int32, []int32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)
	floats, err := ctx.FromFlat(dtypes.Float32, []float32{1, 0, 0, 1}, 2, 2)
	require.NoError(t, err)

	product, err := ints.MatMul(floats)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float64, product.DType())
	assert.Equal(t, []float64{1, 2, 3, 4}, flatOf[float64](t, product))

	// Rank-1 operands are refused.
	vector, err := ctx.FromFlat(dtypes.Float64, []float64{1, 2}, 2)
	require.NoError(t, err)
	_, err = vector.MatMul(vector)
	require.Error(t, err)
	assert.True(t, numerr.IsShape(err))
}

func TestCholeskyRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	a, err := ctx.FromFlat(dtypes.Float64, []float64{4, 2, 2, 3}, 2, 2)
	require.NoError(t, err)

	lower, err := a.Cholesky()
	require.NoError(t, err)

	// L L^T reproduces the input.
	upper, err := lower.Copy()
	require.NoError(t, err)
	lowerFlat := flatOf[float64](t, lower)
	transposed, err := ctx.FromFlat(dtypes.Float64,
		[]float64{lowerFlat[0], lowerFlat[2], lowerFlat[1], lowerFlat[3]}, 2, 2)
	require.NoError(t, err)
	product, err := upper.MatMul(transposed)
	require.NoError(t, err)
	got := flatOf[float64](t, product)
	want := []float64{4, 2, 2, 3}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}

	// Indefinite input fails with a ComputeError.
	indefinite, err := ctx.FromFlat(dtypes.Float64, []float64{1, 2, 2, 1}, 2, 2)
	require.NoError(t, err)
	_, err = indefinite.Cholesky()
	require.Error(t, err)
	assert.True(t, numerr.IsCompute(err))
}

func TestTrilTriu(t *testing.T) {
	ctx := newTestContext(t)
	a, err := ctx.FromFlat(dtypes.Int32, []int32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 3, 3)
	require.NoError(t, err)

	tril, err := a.Tril(0)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 0, 0, 4, 5, 0, 7, 8, 9}, flatOf[int32](t, tril))

	triu, err := a.Triu(1)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 2, 3, 0, 0, 6, 0, 0, 0}, flatOf[int32](t, triu))

	// A rank-1 input is promoted to a square matrix, rows repeating the
	// vector.
	vector, err := ctx.FromFlat(dtypes.Int32, []int32{1, 2, 3}, 3)
	require.NoError(t, err)
	square, err := vector.Tril(0)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, square.Shape().Dimensions)
	assert.Equal(t, []int32{1, 0, 0, 1, 2, 0, 1, 2, 3}, flatOf[int32](t, square))

	// Scalars have no triangle.
	scalar, err := ctx.FromValue(int32(1))
	require.NoError(t, err)
	_, err = scalar.Tril(0)
	require.Error(t, err)
	assert.True(t, numerr.IsPrecondition(err))
}

func TestConvert(t *testing.T) {
	ctx := newTestContext(t)
	a, err := ctx.FromFlat(dtypes.Int32, []int32{-2, 0, 3}, 3)
	require.NoError(t, err)

	floats, err := a.Convert(dtypes.Float64)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, 0, 3}, flatOf[float64](t, floats))

	// Converting to the same dtype is a plain copy.
	same, err := a.Convert(dtypes.Int32)
	require.NoError(t, err)
	assert.Equal(t, flatOf[int32](t, a), flatOf[int32](t, same))
}

func TestAcceleratorVariant(t *testing.T) {
	ctx := newTestContext(t).WithVariant(backends.VariantAccelerator)
	a, err := ctx.FromFlat(dtypes.Float64, []float64{1, 2, 3, 4}, 4)
	require.NoError(t, err)

	sum, err := a.Add(a)
	require.NoError(t, err)
	require.NoError(t, sum.Wait())
	assert.Equal(t, []float64{2, 4, 6, 8}, flatOf[float64](t, sum))
}

func TestReleaseSemantics(t *testing.T) {
	ctx := newTestContext(t)
	a, err := ctx.FromFlat(dtypes.Float64, []float64{1, 2}, 2)
	require.NoError(t, err)
	require.NoError(t, a.Release())

	// Released arrays refuse data access; a double release is a no-op.
	err = a.ConstFlatData(func(any) {})
	require.Error(t, err)
	require.NoError(t, a.Release())
}
