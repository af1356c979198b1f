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
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/numerr"
	"github.com/numforge/numforge/types/shapes"
)

// mustFamily panics when op does not belong to the wanted family: passing
// the wrong OpType to a family-specific entry point is a caller bug, not a
// runtime condition.
func mustFamily(op backends.OpType, want backends.OpFamily) {
	if op.Family() != want {
		exceptions.Panicf("arrays: operation %s is not in family %s", op, want)
	}
}

func mustArray(a *Array, what string) {
	if a == nil || a.buffer == nil {
		exceptions.Panicf("arrays: %s is nil or already released", what)
	}
}

// Unary applies an elementwise unary operation, returning a new array of the
// same shape and dtype.
func (a *Array) Unary(op backends.OpType) (*Array, error) {
	mustFamily(op, backends.FamilyUnary)
	mustArray(a, "operand")
	out, err := a.ctx.newArray(a.shape)
	if err != nil {
		return nil, err
	}
	if err := a.ctx.submit(op, []*Array{a}, out, nil, backends.Attributes{}); err != nil {
		_ = out.Release()
		return nil, err
	}
	return out, nil
}

// UnaryInto applies an elementwise unary operation into an existing output
// array, allocating nothing. Output shape and dtype must match the operand.
func (a *Array) UnaryInto(op backends.OpType, out *Array) error {
	mustFamily(op, backends.FamilyUnary)
	mustArray(a, "operand")
	mustArray(out, "output")
	return a.ctx.submit(op, []*Array{a}, out, nil, backends.Attributes{})
}

// Copy returns a new array with the same contents.
func (a *Array) Copy() (*Array, error) { return a.Unary(backends.OpTypeCopy) }

// Neg returns the elementwise negation.
func (a *Array) Neg() (*Array, error) { return a.Unary(backends.OpTypeNeg) }

// Abs returns the elementwise absolute value.
func (a *Array) Abs() (*Array, error) { return a.Unary(backends.OpTypeAbs) }

// Sqrt returns the elementwise square root.
func (a *Array) Sqrt() (*Array, error) { return a.Unary(backends.OpTypeSqrt) }

// Exp returns the elementwise exponential.
func (a *Array) Exp() (*Array, error) { return a.Unary(backends.OpTypeExp) }

// Log returns the elementwise natural logarithm.
func (a *Array) Log() (*Array, error) { return a.Unary(backends.OpTypeLog) }

// Convert returns the array converted to the given dtype. Converting to the
// array's own dtype degenerates to a copy.
func (a *Array) Convert(dtype dtypes.DType) (*Array, error) {
	mustArray(a, "operand")
	if dtype == a.DType() {
		return a.Copy()
	}
	out, err := a.ctx.newArray(shapes.Make(dtype, a.shape.Dimensions...))
	if err != nil {
		return nil, err
	}
	if err := a.ctx.submit(backends.OpTypeConvertDType, []*Array{a}, out, nil, backends.Attributes{}); err != nil {
		_ = out.Release()
		return nil, err
	}
	return out, nil
}

// promoteOperands converts a and b to the given dtype as needed, returning
// the (possibly temporary) operands and the temporaries to release.
func promoteOperands(a, b *Array, dtype dtypes.DType) (lhs, rhs *Array, temps []*Array, err error) {
	lhs, rhs = a, b
	if lhs.DType() != dtype {
		lhs, err = lhs.Convert(dtype)
		if err != nil {
			return nil, nil, temps, err
		}
		temps = append(temps, lhs)
	}
	if rhs.DType() != dtype {
		rhs, err = rhs.Convert(dtype)
		if err != nil {
			return nil, nil, temps, err
		}
		temps = append(temps, rhs)
	}
	return lhs, rhs, temps, nil
}

func releaseAll(arrays []*Array) {
	for _, a := range arrays {
		_ = a.Release()
	}
}

// Binary applies an elementwise binary operation with NumPy broadcasting.
// Operands of different dtypes are promoted to their common dtype first;
// the result carries the promoted dtype.
func (a *Array) Binary(op backends.OpType, b *Array) (*Array, error) {
	mustFamily(op, backends.FamilyBinary)
	mustArray(a, "left operand")
	mustArray(b, "right operand")
	outShape, err := shapes.BroadcastShapes(a.shape, b.shape)
	if err != nil {
		return nil, err
	}
	lhs, rhs, temps, err := promoteOperands(a, b, outShape.DType)
	defer releaseAll(temps)
	if err != nil {
		return nil, err
	}
	out, err := a.ctx.newArray(outShape)
	if err != nil {
		return nil, err
	}
	if err := a.ctx.submit(op, []*Array{lhs, rhs}, out, nil, backends.Attributes{}); err != nil {
		_ = out.Release()
		return nil, err
	}
	return out, nil
}

// BinaryInto applies an elementwise binary operation into an existing output
// array. The output dimensions must equal the broadcast of the operand
// shapes, and its dtype must hold the promoted operand dtype without
// narrowing: silently dropping precision into a caller-supplied output is
// refused with a TypeError.
func (a *Array) BinaryInto(op backends.OpType, b, out *Array) error {
	mustFamily(op, backends.FamilyBinary)
	mustArray(a, "left operand")
	mustArray(b, "right operand")
	mustArray(out, "output")
	broadcast, err := shapes.BroadcastShapes(a.shape, b.shape)
	if err != nil {
		return err
	}
	if !broadcast.EqualDimensions(out.shape) {
		return numerr.Shapef("%s: broadcast shape %s does not match output shape %s",
			op, broadcast, out.shape)
	}
	if broadcast.DType != out.DType() {
		if !shapes.CanConvertWithoutNarrowing(broadcast.DType, out.DType()) {
			return numerr.Typef("%s: output dtype %s would narrow the promoted operand dtype %s",
				op, out.DType(), broadcast.DType)
		}
	}
	lhs, rhs, temps, err := promoteOperands(a, b, out.DType())
	defer releaseAll(temps)
	if err != nil {
		return err
	}
	return a.ctx.submit(op, []*Array{lhs, rhs}, out, nil, backends.Attributes{})
}

// Add returns a + b with broadcasting and promotion.
func (a *Array) Add(b *Array) (*Array, error) { return a.Binary(backends.OpTypeAdd, b) }

// Sub returns a - b with broadcasting and promotion.
func (a *Array) Sub(b *Array) (*Array, error) { return a.Binary(backends.OpTypeSub, b) }

// Mul returns the elementwise product with broadcasting and promotion.
func (a *Array) Mul(b *Array) (*Array, error) { return a.Binary(backends.OpTypeMul, b) }

// Div returns the elementwise quotient with broadcasting and promotion.
func (a *Array) Div(b *Array) (*Array, error) { return a.Binary(backends.OpTypeDiv, b) }

// Maximum returns the elementwise maximum with broadcasting and promotion.
func (a *Array) Maximum(b *Array) (*Array, error) { return a.Binary(backends.OpTypeMaximum, b) }

// Minimum returns the elementwise minimum with broadcasting and promotion.
func (a *Array) Minimum(b *Array) (*Array, error) { return a.Binary(backends.OpTypeMinimum, b) }

// Reduce folds the whole array to a rank-0 array of the same dtype.
func (a *Array) Reduce(op backends.OpType) (*Array, error) {
	return a.reduce(op, false)
}

// NaNReduce is Reduce with NaN inputs treated as the reduction's identity
// (like NumPy's nansum/nanmax family). Only meaningful for float dtypes.
func (a *Array) NaNReduce(op backends.OpType) (*Array, error) {
	return a.reduce(op, true)
}

func (a *Array) reduce(op backends.OpType, nanToIdentity bool) (*Array, error) {
	mustFamily(op, backends.FamilyReduction)
	mustArray(a, "operand")
	out, err := a.ctx.newArray(shapes.Make(a.DType()))
	if err != nil {
		return nil, err
	}
	err = a.ctx.submit(op, []*Array{a}, out, nil, backends.Attributes{NaNToIdentity: nanToIdentity})
	if err != nil {
		_ = out.Release()
		return nil, err
	}
	return out, nil
}

// Sum returns the sum of all elements as a rank-0 array.
func (a *Array) Sum() (*Array, error) { return a.Reduce(backends.OpTypeReduceSum) }

// Prod returns the product of all elements as a rank-0 array.
func (a *Array) Prod() (*Array, error) { return a.Reduce(backends.OpTypeReduceProd) }

// Max returns the largest element as a rank-0 array.
func (a *Array) Max() (*Array, error) { return a.Reduce(backends.OpTypeReduceMax) }

// Min returns the smallest element as a rank-0 array.
func (a *Array) Min() (*Array, error) { return a.Reduce(backends.OpTypeReduceMin) }

// Scan computes a full inclusive scan over a rank-1 array. With
// nanToIdentity, NaN inputs contribute the identity instead (NumPy's
// nancumsum/nancumprod).
func (a *Array) Scan(op backends.OpType, nanToIdentity bool) (*Array, error) {
	mustFamily(op, backends.FamilyScan)
	mustArray(a, "operand")
	out, err := a.ctx.newArray(a.shape)
	if err != nil {
		return nil, err
	}
	err = a.ctx.submit(op, []*Array{a}, out, nil, backends.Attributes{NaNToIdentity: nanToIdentity})
	if err != nil {
		_ = out.Release()
		return nil, err
	}
	return out, nil
}

// CumSum returns the inclusive running sum of a rank-1 array.
func (a *Array) CumSum() (*Array, error) { return a.Scan(backends.OpTypeCumSum, false) }

// CumProd returns the inclusive running product of a rank-1 array.
func (a *Array) CumProd() (*Array, error) { return a.Scan(backends.OpTypeCumProd, false) }

// LocalScan runs only the local phase of a scan over explicit partitions of
// a rank-1 array: the returned scanned array holds per-partition inclusive
// scans, and aggregates holds one total per partition, in partition order.
// A driver owning the global picture (e.g. partitions living on different
// workers) applies the exclusive prefix of the aggregates as the fix-up; see
// ScanFixup.
func (a *Array) LocalScan(op backends.OpType, partitions []int, nanToIdentity bool) (scanned, aggregates *Array, err error) {
	mustFamily(op, backends.FamilyScan)
	mustArray(a, "operand")
	scanned, err = a.ctx.newArray(a.shape)
	if err != nil {
		return nil, nil, err
	}
	aggregates, err = a.ctx.newArray(shapes.Make(a.DType(), len(partitions)))
	if err != nil {
		_ = scanned.Release()
		return nil, nil, err
	}
	attrs := backends.Attributes{Partitions: partitions, NaNToIdentity: nanToIdentity}
	if err = a.ctx.submit(op, []*Array{a}, scanned, aggregates, attrs); err != nil {
		_ = scanned.Release()
		_ = aggregates.Release()
		return nil, nil, err
	}
	return scanned, aggregates, nil
}

// MatMul returns the rank-2 matrix product a x b, with dtype promotion.
func (a *Array) MatMul(b *Array) (*Array, error) {
	mustArray(a, "left operand")
	mustArray(b, "right operand")
	if a.Rank() != 2 || b.Rank() != 2 {
		return nil, numerr.Shapef("MatMul requires rank-2 operands, got %s and %s", a.shape, b.shape)
	}
	if a.shape.Dimensions[1] != b.shape.Dimensions[0] {
		return nil, numerr.Shapef("MatMul inner dimensions do not match: %s x %s", a.shape, b.shape)
	}
	promoted, err := shapes.PromoteDTypes(a.DType(), b.DType())
	if err != nil {
		return nil, err
	}
	lhs, rhs, temps, err := promoteOperands(a, b, promoted)
	defer releaseAll(temps)
	if err != nil {
		return nil, err
	}
	out, err := a.ctx.newArray(shapes.Make(promoted, a.shape.Dimensions[0], b.shape.Dimensions[1]))
	if err != nil {
		return nil, err
	}
	if err := a.ctx.submit(backends.OpTypeMatMul, []*Array{lhs, rhs}, out, nil, backends.Attributes{}); err != nil {
		_ = out.Release()
		return nil, err
	}
	return out, nil
}

// Cholesky returns the lower-triangular factor L with L Lᵀ = a, for a
// symmetric positive-definite square matrix. A matrix that is not positive
// definite fails with a ComputeError and no output.
func (a *Array) Cholesky() (*Array, error) {
	mustArray(a, "operand")
	out, err := a.ctx.newArray(a.shape)
	if err != nil {
		return nil, err
	}
	if err := a.ctx.submit(backends.OpTypeCholesky, []*Array{a}, out, nil, backends.Attributes{}); err != nil {
		_ = out.Release()
		return nil, err
	}
	return out, nil
}

// Tril returns the lower triangle relative to the k-th diagonal, zeros
// above. A rank-1 array is promoted to the square matrix obtained by
// broadcasting it across rows, like NumPy. Rank 0 is refused.
func (a *Array) Tril(k int) (*Array, error) { return a.triangular(backends.OpTypeTril, k) }

// Triu returns the upper triangle relative to the k-th diagonal, zeros
// below. Rank-1 promotion as in Tril.
func (a *Array) Triu(k int) (*Array, error) { return a.triangular(backends.OpTypeTriu, k) }

func (a *Array) triangular(op backends.OpType, k int) (*Array, error) {
	mustArray(a, "operand")
	if a.Rank() == 0 {
		return nil, numerr.Preconditionf("%s requires rank >= 1, got a scalar", op)
	}
	outShape := a.shape
	if a.Rank() == 1 {
		n := a.shape.Dimensions[0]
		outShape = shapes.Make(a.DType(), n, n)
	}
	out, err := a.ctx.newArray(outShape)
	if err != nil {
		return nil, err
	}
	err = a.ctx.submit(op, []*Array{a}, out, nil, backends.Attributes{DiagonalOffset: k})
	if err != nil {
		_ = out.Release()
		return nil, err
	}
	return out, nil
}
